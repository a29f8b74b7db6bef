package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbQuery holds the filters shared by the db subcommands.
type dbQuery struct {
	RunID string
	State string
	Kind  string
	HWND  int64
	Limit int
}

var errNoRuns = errors.New("no runs indexed")

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "ratpet", "world id (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	runID := fs.String("run", "", "run id (optional; defaults to the latest run)")
	limit := fs.Int("limit", 20, "result limit")
	state := fs.String("state", "", "state filter (ticks, transitions)")
	kind := fs.String("kind", "", "event kind filter (events)")
	hwnd := fs.Int64("hwnd", 0, "window handle filter (windows)")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "ratpet.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	err = runQuery(db, q, dbQuery{RunID: *runID, State: *state, Kind: *kind, HWND: *hwnd, Limit: *limit}, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		if errors.Is(err, errNoRuns) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// runQuery prints one JSON object per row to out.
func runQuery(db *sql.DB, name string, q dbQuery, out io.Writer) error {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	if name == "runs" {
		return queryRuns(db, q, enc)
	}
	if q.RunID == "" {
		id, err := latestRun(db)
		if err != nil {
			return err
		}
		q.RunID = id
	}

	switch name {
	case "ticks":
		return queryTicks(db, q, enc)
	case "transitions":
		return queryTransitions(db, q, enc)
	case "events":
		return queryEvents(db, q, enc)
	case "windows":
		return queryWindowCalls(db, q, enc)
	case "observations":
		return queryObservations(db, q, enc)
	case "summary":
		return querySummary(db, q, enc)
	default:
		return fmt.Errorf("unknown query %q (want runs|ticks|transitions|events|windows|observations|summary)", name)
	}
}

func latestRun(db *sql.DB) (string, error) {
	var id string
	err := db.QueryRow(`SELECT run_id FROM runs ORDER BY rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errNoRuns
	}
	return id, err
}

// each runs query and hands every row to scan.
func each(db *sql.DB, scan func(*sql.Rows) error, query string, args ...any) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func queryRuns(db *sql.DB, q dbQuery, enc *json.Encoder) error {
	return each(db, func(rows *sql.Rows) error {
		var r struct {
			RunID     string `json:"run_id"`
			WorldID   string `json:"world_id"`
			Seed      int64  `json:"seed"`
			Start     string `json:"start"`
			EndTick   *int64 `json:"end_tick,omitempty"`
			EndedAt   string `json:"ended_at,omitempty"`
			EndDigest string `json:"end_digest,omitempty"`
			EndState  string `json:"end_state,omitempty"`
		}
		var endTick sql.NullInt64
		var endedAt, endDigest, endState sql.NullString
		if err := rows.Scan(&r.RunID, &r.WorldID, &r.Seed, &r.Start, &endTick, &endedAt, &endDigest, &endState); err != nil {
			return err
		}
		if endTick.Valid {
			r.EndTick = &endTick.Int64
		}
		r.EndedAt, r.EndDigest, r.EndState = endedAt.String, endDigest.String, endState.String
		return enc.Encode(r)
	}, `SELECT run_id,world_id,seed,start,end_tick,ended_at,end_digest,end_state FROM runs ORDER BY rowid DESC LIMIT ?`, q.Limit)
}

func queryTicks(db *sql.DB, q dbQuery, enc *json.Encoder) error {
	return each(db, func(rows *sql.Rows) error {
		var r struct {
			Tick     int64   `json:"tick"`
			At       string  `json:"at"`
			State    string  `json:"state"`
			X        float64 `json:"x"`
			Y        float64 `json:"y"`
			Digest   string  `json:"digest"`
			Commands int     `json:"commands"`
			Events   int     `json:"events"`
		}
		if err := rows.Scan(&r.Tick, &r.At, &r.State, &r.X, &r.Y, &r.Digest, &r.Commands, &r.Events); err != nil {
			return err
		}
		return enc.Encode(r)
	}, `SELECT tick,at,state,x,y,digest,commands,events FROM ticks
		WHERE run_id=? AND (?='' OR state=?) ORDER BY tick DESC LIMIT ?`, q.RunID, q.State, q.State, q.Limit)
}

func queryTransitions(db *sql.DB, q dbQuery, enc *json.Encoder) error {
	return each(db, func(rows *sql.Rows) error {
		var r struct {
			Tick int64  `json:"tick"`
			From string `json:"from"`
			To   string `json:"to"`
		}
		if err := rows.Scan(&r.Tick, &r.From, &r.To); err != nil {
			return err
		}
		return enc.Encode(r)
	}, `SELECT tick,from_state,to_state FROM transitions
		WHERE run_id=? AND (?='' OR to_state=?) ORDER BY tick DESC LIMIT ?`, q.RunID, q.State, q.State, q.Limit)
}

func queryEvents(db *sql.DB, q dbQuery, enc *json.Encoder) error {
	return each(db, func(rows *sql.Rows) error {
		var r struct {
			Tick int64  `json:"tick"`
			Seq  int    `json:"seq"`
			Kind string `json:"kind"`
			HWND int64  `json:"hwnd,omitempty"`
			Note string `json:"note,omitempty"`
		}
		var note sql.NullString
		if err := rows.Scan(&r.Tick, &r.Seq, &r.Kind, &r.HWND, &note); err != nil {
			return err
		}
		r.Note = note.String
		return enc.Encode(r)
	}, `SELECT tick,seq,kind,hwnd,note FROM events
		WHERE run_id=? AND (?='' OR kind=?) ORDER BY tick DESC, seq LIMIT ?`, q.RunID, q.Kind, q.Kind, q.Limit)
}

func queryWindowCalls(db *sql.DB, q dbQuery, enc *json.Encoder) error {
	return each(db, func(rows *sql.Rows) error {
		var r struct {
			Tick        int64  `json:"tick"`
			Seq         int    `json:"seq"`
			Op          string `json:"op"`
			HWND        int64  `json:"hwnd"`
			InsertAfter int64  `json:"insert_after"`
			Err         string `json:"err,omitempty"`
		}
		var e sql.NullString
		if err := rows.Scan(&r.Tick, &r.Seq, &r.Op, &r.HWND, &r.InsertAfter, &e); err != nil {
			return err
		}
		r.Err = e.String
		return enc.Encode(r)
	}, `SELECT tick,seq,op,hwnd,insert_after,err FROM window_calls
		WHERE run_id=? AND (?=0 OR hwnd=?) ORDER BY tick DESC, seq LIMIT ?`, q.RunID, q.HWND, q.HWND, q.Limit)
}

func queryObservations(db *sql.DB, q dbQuery, enc *json.Encoder) error {
	return each(db, func(rows *sql.Rows) error {
		var r struct {
			Tick  int64  `json:"tick"`
			At    string `json:"at"`
			HWND  int64  `json:"hwnd"`
			Title string `json:"title"`
		}
		if err := rows.Scan(&r.Tick, &r.At, &r.HWND, &r.Title); err != nil {
			return err
		}
		return enc.Encode(r)
	}, `SELECT tick,at,hwnd,title FROM observations WHERE run_id=? ORDER BY tick DESC LIMIT ?`, q.RunID, q.Limit)
}

// querySummary prints how often each state was entered and each event kind
// fired in the run.
func querySummary(db *sql.DB, q dbQuery, enc *json.Encoder) error {
	out := struct {
		RunID       string         `json:"run_id"`
		Ticks       int64          `json:"ticks"`
		Transitions map[string]int `json:"transitions"`
		Events      map[string]int `json:"events"`
	}{RunID: q.RunID, Transitions: map[string]int{}, Events: map[string]int{}}

	if err := db.QueryRow(`SELECT COUNT(*) FROM ticks WHERE run_id=?`, q.RunID).Scan(&out.Ticks); err != nil {
		return err
	}
	counts := func(dst map[string]int, query string) error {
		return each(db, func(rows *sql.Rows) error {
			var k string
			var n int
			if err := rows.Scan(&k, &n); err != nil {
				return err
			}
			dst[k] = n
			return nil
		}, query, q.RunID)
	}
	if err := counts(out.Transitions, `SELECT to_state,COUNT(*) FROM transitions WHERE run_id=? GROUP BY to_state`); err != nil {
		return err
	}
	if err := counts(out.Events, `SELECT kind,COUNT(*) FROM events WHERE run_id=? GROUP BY kind`); err != nil {
		return err
	}
	return enc.Encode(out)
}
