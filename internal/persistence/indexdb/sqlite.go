package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world"
	"ratpet.ai/internal/sim/world/kernel/model"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick    atomic.Uint64
	dropSummary atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSummary
)

type req struct {
	kind reqKind

	tick    world.TickLogEntry
	summary summaryRow
}

// summaryRow closes a run: how far it got and where it ended.
type summaryRow struct {
	RunID    string
	EndTick  uint64
	EndedAt  string
	Digest   string
	EndState string
}

type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropTickTotal    uint64 `json:"drop_tick_total"`
	DropSummaryTotal uint64 `json:"drop_summary_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Ten ticks a second; a minute of backlog before entries are dropped.
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tuning (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			start TEXT NOT NULL,
			end_tick INTEGER,
			ended_at TEXT,
			end_digest TEXT,
			end_state TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			at TEXT NOT NULL,
			state TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			digest TEXT NOT NULL,
			commands INTEGER NOT NULL,
			events INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS transitions (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_to ON transitions(to_state, tick);`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			hwnd INTEGER NOT NULL,
			note TEXT,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind_tick ON events(kind, tick);`,
		`CREATE TABLE IF NOT EXISTS window_calls (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			op TEXT NOT NULL,
			hwnd INTEGER NOT NULL,
			insert_after INTEGER NOT NULL,
			err TEXT,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_window_calls_hwnd ON window_calls(hwnd, tick);`,
		`CREATE TABLE IF NOT EXISTS observations (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			at TEXT NOT NULL,
			hwnd INTEGER NOT NULL,
			title TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropTickTotal:    s.dropTick.Load(),
		DropSummaryTotal: s.dropSummary.Load(),
	}
}

// WriteTick queues a journal entry for indexing. It never blocks the world
// loop.
func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

// RecordRunEnd stamps the final tick, digest and state of a run.
func (s *SQLiteIndex) RecordRunEnd(runID string, endTick uint64, digest, state string) {
	if s == nil || s.closed.Load() || strings.TrimSpace(runID) == "" {
		return
	}
	r := summaryRow{
		RunID:    runID,
		EndTick:  endTick,
		EndedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		Digest:   digest,
		EndState: state,
	}
	select {
	case s.ch <- req{kind: reqSummary, summary: r}:
	default:
		s.dropSummary.Add(1)
	}
}

// UpsertTuning stores the tuning actually applied to a run, keyed by the
// digest of its canonical JSON.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO tuning(digest,json,updated_at) VALUES(?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return digest, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,world_id,seed,start) VALUES(?,?,?,?)`)
	endRun, _ := s.db.Prepare(`UPDATE runs SET end_tick=?, ended_at=?, end_digest=?, end_state=? WHERE run_id=?`)
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,at,state,x,y,digest,commands,events,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertTransition, _ := s.db.Prepare(`INSERT OR REPLACE INTO transitions(run_id,tick,from_state,to_state) VALUES(?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(run_id,tick,seq,kind,hwnd,note) VALUES(?,?,?,?,?,?)`)
	insertCall, _ := s.db.Prepare(`INSERT OR REPLACE INTO window_calls(run_id,tick,seq,op,hwnd,insert_after,err) VALUES(?,?,?,?,?,?,?)`)
	insertObservation, _ := s.db.Prepare(`INSERT OR REPLACE INTO observations(run_id,tick,at,hwnd,title) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, endRun, insertTick, insertTransition, insertEvent, insertCall, insertObservation} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		// Entries after the first carry no header; they belong to the last
		// run seen.
		runID string
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			if h := e.Header; h != nil {
				runID = h.RunID
				if !exec(insertRun, h.RunID, h.WorldID, h.Seed, h.Start.UTC().Format(time.RFC3339Nano)) {
					continue
				}
			}
			s.indexTick(runID, e, exec, insertTick, insertTransition, insertEvent, insertCall, insertObservation)

		case reqSummary:
			sm := r.summary
			exec(endRun, int64(sm.EndTick), sm.EndedAt, sm.Digest, sm.EndState, sm.RunID)
		}
		flushIfNeeded()
	}

	commit()
}

func (s *SQLiteIndex) indexTick(runID string, e world.TickLogEntry, exec func(*sql.Stmt, ...any) bool,
	insertTick, insertTransition, insertEvent, insertCall, insertObservation *sql.Stmt) {
	raw, _ := json.Marshal(e)
	tick := int64(e.Tick)
	if !exec(insertTick, runID, tick, e.At.UTC().Format(time.RFC3339Nano), e.State, e.Pos.X, e.Pos.Y,
		e.Digest, len(e.Commands), len(e.Events), string(raw)) {
		return
	}
	for i, ev := range e.Events {
		if !exec(insertEvent, runID, tick, i, ev.Kind, int64(ev.Window), ev.Note) {
			return
		}
		if ev.Kind != model.EventTransition {
			continue
		}
		from, to, ok := strings.Cut(ev.Note, "->")
		if !ok {
			continue
		}
		if !exec(insertTransition, runID, tick, from, to) {
			return
		}
	}
	for i, c := range e.Windows {
		if !exec(insertCall, runID, tick, i, c.Op, int64(c.Window), int64(c.After), c.Err) {
			return
		}
	}
	if o := e.Observation; o != nil {
		exec(insertObservation, runID, tick, o.At.UTC().Format(time.RFC3339Nano), int64(o.Window), o.Title)
	}
}
