package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ratpet.ai/internal/persistence/indexdb"
	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/world"
	"ratpet.ai/internal/sim/world/kernel/model"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratpet.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	start := time.Unix(2_000_000, 0).UTC()
	_ = idx.WriteTick(world.TickLogEntry{
		Header: &world.RunHeader{RunID: "run-1", WorldID: "pet", Seed: 1, Start: start},
		Tick:   0, At: start, State: "IDLE", Digest: "a",
	})
	_ = idx.WriteTick(world.TickLogEntry{
		Tick: 1, At: start.Add(100 * time.Millisecond), State: "WALK", Pos: geom.Pt(5, 6), Digest: "b",
		Events: []model.Event{
			{Kind: model.EventTransition, Note: "IDLE->WALK"},
			{Kind: model.EventSneakBehind, Window: 205, Note: "LEFT"},
		},
		Windows: []world.WindowCall{{Op: world.OpZOrder, Window: 101, After: 205}},
	})
	_ = idx.WriteTick(world.TickLogEntry{
		Tick: 2, At: start.Add(200 * time.Millisecond), State: "SLEEP", Digest: "c",
		Events:      []model.Event{{Kind: model.EventTransition, Note: "WALK->SLEEP"}},
		Observation: &model.Observation{At: start.Add(200 * time.Millisecond), Window: 205, Title: "Browser"},
		Windows:     []world.WindowCall{{Op: world.OpZOrder, Window: 101, After: desktop.InsertTopmost}},
	})
	idx.RecordRunEnd("run-1", 2, "c", "SLEEP")
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func lines(t *testing.T, db *sql.DB, name string, q dbQuery) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	if err := runQuery(db, name, q, &buf); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(l), &m); err != nil {
			t.Fatalf("%s: bad line %q: %v", name, l, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRunQuery(t *testing.T) {
	db, err := sql.Open("sqlite", seedIndex(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	runs := lines(t, db, "runs", dbQuery{})
	if len(runs) != 1 || runs[0]["run_id"] != "run-1" || runs[0]["end_state"] != "SLEEP" || runs[0]["end_tick"] != float64(2) {
		t.Fatalf("runs=%v", runs)
	}

	if got := lines(t, db, "ticks", dbQuery{}); len(got) != 3 || got[0]["tick"] != float64(2) {
		t.Fatalf("ticks=%v", got)
	}
	if got := lines(t, db, "ticks", dbQuery{State: "WALK"}); len(got) != 1 || got[0]["x"] != float64(5) {
		t.Fatalf("walk ticks=%v", got)
	}
	if got := lines(t, db, "transitions", dbQuery{State: "SLEEP"}); len(got) != 1 || got[0]["from"] != "WALK" {
		t.Fatalf("transitions=%v", got)
	}
	if got := lines(t, db, "events", dbQuery{Kind: model.EventSneakBehind}); len(got) != 1 || got[0]["hwnd"] != float64(205) {
		t.Fatalf("events=%v", got)
	}
	if got := lines(t, db, "windows", dbQuery{HWND: 101, Limit: 1}); len(got) != 1 || got[0]["insert_after"] != float64(desktop.InsertTopmost) {
		t.Fatalf("windows=%v", got)
	}
	if got := lines(t, db, "observations", dbQuery{RunID: "run-1"}); len(got) != 1 || got[0]["title"] != "Browser" {
		t.Fatalf("observations=%v", got)
	}

	sum := lines(t, db, "summary", dbQuery{})
	if len(sum) != 1 || sum[0]["ticks"] != float64(3) {
		t.Fatalf("summary=%v", sum)
	}
	tr := sum[0]["transitions"].(map[string]any)
	if tr["WALK"] != float64(1) || tr["SLEEP"] != float64(1) {
		t.Fatalf("summary transitions=%v", tr)
	}
}

func TestRunQuery_errors(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "empty.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE runs (run_id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	var buf bytes.Buffer
	if err := runQuery(db, "ticks", dbQuery{}, &buf); !errors.Is(err, errNoRuns) {
		t.Fatalf("want errNoRuns, got %v", err)
	}
	if err := runQuery(db, "bogus", dbQuery{RunID: "x"}, &buf); err == nil || !strings.Contains(err.Error(), "unknown query") {
		t.Fatalf("bogus: %v", err)
	}
}
