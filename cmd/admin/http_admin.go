package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"ratpet.ai/internal/persistence/indexdb"
	"ratpet.ai/internal/sim/world"
)

// adminState mirrors the body of GET /admin/v1/state.
type adminState struct {
	WorldID string             `json:"world_id"`
	RunID   string             `json:"run_id"`
	Tick    uint64             `json:"tick"`
	Metrics world.WorldMetrics `json:"metrics"`
	Index   *indexdb.Stats     `json:"index,omitempty"`
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	raw := fs.Bool("json", false, "print the response as indented json")
	_ = fs.Parse(args)

	st, err := fetchState(&http.Client{Timeout: 5 * time.Second}, *baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
	if *raw {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(st)
		return
	}
	writeState(os.Stdout, st)
}

func fetchState(cl *http.Client, baseURL string) (adminState, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/state"
	resp, err := cl.Get(u)
	if err != nil {
		return adminState{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return adminState{}, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var st adminState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return adminState{}, fmt.Errorf("decode: %w", err)
	}
	return st, nil
}

func writeState(out io.Writer, st adminState) {
	m := st.Metrics
	fmt.Fprintf(out, "world=%s run=%s tick=%d state=%s\n", st.WorldID, st.RunID, st.Tick, m.State)
	fmt.Fprintf(out, "observers=%d queued=%d footprints=%d tasks=%d step_ms=%.3f\n",
		m.Observers, m.Commands, m.Footprint, m.Tasks, m.StepMS)
	if ix := st.Index; ix != nil {
		fmt.Fprintf(out, "index queue=%d/%d dropped ticks=%d summaries=%d\n",
			ix.QueueDepth, ix.QueueCapacity, ix.DropTickTotal, ix.DropSummaryTotal)
	}
}
