package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	persistlog "ratpet.ai/internal/persistence/log"
	"ratpet.ai/internal/sim/world"
)

func main() {
	var (
		runDir   = flag.String("run", "", "run directory containing run.yaml and ticks/")
		fromTick = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	res, err := replayRun(*runDir, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: run=%s world=%s seed=%d checked=%d ticks last=%d state=%s\n",
		res.Header.RunID, res.Header.WorldID, res.Header.Seed, res.Checked, res.LastTick, res.State)
}

type result struct {
	Header   world.RunHeader
	Checked  uint64
	LastTick uint64
	State    string
}

// replayRun rebuilds the world a run started from and re-steps every journal
// entry, comparing digests from verifyFrom on.
func replayRun(runDir string, verifyFrom, toTick uint64) (result, error) {
	var res result
	cfg, err := persistlog.ReadRunConfig(runDir)
	if err != nil {
		return res, fmt.Errorf("read run config: %w", err)
	}

	var w *world.World
	err = persistlog.ReadTicks(persistlog.TicksDir(runDir), func(entry world.TickLogEntry) error {
		if w == nil {
			if entry.Header == nil {
				return fmt.Errorf("tick %d: journal does not start with a run header", entry.Tick)
			}
			res.Header = *entry.Header
			tun := cfg.Tuning
			tun.Seed = entry.Header.Seed
			host := cfg.Desktop.BuildHost()
			w, err = world.New(world.Config{
				ID:       entry.Header.WorldID,
				Tuning:   tun,
				Windows:  host,
				Monitors: host,
				Pointer:  host,
				Self:     host.Self,
				Overlay:  host.Overlay,
				Start:    entry.Header.Start,
			})
			if err != nil {
				return fmt.Errorf("world: %w", err)
			}
			w.SetRunID(entry.Header.RunID)
		}
		if toTick != 0 && entry.Tick > toTick {
			return persistlog.ErrStop
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}

		for _, at := range entry.OverlayAt {
			w.StepOverlay(at)
		}
		tick, gotDigest := w.StepOnce(entry.At, entry.Commands)

		// Sanity check: StepOnce should have stepped the same tick.
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
		}
		if tick >= verifyFrom {
			res.Checked++
			if gotDigest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
		res.LastTick = tick
		res.State = w.Agent().State.String()
		return nil
	})
	if err != nil {
		return res, err
	}
	if w == nil {
		return res, errors.New("no journal entries found")
	}
	return res, nil
}
