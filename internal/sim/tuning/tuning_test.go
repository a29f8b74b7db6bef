package tuning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_TuningYAML(t *testing.T) {
	tu, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if tu.TickMs != 100 || tu.OverlayTickMs != 16 || tu.ZOrderReassertMs != 2000 {
		t.Fatalf("timing=%d/%d/%d", tu.TickMs, tu.OverlayTickMs, tu.ZOrderReassertMs)
	}
	if tu.Settings.Scale != 2 || tu.Settings.BaseSpeed != 3 {
		t.Fatalf("settings=%+v", tu.Settings)
	}
	if !tu.Assets.HasToy() || len(tu.Reveal) == 0 {
		t.Fatalf("expected toy asset and reveal items")
	}
}

func TestSettingsNormalize_clamps(t *testing.T) {
	s := Settings{Scale: 9, BaseSpeed: -4, SneakChance: 3, MischiefChance: 0.9}.Normalize()
	if s.Scale != MaxScale || s.BaseSpeed != MinSpeed || s.SneakChance != 1 || s.MischiefChance != MaxMischiefChance {
		t.Fatalf("normalized=%+v", s)
	}
	s = Settings{}.Normalize()
	if s.Scale != 2 || s.BaseSpeed != 3 {
		t.Fatalf("zero settings should take defaults: %+v", s)
	}
	if ClampScale(0.1) != MinScale || ClampSpeed(11) != MaxSpeed || ClampSneakChance(-1) != 0 {
		t.Fatalf("clamp helpers")
	}
}

func TestLoad_invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_ms: -5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if err := os.WriteFile(p, []byte("reveal:\n  - id: a\n  - id: a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected duplicate reveal error, got %v", err)
	}
}

func TestWatch_reloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("settings:\n  scale: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Tuning, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(tu Tuning) { got <- tu }, nil)
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case tu := <-got:
			if tu.Settings.Scale != 3 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		case <-tick.C:
			// the watcher may not be registered yet; keep rewriting
			_ = os.WriteFile(p, []byte("settings:\n  scale: 3\n"), 0o644)
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}
