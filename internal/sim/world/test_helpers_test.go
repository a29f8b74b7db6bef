package world

import (
	"testing"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world/kernel/model"
)

var testStart = time.Unix(1_000_000, 0)

const tickDur = 100 * time.Millisecond

type testWorld struct {
	*World
	v       *desktop.Virtual
	self    desktop.Handle
	overlay desktop.Handle
	now     time.Time
}

type option func(*Config)

func withRand(r rng.Source) option     { return func(c *Config) { c.Rand = r } }
func withFlourish(r rng.Source) option { return func(c *Config) { c.Flourish = r } }
func withTuning(f func(*tuning.Tuning)) option {
	return func(c *Config) { f(&c.Tuning) }
}

// newTestWorld builds a world on one 1920x1080 monitor with the agent and
// overlay windows in place. Bubbles and reveals are pushed an hour out.
func newTestWorld(t *testing.T, opts ...option) *testWorld {
	t.Helper()
	v := desktop.NewVirtual(desktop.Monitor{
		DeviceID: "A",
		WorkArea: geom.R(0, 0, 1920, 1040),
		Bounds:   geom.R(0, 0, 1920, 1080),
		Primary:  true,
	})
	return newTestWorldOn(t, v, opts...)
}

func newTestWorldOn(t *testing.T, v *desktop.Virtual, opts ...option) *testWorld {
	t.Helper()
	self := v.AddWindow(desktop.VirtualWindow{Title: "pet", Bounds: geom.XYWH(0, 0, 64, 64), Topmost: true})
	overlay := v.AddWindow(desktop.VirtualWindow{Title: "overlay", Bounds: geom.R(0, 0, 1920, 1080), Topmost: true, ClickThrough: true})

	tun := tuning.Defaults()
	tun.Seed = 7
	tun.FirstBubbleDelayMs = int(time.Hour / time.Millisecond)
	tun.FirstRevealDelayMs = int(time.Hour / time.Millisecond)
	cfg := Config{
		ID:       "test",
		Tuning:   tun,
		Windows:  v,
		Monitors: v,
		Pointer:  v,
		Self:     self,
		Overlay:  overlay,
		Start:    testStart,
		Rand:     &rng.Script{},
		Flourish: &rng.Script{},
	}
	for _, o := range opts {
		o(&cfg)
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testWorld{World: w, v: v, self: self, overlay: overlay, now: testStart}
}

// tick advances the clock by one behavior interval and steps.
func (tw *testWorld) tick(cmds ...Command) {
	tw.now = tw.now.Add(tickDur)
	tw.StepOnce(tw.now, cmds)
}

// idleFor parks the agent in Idle so no transition fires for d.
func (tw *testWorld) idleFor(d time.Duration) {
	tw.agent.Enter(model.StateIdle, tw.now, d)
}

func desktopWindow(title string, r geom.Rect) desktop.VirtualWindow {
	return desktop.VirtualWindow{Title: title, Bounds: r}
}

type captureLogger struct {
	entries []TickLogEntry
}

func (c *captureLogger) WriteTick(e TickLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}
