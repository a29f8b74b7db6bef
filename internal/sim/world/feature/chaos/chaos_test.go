package chaos

import (
	"testing"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/tasks"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

type fixture struct {
	v       *desktop.Virtual
	c       *featurectx.Context
	editor  desktop.Handle
	dialog  desktop.Handle
	browser desktop.Handle
}

func newFixture(t *testing.T, r *rng.Script) *fixture {
	t.Helper()
	v := desktop.NewVirtual(desktop.Monitor{DeviceID: "A", WorkArea: geom.R(0, 0, 1920, 1040), Bounds: geom.R(0, 0, 1920, 1080)})
	editor := v.AddWindow(desktop.VirtualWindow{Title: "Editor", Bounds: geom.R(200, 200, 600, 400)})
	dialog := v.AddWindow(desktop.VirtualWindow{Title: "Save As", Bounds: geom.R(900, 500, 1100, 600), Parent: editor})
	browser := v.AddWindow(desktop.VirtualWindow{Title: "Browser", Bounds: geom.R(1200, 100, 1800, 900)})
	self := v.AddWindow(desktop.VirtualWindow{Title: "pet", Bounds: geom.XYWH(0, 0, 64, 64), Topmost: true})
	overlay := v.AddWindow(desktop.VirtualWindow{Title: "overlay", Bounds: geom.R(0, 0, 1920, 1080), Topmost: true, ClickThrough: true})
	v.SetForeground(editor)
	_ = v.SetPosition(geom.Pt(960, 540))

	s := tuning.DefaultSettings()
	s.ChaosMode = true
	return &fixture{
		v: v,
		c: &featurectx.Context{
			Now:      time.Unix(1000, 0),
			Agent:    &model.Agent{Pos: geom.Pt(0, 0), Size: 64, Scale: 2, State: model.StateWalk, Topmost: true},
			Settings: s,
			Windows:  v,
			Monitors: desktop.NewRegistry(v),
			Pointer:  v,
			Self:     self,
			Overlay:  overlay,
			Rand:     r,
			Flourish: rng.New(3),
			Tasks:    tasks.NewScheduler(),
		},
		editor:  editor,
		dialog:  dialog,
		browser: browser,
	}
}

func TestMaybeRun_disabledDoesNothing(t *testing.T) {
	f := newFixture(t, &rng.Script{})
	f.c.Settings.ChaosMode = false
	a := f.c.Agent
	before := *a
	for i := 0; i < 500; i++ {
		f.c.Now = f.c.Now.Add(100 * time.Millisecond)
		if got := MaybeRun(f.c); got != ActionNone {
			t.Fatalf("tick %d action=%v", i, got)
		}
		ZoomiesTick(f.c)
	}
	if *a != before {
		t.Fatalf("agent changed: %+v", *a)
	}
	if len(f.v.Commands()) != 0 || f.c.Tasks.Len() != 0 {
		t.Fatalf("no window effects expected")
	}
}

func TestMaybeRun_jiggleTargetsForeground(t *testing.T) {
	f := newFixture(t, &rng.Script{Floats: []float64{0.2, 0.1}})
	if got := MaybeRun(f.c); got != ActionJiggle {
		t.Fatalf("action=%v", got)
	}
	a := f.c.Agent
	if a.Pending.Kind != model.PendingJiggle || a.Pending.Window != f.editor || a.Pending.Rect != geom.R(200, 200, 600, 400) {
		t.Fatalf("pending=%+v", a.Pending)
	}
	if a.Target != geom.Pt(368, 268) || a.State != model.StateWalk || !a.Until.IsZero() {
		t.Fatalf("target=%v state=%v until=%v", a.Target, a.State, a.Until)
	}
	if a.Chaos.NextAt != f.c.Now.Add(ShortInterval) {
		t.Fatalf("next=%v", a.Chaos.NextAt)
	}

	// not due yet
	f.c.Now = f.c.Now.Add(time.Second)
	if got := MaybeRun(f.c); got != ActionNone {
		t.Fatalf("early action=%v", got)
	}
}

func TestMaybeRun_promoteResolvesRootAncestor(t *testing.T) {
	// spread draws of 300 and 200 land exactly on the pointer offset (0,0),
	// so aim the pointer at the dialog
	f := newFixture(t, &rng.Script{Floats: []float64{0.9, 0.5}, Ints: []int{300, 200}})
	_ = f.v.SetPosition(geom.Pt(1000, 550))
	if got := MaybeRun(f.c); got != ActionPromote {
		t.Fatalf("action=%v", got)
	}
	a := f.c.Agent
	if a.Pending.Kind != model.PendingPromote || a.Pending.Window != f.editor {
		t.Fatalf("pending=%+v", a.Pending)
	}
	if a.Chaos.NextAt != f.c.Now.Add(LongInterval) {
		t.Fatalf("next=%v", a.Chaos.NextAt)
	}
}

func TestPromote_skipsSelf(t *testing.T) {
	f := newFixture(t, &rng.Script{Ints: []int{300, 200}})
	_ = f.v.SetPosition(geom.Pt(10, 10))
	if Promote(f.c) {
		t.Fatalf("own window must not be promoted")
	}
	if f.c.Agent.Pending.Kind != model.PendingNone {
		t.Fatalf("pending=%+v", f.c.Agent.Pending)
	}
}

func TestJiggle_respectsPendingSlot(t *testing.T) {
	f := newFixture(t, &rng.Script{})
	f.c.Agent.Pending = model.Pending{Kind: model.PendingMinimize, Window: f.browser}
	if Jiggle(f.c) {
		t.Fatalf("jiggle must not replace a minimize pursuit")
	}
	f.c.Agent.Pending = model.Pending{Kind: model.PendingPromote, Window: f.browser}
	if !Jiggle(f.c) || f.c.Agent.Pending.Kind != model.PendingJiggle {
		t.Fatalf("chaos may replace chaos, pending=%+v", f.c.Agent.Pending)
	}
}

func TestZoomies(t *testing.T) {
	f := newFixture(t, &rng.Script{Floats: []float64{0.9, 0.8}, Ints: []int{1, 100}})
	if got := MaybeRun(f.c); got != ActionZoomies {
		t.Fatalf("action=%v", got)
	}
	a := f.c.Agent
	if !a.Zoomies.Active || a.Zoomies.HopsLeft != ZoomiesHops || a.Zoomies.Until != f.c.Now.Add(ZoomiesDuration) {
		t.Fatalf("zoomies=%+v", a.Zoomies)
	}
	ZoomiesTick(f.c)
	if a.Target != geom.Pt(1920-64, 100) || a.Zoomies.HopsLeft != ZoomiesHops-1 {
		t.Fatalf("target=%v zoomies=%+v", a.Target, a.Zoomies)
	}
	// no retarget inside the cadence
	f.c.Now = f.c.Now.Add(100 * time.Millisecond)
	ZoomiesTick(f.c)
	if a.Zoomies.HopsLeft != ZoomiesHops-1 {
		t.Fatalf("retargeted early: %+v", a.Zoomies)
	}

	hops := 1
	for i := 0; i < 40 && a.Zoomies.Active; i++ {
		f.c.Now = f.c.Now.Add(ZoomiesRetarget)
		before := a.Zoomies.HopsLeft
		ZoomiesTick(f.c)
		if a.Zoomies.Active && a.Zoomies.HopsLeft < before {
			hops++
		}
	}
	if a.Zoomies.Active {
		t.Fatalf("zoomies never ended")
	}
	if hops > ZoomiesHops {
		t.Fatalf("hops=%d", hops)
	}
}

func TestZoomies_endsWhenHopsRunOut(t *testing.T) {
	f := newFixture(t, &rng.Script{})
	StartZoomies(f.c)
	f.c.Agent.Zoomies.HopsLeft = 0
	ZoomiesTick(f.c)
	if f.c.Agent.Zoomies.Active {
		t.Fatalf("zoomies should end with no hops left")
	}
}

func TestFire_jiggleBurst(t *testing.T) {
	f := newFixture(t, &rng.Script{})
	orig := geom.R(200, 200, 600, 400)
	if !Fire(f.c, model.Pending{Kind: model.PendingJiggle, Window: f.editor, Rect: orig}) {
		t.Fatalf("fire failed")
	}
	if !f.c.Tasks.Running(tasks.KindJiggle) {
		t.Fatalf("burst not scheduled")
	}
	now := f.c.Now
	for i := 0; i < 100 && f.c.Tasks.Len() > 0; i++ {
		f.c.Tasks.Step(now)
		now = now.Add(JiggleEvery)
	}
	if f.c.Tasks.Len() != 0 {
		t.Fatalf("burst did not stop")
	}
	cmds := f.v.Commands()
	if len(cmds) != JiggleMoves {
		t.Fatalf("moves=%d", len(cmds))
	}
	for _, cmd := range cmds {
		if cmd.Handle != f.editor || cmd.Bounds.Width() != orig.Width() || cmd.Bounds.Height() != orig.Height() {
			t.Fatalf("cmd=%+v", cmd)
		}
		dx, dy := cmd.Bounds.Left-orig.Left, cmd.Bounds.Top-orig.Top
		if dx < -JiggleAmplitude || dx > JiggleAmplitude || dy < -JiggleAmplitude || dy > JiggleAmplitude {
			t.Fatalf("offset (%v,%v) out of range", dx, dy)
		}
	}
	// the window stays at the last jiggled offset
	w, _ := f.v.Window(f.editor)
	if w.Bounds != cmds[len(cmds)-1].Bounds {
		t.Fatalf("bounds=%v last=%v", w.Bounds, cmds[len(cmds)-1].Bounds)
	}
}

func TestJiggleBurst_stopsOnStaleWindow(t *testing.T) {
	f := newFixture(t, &rng.Script{})
	b := NewJiggleBurst(f.v, f.browser, geom.R(1200, 100, 1800, 900), rng.New(1))
	if b.Step(f.c.Now) {
		t.Fatalf("first move should continue")
	}
	f.v.Close(f.browser)
	if !b.Step(f.c.Now) || b.Moves != 1 {
		t.Fatalf("stale window should stop the burst, moves=%d", b.Moves)
	}
}

func TestFire_promote(t *testing.T) {
	f := newFixture(t, &rng.Script{})
	f.v.SetForeground(f.browser)
	if !Fire(f.c, model.Pending{Kind: model.PendingPromote, Window: f.editor}) {
		t.Fatalf("fire failed")
	}
	cmds := f.v.Commands()
	if len(cmds) != 1 || cmds[0].InsertAfter != desktop.InsertTop || !cmds[0].Flags.Has(desktop.Keep) {
		t.Fatalf("commands=%+v", cmds)
	}
	// promoted to the front of the normal band, below the topmost pair
	if order := f.v.Order(); order[2] != f.editor {
		t.Fatalf("order=%v", order)
	}
	if fg, _ := f.v.Foreground(); fg != f.browser {
		t.Fatalf("promote must not change activation, fg=%v", fg)
	}
}

func TestFire_staleAbandons(t *testing.T) {
	f := newFixture(t, &rng.Script{})
	var events []model.Event
	f.c.Emit = func(e model.Event) { events = append(events, e) }
	f.v.Close(f.browser)
	if Fire(f.c, model.Pending{Kind: model.PendingPromote, Window: f.browser}) {
		t.Fatalf("stale window should abandon")
	}
	if len(events) != 1 || events[0].Kind != model.EventAbandon {
		t.Fatalf("events=%+v", events)
	}
	if len(f.v.Commands()) != 0 {
		t.Fatalf("no request expected")
	}
}
