package sneak

import (
	"testing"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

type fixture struct {
	v     *desktop.Virtual
	c     *featurectx.Context
	root  desktop.Handle
	child desktop.Handle
}

// newFixture places the agent at (100,100) facing right with the probe
// landing on window at (170,132).
func newFixture(t *testing.T, window geom.Rect, coins ...float64) *fixture {
	t.Helper()
	v := desktop.NewVirtual(desktop.Monitor{DeviceID: "A", WorkArea: geom.R(0, 0, 1920, 1080)})
	root := v.AddWindow(desktop.VirtualWindow{Title: "Notes", Bounds: window})
	child := v.AddWindow(desktop.VirtualWindow{Title: "Find", Bounds: window, Parent: root})
	self := v.AddWindow(desktop.VirtualWindow{Title: "pet", Bounds: geom.XYWH(100, 100, 64, 64), Topmost: true})
	overlay := v.AddWindow(desktop.VirtualWindow{Title: "overlay", Bounds: geom.R(0, 0, 1920, 1080), Topmost: true, ClickThrough: true})

	a := &model.Agent{Pos: geom.Pt(100, 100), Size: 64, Scale: 2, State: model.StateWalk, Facing: geom.Right, Topmost: true}
	c := &featurectx.Context{
		Now:      time.Unix(1000, 0),
		Agent:    a,
		Settings: tuning.DefaultSettings(),
		Windows:  v,
		Monitors: desktop.NewRegistry(v),
		Pointer:  v,
		Self:     self,
		Overlay:  overlay,
		Rand:     &rng.Script{Floats: coins},
		Flourish: &rng.Script{},
	}
	return &fixture{v: v, c: c, root: root, child: child}
}

func TestThresholds(t *testing.T) {
	if got := ProbeOffset(2); got != 6 {
		t.Fatalf("ProbeOffset(2)=%v", got)
	}
	if got := ProbeOffset(1.25); got != 5 {
		t.Fatalf("ProbeOffset(1.25)=%v", got)
	}
	if got := Threshold(2, 3); got != 17.5 {
		t.Fatalf("Threshold(2,3)=%v", got)
	}
	if got := Threshold(0.5, 1); got != 10 {
		t.Fatalf("Threshold floor=%v", got)
	}
}

func TestAtEdge(t *testing.T) {
	box := geom.XYWH(100, 100, 64, 64)
	win := geom.R(170, 0, 600, 400)
	if !AtEdge(box, win, geom.Right, 10) {
		t.Fatalf("right edge within 6px should count")
	}
	if AtEdge(box, win, geom.Left, 10) {
		t.Fatalf("wrong direction should not count")
	}
	// touching intervals overlap
	if !AtEdge(box, geom.R(170, 164, 600, 400), geom.Right, 10) {
		t.Fatalf("closed interval overlap on y expected")
	}
	if AtEdge(box, geom.R(170, 165, 600, 400), geom.Right, 10) {
		t.Fatalf("no y overlap expected")
	}
	if !AtEdge(box, geom.R(0, 0, 200, 90), geom.Up, 10) {
		t.Fatalf("up edge within 10px should count")
	}
}

func TestEvaluate_wentBehindRootAncestor(t *testing.T) {
	f := newFixture(t, geom.R(168, 0, 600, 400), 0.2)
	if got := Evaluate(f.c); got != WentBehind {
		t.Fatalf("outcome=%v", got)
	}
	a := f.c.Agent
	if !a.Sneak.Occluded || a.Sneak.Behind != f.root || a.Topmost {
		t.Fatalf("sneak=%+v topmost=%v", a.Sneak, a.Topmost)
	}
	if a.Sneak.Streak != 1 {
		t.Fatalf("streak=%d", a.Sneak.Streak)
	}
	cmds := f.v.Commands()
	if len(cmds) != 2 {
		t.Fatalf("commands=%+v", cmds)
	}
	if cmds[0].InsertAfter != desktop.InsertNoTopmost || cmds[1].InsertAfter != f.root {
		t.Fatalf("commands=%+v", cmds)
	}
	if !cmds[1].Flags.Has(desktop.Keep) {
		t.Fatalf("stacking change must keep position and activation: %+v", cmds[1])
	}
	order := f.v.Order()
	if order[len(order)-1] != f.c.Self {
		t.Fatalf("agent should sit right behind the root window, order=%v", order)
	}
}

func TestEvaluate_stayedOnTop(t *testing.T) {
	f := newFixture(t, geom.R(168, 0, 600, 400), 0.7)
	f.c.Agent.Topmost = false
	if got := Evaluate(f.c); got != StayedOnTop {
		t.Fatalf("outcome=%v", got)
	}
	a := f.c.Agent
	if a.Sneak.Occluded || !a.Topmost {
		t.Fatalf("sneak=%+v topmost=%v", a.Sneak, a.Topmost)
	}
	cmds := f.v.Commands()
	if len(cmds) != 1 || cmds[0].InsertAfter != desktop.InsertTop {
		t.Fatalf("commands=%+v", cmds)
	}
}

func TestEvaluate_notAtEdgeResetsStreak(t *testing.T) {
	// the agent is already over the window; its left edge is 44px behind
	f := newFixture(t, geom.R(120, 0, 600, 400), 0.2)
	f.c.Agent.Sneak = model.SneakState{Occluded: true, Behind: f.root, Streak: 4}
	if got := Evaluate(f.c); got != NotAtEdge {
		t.Fatalf("outcome=%v", got)
	}
	s := f.c.Agent.Sneak
	if s.Streak != 0 || !s.Occluded || s.Behind != f.root {
		t.Fatalf("sneak=%+v", s)
	}
	if len(f.v.Commands()) != 0 {
		t.Fatalf("no stacking change expected")
	}
}

func TestEvaluate_skipped(t *testing.T) {
	// probe lands on empty desktop; the overlay is click-through
	f := newFixture(t, geom.R(400, 0, 600, 400), 0.2)
	f.c.Agent.Sneak.Streak = 3
	if got := Evaluate(f.c); got != Skipped {
		t.Fatalf("outcome=%v", got)
	}
	if s := f.c.Agent.Sneak; s.Streak != 3 || s.Occluded {
		t.Fatalf("sneak=%+v", s)
	}

	// probe lands on the agent's own window
	g := newFixture(t, geom.R(400, 0, 600, 400), 0.2)
	if err := g.v.SetZOrder(g.c.Self, desktop.InsertTop, geom.R(100, 100, 300, 300), desktop.NoZOrder); err != nil {
		t.Fatalf("resize self: %v", err)
	}
	if got := Evaluate(g.c); got != Skipped {
		t.Fatalf("self outcome=%v", got)
	}
	if g.c.Agent.Sneak.Occluded {
		t.Fatalf("own window must never occlude")
	}
}

func TestEvaluate_streakCapped(t *testing.T) {
	coins := make([]float64, 15)
	for i := range coins {
		coins[i] = 0.9
	}
	f := newFixture(t, geom.R(168, 0, 600, 400), coins...)
	for i := 0; i < 15; i++ {
		Evaluate(f.c)
	}
	if got := f.c.Agent.Sneak.Streak; got != MaxStreak {
		t.Fatalf("streak=%d", got)
	}
}

func TestReemerge(t *testing.T) {
	f := newFixture(t, geom.R(168, 0, 600, 400), 0.2)
	if Reemerge(f.c) {
		t.Fatalf("reemerge without occlusion should be a no-op")
	}
	Evaluate(f.c)
	before := len(f.v.Commands())
	if !Reemerge(f.c) {
		t.Fatalf("expected reemerge")
	}
	a := f.c.Agent
	if a.Sneak.Occluded || a.Sneak.Behind != desktop.None || !a.Topmost {
		t.Fatalf("sneak=%+v topmost=%v", a.Sneak, a.Topmost)
	}
	cmds := f.v.Commands()[before:]
	if len(cmds) != 2 || cmds[0].InsertAfter != desktop.InsertTopmost || cmds[1].InsertAfter != desktop.InsertTop {
		t.Fatalf("commands=%+v", cmds)
	}
	if order := f.v.Order(); order[0] != f.c.Self {
		t.Fatalf("order=%v", order)
	}
	if w, _ := f.v.Window(f.c.Self); !w.Topmost {
		t.Fatalf("self window should be topmost again")
	}
}

func TestEnsureTopmost(t *testing.T) {
	f := newFixture(t, geom.R(168, 0, 600, 400))
	EnsureTopmost(f.c)
	if len(f.v.Commands()) != 0 {
		t.Fatalf("already topmost, no request expected")
	}
	f.c.Agent.Topmost = false
	EnsureTopmost(f.c)
	cmds := f.v.Commands()
	if !f.c.Agent.Topmost || len(cmds) != 1 || cmds[0].InsertAfter != desktop.InsertTopmost {
		t.Fatalf("topmost=%v commands=%+v", f.c.Agent.Topmost, cmds)
	}
}
