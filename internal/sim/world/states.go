package world

import (
	"math"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/world/feature/chaos"
	"ratpet.ai/internal/sim/world/feature/mischief"
	"ratpet.ai/internal/sim/world/feature/movement"
	"ratpet.ai/internal/sim/world/feature/sneak"
	"ratpet.ai/internal/sim/world/feature/toy"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

const (
	StealChance      = 0.10
	ChaosStealChance = 0.20
	WalkChance       = 0.7
	SleepMin         = 8 * time.Second
	SleepMax         = 20 * time.Second
	FallbackIdle     = 2 * time.Second

	StealSpeed  = 6.0
	GrabRadius  = 12.0
	DropRadius  = 8.0
	AfterSteal  = time.Second
	TossSpeed   = 18.0
	TossLift    = 8.0
	TossDamping = 0.8

	SwatSpeed    = 16.0
	SwatLift     = 8.0
	SwatReachPad = 6.0
	AfterSwat    = 1500 * time.Millisecond
	NoToyIdle    = time.Second

	IdleBubbleChance = 0.05
	WalkBubbleChance = 0.03

	spriteColumns = 3
)

func (w *World) behave(c *featurectx.Context) {
	w.transition(c)
	a := c.Agent
	switch a.State {
	case model.StateIdle:
		w.advance(SheetIdle, 0)
		w.maybeBubble(c, IdleBubbleChance)
	case model.StateWalk:
		w.walk(c)
	case model.StateSleep:
		w.advance(SheetSleep, 0)
	case model.StateSteal:
		w.steal(c)
	case model.StatePlay:
		w.play(c)
		w.trail.MaybeLeave(c.Now, a, c.Speed(), c.Flourish)
	}
}

// transition applies the toy preemption and the expiry table.
func (w *World) transition(c *featurectx.Context) {
	a := c.Agent
	if w.toy.Visible && a.State != model.StateSteal && a.State != model.StateSleep {
		if a.State != model.StatePlay {
			a.Enter(model.StatePlay, c.Now, 0)
			a.Frame = 0
		}
		return
	}
	if !a.Expired(c.Now) || a.State == model.StateWalk || a.State == model.StateSteal {
		return
	}
	switch a.State {
	case model.StateIdle:
		switch {
		case rng.Chance(c.Rand, w.stealChance()):
			w.beginSteal(c)
		case rng.Chance(c.Rand, WalkChance):
			a.Enter(model.StateWalk, c.Now, 0)
			movement.PickTarget(c)
		default:
			a.Enter(model.StateSleep, c.Now, sleepFor(c.Rand))
		}
	case model.StateWalk, model.StateSleep:
		a.Enter(model.StateIdle, c.Now, FallbackIdle)
	}
	a.Frame = 0
}

func (w *World) stealChance() float64 {
	if w.settings.ChaosMode {
		return ChaosStealChance
	}
	return StealChance
}

func sleepFor(r rng.Source) time.Duration {
	return time.Duration(rng.Uniform(r, float64(SleepMin), float64(SleepMax)))
}

// beginSteal enters Steal directly from the top of the stack. Otherwise the
// agent first walks to the nearest edge of its monitor and re-emerges there.
func (w *World) beginSteal(c *featurectx.Context) {
	a := c.Agent
	if a.Topmost && !a.Sneak.Occluded {
		a.Enter(model.StateSteal, c.Now, 0)
		return
	}
	if mischief.Active(a) {
		a.Mischief = model.MischiefState{}
	}
	a.Offer(model.Pending{Kind: model.PendingEnsureTop})
	area := w.monitors.CurrentArea(a.Center())
	a.Aim(movement.NearestEdge(area, a.Pos, a.Size))
	a.Enter(model.StateWalk, c.Now, 0)
	c.Logf("steal: walking to edge (%v,%v) to re-emerge", a.Target.X, a.Target.Y)
}

func (w *World) walk(c *featurectx.Context) {
	a := c.Agent
	w.advance(SheetMove, int(a.Facing))
	if a.Zoomies.Active {
		chaos.ZoomiesTick(c)
	}
	if mischief.Active(a) {
		mischief.Pursue(c)
	} else {
		res := movement.Move(c, true)
		if res.Arrived && w.arrive(c) {
			return
		}
		if c.Settings.ChaosMode {
			chaos.MaybeRun(c)
		}
		w.trail.MaybeLeave(c.Now, a, c.Speed(), c.Flourish)
		if a.Pending.Kind != model.PendingEnsureTop {
			if c.Settings.SneakEnabled {
				sneak.Evaluate(c)
			} else if a.Sneak.Occluded {
				sneak.Reemerge(c)
			}
			mischief.MaybeStart(c)
		}
	}
	w.maybeBubble(c, WalkBubbleChance)
}

// arrive consumes the pending action on arrival. It reports true when the
// action ended the tick.
func (w *World) arrive(c *featurectx.Context) bool {
	a := c.Agent
	switch a.Pending.Kind {
	case model.PendingEnsureTop:
		a.Take()
		sneak.Reemerge(c)
		a.Topmost = true
		_ = c.Windows.SetZOrder(c.Self, desktop.InsertTopmost, geom.Rect{}, desktop.Keep)
		a.Enter(model.StateSteal, c.Now, 0)
		return true
	case model.PendingReveal:
		p := a.Take()
		w.startReveal(c, p.Reveal)
	case model.PendingJiggle, model.PendingPromote:
		p := a.Take()
		if !c.Settings.ChaosMode {
			c.Logf("chaos: %s dropped, chaos off", p.Kind)
			break
		}
		chaos.Fire(c, p)
	}
	return false
}

func (w *World) steal(c *featurectx.Context) {
	a := c.Agent
	w.advance(SheetMove, int(a.Facing))
	saved := a.SpeedOverride
	a.SpeedOverride = StealSpeed
	defer func() { a.SpeedOverride = saved }()
	sneak.EnsureTopmost(c)

	if !a.Carrying {
		p, err := c.Pointer.Position()
		if err != nil {
			return
		}
		// the pointer may sit where the agent box cannot reach
		grab := c.Monitors.Region().ClampOrigin(p, a.Size, a.Size)
		a.Aim(grab)
		movement.Move(c, false)
		if math.Abs(a.Pos.X-grab.X) < GrabRadius && math.Abs(a.Pos.Y-grab.Y) < GrabRadius {
			area := w.monitors.CurrentArea(a.Center())
			a.CarryTarget = movement.NearestCorner(area, a.Pos, a.Size)
			a.Carrying = true
			c.Record(model.EventGrab, desktop.None, "")
		}
		return
	}

	a.Aim(a.CarryTarget)
	movement.Move(c, false)
	if c.Settings.FunMode {
		cen := a.Center()
		_ = c.Pointer.SetPosition(geom.Pt(math.Trunc(cen.X), math.Trunc(cen.Y)))
	}
	if a.Pos.Dist(a.CarryTarget) >= DropRadius {
		return
	}
	a.Carrying = false
	a.Enter(model.StateIdle, c.Now, AfterSteal)
	a.Frame = 0
	c.Record(model.EventDrop, desktop.None, "")
	if w.toy.Visible {
		w.toss(c)
	}
}

// toss knocks the toy away from the agent's centre after a steal.
func (w *World) toss(c *featurectx.Context) {
	d := w.toy.Pos.Sub(c.Agent.Center())
	if math.Abs(d.X) < 1 && math.Abs(d.Y) < 1 {
		dx := -1.0
		if rng.IntRange(c.Rand, -1, 2) == 0 {
			dx = 1
		}
		d = geom.Pt(dx, -1)
	}
	v := toy.Swat(geom.Point{}, d, TossSpeed, TossLift)
	w.toy.Impart(geom.Pt(v.X*TossDamping, v.Y))
	c.Record(model.EventToss, desktop.None, "")
}

func (w *World) play(c *featurectx.Context) {
	a := c.Agent
	if !w.toy.Visible {
		a.Enter(model.StateIdle, c.Now, NoToyIdle)
		return
	}
	half := geom.Pt(a.Size/2, a.Size/2)
	a.Aim(w.monitors.VirtualDesktop().ClampOrigin(w.toy.Pos.Sub(half), a.Size, a.Size))
	w.advance(SheetMove, int(a.Facing))
	movement.Move(c, false)

	cen := a.Center()
	reach := a.Size/2 + SwatReachPad
	if math.Abs(cen.X-w.toy.Pos.X) < reach && math.Abs(cen.Y-w.toy.Pos.Y) < reach {
		w.toy.Impart(toy.Swat(cen, w.toy.Pos, SwatSpeed, SwatLift))
		c.Record(model.EventSwat, desktop.None, "")
		a.Enter(model.StateIdle, c.Now, AfterSwat)
		a.Frame = 0
	}
}

// advance records the sprite cell shown this tick and steps the column.
func (w *World) advance(sheet Sheet, row int) {
	a := &w.agent
	if sheet != SheetMove {
		row = 0
	}
	w.sprite = Sprite{Sheet: sheet, Row: row, Column: a.Frame % spriteColumns}
	a.Frame = (a.Frame + 1) % spriteColumns
}
