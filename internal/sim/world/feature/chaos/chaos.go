// Package chaos perturbs other windows while chaos mode is on: it jiggles the
// foreground window, promotes a window near the pointer, or sends the agent on
// a burst of zoomies. Window effects are offered as pending actions and only
// fire once the agent arrives.
package chaos

import (
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/tasks"
	"ratpet.ai/internal/sim/world/feature/movement"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

const (
	ShortInterval = 6 * time.Second
	LongInterval  = 10 * time.Second

	JiggleBand  = 0.33
	PromoteBand = 0.66

	PromoteSpreadX = 300
	PromoteSpreadY = 200

	JiggleMoves     = 30
	JiggleEvery     = 16 * time.Millisecond
	JiggleAmplitude = 6

	ZoomiesDuration = 2500 * time.Millisecond
	ZoomiesHops     = 8
	ZoomiesRetarget = 350 * time.Millisecond
)

type Action int

const (
	ActionNone Action = iota
	ActionJiggle
	ActionPromote
	ActionZoomies
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionJiggle:
		return "JIGGLE"
	case ActionPromote:
		return "PROMOTE"
	case ActionZoomies:
		return "ZOOMIES"
	default:
		return "UNKNOWN"
	}
}

// NextInterval draws the delay until the next chaos check.
func NextInterval(r rng.Source) time.Duration {
	if r.Float64() < 0.5 {
		return ShortInterval
	}
	return LongInterval
}

// MaybeRun picks a chaos action when the check is due. The first check after
// chaos mode is switched on is due immediately.
func MaybeRun(c *featurectx.Context) Action {
	a := c.Agent
	if !c.Settings.ChaosMode || c.Now.Before(a.Chaos.NextAt) {
		return ActionNone
	}
	a.Chaos.NextAt = c.Now.Add(NextInterval(c.Rand))

	roll := c.Rand.Float64()
	switch {
	case roll < JiggleBand:
		if Jiggle(c) {
			return ActionJiggle
		}
	case roll < PromoteBand:
		if Promote(c) {
			return ActionPromote
		}
	default:
		StartZoomies(c)
		return ActionZoomies
	}
	return ActionNone
}

// Jiggle records the foreground window as pending and runs toward it.
func Jiggle(c *featurectx.Context) bool {
	h, err := c.Windows.Foreground()
	if err != nil || h == desktop.None {
		return false
	}
	r, err := c.Windows.Bounds(h)
	if err != nil {
		return false
	}
	return runToward(c, model.Pending{Kind: model.PendingJiggle, Window: h, Rect: r})
}

// Promote picks a foreign top-level window near the pointer, records it as
// pending and runs toward it.
func Promote(c *featurectx.Context) bool {
	p, err := c.Pointer.Position()
	if err != nil {
		return false
	}
	probe := geom.Pt(
		p.X+float64(rng.IntIncl(c.Rand, -PromoteSpreadX, PromoteSpreadX)),
		p.Y+float64(rng.IntIncl(c.Rand, -PromoteSpreadY, PromoteSpreadY)),
	)
	h, err := c.Windows.WindowAt(probe)
	if err != nil || h == desktop.None {
		return false
	}
	top, err := c.Windows.RootAncestor(h)
	if err != nil || top == desktop.None {
		top = h
	}
	if !c.Foreign(top) {
		return false
	}
	r, err := c.Windows.Bounds(top)
	if err != nil {
		return false
	}
	return runToward(c, model.Pending{Kind: model.PendingPromote, Window: top, Rect: r})
}

func runToward(c *featurectx.Context, p model.Pending) bool {
	a := c.Agent
	if !a.Offer(p) {
		c.Logf("chaos: %s skipped, slot holds %s", p.Kind, a.Pending.Kind)
		return false
	}
	a.Aim(movement.TowardRect(a, p.Rect, c.Monitors.VirtualDesktop()))
	a.Enter(model.StateWalk, c.Now, 0)
	c.Logf("chaos: %s target=%d rect=%v", p.Kind, p.Window, p.Rect)
	return true
}

func StartZoomies(c *featurectx.Context) {
	c.Agent.Zoomies = model.Zoomies{
		Active:   true,
		Until:    c.Now.Add(ZoomiesDuration),
		HopsLeft: ZoomiesHops,
	}
	c.Logf("chaos: zoomies start")
	c.Record(model.EventZoomies, desktop.None, "start")
}

// ZoomiesTick retargets an active zoomies burst to a random edge of the
// movement region, ending it when time or hops run out.
func ZoomiesTick(c *featurectx.Context) {
	a := c.Agent
	z := &a.Zoomies
	if !z.Active {
		return
	}
	if !c.Now.Before(z.Until) || z.HopsLeft <= 0 {
		StopZoomies(c)
		return
	}
	if c.Now.Before(z.NextRetarget) {
		return
	}
	a.Aim(movement.EdgeTarget(c.Monitors.Region(), a.Size, c.Rand))
	a.Enter(model.StateWalk, c.Now, 0)
	z.NextRetarget = c.Now.Add(ZoomiesRetarget)
	z.HopsLeft--
}

func StopZoomies(c *featurectx.Context) {
	if !c.Agent.Zoomies.Active {
		return
	}
	c.Agent.Zoomies = model.Zoomies{}
	c.Logf("chaos: zoomies end")
	c.Record(model.EventZoomies, desktop.None, "end")
}

// Fire executes a chaos pending action on arrival. A stale window abandons it.
func Fire(c *featurectx.Context, p model.Pending) bool {
	if _, err := c.Windows.Bounds(p.Window); err != nil {
		c.Logf("chaos: %s abandoned, window %d: %v", p.Kind, p.Window, err)
		c.Record(model.EventAbandon, p.Window, p.Kind.String())
		return false
	}
	switch p.Kind {
	case model.PendingJiggle:
		c.Tasks.Start(tasks.KindJiggle, c.Now, JiggleEvery, NewJiggleBurst(c.Windows, p.Window, p.Rect, c.Flourish))
		c.Logf("chaos: jiggle start %d", p.Window)
		c.Record(model.EventJiggle, p.Window, "")
		return true
	case model.PendingPromote:
		if err := c.Windows.SetZOrder(p.Window, desktop.InsertTop, geom.Rect{}, desktop.Keep); err != nil {
			c.Logf("chaos: promote %d failed: %v", p.Window, err)
			c.Record(model.EventAbandon, p.Window, p.Kind.String())
			return false
		}
		c.Logf("chaos: promoted %d to top", p.Window)
		c.Record(model.EventPromote, p.Window, "")
		return true
	default:
		return false
	}
}

// JiggleBurst shakes a window around its original rectangle. It stops after
// JiggleMoves repositions or on the first failed request, and leaves the
// window wherever the last move put it.
type JiggleBurst struct {
	ws    desktop.WindowSystem
	h     desktop.Handle
	orig  geom.Rect
	r     rng.Source
	Moves int
}

func NewJiggleBurst(ws desktop.WindowSystem, h desktop.Handle, orig geom.Rect, r rng.Source) *JiggleBurst {
	return &JiggleBurst{ws: ws, h: h, orig: orig, r: r}
}

func (b *JiggleBurst) Step(time.Time) bool {
	if b.Moves >= JiggleMoves {
		return true
	}
	dx := float64(rng.IntIncl(b.r, -JiggleAmplitude, JiggleAmplitude))
	dy := float64(rng.IntIncl(b.r, -JiggleAmplitude, JiggleAmplitude))
	if err := b.ws.SetZOrder(b.h, desktop.None, b.orig.Translate(dx, dy), 0); err != nil {
		return true
	}
	b.Moves++
	return b.Moves >= JiggleMoves
}
