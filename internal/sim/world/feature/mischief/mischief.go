// Package mischief sends the walking agent after the minimize button of the
// window ahead of it and minimizes that window's top-level ancestor once the
// agent gets there.
package mischief

import (
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/world/feature/movement"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

const (
	ProbeOffset    = 8
	PursuitSpeed   = 6.0
	ClickRadius    = 10.0
	PursuitTimeout = 8 * time.Second
	AfterIdle      = time.Second
)

type Outcome int

const (
	Pursuing Outcome = iota
	Minimized
	Abandoned
)

func (o Outcome) String() string {
	switch o {
	case Pursuing:
		return "PURSUING"
	case Minimized:
		return "MINIMIZED"
	case Abandoned:
		return "ABANDONED"
	default:
		return "UNKNOWN"
	}
}

// AttemptChance is the per-tick probability of starting a pursuit.
func AttemptChance(chance, chaosMul, speed float64) float64 {
	return chance * chaosMul * geom.Clamp(speed/3, 0.6, 1.6)
}

// ClickPoint is the centre of the minimize button of a window with caption
// buttons laid out minimize, maximize, close from the right edge.
func ClickPoint(rect geom.Rect, m desktop.CaptionMetrics) geom.Point {
	buttonRight := int(rect.Right) - m.ButtonWidth*3 + m.ButtonWidth
	x := buttonRight - m.ButtonWidth/2
	y := int(rect.Top) + m.CaptionHeight/2
	return geom.Pt(float64(x), float64(y))
}

// Active reports whether a pursuit is in progress.
func Active(a *model.Agent) bool { return a.Pending.Kind == model.PendingMinimize }

// MaybeStart rolls for mischief and, on success, offers a minimize pursuit of
// the window just ahead of the agent.
func MaybeStart(c *featurectx.Context) bool {
	a := c.Agent
	if !c.Settings.MischiefEnabled || Active(a) {
		return false
	}
	if c.Rand.Float64() > AttemptChance(c.Settings.MischiefChance, c.ChaosMultiplier(), c.Settings.BaseSpeed) {
		return false
	}
	probe := geom.LeadingProbe(a.Box(), a.Facing, ProbeOffset).Trunc()
	h, err := c.Windows.WindowAt(probe)
	if err != nil || !c.Foreign(h) {
		return false
	}
	rect, err := c.Windows.Bounds(h)
	if err != nil {
		return false
	}
	m, err := c.Windows.CaptionMetrics(h)
	if err != nil {
		m = desktop.DefaultCaption
	}
	p := model.Pending{Kind: model.PendingMinimize, Window: h, Rect: rect, Point: ClickPoint(rect, m)}
	if !a.Offer(p) {
		return false
	}
	a.Mischief.Since = c.Now
	c.Logf("mischief: target=%d button=(%v,%v)", h, p.Point.X, p.Point.Y)
	c.Record(model.EventMischief, h, "")
	return true
}

// Pursue runs one tick of an active pursuit at the pursuit speed. The agent
// clicks once it is within ClickRadius of the button; a stale window or a
// pursuit older than PursuitTimeout is abandoned.
func Pursue(c *featurectx.Context) Outcome {
	a := c.Agent
	p := a.Pending
	if c.Now.Sub(a.Mischief.Since) >= PursuitTimeout {
		return abandon(c, "timeout")
	}
	if _, err := c.Windows.Bounds(p.Window); err != nil {
		return abandon(c, "stale")
	}

	saved := a.SpeedOverride
	a.SpeedOverride = PursuitSpeed
	a.Aim(p.Point)
	movement.Move(c, false)
	a.SpeedOverride = saved

	if a.Pos.Dist(p.Point) >= ClickRadius {
		return Pursuing
	}
	root, err := c.Windows.RootAncestor(p.Window)
	if err != nil || root == desktop.None {
		root = p.Window
	}
	if err := c.Windows.Minimize(root); err != nil {
		c.Logf("mischief: minimize %d failed: %v", root, err)
	} else {
		c.Logf("mischief: minimize sent to %d", root)
	}
	c.Record(model.EventMinimize, root, "")
	a.Take()
	a.Mischief = model.MischiefState{}
	a.Enter(model.StateIdle, c.Now, AfterIdle)
	return Minimized
}

func abandon(c *featurectx.Context, why string) Outcome {
	a := c.Agent
	p := a.Take()
	a.Mischief = model.MischiefState{}
	c.Logf("mischief: abandoned %d: %s", p.Window, why)
	c.Record(model.EventAbandon, p.Window, why)
	return Abandoned
}
