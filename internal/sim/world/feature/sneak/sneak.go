// Package sneak decides whether the walking agent slips behind the window it
// is about to reach, and restores it to the top of the stack.
package sneak

import (
	"math"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

const (
	MaxStreak  = 10
	BehindCoin = 0.5
	keep       = desktop.Keep
)

type Outcome int

const (
	// Skipped: the probe did not resolve to a usable foreign window.
	Skipped Outcome = iota
	NotAtEdge
	WentBehind
	StayedOnTop
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "SKIPPED"
	case NotAtEdge:
		return "NOT_AT_EDGE"
	case WentBehind:
		return "WENT_BEHIND"
	case StayedOnTop:
		return "STAYED_ON_TOP"
	default:
		return "UNKNOWN"
	}
}

func ProbeOffset(scale float64) float64 { return math.Round(2*scale + 2) }

func Threshold(scale, speed float64) float64 { return math.Max(10, 8*scale+0.5*speed) }

// AtEdge reports whether the leading edge of box (facing d) is within
// threshold of the facing side of win while overlapping it on the other axis.
func AtEdge(box, win geom.Rect, d geom.Direction, threshold float64) bool {
	switch d {
	case geom.Right:
		return math.Abs(box.Right-win.Left) <= threshold && box.OverlapsY(win)
	case geom.Left:
		return math.Abs(box.Left-win.Right) <= threshold && box.OverlapsY(win)
	case geom.Up:
		return math.Abs(box.Top-win.Bottom) <= threshold && box.OverlapsX(win)
	case geom.Down:
		return math.Abs(box.Bottom-win.Top) <= threshold && box.OverlapsX(win)
	default:
		return false
	}
}

// Evaluate probes ahead of the walking agent and, at a window edge, flips the
// coin between hiding behind that window and staying on top. The occlusion
// flag only changes on WentBehind or StayedOnTop.
func Evaluate(c *featurectx.Context) Outcome {
	a := c.Agent
	box := a.Box()
	probe := geom.LeadingProbe(box, a.Facing, ProbeOffset(a.Scale)).Trunc()
	h, err := c.Windows.WindowAt(probe)
	if err != nil || !c.Foreign(h) {
		return Skipped
	}
	rect, err := c.Windows.Bounds(h)
	if err != nil {
		return Skipped
	}
	if !AtEdge(box, rect, a.Facing, Threshold(a.Scale, c.Speed())) {
		a.Sneak.Streak = 0
		return NotAtEdge
	}
	if a.Sneak.Streak < MaxStreak {
		a.Sneak.Streak++
	}

	if c.Rand.Float64() < BehindCoin {
		root, err := c.Windows.RootAncestor(h)
		if err != nil || root == desktop.None {
			root = h
		}
		a.Sneak.Occluded = true
		a.Sneak.Behind = root
		a.Topmost = false
		_ = c.Windows.SetZOrder(c.Self, desktop.InsertNoTopmost, geom.Rect{}, keep)
		if err := c.Windows.SetZOrder(c.Self, root, geom.Rect{}, keep); err != nil {
			c.Logf("sneak: behind %d failed: %v", root, err)
		}
		c.Logf("sneak: dir=%s streak=%d behind=%d", a.Facing, a.Sneak.Streak, root)
		c.Record(model.EventSneakBehind, root, a.Facing.String())
		return WentBehind
	}
	a.Topmost = true
	_ = c.Windows.SetZOrder(c.Self, desktop.InsertTop, geom.Rect{}, keep)
	c.Logf("sneak: dir=%s streak=%d staying on top of %d", a.Facing, a.Sneak.Streak, h)
	c.Record(model.EventSneakTop, h, a.Facing.String())
	return StayedOnTop
}

// Reemerge brings an occluded agent back to the top and clears occlusion.
// It is a no-op when the agent is not behind anything.
func Reemerge(c *featurectx.Context) bool {
	a := c.Agent
	if !a.Sneak.Occluded {
		return false
	}
	a.Topmost = true
	_ = c.Windows.SetZOrder(c.Self, desktop.InsertTopmost, geom.Rect{}, keep)
	_ = c.Windows.SetZOrder(c.Self, desktop.InsertTop, geom.Rect{}, keep)
	c.Record(model.EventReemerge, a.Sneak.Behind, "")
	a.Sneak.Occluded = false
	a.Sneak.Behind = desktop.None
	return true
}

// EnsureTopmost re-emerges if needed and pins the agent to the topmost band.
func EnsureTopmost(c *featurectx.Context) {
	a := c.Agent
	if a.Topmost && !a.Sneak.Occluded {
		return
	}
	Reemerge(c)
	a.Topmost = true
	_ = c.Windows.SetZOrder(c.Self, desktop.InsertTopmost, geom.Rect{}, keep)
}
