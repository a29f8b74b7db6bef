// Package movement steps the agent toward its target inside the allowed
// region and picks roaming targets.
package movement

import (
	"math"
	"time"

	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

const (
	ZoomiesMultiplier = 4.0
	ArriveIdle        = 500 * time.Millisecond
)

// ArriveRadius is the distance at which the agent snaps onto its target.
func ArriveRadius(scale, speed float64) float64 {
	return math.Max(6, 8*scale+0.75*speed)
}

// StepLength is the distance covered in one tick.
func StepLength(speed, scale, chaosMul float64, zoomies bool) float64 {
	step := speed * scale * chaosMul
	if zoomies {
		step *= ZoomiesMultiplier
	}
	return step
}

type Result struct {
	Arrived bool
	Moved   bool
}

// Step moves the agent one tick toward its target, clamped to region. Inside
// the arrival radius the agent lands exactly on the (clamped) target; a zero
// distance is an arrival.
func Step(a *model.Agent, region geom.Rect, speed, chaosMul float64) Result {
	from := a.Pos
	d := a.Target.Sub(a.Pos)
	dist := d.Norm()
	if dist <= ArriveRadius(a.Scale, speed) {
		a.Pos = region.ClampOrigin(a.Target, a.Size, a.Size)
		return Result{Arrived: true, Moved: a.Pos != from}
	}
	step := StepLength(speed, a.Scale, chaosMul, a.Zoomies.Active)
	next := a.Pos.Add(d.Scale(step / dist))
	a.Pos = region.ClampOrigin(next, a.Size, a.Size)
	a.Aim(a.Target)
	return Result{Moved: a.Pos != from}
}

// Move runs Step with the context's region, speed and chaos multiplier. With
// arriveIdle an arrival parks the agent in Idle for a short pause.
func Move(c *featurectx.Context, arriveIdle bool) Result {
	a := c.Agent
	res := Step(a, c.Monitors.Region(), c.Speed(), c.ChaosMultiplier())
	if res.Arrived && arriveIdle {
		a.Enter(model.StateIdle, c.Now, ArriveIdle)
		a.Frame = 0
	}
	return res
}

// Clamp pulls the agent back inside region and reports whether it moved.
func Clamp(a *model.Agent, region geom.Rect) bool {
	p := region.ClampOrigin(a.Pos, a.Size, a.Size)
	if p == a.Pos {
		return false
	}
	a.Pos = p
	return true
}

// RoamTarget samples an integer point whose box fits inside area.
func RoamTarget(area geom.Rect, size float64, r rng.Source) geom.Point {
	x := rng.IntRange(r, int(area.Left), maxInt(int(area.Left), int(area.Right-size)))
	y := rng.IntRange(r, int(area.Top), maxInt(int(area.Top), int(area.Bottom-size)))
	return geom.Pt(float64(x), float64(y))
}

// PickTarget aims the agent at a new free-roam point.
func PickTarget(c *featurectx.Context) {
	area := c.Monitors.RandomArea(c.Rand)
	c.Agent.Aim(RoamTarget(area, c.Agent.Size, c.Rand))
}

// NearestEdge is the closest point on the edge of area for a box at pos.
// Ties resolve left, right, top, bottom.
func NearestEdge(area geom.Rect, pos geom.Point, size float64) geom.Point {
	p := area.ClampOrigin(pos, size, size)
	dLeft := math.Abs(p.X - area.Left)
	dRight := math.Abs(area.Right - size - p.X)
	dTop := math.Abs(p.Y - area.Top)
	dBottom := math.Abs(area.Bottom - size - p.Y)
	m := math.Min(math.Min(dLeft, dRight), math.Min(dTop, dBottom))
	switch m {
	case dLeft:
		return geom.Pt(area.Left, p.Y)
	case dRight:
		return geom.Pt(area.Right-size, p.Y)
	case dTop:
		return geom.Pt(p.X, area.Top)
	default:
		return geom.Pt(p.X, area.Bottom-size)
	}
}

// NearestCorner is the closest box origin in a corner of area.
func NearestCorner(area geom.Rect, pos geom.Point, size float64) geom.Point {
	corners := [4]geom.Point{
		geom.Pt(area.Left, area.Top),
		geom.Pt(area.Right-size, area.Top),
		geom.Pt(area.Left, area.Bottom-size),
		geom.Pt(area.Right-size, area.Bottom-size),
	}
	best := corners[0]
	bestD := math.MaxFloat64
	for _, c := range corners {
		if d := pos.DistSq(c); d < bestD {
			bestD = d
			best = c
		}
	}
	return best
}

// EdgeTarget picks a random point on one of the four edges of region.
func EdgeTarget(region geom.Rect, size float64, r rng.Source) geom.Point {
	xs := func() float64 {
		return float64(rng.IntRange(r, int(region.Left), int(region.Right-size)))
	}
	ys := func() float64 {
		return float64(rng.IntRange(r, int(region.Top), int(region.Bottom-size)))
	}
	switch r.Intn(4) {
	case 0:
		return geom.Pt(region.Left, ys())
	case 1:
		return geom.Pt(region.Right-size, ys())
	case 2:
		return geom.Pt(xs(), region.Top)
	default:
		return geom.Pt(xs(), region.Bottom-size)
	}
}

// TowardRect aims the agent so its box centres on r, clamped to desk.
func TowardRect(a *model.Agent, r geom.Rect, desk geom.Rect) geom.Point {
	c := r.Center()
	return desk.ClampOrigin(geom.Pt(c.X-a.Size/2, c.Y-a.Size/2), a.Size, a.Size)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
