// Package geom holds the screen-space geometry shared by the simulation:
// points, rectangles in left/top/right/bottom form, and facing directions.
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point      { return Point{X: p.X + q.X, Y: p.Y + q.Y} }
func (p Point) Sub(q Point) Point      { return Point{X: p.X - q.X, Y: p.Y - q.Y} }
func (p Point) Scale(k float64) Point  { return Point{X: p.X * k, Y: p.Y * k} }
func (p Point) Norm() float64          { return math.Hypot(p.X, p.Y) }
func (p Point) Dist(q Point) float64   { return planar.Distance(p.orb(), q.orb()) }
func (p Point) DistSq(q Point) float64 { d := p.Sub(q); return d.X*d.X + d.Y*d.Y }

// Trunc truncates toward zero, the same way window systems take integer
// probe coordinates.
func (p Point) Trunc() Point { return Point{X: math.Trunc(p.X), Y: math.Trunc(p.Y)} }

func (p Point) orb() orb.Point { return orb.Point{p.X, p.Y} }

// Rect is a screen rectangle. Right and Bottom are exclusive, matching
// working-area semantics of desktop window systems.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

func R(left, top, right, bottom float64) Rect {
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// XYWH builds a rect from an origin and a size.
func XYWH(x, y, w, h float64) Rect { return Rect{Left: x, Top: y, Right: x + w, Bottom: y + h} }

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Bottom - r.Top }
func (r Rect) Empty() bool     { return r.Right <= r.Left || r.Bottom <= r.Top }
func (r Rect) Min() Point      { return Point{X: r.Left, Y: r.Top} }
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

// Contains reports whether p lies inside r, inclusive of every edge.
func (r Rect) Contains(p Point) bool {
	return r.bound().Contains(p.orb())
}

// Overlaps reports a closed-interval overlap on both axes.
func (r Rect) Overlaps(o Rect) bool {
	return r.OverlapsX(o) && r.OverlapsY(o)
}

func (r Rect) OverlapsX(o Rect) bool { return !(r.Right < o.Left || r.Left > o.Right) }
func (r Rect) OverlapsY(o Rect) bool { return !(r.Bottom < o.Top || r.Top > o.Bottom) }

func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// Union returns the bounding box of r and o. An empty receiver yields o.
func (r Rect) Union(o Rect) Rect {
	if r == (Rect{}) {
		return o
	}
	return fromBound(r.bound().Union(o.bound()))
}

// ClampOrigin clamps a box origin so a w×h box stays inside r. When the box is
// larger than r the left/top edge wins.
func (r Rect) ClampOrigin(p Point, w, h float64) Point {
	return Point{
		X: math.Max(r.Left, math.Min(r.Right-w, p.X)),
		Y: math.Max(r.Top, math.Min(r.Bottom-h, p.Y)),
	}
}

// ClampPoint clamps p into r.
func (r Rect) ClampPoint(p Point) Point {
	return Point{
		X: math.Max(r.Left, math.Min(r.Right, p.X)),
		Y: math.Max(r.Top, math.Min(r.Bottom, p.Y)),
	}
}

// Grow expands every side by d (negative shrinks).
func (r Rect) Grow(d float64) Rect {
	return Rect{Left: r.Left - d, Top: r.Top - d, Right: r.Right + d, Bottom: r.Bottom + d}
}

func (r Rect) bound() orb.Bound {
	return orb.Bound{Min: orb.Point{r.Left, r.Top}, Max: orb.Point{r.Right, r.Bottom}}
}

func fromBound(b orb.Bound) Rect {
	return Rect{Left: b.Min[0], Top: b.Min[1], Right: b.Max[0], Bottom: b.Max[1]}
}

// UnionAll returns the bounding box of every rect in rs.
func UnionAll(rs []Rect) Rect {
	var out Rect
	for i, r := range rs {
		if i == 0 {
			out = r
			continue
		}
		out = out.Union(r)
	}
	return out
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
