// Package toy integrates the single throwable toy: gravity, bounce against the
// working area under it, friction and drag, plus the pointer-driven drag,
// release and follow modes.
package toy

import (
	"math"
	"time"

	"ratpet.ai/internal/sim/geom"
)

const (
	Gravity         = 0.5
	Restitution     = -0.6
	GroundFriction  = 0.85
	AirDragX        = 0.98
	AirDragY        = 0.99
	SpinFactor      = 4.0
	OffscreenMargin = 50.0
	GroundEpsilon   = 0.1

	ReleaseGain = 0.02
	FollowGain  = 0.02
	HandOffGain = 0.015
	HandOffLift = 2.0

	minDT = 16 * time.Millisecond
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "X"
	}
	return "Y"
}

// Bounce is a reflection on one axis. Out is the reflected velocity before
// friction and drag are applied.
type Bounce struct {
	Axis Axis
	In   float64
	Out  float64
}

type StepResult struct {
	Moved       bool
	Bounces     []Bounce
	Deactivated bool
}

// AreaFunc returns the working area of the monitor containing p.
type AreaFunc func(p geom.Point) geom.Rect

type Toy struct {
	Pos     geom.Point
	Vel     geom.Point
	Spin    float64
	Active  bool
	Visible bool
	Carried bool
	// Following tracks the pointer while an item is dragged in.
	Following bool

	dragStart   geom.Point
	dragStartAt time.Time
	lastPointer geom.Point
	lastAt      time.Time
}

// Show places the toy at p at rest.
func (t *Toy) Show(p geom.Point) {
	t.Pos = p
	t.Vel = geom.Point{}
	t.Visible = true
	t.Active = true
	t.Carried = false
}

func (t *Toy) Hide() {
	t.Visible = false
	t.Active = false
	t.Following = false
	t.Carried = false
}

// Impart replaces the velocity and wakes the toy.
func (t *Toy) Impart(v geom.Point) {
	t.Vel = v
	t.Following = false
	t.Active = true
	t.Visible = true
}

func (t *Toy) Grab(p geom.Point, now time.Time) {
	if !t.Visible {
		return
	}
	t.Carried = true
	t.Vel = geom.Point{}
	t.dragStart = p
	t.dragStartAt = now
	t.Pos = p
}

func (t *Toy) DragTo(p geom.Point) {
	if t.Carried {
		t.Pos = p
	}
}

// Release ends a drag and tosses the toy with the drag displacement over the
// drag duration.
func (t *Toy) Release(p geom.Point, now time.Time) {
	if !t.Carried {
		return
	}
	t.Carried = false
	t.Pos = p
	dt := elapsed(t.dragStartAt, now)
	t.Vel = p.Sub(t.dragStart).Scale(ReleaseGain / dt)
	t.Active = true
}

// StartFollow spawns the toy under the pointer and keeps it there.
func (t *Toy) StartFollow(p geom.Point, now time.Time) {
	t.Show(p)
	t.Following = true
	t.lastPointer = p
	t.lastAt = now
}

// StopFollow either hands the toy to physics with a small toss or cancels the
// spawn and hides it.
func (t *Toy) StopFollow(p geom.Point, now time.Time, handOff bool) {
	if !t.Following {
		return
	}
	t.Following = false
	if !handOff {
		t.Hide()
		return
	}
	dt := elapsed(t.lastAt, now)
	d := p.Sub(t.lastPointer)
	t.Vel = geom.Pt(d.X/dt*HandOffGain, d.Y/dt*HandOffGain-HandOffLift)
	t.Active = true
}

// Step advances one physics tick. desk is the full virtual desktop.
func (t *Toy) Step(now time.Time, pointer geom.Point, areaAt AreaFunc, desk geom.Rect) StepResult {
	var res StepResult
	if t.Following {
		dt := elapsed(t.lastAt, now)
		t.Vel = pointer.Sub(t.lastPointer).Scale(FollowGain / dt)
		t.lastPointer = pointer
		t.lastAt = now
		t.Pos = pointer
		res.Moved = true
		return res
	}
	if !t.Active || t.Carried {
		return res
	}

	t.Vel.Y += Gravity
	t.Pos = t.Pos.Add(t.Vel)
	t.Spin += t.Vel.X * SpinFactor
	res.Moved = true

	wa := areaAt(t.Pos.Trunc())
	if t.Pos.X < wa.Left {
		t.Pos.X = wa.Left
		res.Bounces = append(res.Bounces, t.reflect(AxisX))
	}
	if t.Pos.X > wa.Right {
		t.Pos.X = wa.Right
		res.Bounces = append(res.Bounces, t.reflect(AxisX))
	}
	if t.Pos.Y < wa.Top {
		t.Pos.Y = wa.Top
		res.Bounces = append(res.Bounces, t.reflect(AxisY))
	}
	if t.Pos.Y > wa.Bottom {
		t.Pos.Y = wa.Bottom
		res.Bounces = append(res.Bounces, t.reflect(AxisY))
	}

	ground := AirDragX
	if math.Abs(t.Pos.Y-wa.Bottom) < GroundEpsilon {
		ground = GroundFriction
	}
	t.Vel.X *= ground
	t.Vel.Y *= AirDragY

	if !desk.Empty() && !desk.Grow(OffscreenMargin).Contains(t.Pos) {
		t.Hide()
		res.Deactivated = true
	}
	return res
}

func (t *Toy) reflect(axis Axis) Bounce {
	b := Bounce{Axis: axis}
	if axis == AxisX {
		b.In = t.Vel.X
		t.Vel.X *= Restitution
		b.Out = t.Vel.X
	} else {
		b.In = t.Vel.Y
		t.Vel.Y *= Restitution
		b.Out = t.Vel.Y
	}
	return b
}

// Swat is the velocity for knocking the toy away from a point: unit vector
// times speed, with lift subtracted from y. A sub-pixel separation counts as
// a unit distance.
func Swat(from, toy geom.Point, speed, lift float64) geom.Point {
	d := toy.Sub(from)
	norm := d.Norm()
	if norm < 1 {
		norm = 1
	}
	return geom.Pt(d.X/norm*speed, d.Y/norm*speed-lift)
}

func elapsed(from, to time.Time) float64 {
	d := to.Sub(from)
	if d < minDT {
		d = minDT
	}
	return d.Seconds()
}
