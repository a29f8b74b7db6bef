package model

import (
	"math"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
)

type State int

const (
	StateIdle State = iota
	StateWalk
	StateSleep
	StateSteal
	StatePlay
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWalk:
		return "WALK"
	case StateSleep:
		return "SLEEP"
	case StateSteal:
		return "STEAL"
	case StatePlay:
		return "PLAY"
	default:
		return "UNKNOWN"
	}
}

// Agent is the on-screen character. Pos is the top-left of its square box.
type Agent struct {
	Pos    geom.Point
	Size   float64
	Scale  float64
	State  State
	Until  time.Time // zero means the state does not expire
	Facing geom.Direction
	Target geom.Point
	Frame  int

	// SpeedOverride replaces the base speed for one tick when non-zero.
	SpeedOverride float64

	Topmost bool
	Sneak   SneakState

	Carrying    bool
	CarryTarget geom.Point

	Pending  Pending
	Zoomies  Zoomies
	Mischief MischiefState
	Chaos    ChaosState
}

type SneakState struct {
	Occluded bool
	Behind   desktop.Handle
	Streak   int
}

type Zoomies struct {
	Active       bool
	Until        time.Time
	HopsLeft     int
	NextRetarget time.Time
}

type MischiefState struct {
	Since time.Time
}

type ChaosState struct {
	NextAt time.Time
}

// SizeFor is the box side for a frame size at a scale.
func SizeFor(frame int, scale float64) float64 { return math.Round(float64(frame) * scale) }

func (a *Agent) Box() geom.Rect { return geom.XYWH(a.Pos.X, a.Pos.Y, a.Size, a.Size) }

func (a *Agent) Center() geom.Point {
	return geom.Pt(a.Pos.X+a.Size/2, a.Pos.Y+a.Size/2)
}

// Enter switches state. A non-positive d means no expiry.
func (a *Agent) Enter(s State, now time.Time, d time.Duration) {
	a.State = s
	if d <= 0 {
		a.Until = time.Time{}
	} else {
		a.Until = now.Add(d)
	}
}

// Expired reports whether a timed state has run out.
func (a *Agent) Expired(now time.Time) bool {
	return !a.Until.IsZero() && !now.Before(a.Until)
}

// Aim sets the movement target and faces it.
func (a *Agent) Aim(p geom.Point) {
	a.Target = p
	d := p.Sub(a.Pos)
	a.Facing = geom.Facing(d.X, d.Y)
}

// Offer places p into the pending slot. Chaos actions may replace one another
// and EnsureTop always wins; anything else needs an empty slot.
func (a *Agent) Offer(p Pending) bool {
	switch {
	case a.Pending.Kind == PendingNone:
	case p.Kind == PendingEnsureTop:
	case p.IsChaos() && a.Pending.IsChaos():
	default:
		return false
	}
	a.Pending = p
	return true
}

// Take empties the pending slot and returns what it held.
func (a *Agent) Take() Pending {
	p := a.Pending
	a.Pending = Pending{}
	return p
}
