// Package trail lays alternating paw prints behind the moving agent and fades
// them out on the overlay tick.
package trail

import (
	"math"
	"time"

	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/world/kernel/model"
)

const (
	MaxPrints = 32

	baseLife    = 2.0
	busyLife    = 1.4
	crowdedLife = 1.0
	lifeJitter  = 0.5
)

type Footprint struct {
	Pos   geom.Point    `json:"pos"`
	Angle float64       `json:"angle"`
	Scale float64       `json:"scale"`
	Born  time.Time     `json:"-"`
	Life  time.Duration `json:"-"`
	// Stage is the fade step: 0 full, 1 mid, 2 low.
	Stage int `json:"stage"`
}

func (f Footprint) Opacity() float64 {
	switch f.Stage {
	case 0:
		return 0.9
	case 1:
		return 0.6
	default:
		return 0.3
	}
}

// Trail holds the live prints, oldest first. When Enabled is false (no
// footprint sprite) the cadence and paw alternation still advance but no
// print is stored.
type Trail struct {
	Enabled bool
	Prints  []Footprint

	nextAt   time.Time
	leftNext bool
}

func New(enabled bool) *Trail { return &Trail{Enabled: enabled, leftNext: true} }

// Interval is the time between prints at a speed.
func Interval(speed float64) time.Duration {
	ms := math.Max(80, 260-speed*30)
	return time.Duration(ms * float64(time.Millisecond))
}

// Place computes where a print lands under a box walking in direction d and
// the angle the sprite is rotated by.
func Place(box geom.Rect, d geom.Direction, scale float64, left bool) (geom.Point, float64) {
	lateral := math.Max(2, 3*scale)
	if left {
		lateral = -lateral
	}
	w, h := box.Width(), box.Height()
	switch d {
	case geom.Right:
		return geom.Pt(box.Left+w-8*scale, box.Top+h-6*scale+lateral), 90
	case geom.Left:
		return geom.Pt(box.Left+8*scale, box.Top+h-6*scale+lateral), -90
	case geom.Down:
		return geom.Pt(box.Left+w/2+lateral, box.Top+h-4*scale), 180
	default:
		return geom.Pt(box.Left+w/2+lateral, box.Top+4*scale), 0
	}
}

// MaybeLeave drops the next print if its interval has elapsed.
func (t *Trail) MaybeLeave(now time.Time, a *model.Agent, speed float64, r rng.Source) bool {
	if now.Before(t.nextAt) {
		return false
	}
	t.nextAt = now.Add(Interval(speed))
	pos, angle := Place(a.Box(), a.Facing, a.Scale, t.leftNext)
	t.leftNext = !t.leftNext
	if !t.Enabled {
		return false
	}
	t.add(now, pos, angle, math.Max(0.5, a.Scale*0.7), r)
	return true
}

func (t *Trail) add(now time.Time, pos geom.Point, angle, scale float64, r rng.Source) {
	life := baseLife
	if len(t.Prints) > 24 {
		life = busyLife
	}
	if len(t.Prints) > 40 {
		life = crowdedLife
	}
	life += r.Float64() * lifeJitter
	t.Prints = append(t.Prints, Footprint{
		Pos:   pos,
		Angle: angle,
		Scale: scale,
		Born:  now,
		Life:  time.Duration(life * float64(time.Second)),
	})
	if n := len(t.Prints) - MaxPrints; n > 0 {
		t.Prints = append(t.Prints[:0], t.Prints[n:]...)
	}
}

// Step fades prints and drops the expired ones.
func (t *Trail) Step(now time.Time) {
	keep := t.Prints[:0]
	for _, f := range t.Prints {
		age := float64(now.Sub(f.Born)) / float64(f.Life)
		if age >= 1 {
			continue
		}
		switch {
		case age < 0.66:
			f.Stage = 0
		case age < 0.88:
			f.Stage = 1
		default:
			f.Stage = 2
		}
		keep = append(keep, f)
	}
	t.Prints = keep
}

func (t *Trail) Clear() { t.Prints = t.Prints[:0] }
