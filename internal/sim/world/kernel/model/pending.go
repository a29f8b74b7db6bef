package model

import (
	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
)

type PendingKind int

const (
	PendingNone PendingKind = iota
	PendingJiggle
	PendingPromote
	PendingMinimize
	PendingEnsureTop
	PendingReveal
)

func (k PendingKind) String() string {
	switch k {
	case PendingNone:
		return "NONE"
	case PendingJiggle:
		return "JIGGLE"
	case PendingPromote:
		return "PROMOTE"
	case PendingMinimize:
		return "MINIMIZE"
	case PendingEnsureTop:
		return "ENSURE_TOP"
	case PendingReveal:
		return "REVEAL"
	default:
		return "UNKNOWN"
	}
}

// Pending is an effect deferred until the agent arrives at its target.
// Which fields are meaningful depends on Kind.
type Pending struct {
	Kind PendingKind

	// Jiggle, Promote, Minimize
	Window desktop.Handle
	Rect   geom.Rect
	// Minimize: the caption button the agent is heading for.
	Point geom.Point

	Reveal RevealPlan
}

type RevealPlan struct {
	ItemID   string
	Width    float64
	Height   float64
	Area     geom.Rect
	FromLeft bool
}

func (p Pending) IsChaos() bool { return p.Kind == PendingJiggle || p.Kind == PendingPromote }
