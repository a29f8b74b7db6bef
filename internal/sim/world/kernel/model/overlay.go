package model

import (
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
)

// Bubble is the speech bubble above the agent.
type Bubble struct {
	Text    string
	Visible bool
	Opacity float64
}

// Reveal is an image slid in from a monitor edge.
type Reveal struct {
	ItemID  string
	Visible bool
	Rect    geom.Rect
}

// Event is one noteworthy thing that happened during a tick. Events feed the
// journal, the index and the metrics.
type Event struct {
	Kind   string         `json:"kind"`
	Window desktop.Handle `json:"window,omitempty"`
	Note   string         `json:"note,omitempty"`
}

// Event kinds.
const (
	EventTransition  = "TRANSITION"
	EventSneakBehind = "SNEAK_BEHIND"
	EventSneakTop    = "SNEAK_TOP"
	EventReemerge    = "REEMERGE"
	EventJiggle      = "CHAOS_JIGGLE"
	EventPromote     = "CHAOS_PROMOTE"
	EventZoomies     = "CHAOS_ZOOMIES"
	EventMischief    = "MISCHIEF_START"
	EventMinimize    = "MISCHIEF_MINIMIZE"
	EventAbandon     = "PENDING_ABANDONED"
	EventGrab        = "STEAL_GRAB"
	EventDrop        = "STEAL_DROP"
	EventSwat        = "TOY_SWAT"
	EventToss        = "TOY_TOSS"
	EventToyLost     = "TOY_LOST"
	EventThrow       = "TOY_THROW"
	EventReveal      = "REVEAL"
	EventBubble      = "BUBBLE"
	EventForeground  = "FOREGROUND"
	EventCommand     = "COMMAND"
	EventSettings    = "SETTINGS"
)

// Observation records a foreground window change.
type Observation struct {
	At     time.Time      `json:"at"`
	Window desktop.Handle `json:"window"`
	Title  string         `json:"title"`
}
