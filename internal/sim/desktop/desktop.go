// Package desktop describes the window system the simulation consumes: window
// lookup and stacking, monitors, and the pointer. Handles carry no lifetime
// guarantee; every call may fail with ErrStale.
package desktop

import (
	"errors"

	"ratpet.ai/internal/sim/geom"
)

var (
	// ErrStale is returned when a handle no longer refers to a live window.
	ErrStale = errors.New("desktop: stale window handle")
	// ErrNoWindow is returned when a lookup resolves to nothing.
	ErrNoWindow = errors.New("desktop: no window")
)

// Handle is an opaque window reference. None is the zero handle.
type Handle int64

const None Handle = 0

// Insert-after sentinels for SetZOrder.
const (
	InsertTop       Handle = -1
	InsertBottom    Handle = -2
	InsertTopmost   Handle = -3
	InsertNoTopmost Handle = -4
)

// ZFlags mirrors the positioning flags of a stacking request.
type ZFlags uint32

const (
	NoSize ZFlags = 1 << iota
	NoMove
	NoZOrder
	NoActivate
)

// Keep is the flag set used by every pure stacking change.
const Keep = NoMove | NoSize | NoActivate

func (f ZFlags) Has(x ZFlags) bool { return f&x == x }

// CaptionMetrics are the DPI-aware caption button dimensions of a window.
type CaptionMetrics struct {
	ButtonWidth   int
	ButtonHeight  int
	CaptionHeight int
}

type Monitor struct {
	DeviceID string
	WorkArea geom.Rect
	// Bounds is the full monitor rectangle. Zero means same as WorkArea.
	Bounds  geom.Rect
	Primary bool
}

func (m Monitor) FullBounds() geom.Rect {
	if m.Bounds.Empty() {
		return m.WorkArea
	}
	return m.Bounds
}

// WindowSystem is the stacking window manager as seen by the simulation.
type WindowSystem interface {
	WindowAt(p geom.Point) (Handle, error)
	Bounds(h Handle) (geom.Rect, error)
	Foreground() (Handle, error)
	Title(h Handle) (string, error)
	// SetZOrder places h after insertAfter (or a sentinel) and, unless NoMove /
	// NoSize are set, moves it to bounds.
	SetZOrder(h, insertAfter Handle, bounds geom.Rect, flags ZFlags) error
	Minimize(h Handle) error
	RootAncestor(h Handle) (Handle, error)
	CaptionMetrics(h Handle) (CaptionMetrics, error)
}

// MonitorSource enumerates display regions.
type MonitorSource interface {
	Monitors() []Monitor
	MonitorAt(p geom.Point) Monitor
}

type Pointer interface {
	Position() (geom.Point, error)
	SetPosition(p geom.Point) error
}
