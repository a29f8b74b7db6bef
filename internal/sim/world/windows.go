package world

import (
	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
)

// WindowCall is a mutating request the simulation sent to another window.
type WindowCall struct {
	Op     string         `json:"op"`
	Window desktop.Handle `json:"window"`
	After  desktop.Handle `json:"after,omitempty"`
	Err    string         `json:"err,omitempty"`
}

const (
	OpZOrder   = "ZORDER"
	OpMove     = "MOVE"
	OpMinimize = "MINIMIZE"
)

// recordingWindows journals stacking, move and minimize requests made by the
// features. Bounds-only syncs of the agent window (NoZOrder) are not recorded.
type recordingWindows struct {
	desktop.WindowSystem
	w *World
}

func (r *recordingWindows) SetZOrder(h, after desktop.Handle, bounds geom.Rect, flags desktop.ZFlags) error {
	err := r.WindowSystem.SetZOrder(h, after, bounds, flags)
	if flags.Has(desktop.NoZOrder) {
		return err
	}
	op := OpZOrder
	if after == desktop.None {
		op = OpMove
	}
	r.record(WindowCall{Op: op, Window: h, After: after}, err)
	return err
}

func (r *recordingWindows) Minimize(h desktop.Handle) error {
	err := r.WindowSystem.Minimize(h)
	r.record(WindowCall{Op: OpMinimize, Window: h}, err)
	return err
}

func (r *recordingWindows) record(call WindowCall, err error) {
	if err != nil {
		call.Err = err.Error()
	}
	r.w.windowCalls = append(r.w.windowCalls, call)
	windowCallsTotal.WithLabelValues(call.Op).Inc()
}
