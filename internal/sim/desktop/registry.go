package desktop

import (
	"math"
	"strings"

	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
)

// Registry is a snapshot of the monitor layout plus the user's allowed subset.
// An empty allowed set means every monitor is allowed.
type Registry struct {
	src      MonitorSource
	monitors []Monitor
	allowed  []string
}

func NewRegistry(src MonitorSource) *Registry {
	r := &Registry{src: src}
	r.Refresh()
	return r
}

// Refresh re-reads the monitor layout.
func (r *Registry) Refresh() {
	r.monitors = append(r.monitors[:0], r.src.Monitors()...)
}

func (r *Registry) All() []Monitor { return r.monitors }

// SetAllowed replaces the allowed set. Blank and duplicate ids are dropped.
func (r *Registry) SetAllowed(ids []string) {
	out := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	r.allowed = out
}

func (r *Registry) AllowedIDs() []string { return append([]string(nil), r.allowed...) }

func (r *Registry) Restricted() bool { return len(r.allowed) > 0 }

func (r *Registry) isAllowed(id string) bool {
	if !r.Restricted() {
		return true
	}
	for _, a := range r.allowed {
		if a == id {
			return true
		}
	}
	return false
}

// Allowed returns the monitors in the allowed set that currently exist.
func (r *Registry) Allowed() []Monitor {
	if !r.Restricted() {
		return r.monitors
	}
	out := make([]Monitor, 0, len(r.allowed))
	for _, m := range r.monitors {
		if r.isAllowed(m.DeviceID) {
			out = append(out, m)
		}
	}
	return out
}

// VirtualDesktop is the bounding box of every monitor.
func (r *Registry) VirtualDesktop() geom.Rect {
	rs := make([]geom.Rect, 0, len(r.monitors))
	for _, m := range r.monitors {
		rs = append(rs, m.FullBounds())
	}
	return geom.UnionAll(rs)
}

// Region is the movement region: the bounding box of the allowed working
// areas, or the full virtual desktop when unrestricted or nothing matches.
func (r *Registry) Region() geom.Rect {
	if !r.Restricted() {
		return r.VirtualDesktop()
	}
	allowed := r.Allowed()
	if len(allowed) == 0 {
		return r.VirtualDesktop()
	}
	rs := make([]geom.Rect, 0, len(allowed))
	for _, m := range allowed {
		rs = append(rs, m.WorkArea)
	}
	return geom.UnionAll(rs)
}

// MonitorAt returns the monitor containing (or nearest to) p.
func (r *Registry) MonitorAt(p geom.Point) Monitor { return r.src.MonitorAt(p) }

// CurrentArea is the working area of the monitor under center. If that monitor
// is not allowed the nearest allowed monitor is used instead.
func (r *Registry) CurrentArea(center geom.Point) geom.Rect {
	m := r.src.MonitorAt(center)
	if r.isAllowed(m.DeviceID) {
		return m.WorkArea
	}
	allowed := r.Allowed()
	if len(allowed) == 0 {
		return m.WorkArea
	}
	best := allowed[0]
	bestD := math.MaxFloat64
	for _, a := range allowed {
		d := center.DistSq(a.WorkArea.ClampPoint(center))
		if d < bestD {
			bestD = d
			best = a
		}
	}
	return best.WorkArea
}

// RandomArea picks the roaming area for a new walk target: a random allowed
// monitor's working area, or the virtual desktop when unrestricted.
func (r *Registry) RandomArea(src rng.Source) geom.Rect {
	if !r.Restricted() {
		return r.VirtualDesktop()
	}
	allowed := r.Allowed()
	if len(allowed) == 0 {
		return r.VirtualDesktop()
	}
	return allowed[rng.IntRange(src, 0, len(allowed))].WorkArea
}
