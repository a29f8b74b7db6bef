package desktop

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ratpet.ai/internal/sim/geom"
)

// Layout is the yaml description of a virtual desktop used for headless runs.
type Layout struct {
	Monitors []MonitorSpec `yaml:"monitors"`
	Windows  []WindowSpec  `yaml:"windows,omitempty"`
	Pointer  []float64     `yaml:"pointer,omitempty"`
	// Foreground is the title of the initially focused window.
	Foreground string `yaml:"foreground,omitempty"`
}

type MonitorSpec struct {
	ID       string    `yaml:"id"`
	Bounds   []float64 `yaml:"bounds"`
	WorkArea []float64 `yaml:"work_area,omitempty"`
	Primary  bool      `yaml:"primary"`
}

type WindowSpec struct {
	Title     string    `yaml:"title"`
	Rect      []float64 `yaml:"rect"`
	Topmost   bool      `yaml:"topmost"`
	Minimized bool      `yaml:"minimized"`
	DPI       int       `yaml:"dpi,omitempty"`
	// Parent names an earlier window by title.
	Parent string `yaml:"parent,omitempty"`
}

func LoadLayout(path string) (Layout, error) {
	var l Layout
	if strings.TrimSpace(path) == "" {
		return DefaultLayout(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(b, &l); err != nil {
		return l, fmt.Errorf("desktop.yaml: %w", err)
	}
	if err := l.Validate(); err != nil {
		return l, fmt.Errorf("desktop.yaml: %w", err)
	}
	return l, nil
}

// DefaultLayout is a single 1920x1080 monitor with a 40 px taskbar.
func DefaultLayout() Layout {
	return Layout{
		Monitors: []MonitorSpec{{
			ID:       "DISPLAY1",
			Bounds:   []float64{0, 0, 1920, 1080},
			WorkArea: []float64{0, 0, 1920, 1040},
			Primary:  true,
		}},
		Pointer: []float64{960, 540},
	}
}

func (l Layout) Validate() error {
	if len(l.Monitors) == 0 {
		return errors.New("at least one monitor is required")
	}
	seen := map[string]bool{}
	for i, m := range l.Monitors {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("monitors[%d]: missing id", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("monitors[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		if _, err := rectOf(m.Bounds); err != nil {
			return fmt.Errorf("monitors[%d].bounds: %w", i, err)
		}
		if len(m.WorkArea) > 0 {
			if _, err := rectOf(m.WorkArea); err != nil {
				return fmt.Errorf("monitors[%d].work_area: %w", i, err)
			}
		}
	}
	titles := map[string]bool{}
	for i, w := range l.Windows {
		if _, err := rectOf(w.Rect); err != nil {
			return fmt.Errorf("windows[%d].rect: %w", i, err)
		}
		if w.Parent != "" && !titles[w.Parent] {
			return fmt.Errorf("windows[%d]: parent %q must be declared earlier", i, w.Parent)
		}
		titles[w.Title] = true
	}
	if len(l.Pointer) != 0 && len(l.Pointer) != 2 {
		return errors.New("pointer must be [x, y]")
	}
	return nil
}

// Build materializes the layout. Windows are opened in order, so the last one
// ends up frontmost within its band.
func (l Layout) Build() *Virtual {
	ms := make([]Monitor, 0, len(l.Monitors))
	for _, m := range l.Monitors {
		b, _ := rectOf(m.Bounds)
		wa := b
		if len(m.WorkArea) > 0 {
			wa, _ = rectOf(m.WorkArea)
		}
		ms = append(ms, Monitor{DeviceID: m.ID, Bounds: b, WorkArea: wa, Primary: m.Primary})
	}
	v := NewVirtual(ms...)
	byTitle := map[string]Handle{}
	for _, m := range l.Windows {
		r, _ := rectOf(m.Rect)
		h := v.AddWindow(VirtualWindow{
			Title:     m.Title,
			Bounds:    r,
			Topmost:   m.Topmost,
			Minimized: m.Minimized,
			DPI:       m.DPI,
			Parent:    byTitle[m.Parent],
		})
		byTitle[m.Title] = h
	}
	if h, ok := byTitle[l.Foreground]; ok {
		v.SetForeground(h)
	}
	if len(l.Pointer) == 2 {
		_ = v.SetPosition(geom.Pt(l.Pointer[0], l.Pointer[1]))
	}
	return v
}

func rectOf(v []float64) (geom.Rect, error) {
	if len(v) != 4 {
		return geom.Rect{}, errors.New("want [left, top, right, bottom]")
	}
	r := geom.R(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return r, errors.New("empty rectangle")
	}
	return r, nil
}

// Host is a built layout plus the agent's own windows.
type Host struct {
	*Virtual
	Self    Handle
	Overlay Handle
}

// BuildHost builds the layout and opens the agent window and a click-through
// overlay spanning every monitor. Both are topmost and opened last, so a
// given layout always yields the same handles.
func (l Layout) BuildHost() Host {
	v := l.Build()
	ms := v.Monitors()
	rs := make([]geom.Rect, 0, len(ms))
	for _, m := range ms {
		rs = append(rs, m.FullBounds())
	}
	self := v.AddWindow(VirtualWindow{Title: "ratpet", Bounds: geom.XYWH(0, 0, 1, 1), Topmost: true})
	overlay := v.AddWindow(VirtualWindow{Title: "ratpet overlay", Bounds: geom.UnionAll(rs), Topmost: true, ClickThrough: true})
	return Host{Virtual: v, Self: self, Overlay: overlay}
}
