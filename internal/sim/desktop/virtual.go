package desktop

import (
	"math"
	"sync"

	"ratpet.ai/internal/sim/geom"
)

// MaxCommands bounds the request history kept by Virtual.
const MaxCommands = 4096

// DefaultCaption is the caption layout of a window at 96 DPI.
var DefaultCaption = CaptionMetrics{ButtonWidth: 36, ButtonHeight: 22, CaptionHeight: 23}

type VirtualWindow struct {
	Handle    Handle
	Title     string
	Bounds    geom.Rect
	Topmost   bool
	Minimized bool
	Parent    Handle
	// DPI scales DefaultCaption. Zero means 96.
	DPI int
	// ClickThrough windows are invisible to WindowAt.
	ClickThrough bool
}

// Command is one mutating request recorded by Virtual.
type Command struct {
	Kind        string
	Handle      Handle
	InsertAfter Handle
	Bounds      geom.Rect
	Flags       ZFlags
}

// Virtual is an in-memory stacking window manager with monitors and a pointer.
// It backs headless runs and tests. Stacking order is front to back with the
// topmost band first.
type Virtual struct {
	mu         sync.Mutex
	monitors   []Monitor
	windows    map[Handle]*VirtualWindow
	order      []Handle
	foreground Handle
	pointer    geom.Point
	next       Handle
	commands   []Command
}

func NewVirtual(monitors ...Monitor) *Virtual {
	return &Virtual{
		monitors: append([]Monitor(nil), monitors...),
		windows:  map[Handle]*VirtualWindow{},
		next:     100,
	}
}

// AddWindow opens a window at the front of its band and returns its handle.
func (v *Virtual) AddWindow(w VirtualWindow) Handle {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.next++
	w.Handle = v.next
	cp := w
	v.windows[w.Handle] = &cp
	v.placeFront(w.Handle)
	if v.foreground == None && !w.Minimized {
		v.foreground = w.Handle
	}
	return w.Handle
}

// Close destroys a window; its handle becomes stale.
func (v *Virtual) Close(h Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.windows, h)
	v.remove(h)
	if v.foreground == h {
		v.foreground = v.firstVisible()
	}
}

func (v *Virtual) Window(h Handle) (VirtualWindow, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	w, ok := v.windows[h]
	if !ok {
		return VirtualWindow{}, false
	}
	return *w, true
}

// Order returns the stacking order, front first.
func (v *Virtual) Order() []Handle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Handle(nil), v.order...)
}

// Commands returns the most recent mutating requests, oldest first. At most
// MaxCommands are kept.
func (v *Virtual) Commands() []Command {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Command(nil), v.commands...)
}

// ResetCommands forgets the recorded requests.
func (v *Virtual) ResetCommands() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commands = nil
}

func (v *Virtual) record(c Command) {
	v.commands = append(v.commands, c)
	if n := len(v.commands) - MaxCommands; n > 0 {
		v.commands = append(v.commands[:0], v.commands[n:]...)
	}
}

func (v *Virtual) SetForeground(h Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.foreground = h
}

func (v *Virtual) Monitors() []Monitor {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Monitor(nil), v.monitors...)
}

func (v *Virtual) SetMonitors(ms []Monitor) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.monitors = append(v.monitors[:0], ms...)
}

// MonitorAt returns the monitor containing p, else the nearest one.
func (v *Virtual) MonitorAt(p geom.Point) Monitor {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.monitors) == 0 {
		return Monitor{}
	}
	for _, m := range v.monitors {
		b := m.FullBounds()
		if p.X >= b.Left && p.X < b.Right && p.Y >= b.Top && p.Y < b.Bottom {
			return m
		}
	}
	best := v.monitors[0]
	bestD := math.MaxFloat64
	for _, m := range v.monitors {
		if d := p.DistSq(m.FullBounds().ClampPoint(p)); d < bestD {
			bestD = d
			best = m
		}
	}
	return best
}

func (v *Virtual) Position() (geom.Point, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pointer, nil
}

func (v *Virtual) SetPosition(p geom.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pointer = p
	return nil
}

func (v *Virtual) WindowAt(p geom.Point) (Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, h := range v.order {
		w := v.windows[h]
		if w.Minimized || w.ClickThrough {
			continue
		}
		if w.Bounds.Contains(p) {
			return h, nil
		}
	}
	return None, ErrNoWindow
}

func (v *Virtual) Bounds(h Handle) (geom.Rect, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	w, ok := v.windows[h]
	if !ok {
		return geom.Rect{}, ErrStale
	}
	return w.Bounds, nil
}

func (v *Virtual) Foreground() (Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.foreground == None {
		return None, ErrNoWindow
	}
	if _, ok := v.windows[v.foreground]; !ok {
		return None, ErrStale
	}
	return v.foreground, nil
}

func (v *Virtual) Title(h Handle) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	w, ok := v.windows[h]
	if !ok {
		return "", ErrStale
	}
	return w.Title, nil
}

func (v *Virtual) SetZOrder(h, after Handle, bounds geom.Rect, flags ZFlags) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	w, ok := v.windows[h]
	if !ok {
		return ErrStale
	}
	if after > None {
		if _, ok := v.windows[after]; !ok {
			return ErrStale
		}
	}
	v.record(Command{Kind: "SET_Z_ORDER", Handle: h, InsertAfter: after, Bounds: bounds, Flags: flags})

	next := w.Bounds
	if !flags.Has(NoMove) {
		next = next.Translate(bounds.Left-next.Left, bounds.Top-next.Top)
	}
	if !flags.Has(NoSize) {
		next.Right = next.Left + bounds.Width()
		next.Bottom = next.Top + bounds.Height()
	}
	w.Bounds = next

	if flags.Has(NoZOrder) {
		return nil
	}
	switch after {
	case InsertTop:
		v.placeFront(h)
	case InsertTopmost:
		w.Topmost = true
		v.placeFront(h)
	case InsertNoTopmost:
		w.Topmost = false
		v.placeFront(h)
	case InsertBottom:
		w.Topmost = false
		v.remove(h)
		v.order = append(v.order, h)
	default:
		if after == h || after == None {
			return nil
		}
		w.Topmost = v.windows[after].Topmost
		v.remove(h)
		idx := v.index(after)
		v.order = append(v.order[:idx+1], append([]Handle{h}, v.order[idx+1:]...)...)
	}
	if !flags.Has(NoActivate) {
		v.foreground = h
	}
	return nil
}

func (v *Virtual) Minimize(h Handle) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	w, ok := v.windows[h]
	if !ok {
		return ErrStale
	}
	v.record(Command{Kind: "MINIMIZE", Handle: h})
	w.Minimized = true
	if v.foreground == h {
		v.foreground = v.firstVisible()
	}
	return nil
}

func (v *Virtual) RootAncestor(h Handle) (Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	w, ok := v.windows[h]
	if !ok {
		return None, ErrStale
	}
	for w.Parent != None {
		p, ok := v.windows[w.Parent]
		if !ok {
			break
		}
		w = p
	}
	return w.Handle, nil
}

func (v *Virtual) CaptionMetrics(h Handle) (CaptionMetrics, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	w, ok := v.windows[h]
	if !ok {
		return CaptionMetrics{}, ErrStale
	}
	dpi := w.DPI
	if dpi <= 0 {
		dpi = 96
	}
	scale := func(px int) int { return px * dpi / 96 }
	return CaptionMetrics{
		ButtonWidth:   scale(DefaultCaption.ButtonWidth),
		ButtonHeight:  scale(DefaultCaption.ButtonHeight),
		CaptionHeight: scale(DefaultCaption.CaptionHeight),
	}, nil
}

// placeFront moves h to the front of its band.
func (v *Virtual) placeFront(h Handle) {
	v.remove(h)
	at := 0
	if !v.windows[h].Topmost {
		for at < len(v.order) && v.windows[v.order[at]].Topmost {
			at++
		}
	}
	v.order = append(v.order[:at], append([]Handle{h}, v.order[at:]...)...)
}

func (v *Virtual) remove(h Handle) {
	if idx := v.index(h); idx >= 0 {
		v.order = append(v.order[:idx], v.order[idx+1:]...)
	}
}

func (v *Virtual) index(h Handle) int {
	for i, x := range v.order {
		if x == h {
			return i
		}
	}
	return -1
}

func (v *Virtual) firstVisible() Handle {
	for _, h := range v.order {
		if !v.windows[h].Minimized {
			return h
		}
	}
	return None
}
