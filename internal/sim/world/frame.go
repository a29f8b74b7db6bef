package world

import (
	"encoding/json"
	"time"

	"ratpet.ai/internal/observerproto"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/world/feature/toy"
	"ratpet.ai/internal/sim/world/feature/trail"
	"ratpet.ai/internal/sim/world/kernel/model"
)

type Sheet string

const (
	SheetIdle  Sheet = "idle"
	SheetMove  Sheet = "move"
	SheetSleep Sheet = "sleep"
)

// Sprite is the sheet cell shown for a tick. Row is the facing on the move
// sheet and 0 elsewhere.
type Sprite struct {
	Sheet  Sheet
	Row    int
	Column int
}

// Frame is everything the rendering layer needs for one behavior tick.
type Frame struct {
	Tick uint64
	At   time.Time

	State         model.State
	Pos           geom.Point
	Size          float64
	Scale         float64
	Facing        geom.Direction
	Sprite        Sprite
	Topmost       bool
	Occluded      bool
	CursorCarried bool
	Pending       model.PendingKind
	Zoomies       bool

	Bubble     model.Bubble
	Toy        toy.Toy
	Footprints []trail.Footprint
	Reveal     model.Reveal
}

// LatestFrame returns the frame of the most recent behavior tick. It is safe
// to call from any goroutine.
func (w *World) LatestFrame() Frame {
	if f := w.latest.Load(); f != nil {
		return *f
	}
	return Frame{}
}

func (w *World) buildFrame(tick uint64, now time.Time) Frame {
	a := &w.agent
	return Frame{
		Tick:          tick,
		At:            now,
		State:         a.State,
		Pos:           a.Pos,
		Size:          a.Size,
		Scale:         a.Scale,
		Facing:        a.Facing,
		Sprite:        w.sprite,
		Topmost:       a.Topmost,
		Occluded:      a.Sneak.Occluded,
		CursorCarried: a.Carrying,
		Pending:       a.Pending.Kind,
		Zoomies:       a.Zoomies.Active,
		Bubble:        w.bubble,
		Toy:           w.toy,
		Footprints:    append([]trail.Footprint(nil), w.trail.Prints...),
		Reveal:        w.reveal,
	}
}

// Message converts the frame to its observer wire form.
func (f Frame) Message() observerproto.FrameMsg {
	m := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            f.Tick,
		AtMs:            f.At.UnixMilli(),
		Agent: observerproto.AgentView{
			State:         f.State.String(),
			Pos:           [2]float64{f.Pos.X, f.Pos.Y},
			Size:          f.Size,
			Scale:         f.Scale,
			Facing:        f.Facing.String(),
			Sheet:         string(f.Sprite.Sheet),
			Row:           f.Sprite.Row,
			Column:        f.Sprite.Column,
			Topmost:       f.Topmost,
			Occluded:      f.Occluded,
			CursorCarried: f.CursorCarried,
			Zoomies:       f.Zoomies,
		},
	}
	if f.Pending != model.PendingNone {
		m.Agent.Pending = f.Pending.String()
	}
	if f.Bubble.Visible {
		m.Bubble = &observerproto.BubbleView{Text: f.Bubble.Text, Opacity: f.Bubble.Opacity}
	}
	if f.Toy.Visible {
		m.Toy = &observerproto.ToyView{
			Pos:       [2]float64{f.Toy.Pos.X, f.Toy.Pos.Y},
			Spin:      f.Toy.Spin,
			Carried:   f.Toy.Carried,
			Following: f.Toy.Following,
		}
	}
	for _, p := range f.Footprints {
		m.Footprints = append(m.Footprints, observerproto.FootprintView{
			Pos:     [2]float64{p.Pos.X, p.Pos.Y},
			Angle:   p.Angle,
			Scale:   p.Scale,
			Opacity: p.Opacity(),
		})
	}
	if f.Reveal.Visible {
		r := f.Reveal.Rect
		m.Reveal = &observerproto.RevealView{ItemID: f.Reveal.ItemID, Rect: [4]float64{r.Left, r.Top, r.Right, r.Bottom}}
	}
	return m
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.FrameOut == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old)
	}
	w.observers[req.SessionID] = req.FrameOut
	observersGauge.Set(float64(len(w.observers)))
	if f := w.latest.Load(); f != nil {
		if b, err := json.Marshal(f.Message()); err == nil {
			sendLatest(req.FrameOut, b)
		}
	}
}

func (w *World) handleObserverLeave(id string) {
	if ch := w.observers[id]; ch != nil {
		close(ch)
		delete(w.observers, id)
	}
	observersGauge.Set(float64(len(w.observers)))
}

func (w *World) broadcast(f Frame) {
	if len(w.observers) == 0 {
		return
	}
	b, err := json.Marshal(f.Message())
	if err != nil {
		w.logf("frame marshal: %v", err)
		return
	}
	for _, ch := range w.observers {
		sendLatest(ch, b)
	}
}
