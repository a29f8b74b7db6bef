package world

import (
	"math"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/tasks"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

const (
	BubbleFadeIn      = 140 * time.Millisecond
	BubbleHold        = 1500 * time.Millisecond
	BubbleFadeOut     = 180 * time.Millisecond
	BubbleMinCooldown = 8
	BubbleMaxCooldown = 20

	RevealSlide    = 450 * time.Millisecond
	RevealHold     = 10 * time.Second
	RevealMaxSize  = 300.0
	RevealMinDelay = 60
	RevealMaxDelay = 180

	FetchText = "fetch!"
)

func (w *World) stepOverlay(now time.Time) {
	w.overlayAt = append(w.overlayAt, now)
	p, err := w.cfg.Pointer.Position()
	if err != nil {
		p = w.toy.Pos
	}
	res := w.toy.Step(now, p, w.workAreaAt, w.monitors.VirtualDesktop())
	if n := len(res.Bounces); n > 0 {
		toyBouncesTotal.Add(float64(n))
	}
	if res.Deactivated {
		w.emit(model.Event{Kind: model.EventToyLost})
	}
	w.trail.Step(now)
	w.tasks.Step(now)
}

func (w *World) workAreaAt(p geom.Point) geom.Rect { return w.monitors.MonitorAt(p).WorkArea }

// maybeBubble shows a random phrase with probability p once the cooldown has
// passed.
func (w *World) maybeBubble(c *featurectx.Context, p float64) {
	if c.Now.Before(w.nextBubbleAt) || len(w.tun.BubblePhrases) == 0 {
		return
	}
	if c.Flourish.Float64() > p {
		return
	}
	cooldown := rng.IntRange(c.Flourish, BubbleMinCooldown, BubbleMaxCooldown)
	w.nextBubbleAt = c.Now.Add(time.Duration(cooldown) * time.Second)
	text := w.tun.BubblePhrases[rng.IntRange(c.Flourish, 0, len(w.tun.BubblePhrases))]
	w.showBubble(c, text)
}

// showBubble fades the bubble in, holds it and fades it out on the overlay
// tick. A new bubble replaces one still showing.
func (w *World) showBubble(c *featurectx.Context, text string) {
	w.bubble = model.Bubble{Text: text, Visible: true}
	began := c.Now
	c.Tasks.Start(tasks.KindBubble, began, w.tun.OverlayInterval(), tasks.Func(func(now time.Time) bool {
		w.bubble.Opacity = bubbleOpacity(now.Sub(began))
		if now.Sub(began) >= BubbleFadeIn+BubbleHold+BubbleFadeOut {
			w.bubble = model.Bubble{}
			return true
		}
		return false
	}))
	c.Record(model.EventBubble, desktop.None, text)
}

func bubbleOpacity(t time.Duration) float64 {
	switch {
	case t < 0:
		return 0
	case t < BubbleFadeIn:
		return float64(t) / float64(BubbleFadeIn)
	case t < BubbleFadeIn+BubbleHold:
		return 1
	case t < BubbleFadeIn+BubbleHold+BubbleFadeOut:
		return 1 - float64(t-BubbleFadeIn-BubbleHold)/float64(BubbleFadeOut)
	default:
		return 0
	}
}

// maybeScheduleReveal sends an idle or walking agent with an empty slot to a
// side edge of its monitor to drag in a reveal item.
func (w *World) maybeScheduleReveal(c *featurectx.Context) {
	if len(w.tun.Reveal) == 0 || c.Now.Before(w.nextRevealAt) {
		return
	}
	a := c.Agent
	if (a.State != model.StateIdle && a.State != model.StateWalk) || a.Pending.Kind != model.PendingNone {
		return
	}
	item := w.tun.Reveal[rng.IntRange(c.Flourish, 0, len(w.tun.Reveal))]
	area := w.monitors.CurrentArea(a.Center())
	fromLeft := rng.Chance(c.Flourish, 0.5)
	target := geom.Pt(area.Right-a.Size, a.Pos.Y)
	if fromLeft {
		target.X = area.Left
	}
	a.Offer(model.Pending{Kind: model.PendingReveal, Reveal: model.RevealPlan{
		ItemID:   item.ID,
		Width:    item.Width,
		Height:   item.Height,
		Area:     area,
		FromLeft: fromLeft,
	}})
	a.Aim(target)
	a.Enter(model.StateWalk, c.Now, 0)
	delay := rng.IntRange(c.Flourish, RevealMinDelay, RevealMaxDelay)
	w.nextRevealAt = c.Now.Add(time.Duration(delay) * time.Second)
	c.Logf("reveal: %s scheduled, from_left=%v", item.ID, fromLeft)
}

// startReveal slides the item in from outside the chosen edge with an
// ease-out cubic and hides it after RevealHold.
func (w *World) startReveal(c *featurectx.Context, plan model.RevealPlan) {
	width := math.Min(RevealMaxSize, plan.Width)
	height := math.Min(RevealMaxSize, plan.Height)
	area := plan.Area
	startX, endX := area.Right, area.Right-width
	if plan.FromLeft {
		startX, endX = area.Left-width, area.Left
	}
	y := math.Max(area.Top, area.Bottom-height)

	w.reveal = model.Reveal{ItemID: plan.ItemID, Visible: true, Rect: geom.XYWH(startX, y, width, height)}
	began := c.Now
	c.Tasks.Start(tasks.KindReveal, began, w.tun.OverlayInterval(), tasks.Func(func(now time.Time) bool {
		elapsed := now.Sub(began)
		if elapsed >= RevealSlide+RevealHold {
			w.reveal = model.Reveal{}
			return true
		}
		w.reveal.Rect = geom.XYWH(slideX(startX, endX, elapsed), y, width, height)
		return false
	}))
	c.Logf("reveal: %s sliding in", plan.ItemID)
	c.Record(model.EventReveal, desktop.None, plan.ItemID)
}

func slideX(startX, endX float64, elapsed time.Duration) float64 {
	t := float64(elapsed) / float64(RevealSlide)
	if t >= 1 {
		return endX
	}
	ease := 1 - math.Pow(1-t, 3)
	return startX + (endX-startX)*ease
}

// observeForeground records the title of a newly focused foreign window.
func (w *World) observeForeground(c *featurectx.Context) {
	h, err := c.Windows.Foreground()
	if err != nil {
		w.foreground = desktop.None
		return
	}
	if h == w.foreground {
		return
	}
	w.foreground = h
	if !c.Foreign(h) {
		return
	}
	title, err := c.Windows.Title(h)
	if err != nil {
		return
	}
	w.observation = &model.Observation{At: c.Now, Window: h, Title: title}
	c.Record(model.EventForeground, h, title)
}

// reassertZOrder keeps the overlay directly below the agent window.
func (w *World) reassertZOrder(c *featurectx.Context) {
	if c.Now.Before(w.nextZOrderAt) {
		return
	}
	w.nextZOrderAt = c.Now.Add(w.tun.ZOrderInterval())
	if w.cfg.Overlay == desktop.None || w.cfg.Self == desktop.None {
		return
	}
	if err := w.cfg.Windows.SetZOrder(w.cfg.Overlay, w.cfg.Self, geom.Rect{}, desktop.Keep); err != nil {
		w.logf("overlay z-order: %v", err)
	}
}

// placeSelf moves the agent window onto the agent box without touching the
// stacking order.
func (w *World) placeSelf() {
	if w.cfg.Self == desktop.None {
		return
	}
	box := w.agent.Box()
	if box == w.placed {
		return
	}
	if err := w.cfg.Windows.SetZOrder(w.cfg.Self, desktop.None, box, desktop.NoZOrder|desktop.NoActivate); err != nil {
		w.logf("place self: %v", err)
		return
	}
	w.placed = box
}
