package world

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/tasks"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world/feature/movement"
	"ratpet.ai/internal/sim/world/feature/toy"
	"ratpet.ai/internal/sim/world/feature/trail"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

// initialMargin is the gap from the bottom-right corner of the primary
// working area at startup.
const initialMargin = 24

type ObserverJoinRequest struct {
	SessionID string
	FrameOut  chan []byte
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// RunHeader identifies a run. It is attached to the first journal entry only.
type RunHeader struct {
	RunID   string    `json:"run_id"`
	WorldID string    `json:"world_id"`
	Seed    int64     `json:"seed"`
	Start   time.Time `json:"start"`
}

type TickLogEntry struct {
	Header *RunHeader `json:"header,omitempty"`
	Tick   uint64     `json:"tick"`
	At     time.Time  `json:"at"`
	// OverlayAt lists the overlay steps run since the previous behavior tick.
	OverlayAt   []time.Time        `json:"overlay_at,omitempty"`
	Commands    []Command          `json:"commands,omitempty"`
	State       string             `json:"state"`
	Pos         geom.Point         `json:"pos"`
	Events      []model.Event      `json:"events,omitempty"`
	Windows     []WindowCall       `json:"windows,omitempty"`
	Observation *model.Observation `json:"observation,omitempty"`
	Digest      string             `json:"digest"`
}

// World owns every piece of simulation state. Only the goroutine running Run
// (or the caller of StepOnce/StepOverlay) may touch it.
type World struct {
	cfg      Config
	tun      tuning.Tuning
	settings tuning.Settings
	monitors *desktop.Registry
	windows  *recordingWindows
	log      *log.Logger

	agent  model.Agent
	toy    toy.Toy
	trail  *trail.Trail
	tasks  *tasks.Scheduler
	bubble model.Bubble
	reveal model.Reveal
	sprite Sprite

	nextBubbleAt time.Time
	nextRevealAt time.Time
	nextZOrderAt time.Time
	foreground   desktop.Handle
	placed       geom.Rect

	tick        atomic.Uint64
	events      []model.Event
	windowCalls []WindowCall
	overlayAt   []time.Time
	observation *model.Observation
	lastDigest  string

	commands      chan Command
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}
	observers     map[string]chan []byte

	latest    atomic.Pointer[Frame]
	published atomic.Pointer[tuning.Settings]
	metrics   atomic.Value

	tickLogger TickLogger
	runID      string
}

func New(cfg Config) (*World, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	w := &World{
		cfg:           cfg,
		tun:           cfg.Tuning,
		settings:      cfg.Tuning.Settings,
		monitors:      desktop.NewRegistry(cfg.Monitors),
		log:           cfg.Log,
		trail:         trail.New(cfg.Tuning.Assets.HasFootprint()),
		tasks:         tasks.NewScheduler(),
		commands:      make(chan Command, 256),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
		observers:     map[string]chan []byte{},
	}
	w.windows = &recordingWindows{WindowSystem: cfg.Windows, w: w}
	w.monitors.SetAllowed(w.settings.AllowedMonitors)
	w.settings.AllowedMonitors = w.monitors.AllowedIDs()

	start := cfg.Start
	a := &w.agent
	a.Scale = w.settings.Scale
	a.Size = model.SizeFor(w.tun.FrameSize, a.Scale)
	a.Pos = initialPos(w.monitors.All(), a.Size)
	movement.Clamp(a, w.monitors.Region())
	a.Target = a.Pos
	a.Facing = geom.Left
	a.Topmost = true
	a.State = model.StateIdle
	a.Until = start

	w.nextBubbleAt = start.Add(time.Duration(w.tun.FirstBubbleDelayMs) * time.Millisecond)
	w.nextRevealAt = start.Add(time.Duration(w.tun.FirstRevealDelayMs) * time.Millisecond)
	w.nextZOrderAt = start
	w.sprite = Sprite{Sheet: SheetIdle}
	w.placeSelf()

	f := w.buildFrame(0, start)
	w.latest.Store(&f)
	w.publishSettings()
	w.lastDigest = w.stateDigest()
	return w, nil
}

func initialPos(ms []desktop.Monitor, size float64) geom.Point {
	if len(ms) == 0 {
		return geom.Point{}
	}
	m := ms[0]
	for _, x := range ms {
		if x.Primary {
			m = x
			break
		}
	}
	return geom.Pt(m.WorkArea.Right-size-initialMargin, m.WorkArea.Bottom-size-initialMargin)
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }
func (w *World) SetRunID(id string)         { w.runID = id }
func (w *World) RunID() string              { return w.runID }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Seed() int64               { return w.tun.Seed }
func (w *World) Start() time.Time          { return w.cfg.Start }
func (w *World) CurrentTick() uint64       { return w.tick.Load() }
func (w *World) Commands() chan<- Command  { return w.commands }
func (w *World) Digest() string            { return w.lastDigest }
func (w *World) Settings() tuning.Settings { return w.settings }
func (w *World) Tuning() tuning.Tuning     { return w.tun }

// PublishedSettings returns the settings as of the last behavior tick. It is
// safe to call from any goroutine.
func (w *World) PublishedSettings() tuning.Settings {
	if s := w.published.Load(); s != nil {
		return *s
	}
	return tuning.Settings{}
}

func (w *World) publishSettings() {
	s := w.settings
	s.AllowedMonitors = append([]string(nil), s.AllowedMonitors...)
	w.published.Store(&s)
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

// Agent returns a copy of the agent. Use it from tests and replay only.
func (w *World) Agent() model.Agent { return w.agent }

func (w *World) Toy() toy.Toy { return w.toy }

// Run drives the behavior tick and the overlay tick until ctx is done or Stop
// is called. Commands are batched and applied at the start of the next
// behavior tick.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tun.TickInterval())
	defer ticker.Stop()
	overlay := time.NewTicker(w.tun.OverlayInterval())
	defer overlay.Stop()

	var pending []Command
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case cmd := <-w.commands:
			pending = append(pending, cmd)
		case now := <-overlay.C:
			w.stepOverlay(now)
		case now := <-ticker.C:
			w.step(now, pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single behavior tick with the same
// ordering as Run. It is intended for deterministic replays and tests.
func (w *World) StepOnce(now time.Time, cmds []Command) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(now, cmds)
	return tick, w.lastDigest
}

// StepOverlay runs one overlay tick: toy physics, footprint fade and
// scheduled sub-animations.
func (w *World) StepOverlay(now time.Time) { w.stepOverlay(now) }

func (w *World) context(now time.Time) *featurectx.Context {
	return &featurectx.Context{
		Now:      now,
		Agent:    &w.agent,
		Toy:      &w.toy,
		Settings: w.settings,
		Windows:  w.windows,
		Monitors: w.monitors,
		Pointer:  w.cfg.Pointer,
		Self:     w.cfg.Self,
		Overlay:  w.cfg.Overlay,
		Rand:     w.cfg.Rand,
		Flourish: w.cfg.Flourish,
		Tasks:    w.tasks,
		Log:      w.log,
		Emit:     w.emit,
	}
}

func (w *World) emit(e model.Event) {
	w.events = append(w.events, e)
	eventsTotal.WithLabelValues(e.Kind).Inc()
}

func (w *World) logf(format string, args ...any) {
	if w.log != nil {
		w.log.Printf(format, args...)
	}
}

func (w *World) step(now time.Time, cmds []Command) {
	began := time.Now()
	tick := w.tick.Load()

	applied := make([]Command, 0, len(cmds))
	for _, cmd := range cmds {
		if err := w.apply(w.context(now), cmd); err != nil {
			w.logf("command %s rejected: %v", cmd.Type, err)
			continue
		}
		applied = append(applied, cmd)
	}

	c := w.context(now)
	prev := w.agent.State
	w.behave(c)
	w.maybeScheduleReveal(c)
	w.observeForeground(c)
	w.reassertZOrder(c)
	w.placeSelf()
	cur := w.agent.State
	if cur != prev {
		w.emit(model.Event{Kind: model.EventTransition, Note: prev.String() + "->" + cur.String()})
		transitionsTotal.WithLabelValues(prev.String(), cur.String()).Inc()
	}

	w.lastDigest = w.stateDigest()
	frame := w.buildFrame(tick, now)
	w.latest.Store(&frame)
	w.publishSettings()
	w.broadcast(frame)

	entry := TickLogEntry{
		Tick:        tick,
		At:          now,
		OverlayAt:   w.overlayAt,
		Commands:    applied,
		State:       cur.String(),
		Pos:         w.agent.Pos,
		Events:      w.events,
		Windows:     w.windowCalls,
		Observation: w.observation,
		Digest:      w.lastDigest,
	}
	if len(entry.Commands) == 0 {
		entry.Commands = nil
	}
	if tick == 0 {
		entry.Header = &RunHeader{RunID: w.runID, WorldID: w.cfg.ID, Seed: w.tun.Seed, Start: w.cfg.Start}
	}
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logf("tick log: %v", err)
		}
	}
	w.recordMetrics(tick, cur, time.Since(began))

	w.events = nil
	w.windowCalls = nil
	w.overlayAt = nil
	w.observation = nil
	w.tick.Add(1)
}

// sendLatest delivers b, dropping the oldest queued message when the
// consumer is behind.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
