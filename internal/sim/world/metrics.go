package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ratpet.ai/internal/sim/world/kernel/model"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ratpet",
		Name:      "ticks_total",
		Help:      "Behavior ticks stepped.",
	})
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratpet",
		Name:      "events_total",
		Help:      "Simulation events by kind.",
	}, []string{"kind"})
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratpet",
		Name:      "state_transitions_total",
		Help:      "Behavior state changes observed at the end of a tick.",
	}, []string{"from", "to"})
	windowCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratpet",
		Name:      "window_calls_total",
		Help:      "Stacking, move and minimize requests sent to other windows.",
	}, []string{"op"})
	toyBouncesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ratpet",
		Name:      "toy_bounces_total",
		Help:      "Toy reflections against working area edges.",
	})
	stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ratpet",
		Name:      "agent_state",
		Help:      "1 for the current behavior state, 0 otherwise.",
	}, []string{"state"})
	observersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ratpet",
		Name:      "observers_active",
		Help:      "Connected observer sessions.",
	})
	stepSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ratpet",
		Name:      "step_seconds",
		Help:      "Wall time spent in one behavior tick.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
	})
)

var allStates = []model.State{model.StateIdle, model.StateWalk, model.StateSleep, model.StateSteal, model.StatePlay}

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick      uint64  `json:"tick"`
	State     string  `json:"state"`
	Observers int     `json:"observers"`
	Commands  int     `json:"queued_commands"`
	Footprint int     `json:"footprints"`
	Tasks     int     `json:"tasks"`
	StepMS    float64 `json:"step_ms"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) recordMetrics(tick uint64, st model.State, took time.Duration) {
	ticksTotal.Inc()
	stepSeconds.Observe(took.Seconds())
	for _, s := range allStates {
		v := 0.0
		if s == st {
			v = 1
		}
		stateGauge.WithLabelValues(s.String()).Set(v)
	}
	w.metrics.Store(WorldMetrics{
		Tick:      tick,
		State:     st.String(),
		Observers: len(w.observers),
		Commands:  len(w.commands),
		Footprint: len(w.trail.Prints),
		Tasks:     w.tasks.Len(),
		StepMS:    float64(took.Microseconds()) / 1000,
	})
}
