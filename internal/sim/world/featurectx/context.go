// Package featurectx is the simulation context handed to every feature. The
// world loop builds one per tick; features read and write the agent through it
// and talk to the desktop only through its interfaces.
package featurectx

import (
	"log"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/tasks"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world/feature/toy"
	"ratpet.ai/internal/sim/world/kernel/model"
)

type Context struct {
	Now      time.Time
	Agent    *model.Agent
	Toy      *toy.Toy
	Settings tuning.Settings

	Windows  desktop.WindowSystem
	Monitors *desktop.Registry
	Pointer  desktop.Pointer
	// Self is the agent's own window, Overlay the toy/footprint layer.
	Self    desktop.Handle
	Overlay desktop.Handle

	// Rand drives behavior decisions, Flourish cosmetic ones.
	Rand     rng.Source
	Flourish rng.Source

	Tasks *tasks.Scheduler
	Log   *log.Logger

	// Emit records an event for the journal. May be nil.
	Emit func(model.Event)
}

// Logf writes through Log when one is set.
func (c *Context) Logf(format string, args ...any) {
	if c.Log != nil {
		c.Log.Printf(format, args...)
	}
}

func (c *Context) Record(kind string, h desktop.Handle, note string) {
	if c.Emit != nil {
		c.Emit(model.Event{Kind: kind, Window: h, Note: note})
	}
}

// Foreign reports whether h is a real window that is neither the agent nor
// its overlay.
func (c *Context) Foreign(h desktop.Handle) bool {
	return h != desktop.None && h != c.Self && h != c.Overlay
}

// Speed is the effective per-tick speed before scaling.
func (c *Context) Speed() float64 {
	if c.Agent.SpeedOverride > 0 {
		return c.Agent.SpeedOverride
	}
	return c.Settings.BaseSpeed
}

// ChaosMultiplier is the global speed and mischief multiplier of chaos mode.
func (c *Context) ChaosMultiplier() float64 {
	if c.Settings.ChaosMode {
		return 2.0
	}
	return 1.0
}
