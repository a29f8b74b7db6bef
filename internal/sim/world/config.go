package world

import (
	"errors"
	"log"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/rng"
	"ratpet.ai/internal/sim/tuning"
)

type Config struct {
	ID     string
	Tuning tuning.Tuning

	Windows  desktop.WindowSystem
	Monitors desktop.MonitorSource
	Pointer  desktop.Pointer
	// Self is the agent's window, Overlay the click-through toy layer.
	Self    desktop.Handle
	Overlay desktop.Handle

	// Start is the simulated start time. Zero means time.Now().
	Start time.Time
	// Rand drives behavior decisions, Flourish cosmetic ones. Nil sources are
	// seeded from Tuning.Seed.
	Rand     rng.Source
	Flourish rng.Source

	// Log may be nil.
	Log *log.Logger
}

func (c *Config) applyDefaults() error {
	if c.Windows == nil || c.Monitors == nil || c.Pointer == nil {
		return errors.New("world: windows, monitors and pointer are required")
	}
	if c.ID == "" {
		c.ID = "ratpet"
	}
	c.Tuning.Normalize()
	if c.Start.IsZero() {
		c.Start = time.Now()
	}
	if c.Tuning.Seed == 0 {
		c.Tuning.Seed = c.Start.UnixNano()
	}
	if c.Rand == nil {
		c.Rand = rng.New(c.Tuning.Seed)
	}
	if c.Flourish == nil {
		c.Flourish = rng.New(c.Tuning.Seed + 1)
	}
	return nil
}
