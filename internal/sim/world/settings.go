package world

import (
	"slices"
	"time"

	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world/feature/chaos"
	"ratpet.ai/internal/sim/world/feature/movement"
	"ratpet.ai/internal/sim/world/feature/sneak"
	"ratpet.ai/internal/sim/world/kernel/model"
)

// The setters below must run on the world loop goroutine: from a
// SET_SETTINGS command, or directly when stepping with StepOnce.

func (w *World) SetScale(v float64) {
	v = tuning.ClampScale(v)
	w.settings.Scale = v
	a := &w.agent
	a.Scale = v
	a.Size = model.SizeFor(w.tun.FrameSize, v)
	movement.Clamp(a, w.monitors.Region())
}

func (w *World) SetSpeed(v float64)          { w.settings.BaseSpeed = tuning.ClampSpeed(v) }
func (w *World) SetSneakChance(v float64)    { w.settings.SneakChance = tuning.ClampSneakChance(v) }
func (w *World) SetMischiefChance(v float64) { w.settings.MischiefChance = tuning.ClampMischiefChance(v) }
func (w *World) SetMischiefEnabled(on bool)  { w.settings.MischiefEnabled = on }
func (w *World) SetFunMode(on bool)          { w.settings.FunMode = on }

// SetAllowedMonitors restricts movement to the given device ids (empty means
// all) and pulls the agent and its target into the new region at once.
func (w *World) SetAllowedMonitors(ids []string) {
	w.monitors.Refresh()
	w.monitors.SetAllowed(ids)
	w.settings.AllowedMonitors = w.monitors.AllowedIDs()
	region := w.monitors.Region()
	a := &w.agent
	movement.Clamp(a, region)
	a.Target = region.ClampOrigin(a.Target, a.Size, a.Size)
}

// SetSneakEnabled toggles sneaking. Turning it off while occluded re-emerges
// immediately.
func (w *World) SetSneakEnabled(on bool, now time.Time) {
	w.settings.SneakEnabled = on
	if !on && w.agent.Sneak.Occluded {
		sneak.Reemerge(w.context(now))
	}
}

// SetChaosMode toggles chaos. Turning it off drops any chaos pending action
// and ends zoomies.
func (w *World) SetChaosMode(on bool, now time.Time) {
	w.settings.ChaosMode = on
	if on {
		return
	}
	a := &w.agent
	if a.Pending.IsChaos() {
		a.Take()
	}
	chaos.StopZoomies(w.context(now))
}

// ApplySettings normalizes s and applies every field that differs from the
// current settings.
func (w *World) ApplySettings(s tuning.Settings, now time.Time) {
	s = s.Normalize()
	cur := w.settings
	if s.Scale != cur.Scale {
		w.SetScale(s.Scale)
	}
	w.SetSpeed(s.BaseSpeed)
	w.SetSneakChance(s.SneakChance)
	w.SetMischiefChance(s.MischiefChance)
	if !slices.Equal(s.AllowedMonitors, cur.AllowedMonitors) {
		w.SetAllowedMonitors(s.AllowedMonitors)
	}
	if s.SneakEnabled != cur.SneakEnabled {
		w.SetSneakEnabled(s.SneakEnabled, now)
	}
	w.SetMischiefEnabled(s.MischiefEnabled)
	if s.ChaosMode != cur.ChaosMode {
		w.SetChaosMode(s.ChaosMode, now)
	}
	w.SetFunMode(s.FunMode)
	w.logf("settings: scale=%v speed=%v sneak=%v/%v mischief=%v/%v chaos=%v fun=%v monitors=%v",
		w.settings.Scale, w.settings.BaseSpeed, w.settings.SneakEnabled, w.settings.SneakChance,
		w.settings.MischiefEnabled, w.settings.MischiefChance, w.settings.ChaosMode, w.settings.FunMode,
		w.settings.AllowedMonitors)
}
