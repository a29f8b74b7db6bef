// Package tuning loads the simulation timing constants and the user-facing
// behavior settings from yaml.
package tuning

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("tuning: invalid")

type Tuning struct {
	TickMs           int   `yaml:"tick_ms"`
	OverlayTickMs    int   `yaml:"overlay_tick_ms"`
	ZOrderReassertMs int   `yaml:"zorder_reassert_ms"`
	FrameSize        int   `yaml:"frame_size"`
	Seed             int64 `yaml:"seed"`

	// First bubble and first reveal are delayed after startup.
	FirstBubbleDelayMs int `yaml:"first_bubble_delay_ms"`
	FirstRevealDelayMs int `yaml:"first_reveal_delay_ms"`

	Settings      Settings     `yaml:"settings"`
	Assets        Assets       `yaml:"assets"`
	BubblePhrases []string     `yaml:"bubble_phrases"`
	Reveal        []RevealItem `yaml:"reveal"`
}

// Settings is the configuration surface owned by the settings UI.
type Settings struct {
	Scale           float64  `yaml:"scale" json:"scale"`
	BaseSpeed       float64  `yaml:"base_speed" json:"base_speed"`
	SneakChance     float64  `yaml:"sneak_chance" json:"sneak_chance"`
	MischiefChance  float64  `yaml:"mischief_chance" json:"mischief_chance"`
	AllowedMonitors []string `yaml:"allowed_monitors" json:"allowed_monitors"`
	SneakEnabled    bool     `yaml:"sneak_enabled" json:"sneak_enabled"`
	MischiefEnabled bool     `yaml:"mischief_enabled" json:"mischief_enabled"`
	ChaosMode       bool     `yaml:"chaos_mode" json:"chaos_mode"`
	FunMode         bool     `yaml:"fun_mode" json:"fun_mode"`
}

// Assets names optional sprites. A blank path disables the dependent feature.
type Assets struct {
	ToySprite       string `yaml:"toy_sprite"`
	FootprintSprite string `yaml:"footprint_sprite"`
}

func (a Assets) HasToy() bool       { return strings.TrimSpace(a.ToySprite) != "" }
func (a Assets) HasFootprint() bool { return strings.TrimSpace(a.FootprintSprite) != "" }

// RevealItem is an image the agent can drag in from a screen edge.
type RevealItem struct {
	ID     string  `yaml:"id"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Setting bounds.
const (
	MinScale          = 0.5
	MaxScale          = 4.0
	MinSpeed          = 1.0
	MaxSpeed          = 10.0
	MaxMischiefChance = 0.2
)

func DefaultSettings() Settings {
	return Settings{
		Scale:          2,
		BaseSpeed:      3,
		SneakChance:    0.2,
		MischiefChance: 0.02,
		SneakEnabled:   true,
	}
}

func Defaults() Tuning {
	return Tuning{
		TickMs:             100,
		OverlayTickMs:      16,
		ZOrderReassertMs:   2000,
		FrameSize:          32,
		FirstBubbleDelayMs: 6000,
		FirstRevealDelayMs: 45000,
		Settings:           DefaultSettings(),
		BubblePhrases: []string{
			"squeak!",
			"you've got this",
			"crumbs?",
			"zoom zoom",
			"nap time soon",
			"nice click!",
		},
	}
}

func (t Tuning) TickInterval() time.Duration    { return ms(t.TickMs) }
func (t Tuning) OverlayInterval() time.Duration { return ms(t.OverlayTickMs) }
func (t Tuning) ZOrderInterval() time.Duration  { return ms(t.ZOrderReassertMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	return t, nil
}

// Validate rejects structurally unusable files. Out-of-range settings are not
// errors; Normalize clamps them.
func (t Tuning) Validate() error {
	if t.TickMs < 0 || t.OverlayTickMs < 0 || t.ZOrderReassertMs < 0 || t.FrameSize < 0 {
		return fmt.Errorf("%w: negative timing or frame size", ErrInvalid)
	}
	seen := map[string]bool{}
	for i, it := range t.Reveal {
		if strings.TrimSpace(it.ID) == "" {
			return fmt.Errorf("%w: reveal[%d] missing id", ErrInvalid, i)
		}
		if seen[it.ID] {
			return fmt.Errorf("%w: reveal[%d] duplicate id %q", ErrInvalid, i, it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickMs == 0 {
		t.TickMs = d.TickMs
	}
	if t.OverlayTickMs == 0 {
		t.OverlayTickMs = d.OverlayTickMs
	}
	if t.ZOrderReassertMs == 0 {
		t.ZOrderReassertMs = d.ZOrderReassertMs
	}
	if t.FrameSize == 0 {
		t.FrameSize = d.FrameSize
	}
	for i := range t.Reveal {
		if t.Reveal[i].Width <= 0 {
			t.Reveal[i].Width = 320
		}
		if t.Reveal[i].Height <= 0 {
			t.Reveal[i].Height = 240
		}
	}
	t.Settings = t.Settings.Normalize()
}

// Normalize clamps every setting to its documented bounds. A zero scale or
// speed falls back to the default.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.Scale == 0 || math.IsNaN(s.Scale) {
		s.Scale = d.Scale
	}
	if s.BaseSpeed == 0 || math.IsNaN(s.BaseSpeed) {
		s.BaseSpeed = d.BaseSpeed
	}
	s.Scale = ClampScale(s.Scale)
	s.BaseSpeed = ClampSpeed(s.BaseSpeed)
	s.SneakChance = ClampSneakChance(s.SneakChance)
	s.MischiefChance = ClampMischiefChance(s.MischiefChance)
	return s
}

func ClampScale(v float64) float64          { return clamp(v, MinScale, MaxScale) }
func ClampSpeed(v float64) float64          { return clamp(v, MinSpeed, MaxSpeed) }
func ClampSneakChance(v float64) float64    { return clamp(v, 0, 1) }
func ClampMischiefChance(v float64) float64 { return clamp(v, 0, MaxMischiefChance) }

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
