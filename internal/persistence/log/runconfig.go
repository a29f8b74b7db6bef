package log

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/tuning"
)

const runConfigName = "run.yaml"

// RunConfig is what a replay needs besides the journal: the effective tuning
// at startup and the desktop the run was built on. Seed and start time come
// from the journal header.
type RunConfig struct {
	Tuning  tuning.Tuning  `yaml:"tuning"`
	Desktop desktop.Layout `yaml:"desktop"`
}

func WriteRunConfig(runDir string, cfg RunConfig) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := filepath.Join(runDir, runConfigName+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(runDir, runConfigName))
}

func ReadRunConfig(runDir string) (RunConfig, error) {
	var cfg RunConfig
	b, err := os.ReadFile(filepath.Join(runDir, runConfigName))
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", runConfigName, err)
	}
	if err := cfg.Desktop.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: desktop: %w", runConfigName, err)
	}
	return cfg, nil
}
