package config

import (
	"fmt"
	"strings"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	// Environment selects development diagnostics in the frame scheduler
	// (admission stack capture, overrun warnings). "production" or
	// "development"; empty means production.
	Environment string `json:"environment,omitempty"`

	Frames  FramesConfig  `json:"frames"`
	Logging LoggingConfig `json:"logging"`

	// Metronome binds wall-clock schedule specs to jobs registered in code.
	Metronome []MetronomeEntry `json:"metronome,omitempty"`
}

// FramesConfig controls the frame loop.
type FramesConfig struct {
	// Rate is the target frame rate in frames per second. The per-frame
	// drain budget is 1s/rate. Default 60.
	Rate int `json:"rate,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// MetronomeEntry binds one registered job to a schedule spec.
//
// Spec accepts cron expressions ("*/5 * * * *"), cron descriptors
// ("@hourly", "@every 55m") and Go durations ("30s"), with optional
// "cron:" / "every:" forcing prefixes.
type MetronomeEntry struct {
	Name string `json:"name"`
	Spec string `json:"spec"`
	Job  string `json:"job"`
}

// Development reports whether development diagnostics are enabled.
func (c *Config) Development() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvDevelopment)
}

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = EnvProduction
	}
	if c.Frames.Rate == 0 {
		c.Frames.Rate = 60
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configs that would misconfigure the services. It does not
// mutate; call Normalize first.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("environment: must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment)
	}
	if c.Frames.Rate < 1 || c.Frames.Rate > 1000 {
		return fmt.Errorf("frames.rate: must be in [1, 1000], got %d", c.Frames.Rate)
	}
	seen := map[string]bool{}
	for i, m := range c.Metronome {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("metronome[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("metronome[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if strings.TrimSpace(m.Spec) == "" {
			return fmt.Errorf("metronome[%d] %q: spec is required", i, m.Name)
		}
		if strings.TrimSpace(m.Job) == "" {
			return fmt.Errorf("metronome[%d] %q: job is required", i, m.Name)
		}
	}
	return nil
}
