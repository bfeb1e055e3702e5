package app

import (
	"errors"
	"fmt"
	"time"
)

// Output formats of the compiled plan.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GraphPath string // hcl file or directory

	LogFormat string
	LogLevel  string

	// Output selects how the plan is written: OutputText or OutputJSON.
	Output string
	// Format prints the declaration in canonical form instead of compiling.
	Format bool
	// Replay runs the compiled plan against the recording device.
	Replay  bool
	Workers int

	PublishURL       string
	PublishNamespace string
	PublishAckEvent  string
	PublishTimeout   time.Duration
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GraphPath == "" {
		return nil, errors.New("GraphPath is a required configuration field and cannot be empty")
	}
	switch cfg.Output {
	case "":
		cfg.Output = OutputText
	case OutputText, OutputJSON:
	default:
		return nil, fmt.Errorf("invalid output %q: must be '%s' or '%s'", cfg.Output, OutputText, OutputJSON)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PublishTimeout < 0 {
		return nil, errors.New("publish timeout cannot be negative")
	}
	return &cfg, nil
}
