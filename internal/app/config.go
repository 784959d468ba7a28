package app

import "errors"

// Config holds the process-level settings an App instance runs with.
// Project-level settings come from the project configuration file.
type Config struct {
	// ConfigPath points at the project's .hcl file.
	ConfigPath string

	LogFormat string
	LogLevel  string

	// Workers overrides the project's worker count when positive.
	Workers int
	// Watch keeps the process alive and rebuilds on file changes.
	Watch bool
	// ServeAddr starts the dev server on this address when non-empty.
	// Serving implies watching.
	ServeAddr string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
