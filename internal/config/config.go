// Package config defines the format-agnostic project configuration model.
// Concrete formats (HCL) translate into this model behind the Loader
// interface, so nothing downstream knows what syntax the user wrote.
package config

import (
	"context"
	"errors"
	"fmt"
)

// Loader turns a configuration file into the unified model.
type Loader interface {
	Load(ctx context.Context, path string) (*Model, error)
}

// Model is the unified representation of a project configuration.
type Model struct {
	Project *Project
}

// Project describes one bundling project.
type Project struct {
	// Entries are the dependency specifiers the build starts from,
	// relative to RootDir.
	Entries []string
	// RootDir anchors entry and module resolution. Defaults to the
	// config file's directory.
	RootDir string
	// DistDir receives written bundles. Defaults to "dist" under RootDir.
	DistDir string
	// Context is the target environment, "browser" or "node".
	Context string
	// Workers caps concurrent resolve/transform tasks.
	Workers int
}

// Validate checks the model for the errors a loader cannot catch
// syntactically.
func (m *Model) Validate() error {
	if m.Project == nil {
		return errors.New("config: missing project block")
	}
	p := m.Project
	if len(p.Entries) == 0 {
		return errors.New("config: project needs at least one entry")
	}
	switch p.Context {
	case "browser", "node":
	default:
		return fmt.Errorf("config: unknown environment context %q", p.Context)
	}
	if p.Workers < 0 {
		return errors.New("config: workers must not be negative")
	}
	return nil
}
