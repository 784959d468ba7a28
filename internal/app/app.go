package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/packden/packden/internal/config"
	"github.com/packden/packden/internal/ctxlog"
	"github.com/packden/packden/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	project  *config.Project
	config   *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	project := model.Project
	logger.Debug("Configuration loaded and translated into unified model.")

	// CLI flags win over the project file.
	if appConfig.Workers > 0 {
		project.Workers = appConfig.Workers
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(project)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All capability modules registered.", "count", len(modules))

	if err := reg.Validate(); err != nil {
		// A mismatch between code and config is a programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		project:  project,
		config:   appConfig,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Project returns the loaded project configuration. This is primarily for
// testing.
func (a *App) Project() *config.Project {
	return a.project
}
