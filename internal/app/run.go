package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/composer"
	"github.com/packden/packden/internal/ctxlog"
	"github.com/packden/packden/internal/devserver"
	"github.com/packden/packden/internal/engine"
	"github.com/packden/packden/internal/watcher"
)

// settleDelay lets a burst of file events (editor save, git checkout)
// coalesce into one rebuild.
const settleDelay = 50 * time.Millisecond

// Run executes the main application logic: one build, or a watch loop
// with an optional dev server.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	watching := a.config.Watch || a.config.ServeAddr != ""

	var w watcher.Watcher
	if watching {
		fsw, err := watcher.NewFS()
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		// The engine never closes its watcher; the owner does.
		defer fsw.Close()
		w = fsw
	}

	eng, err := engine.New(engine.Options{
		Entries:     a.project.Entries,
		Env:         assetgraph.Environment{Context: a.project.Context},
		Resolver:    a.registry.Resolver(),
		Transformer: a.registry.Transformer(),
		Watcher:     w,
		Concurrency: a.project.Workers,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close()

	comp, err := composer.New(composer.Options{
		Registry:    a.registry,
		RootDir:     a.project.RootDir,
		DistDir:     a.project.DistDir,
		Concurrency: a.project.Workers,
		Progress: func(stage string) {
			a.logger.Info("Build stage.", "stage", stage)
		},
	})
	if err != nil {
		return fmt.Errorf("create composer: %w", err)
	}

	var srv *devserver.Server
	if a.config.ServeAddr != "" {
		srv = devserver.New(devserver.Options{Addr: a.config.ServeAddr, DistDir: a.project.DistDir})
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				a.logger.Error("Dev server stopped.", "error", err)
			}
		}()
	}

	changed := make(chan string, 64)
	if watching {
		eng.OnInvalidate(func(path string) {
			if srv != nil {
				srv.NotifyInvalidate(path)
			}
			select {
			case changed <- path:
			default:
			}
		})
	}

	build := func() error {
		started := time.Now()
		assets, err := eng.Build(ctx)
		if err != nil {
			return err
		}
		bundles, err := comp.Bundle(ctx, assets)
		if err != nil {
			return err
		}
		if err := writeBundles(ctx, bundles); err != nil {
			return err
		}
		a.logger.Info("Build finished.", "bundles", len(bundles.Bundles()), "duration", time.Since(started))
		if srv != nil {
			srv.NotifyBuilt()
		}
		return nil
	}

	if err := build(); err != nil {
		if !watching {
			return err
		}
		// Watch mode outlives build failures; the next change retries.
		a.logger.Error("Build failed.", "error", err)
	}
	if !watching {
		a.logger.Debug("App.Run method finished.")
		return nil
	}

	a.logger.Info("Watching for changes.", "root", a.project.RootDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-changed:
			a.logger.Info("Change detected, rebuilding.", "path", path)
			settle(changed)
			if err := build(); err != nil {
				if errors.Is(err, engine.ErrBuildAborted) {
					// Another change landed mid-build. Its invalidation
					// already queued the next rebuild.
					a.logger.Debug("Build aborted by a newer change.")
					continue
				}
				a.logger.Error("Build failed.", "error", err)
			}
		}
	}
}

// settle waits briefly and drains queued change notifications so one
// editor save triggers one rebuild.
func settle(changed <-chan string) {
	time.Sleep(settleDelay)
	for {
		select {
		case <-changed:
		default:
			return
		}
	}
}
