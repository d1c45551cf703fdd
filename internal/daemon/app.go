// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/nutriscan/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App owns the long-lived runtime (config watcher, reload signal) and
// delegates serving to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	reloadSignal os.Signal
}

// NewApp creates an App. cfgHolder may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)

	// best effort: a missing watcher must not block startup
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(gctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, a.reloadSignal)
			defer signal.Stop(hup)

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hup:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.cfgHolder.Reload(gctx); err != nil {
						a.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error { return a.manager.Start(gctx) })

	err := g.Wait()
	if a.cfgHolder != nil {
		a.cfgHolder.Wait()
	}
	return err
}
