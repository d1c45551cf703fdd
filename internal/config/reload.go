// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// ConfigHolder holds the current configuration and swaps it atomically on
// reload. A failed reload keeps the previous configuration.
type ConfigHolder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []func(old, updated AppConfig)

	watcher  *fsnotify.Watcher
	loopDone chan struct{}
}

// NewConfigHolder creates a holder with an already loaded configuration.
func NewConfigHolder(initial AppConfig, loader *Loader) *ConfigHolder {
	return &ConfigHolder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to run after every successful reload.
func (h *ConfigHolder) OnReload(fn func(old, updated AppConfig)) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload reloads from file and environment. Load validates, so either the
// whole new configuration applies or none of it.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	updated, err := h.loader.Load()
	if err != nil {
		metrics.RecordConfigReload(false)
		h.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = updated
	h.mu.Unlock()

	metrics.RecordConfigReload(true)
	h.logChanges(old, updated)

	h.listenersMu.RLock()
	listeners := append([]func(old, updated AppConfig){}, h.listeners...)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(old, updated)
	}

	h.logger.Info().Str(xglog.FieldEvent, "config.reload_success").Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher watches the config file until ctx is done. The parent
// directory is watched so atomic replace-by-rename is seen. Without a file
// this is a no-op.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().
			Str(xglog.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = watcher
	h.loopDone = make(chan struct{})

	h.logger.Info().
		Str(xglog.FieldEvent, "config.watcher_started").
		Str("path", abs).
		Msg("watching config file for changes")

	go h.watchLoop(ctx, abs)
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context, path string) {
	defer close(h.loopDone)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = h.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().
				Str(xglog.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().
						Err(err).
						Str(xglog.FieldEvent, "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Wait blocks until the watcher loop has exited. It returns immediately if
// no watcher was started.
func (h *ConfigHolder) Wait() {
	if h.loopDone != nil {
		<-h.loopDone
	}
}

func (h *ConfigHolder) logChanges(old, updated AppConfig) {
	if old.Log.Level != updated.Log.Level {
		h.logger.Info().Str("old", old.Log.Level).Str("new", updated.Log.Level).Msg("config changed: log.level")
	}
	if old.Form.ActionURL != updated.Form.ActionURL {
		h.logger.Info().Str("new", updated.Form.ActionURL).Msg("config changed: form.actionUrl")
	}
	if old.Capture.ReloadDelay != updated.Capture.ReloadDelay {
		h.logger.Info().Dur("old", old.Capture.ReloadDelay).Dur("new", updated.Capture.ReloadDelay).
			Msg("config changed: capture.reloadDelay")
	}
	if len(old.Camera.Devices) != len(updated.Camera.Devices) {
		h.logger.Info().Int("old", len(old.Camera.Devices)).Int("new", len(updated.Camera.Devices)).
			Msg("config changed: camera.devices")
	}
	if old.Server.ListenAddr != updated.Server.ListenAddr {
		h.logger.Warn().Str("new", updated.Server.ListenAddr).Msg("server.listenAddr changed; restart required")
	}
}
