// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ManuGH/nutriscan/internal/config"
	"github.com/ManuGH/nutriscan/internal/daemon"
	"github.com/ManuGH/nutriscan/internal/health"
	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/telemetry"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, configPath)
	},
}

func runServe(ctx context.Context, path string) error {
	loader := config.NewLoader(path, version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{Level: cfg.Log.Level, Version: version})
	logger := xglog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("configuration loaded")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "nutriscan",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	holder := config.NewConfigHolder(cfg, loader)
	comps, err := buildComponents(ctx, holder)
	if err != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	handler, err := comps.handler()
	if err != nil {
		comps.close(context.WithoutCancel(ctx))
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{Logger: logger, Handler: handler})
	if err != nil {
		comps.close(context.WithoutCancel(ctx))
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("components", func(ctx context.Context) error {
		comps.close(ctx)
		return nil
	})

	holder.OnReload(func(old, updated config.AppConfig) {
		if old.Log.Level != updated.Log.Level {
			xglog.Configure(xglog.Config{Level: updated.Log.Level, Version: version})
		}
		comps.applyConfig(updated)
	})

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Server.ListenAddr).
		Str("cache", cfg.Cache.Backend).
		Bool("history", cfg.History.Enabled).
		Int("camera_devices", len(cfg.Camera.Devices)).
		Msg("starting nutriscan")

	if err := daemon.NewApp(logger, mgr, holder).Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("server exiting")
	return nil
}
