// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/nutriscan/internal/config"
	"github.com/ManuGH/nutriscan/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkWritableDir(cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if cfg.History.Enabled {
		if err := checkWritableDir(filepath.Dir(cfg.HistoryPath())); err != nil {
			return fmt.Errorf("history directory check failed: %w", err)
		}
	}
	if len(cfg.Camera.Devices) == 0 {
		logger.Warn().Msg("no camera devices configured; camera capture will report the camera as unavailable")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	probe := filepath.Join(path, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(probe)
	return nil
}
