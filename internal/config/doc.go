// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the nutriscan configuration.
//
// Precedence is ENV > YAML file > defaults. The file is parsed strictly:
// unknown keys and trailing documents are rejected. ConfigHolder reloads the
// file on change and notifies registered listeners.
package config
