// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command nutriscan serves the barcode scanner, the nutrition form and the
// Open Food Facts product search.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nutriscan",
	Short: "Barcode scanning and nutrition data entry service",
	Long: `nutriscan serves a web page that reads product barcodes from a camera
or an uploaded photo, hands the code to a host form, validates nutrition
values and searches Open Food Facts.

Configuration precedence: NUTRISCAN_* environment > YAML file > defaults.

Examples:
  nutriscan serve --config /etc/nutriscan/config.yaml
  nutriscan config init --path ./config.yaml
  nutriscan healthcheck --mode live`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (commit: %s, built: %s)\n", version, commit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.AddCommand(serveCmd, configCmd, healthcheckCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
