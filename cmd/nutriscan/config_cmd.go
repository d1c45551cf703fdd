// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ManuGH/nutriscan/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, validate or print configuration",
}

var (
	initPath    string
	initForce   bool
	dumpFormat  string
	dumpSecrets bool
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.WriteFile(initPath, config.Defaults(), initForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", initPath)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := config.NewLoader(configPath, version).Load(); err != nil {
			return fmt.Errorf("configuration error in %q: %w", configPath, err)
		}
		name := configPath
		if name == "" {
			name = "environment configuration"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", name)
		return nil
	},
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective configuration (defaults, file and environment merged)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.NewLoader(configPath, version).Load()
		if err != nil {
			return err
		}
		if !dumpSecrets && cfg.Cache.Redis.Password != "" {
			cfg.Cache.Redis.Password = "***"
		}

		out := cmd.OutOrStdout()
		switch strings.ToLower(dumpFormat) {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		case "yaml", "":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(cfg)
		default:
			return fmt.Errorf("unknown format %q (want yaml or json)", dumpFormat)
		}
	},
}

func init() {
	configInitCmd.Flags().StringVar(&initPath, "path", "config.yaml", "file to create")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	configDumpCmd.Flags().StringVar(&dumpFormat, "format", "yaml", "output format: yaml or json")
	configDumpCmd.Flags().BoolVar(&dumpSecrets, "show-secrets", false, "print secrets unmasked")
	configCmd.AddCommand(configInitCmd, configValidateCmd, configDumpCmd)
}
