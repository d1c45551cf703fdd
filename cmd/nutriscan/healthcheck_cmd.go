package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/nutriscan/internal/platform/httpx"
	pnet "github.com/ManuGH/nutriscan/internal/platform/net"
	"github.com/spf13/cobra"
)

var (
	hcAddr    string
	hcMode    string
	hcTimeout time.Duration
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a running server (for container HEALTHCHECK)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), hcTimeout)
		defer cancel()
		if err := probe(ctx, httpx.NewClient(hcTimeout), hcAddr, hcMode); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "healthcheck successful (%s)\n", hcMode)
		return nil
	},
}

func init() {
	healthcheckCmd.Flags().StringVar(&hcAddr, "addr", "localhost:8080", "server address host:port or base URL")
	healthcheckCmd.Flags().StringVar(&hcMode, "mode", "ready", "ready or live")
	healthcheckCmd.Flags().DurationVar(&hcTimeout, "timeout", 5*time.Second, "check timeout")
}

func probe(ctx context.Context, client *http.Client, addr, mode string) error {
	path := "/healthz"
	switch mode {
	case "ready":
		path = "/readyz"
	case "live":
	default:
		return fmt.Errorf("unknown mode %q (want ready or live)", mode)
	}

	base, err := pnet.BaseURL(addr, "http")
	if err != nil {
		return fmt.Errorf("healthcheck address: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck failed (network): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
	}
	return nil
}
