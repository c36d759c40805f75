package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// --- health subcommand ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the conversion service is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		h, err := client.Health(context.Background())
		if err != nil {
			return fmt.Errorf("service unreachable at %s: %w", cfg.APIURL, err)
		}
		fmt.Fprintf(os.Stdout, "status: %s\n", h.Status)
		if h.Version != "" {
			fmt.Fprintf(os.Stdout, "version: %s\n", h.Version)
		}
		if !h.Healthy() {
			return fmt.Errorf("service reports %q", h.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
