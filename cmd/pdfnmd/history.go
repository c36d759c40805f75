// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdfnmd/internal/history"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

// --- history subcommand ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past conversions recorded on this machine",
	Long: `History lists finished conversion attempts from the local history
database, most recent first. --export writes every matching entry as yaml
or json instead of the table.`,
	RunE: runHistory,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count recorded conversions by outcome",
	RunE:  runHistoryStats,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of entries")
	historyCmd.Flags().String("state", "", "only entries in this state: completed or failed")
	historyCmd.Flags().String("name", "", "only entries whose file name contains this text")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	historyCmd.Flags().String("export", "", "export all matches as yaml or json")

	historyCmd.AddCommand(historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	if cfg.History.Disabled {
		return nil, fmt.Errorf("history is disabled in the configuration")
	}
	return history.Open(cfg.History.Dir)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	state, _ := cmd.Flags().GetString("state")
	name, _ := cmd.Flags().GetString("name")
	asJSON, _ := cmd.Flags().GetBool("json")
	export, _ := cmd.Flags().GetString("export")

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	q := history.Query{Limit: limit, State: types.LifecycleState(state), Name: name}

	if export != "" {
		return store.Export(ctx, os.Stdout, export, q)
	}

	entries, err := store.List(ctx, q)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "No conversions recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-20s %-10s %-3s %-30s %s\n", "FINISHED", "STATE", "#", "FILE", "DETAIL")
	for _, e := range entries {
		detail := e.ResultName
		if e.State == types.StateFailed {
			detail = e.ErrorDetail
		}
		fmt.Fprintf(os.Stdout, "%-20s %-10s %-3d %-30s %s\n",
			e.FinishedAt.Local().Format("2006-01-02 15:04:05"), e.State, e.Attempt, truncate(e.Name, 30), detail)
	}
	return nil
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	states := make([]string, 0, len(stats))
	total := 0
	for s, n := range stats {
		states = append(states, string(s))
		total += n
	}
	sort.Strings(states)
	for _, s := range states {
		fmt.Fprintf(os.Stdout, "%-10s %d\n", s+":", stats[types.LifecycleState(s)])
	}
	fmt.Fprintf(os.Stdout, "%-10s %d\n", "total:", total)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
