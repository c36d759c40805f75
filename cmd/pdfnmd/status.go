package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// --- status subcommand ---

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the server-side status of a conversion task",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	client, err := newClient()
	if err != nil {
		return err
	}
	st, err := client.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("querying task %s: %w", args[0], err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(os.Stdout, "%-10s %s\n", "task:", st.TaskID)
	fmt.Fprintf(os.Stdout, "%-10s %s\n", "mode:", st.Mode)
	fmt.Fprintf(os.Stdout, "%-10s %s\n", "status:", st.Status)
	fmt.Fprintf(os.Stdout, "%-10s %d%%\n", "progress:", st.Progress)
	if st.Filename != "" {
		fmt.Fprintf(os.Stdout, "%-10s %s\n", "file:", st.Filename)
	}
	if st.DownloadURL != nil {
		fmt.Fprintf(os.Stdout, "%-10s %s\n", "download:", *st.DownloadURL)
	}
	if st.Error != nil {
		fmt.Fprintf(os.Stdout, "%-10s %s\n", "error:", *st.Error)
	}
	return nil
}
