package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdfnmd/internal/download"
	"github.com/pdiddy/pdfnmd/internal/transport"
)

// --- download subcommand ---

var downloadCmd = &cobra.Command{
	Use:   "download <task-id...>",
	Short: "Download results of finished tasks",
	Long: `Download fetches the converted output of one task, or a zip archive
built by the service when several task ids are given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringP("out", "o", ".", "output directory")
	downloadCmd.Flags().String("name", "", "file name for the saved result")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	name, _ := cmd.Flags().GetString("name")
	ctx := context.Background()

	client, err := newClient()
	if err != nil {
		return err
	}
	dl := download.NewCoordinator(client, log)

	res := download.Result{TaskIDs: args, Name: name}
	if len(args) == 1 {
		res.Data, err = dl.DownloadOne(ctx, args[0])
		if err != nil {
			return err
		}
		if res.Name == "" {
			res.Name = singleName(ctx, client, args[0])
		}
	} else {
		res.Data, err = dl.DownloadMany(ctx, args)
		if err != nil {
			return err
		}
		res.Archive = true
		if res.Name == "" {
			res.Name = download.ArchiveName
		}
	}

	path, err := download.Save(outDir, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "saved: %s (%d bytes)\n", path, len(res.Data))
	return nil
}

// singleName asks the service for the result's file name, falling back to
// the task id.
func singleName(ctx context.Context, client *transport.Client, taskID string) string {
	st, err := client.Status(ctx, taskID)
	if err != nil || st.Filename == "" {
		return taskID
	}
	return filepath.Base(st.Filename)
}
