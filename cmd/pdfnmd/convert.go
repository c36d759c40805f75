// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdfnmd/internal/clipboard"
	"github.com/pdiddy/pdfnmd/internal/convert"
	"github.com/pdiddy/pdfnmd/internal/download"
	"github.com/pdiddy/pdfnmd/internal/history"
	"github.com/pdiddy/pdfnmd/internal/progress"
	"github.com/pdiddy/pdfnmd/internal/upload"
	"github.com/pdiddy/pdfnmd/internal/validate"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Upload files, wait for their conversions and download the results",
	Long: `Convert validates the given files against the configured limits, uploads
them in batches of --concurrency, and polls each task until it completes,
fails or times out.

Completed results are saved to --out. With --zip and more than one result,
the service packs them into a single archive. --copy places the first
completed result on the clipboard.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("out", "o", ".", "directory for downloaded results")
	convertCmd.Flags().Bool("zip", false, "download multiple results as one archive")
	convertCmd.Flags().Int("concurrency", 0, "uploads per batch (default from config)")
	convertCmd.Flags().Bool("copy", false, "copy the first completed result to the clipboard")
	convertCmd.Flags().String("manifest", "", "write a YAML manifest of the run to this path")
	convertCmd.Flags().Bool("no-download", false, "leave results on the service")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	zip, _ := cmd.Flags().GetBool("zip")
	limit, _ := cmd.Flags().GetInt("concurrency")
	copyResult, _ := cmd.Flags().GetBool("copy")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	noDownload, _ := cmd.Flags().GetBool("no-download")
	if limit <= 0 {
		limit = cfg.Upload.Concurrent
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient()
	if err != nil {
		return err
	}

	var sources []types.SourceFile
	var unreadable int
	for _, path := range args {
		src, err := validate.FromPath(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipped: %s (%v)\n", path, err)
			unreadable++
			continue
		}
		sources = append(sources, src)
	}

	renderer := progress.New(os.Stderr)
	deps := convert.Deps{
		Client:    client,
		Clipboard: systemClipboard(),
		Notifier:  convert.NotifierFunc(logNotification),
		Observer:  renderer,
		Log:       log,
	}
	if !cfg.History.Disabled {
		store, err := history.Open(cfg.History.Dir)
		if err != nil {
			log.Warnf("history disabled: %v", err)
		} else {
			defer store.Close()
			deps.Recorder = store
		}
	}

	ctrl, err := convert.New(cfg, deps)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	added, rejected := ctrl.AddFiles(sources)
	for _, r := range rejected {
		fmt.Fprintf(os.Stderr, "rejected: %s (%s)\n", r.File.Name, r.Message)
	}
	if len(added) == 0 {
		renderer.Shutdown()
		return errors.New("no files to convert")
	}

	log.Infof("converting %d file(s) (%s)", len(added), ctrl.Mode())
	uploads := upload.Summarize(ctrl.StartConversion(ctx, nil, limit))
	log.Infof("uploaded %d of %d file(s) in %d batch(es)", uploads.Uploaded, uploads.Total(), uploads.Batches)
	if uploads.HasFailures() {
		log.Warnf("%d upload(s) failed", uploads.Failed)
	}
	waitErr := ctrl.Wait(ctx)
	renderer.Shutdown()
	if waitErr != nil {
		fmt.Fprintln(os.Stderr, "interrupted, outstanding conversions abandoned")
	}

	files := ctrl.Snapshot()
	var saved []string
	if !noDownload && waitErr == nil {
		saved, err = saveResults(ctx, download.NewCoordinator(client, log), files, outDir, zip)
		if err != nil && !errors.Is(err, download.ErrNothingToDownload) {
			fmt.Fprintln(os.Stderr, "download failed:", err)
		}
	}

	if copyResult && waitErr == nil {
		copyFirst(ctx, ctrl, files)
		files = ctrl.Snapshot()
	}

	for _, f := range files {
		switch f.State {
		case types.StateCompleted, types.StateCopied:
			fmt.Printf("converted: %s -> %s\n", f.Source.Name, download.ResultName(f))
		case types.StateFailed:
			fmt.Printf("failed: %s (%s)\n", f.Source.Name, f.ErrorDetail)
		default:
			fmt.Printf("unfinished: %s (%s)\n", f.Source.Name, f.State)
		}
	}
	for _, p := range saved {
		fmt.Printf("saved: %s\n", p)
	}

	if manifestPath != "" {
		if err := writeManifest(manifestPath, ctrl.Mode(), files, saved); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "manifest written to %s\n", manifestPath)
	}

	counts := ctrl.Counts()
	failed := counts.Failed + len(rejected) + unreadable
	fmt.Printf("\nBatch summary: %d completed, %d failed (total: %d)\n",
		counts.Completed, failed, counts.Total()+len(rejected)+unreadable)

	if waitErr != nil {
		return waitErr
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// saveResults downloads every completed file into outDir. Without zip each
// result is fetched on its own.
func saveResults(ctx context.Context, dl *download.Coordinator, files []types.TrackedFile, outDir string, zip bool) ([]string, error) {
	if zip {
		res, err := dl.DownloadAll(ctx, files)
		if err != nil {
			return nil, err
		}
		path, err := download.Save(outDir, res)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var saved []string
	var errs []error
	for _, f := range files {
		if (f.State != types.StateCompleted && f.State != types.StateCopied) || f.TaskID == "" {
			continue
		}
		data, err := dl.DownloadOne(ctx, f.TaskID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		path, err := download.Save(outDir, download.Result{Name: download.ResultName(f), Data: data, TaskIDs: []string{f.TaskID}})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		saved = append(saved, path)
	}
	if len(saved) == 0 && len(errs) == 0 {
		return nil, download.ErrNothingToDownload
	}
	return saved, errors.Join(errs...)
}

func copyFirst(ctx context.Context, ctrl *convert.Controller, files []types.TrackedFile) {
	for _, f := range files {
		if f.State != types.StateCompleted {
			continue
		}
		if err := ctrl.CopyResult(ctx, f.ID); err != nil {
			fmt.Fprintln(os.Stderr, "copy failed:", err)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "nothing to copy: no completed conversion")
}

func systemClipboard() convert.Clipboard {
	if clipboard.Available() {
		return clipboard.System{}
	}
	return &clipboard.Memory{}
}

func logNotification(n convert.Notification) {
	l := log.With(map[string]string{"file": n.FileName, "event": string(n.Event)})
	switch n.Level {
	case convert.LevelError:
		l.Warnf("%s", n.Message)
	default:
		l.Debugf("%s", n.Message)
	}
}
