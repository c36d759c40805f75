// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches conversion results, one file at a time or as a
// server-built archive, and saves them to disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pdfnmd/internal/logging"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

// ArchiveName is the file name used for multi-file downloads.
const ArchiveName = "pdfnmd-converted.zip"

// ErrNothingToDownload is returned when no completed file was given.
var ErrNothingToDownload = errors.New("no completed conversions to download")

// Fetcher retrieves result bytes. *transport.Client implements it.
type Fetcher interface {
	Download(ctx context.Context, taskID string) ([]byte, error)
	DownloadBatch(ctx context.Context, taskIDs []string) ([]byte, error)
}

// Result is downloaded content plus the file name to save it under.
type Result struct {
	Name    string
	Data    []byte
	TaskIDs []string
	Archive bool
}

// Coordinator chooses between single and batch downloads.
type Coordinator struct {
	fetcher Fetcher
	log     *logging.Logger
}

// NewCoordinator returns a Coordinator using f.
func NewCoordinator(f Fetcher, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	return &Coordinator{fetcher: f, log: log}
}

// DownloadOne returns the converted output of one task.
func (c *Coordinator) DownloadOne(ctx context.Context, taskID string) ([]byte, error) {
	if taskID == "" {
		return nil, errors.New("download: empty task id")
	}
	data, err := c.fetcher.Download(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", taskID, err)
	}
	c.log.Debugf("downloaded %s (%d bytes)", taskID, len(data))
	return data, nil
}

// DownloadMany returns a server-built archive of the given tasks. The
// client never builds archives itself.
func (c *Coordinator) DownloadMany(ctx context.Context, taskIDs []string) ([]byte, error) {
	if len(taskIDs) == 0 {
		return nil, ErrNothingToDownload
	}
	data, err := c.fetcher.DownloadBatch(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("downloading %d results: %w", len(taskIDs), err)
	}
	c.log.Debugf("downloaded archive of %d results (%d bytes)", len(taskIDs), len(data))
	return data, nil
}

// DownloadAll downloads every completed file in files. A single file is
// fetched directly under its result name; several are fetched as one
// archive named ArchiveName.
func (c *Coordinator) DownloadAll(ctx context.Context, files []types.TrackedFile) (Result, error) {
	var done []types.TrackedFile
	for _, f := range files {
		if (f.State == types.StateCompleted || f.State == types.StateCopied) && f.TaskID != "" {
			done = append(done, f)
		}
	}

	switch len(done) {
	case 0:
		return Result{}, ErrNothingToDownload
	case 1:
		data, err := c.DownloadOne(ctx, done[0].TaskID)
		if err != nil {
			return Result{}, err
		}
		return Result{Name: ResultName(done[0]), Data: data, TaskIDs: []string{done[0].TaskID}}, nil
	}

	ids := make([]string, len(done))
	for i, f := range done {
		ids[i] = f.TaskID
	}
	data, err := c.DownloadMany(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	return Result{Name: ArchiveName, Data: data, TaskIDs: ids, Archive: true}, nil
}

// ResultName returns the file name for a converted file: the name the
// service reported, or the source name with the output extension.
func ResultName(f types.TrackedFile) string {
	if f.ResultName != "" {
		return filepath.Base(f.ResultName)
	}
	name := filepath.Base(f.Source.Name)
	ext := filepath.Ext(name)
	out := ".pdf"
	if strings.EqualFold(ext, ".pdf") {
		out = ".md"
	}
	return strings.TrimSuffix(name, ext) + out
}

// Save writes r into dir and returns the written path. The file appears
// atomically: it is written to a temp file first and renamed into place.
func Save(dir string, r Result) (string, error) {
	if r.Name == "" {
		return "", errors.New("save: result has no name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(r.Name))

	tmpFile, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(r.Data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return dest, nil
}
