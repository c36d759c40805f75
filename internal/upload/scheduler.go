// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upload submits files to the conversion service in bounded,
// strictly ordered batches.
package upload

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"

	"github.com/pdiddy/pdfnmd/pkg/types"
)

// Job is one file to upload. Gen identifies the conversion attempt the
// job belongs to so late results can be discarded by the owner.
type Job struct {
	FileID string
	Gen    uint64
	File   types.SourceFile

	// Ctx, when set, scopes this job alone; cancelling it aborts only this
	// upload.
	Ctx context.Context
}

// Outcome is the result of one upload: a task ID or an error.
type Outcome struct {
	FileID string
	Gen    uint64
	Batch  int
	TaskID string
	Err    error
}

// Func uploads one file and returns the server-assigned task ID.
// onProgress receives upload progress 0-100.
type Func func(ctx context.Context, file types.SourceFile, onProgress func(int)) (string, error)

// Hooks receive per-file events as they happen. Either may be nil.
type Hooks struct {
	OnProgress func(job Job, percent int)
	OnDone     func(o Outcome)
}

// BatchResult summarizes a Schedule run.
type BatchResult struct {
	Uploaded int
	Failed   int
	Batches  int
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return r.Uploaded + r.Failed
}

// HasFailures reports whether any upload failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Summarize counts outcomes.
func Summarize(outcomes []Outcome) BatchResult {
	var r BatchResult
	for _, o := range outcomes {
		if o.Err != nil {
			r.Failed++
		} else {
			r.Uploaded++
		}
		if o.Batch+1 > r.Batches {
			r.Batches = o.Batch + 1
		}
	}
	return r
}

// Scheduler runs uploads batch by batch.
type Scheduler struct{}

// NewScheduler returns a Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule uploads jobs in consecutive batches of size limit. All uploads
// in a batch run concurrently and the next batch starts only after every
// upload in the current one has finished, successfully or not. A failed
// upload never cancels its siblings. Outcomes are returned in job order.
//
// If ctx is cancelled, remaining batches are not started and their jobs
// report ctx.Err().
func (s *Scheduler) Schedule(ctx context.Context, jobs []Job, limit int, upload Func, hooks Hooks) []Outcome {
	if limit <= 0 {
		limit = 1
	}
	outcomes := make([]Outcome, len(jobs))

	for start, batch := 0, 0; start < len(jobs); start, batch = start+limit, batch+1 {
		end := min(start+limit, len(jobs))

		if err := ctx.Err(); err != nil {
			for i := start; i < len(jobs); i++ {
				outcomes[i] = Outcome{FileID: jobs[i].FileID, Gen: jobs[i].Gen, Batch: batch, Err: err}
				if hooks.OnDone != nil {
					hooks.OnDone(outcomes[i])
				}
			}
			break
		}

		var wg conc.WaitGroup
		for i := start; i < end; i++ {
			i, b := i, batch
			wg.Go(func() {
				outcomes[i] = s.run(ctx, jobs[i], b, upload, hooks)
			})
		}
		wg.Wait()
	}
	return outcomes
}

func (s *Scheduler) run(ctx context.Context, job Job, batch int, upload Func, hooks Hooks) (out Outcome) {
	out = Outcome{FileID: job.FileID, Gen: job.Gen, Batch: batch}
	defer func() {
		if r := recover(); r != nil {
			out.TaskID = ""
			out.Err = fmt.Errorf("upload of %s panicked: %v", job.File.Name, r)
		}
		if hooks.OnDone != nil {
			hooks.OnDone(out)
		}
	}()

	jobCtx := ctx
	if job.Ctx != nil {
		jobCtx = job.Ctx
	}

	var onProgress func(int)
	if hooks.OnProgress != nil {
		onProgress = func(p int) { hooks.OnProgress(job, p) }
	}

	taskID, err := upload(jobCtx, job.File, onProgress)
	if err == nil && taskID == "" {
		err = fmt.Errorf("service returned no task id for %s", job.File.Name)
	}
	out.TaskID, out.Err = taskID, err
	if err != nil {
		out.TaskID = ""
	}
	return out
}
