// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert owns the set of tracked files and drives each one through
// its conversion lifecycle:
//
//	idle -> uploading -> pending -> processing -> completed <-> copied
//	                \-------------------\-----------> failed -> uploading (retry)
//
// The controller is the only writer of TrackedFile state. The upload
// scheduler and the polling engine report results through controller
// callbacks, and every callback checks that the file still exists and
// belongs to the same attempt before mutating anything.
package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/pdfnmd/internal/apierr"
	"github.com/pdiddy/pdfnmd/internal/logging"
	"github.com/pdiddy/pdfnmd/internal/poll"
	"github.com/pdiddy/pdfnmd/internal/transport"
	"github.com/pdiddy/pdfnmd/internal/upload"
	"github.com/pdiddy/pdfnmd/internal/validate"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

var (
	// ErrNotFound is returned for an unknown or removed file id.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidState is returned when an operation is not allowed in the
	// file's current lifecycle state.
	ErrInvalidState = errors.New("operation not allowed in current state")
)

// Client is the subset of the service API the controller needs.
// *transport.Client implements it.
type Client interface {
	Convert(ctx context.Context, file types.SourceFile, mode types.ConversionMode, onProgress transport.ProgressFunc) (*types.ConvertResponse, error)
	Status(ctx context.Context, taskID string) (*types.TaskStatusResponse, error)
	Content(ctx context.Context, taskID string) (*types.ContentResponse, error)
	DownloadURL(taskID string) string
}

// Clipboard receives copied conversion results.
type Clipboard interface {
	WriteText(text string) error
}

// Observer is told about every state change, in the order the changes
// happen. Calls are made with the controller lock held: implementations
// must return quickly and must not call back into the Controller.
type Observer interface {
	Changed(f types.TrackedFile)
	Removed(id string)
}

// Recorder persists files that reached a terminal state.
type Recorder interface {
	Record(ctx context.Context, f types.TrackedFile) error
}

// Deps are the controller's collaborators. Only Client is required.
type Deps struct {
	Client    Client
	Clipboard Clipboard
	Notifier  Notifier
	Observer  Observer
	Recorder  Recorder
	Log       *logging.Logger
}

type entry struct {
	file types.TrackedFile

	// gen changes on every new attempt. Callbacks carry the gen they were
	// started with and are ignored when it no longer matches.
	gen          uint64
	cancelUpload context.CancelFunc

	copySeq   uint64
	copyTimer *time.Timer
}

// Controller tracks files for one session.
type Controller struct {
	client    Client
	cfg       types.ClientConfig
	gate      *validate.Gate
	scheduler *upload.Scheduler
	engine    *poll.Engine

	clipboard Clipboard
	notifier  Notifier
	observer  Observer
	recorder  Recorder
	log       *logging.Logger
	now       func() time.Time

	mu      sync.Mutex
	files   map[string]*entry
	order   []string
	nextGen uint64
	changed chan struct{}
}

// New returns a controller for cfg.Mode using deps.
func New(cfg types.ClientConfig, deps Deps) (*Controller, error) {
	if deps.Client == nil {
		return nil, errors.New("convert: client is required")
	}
	gate, err := validate.NewGate(cfg.Limits, cfg.Mode)
	if err != nil {
		return nil, err
	}
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}

	c := &Controller{
		client:    deps.Client,
		cfg:       cfg,
		gate:      gate,
		scheduler: upload.NewScheduler(),
		clipboard: deps.Clipboard,
		notifier:  deps.Notifier,
		observer:  deps.Observer,
		recorder:  deps.Recorder,
		log:       log,
		now:       time.Now,
		files:     make(map[string]*entry),
		changed:   make(chan struct{}),
	}
	c.engine = poll.NewEngine(deps.Client, poll.Config{
		Interval:    cfg.Polling.Interval,
		MaxAttempts: cfg.Polling.MaxAttempts,
	}, log)
	return c, nil
}

// Mode returns the conversion mode files are validated and converted for.
func (c *Controller) Mode() types.ConversionMode {
	return c.gate.Mode()
}

// AddFiles validates raw against the current tracked count and appends the
// accepted files as idle. Rejected files leave the tracked set unchanged.
func (c *Controller) AddFiles(raw []types.SourceFile) ([]types.TrackedFile, []types.Rejection) {
	c.mu.Lock()
	res := c.gate.Validate(raw, len(c.files))
	added := make([]types.TrackedFile, 0, len(res.Accepted))
	now := c.now()
	for _, src := range res.Accepted {
		f := types.TrackedFile{
			ID:        uuid.NewString(),
			Source:    src,
			State:     types.StateIdle,
			AddedAt:   now,
			UpdatedAt: now,
		}
		e := &entry{file: f}
		c.files[f.ID] = e
		c.order = append(c.order, f.ID)
		added = append(added, f)
		c.publishLocked(e)
	}
	c.mu.Unlock()

	for _, r := range res.Rejected {
		c.log.Debugf("rejected %s: %s", r.File.Name, r.Message)
	}
	return added, res.Rejected
}

// StartConversion uploads the given files, or every idle and failed file
// when ids is empty. Files that are not idle or failed are skipped.
// Successful uploads move to pending and start polling; failed uploads
// move to failed without affecting the others. It returns when every
// upload has finished. limit <= 0 uses the configured concurrency.
func (c *Controller) StartConversion(ctx context.Context, ids []string, limit int) []upload.Outcome {
	c.mu.Lock()
	targets := ids
	if len(targets) == 0 {
		targets = c.order
	}
	var jobs []upload.Job
	for _, id := range targets {
		e, ok := c.files[id]
		if !ok || (e.file.State != types.StateIdle && e.file.State != types.StateFailed) {
			continue
		}
		jobs = append(jobs, c.beginAttemptLocked(ctx, e))
	}
	c.mu.Unlock()

	return c.runUploads(ctx, jobs, limit)
}

// Retry starts a new attempt for a failed file: progress and error are
// reset and the file is uploaded again under a new task.
func (c *Controller) Retry(ctx context.Context, id string) (upload.Outcome, error) {
	c.mu.Lock()
	e, ok := c.files[id]
	if !ok {
		c.mu.Unlock()
		return upload.Outcome{}, fmt.Errorf("retry %s: %w", id, ErrNotFound)
	}
	if e.file.State != types.StateFailed {
		state := e.file.State
		c.mu.Unlock()
		return upload.Outcome{}, fmt.Errorf("retry %s in state %s: %w", id, state, ErrInvalidState)
	}
	job := c.beginAttemptLocked(ctx, e)
	c.mu.Unlock()

	out := c.runUploads(ctx, []upload.Job{job}, 1)
	return out[0], nil
}

// beginAttemptLocked resets e for a new attempt and moves it to uploading.
func (c *Controller) beginAttemptLocked(ctx context.Context, e *entry) upload.Job {
	c.nextGen++
	e.gen = c.nextGen
	c.stopCopyTimerLocked(e)

	e.file.Attempt++
	e.file.State = types.StateUploading
	e.file.Progress = 0
	e.file.TaskID = ""
	e.file.DownloadRef = ""
	e.file.ResultName = ""
	e.file.ErrorKind = ""
	e.file.ErrorDetail = ""
	e.file.UpdatedAt = c.now()

	jobCtx, cancel := context.WithCancel(ctx)
	e.cancelUpload = cancel
	c.publishLocked(e)

	return upload.Job{FileID: e.file.ID, Gen: e.gen, File: e.file.Source, Ctx: jobCtx}
}

func (c *Controller) runUploads(ctx context.Context, jobs []upload.Job, limit int) []upload.Outcome {
	if len(jobs) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = c.cfg.Upload.Concurrent
	}
	c.log.Debugf("uploading %d file(s), %d at a time", len(jobs), limit)
	return c.scheduler.Schedule(ctx, jobs, limit, c.uploadOne, upload.Hooks{
		OnProgress: c.uploadProgress,
		OnDone:     c.uploadDone,
	})
}

func (c *Controller) uploadOne(ctx context.Context, f types.SourceFile, onProgress func(int)) (string, error) {
	resp, err := c.client.Convert(ctx, f, c.gate.Mode(), onProgress)
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Controller) uploadProgress(job upload.Job, percent int) {
	c.mu.Lock()
	e := c.attemptLocked(job.FileID, job.Gen)
	if e == nil || e.file.State != types.StateUploading || percent <= e.file.Progress {
		c.mu.Unlock()
		return
	}
	e.file.Progress = min(percent, 100)
	e.file.UpdatedAt = c.now()
	c.publishLocked(e)
	c.mu.Unlock()
}

func (c *Controller) uploadDone(o upload.Outcome) {
	c.mu.Lock()
	e := c.attemptLocked(o.FileID, o.Gen)
	if e == nil || e.file.State != types.StateUploading {
		c.mu.Unlock()
		return
	}
	if e.cancelUpload != nil {
		e.cancelUpload()
		e.cancelUpload = nil
	}

	if o.Err != nil {
		ae := apierr.FromTransport(o.Err)
		c.failLocked(e, ae)
		c.publishLocked(e)
		f := e.file
		c.mu.Unlock()

		c.log.With(map[string]string{"file_id": f.ID}).Warnf("upload of %s failed: %v", f.Source.Name, ae)
		c.notify(Notification{Level: LevelError, Event: EventUploadFailed, FileID: f.ID, FileName: f.Source.Name, Message: ae.Message})
		c.record(f)
		return
	}

	// Progress restarts at 0 for the conversion phase.
	e.file.TaskID = o.TaskID
	e.file.State = types.StatePending
	e.file.Progress = 0
	e.file.UpdatedAt = c.now()
	c.publishLocked(e)
	c.engine.Subscribe(e.file.ID, o.TaskID, c.pollHandler(e.file.ID, e.gen))
	f := e.file
	c.mu.Unlock()

	c.log.With(map[string]string{"file_id": f.ID, "task_id": f.TaskID}).Debugf("uploaded %s", f.Source.Name)
}

// pollHandler applies polling updates for one attempt of one file.
func (c *Controller) pollHandler(id string, gen uint64) poll.Handler {
	return func(u poll.Update) bool {
		c.mu.Lock()
		e := c.attemptLocked(id, gen)
		if e == nil || (e.file.State != types.StatePending && e.file.State != types.StateProcessing) {
			c.mu.Unlock()
			return false
		}

		var n *Notification
		switch u.Kind {
		case poll.UpdateProgress:
			if u.Status == types.TaskProcessing {
				e.file.State = types.StateProcessing
			}
			if u.Progress > e.file.Progress {
				e.file.Progress = u.Progress
			}
			if u.Filename != "" {
				e.file.ResultName = u.Filename
			}

		case poll.UpdateCompleted:
			e.file.State = types.StateCompleted
			e.file.Progress = 100
			e.file.DownloadRef = u.DownloadRef
			if u.Filename != "" {
				e.file.ResultName = u.Filename
			}
			n = &Notification{Level: LevelSuccess, Event: EventCompleted, Message: "conversion completed"}

		case poll.UpdateFailed:
			c.failLocked(e, u.Err)
			ev := EventFailed
			if u.Err != nil && u.Err.Kind == apierr.Timeout {
				ev = EventTimedOut
			}
			n = &Notification{Level: LevelError, Event: ev, Message: e.file.ErrorDetail}
		}

		terminal := e.file.State.Terminal()
		if terminal {
			c.engine.Cancel(id)
		}
		e.file.UpdatedAt = c.now()
		c.publishLocked(e)
		f := e.file
		c.mu.Unlock()

		if n != nil {
			n.FileID, n.FileName = f.ID, f.Source.Name
			c.notify(*n)
		}
		if terminal {
			c.record(f)
		}
		return !terminal
	}
}

func (c *Controller) failLocked(e *entry, ae *apierr.Error) {
	if ae == nil {
		ae = apierr.New(apierr.Unknown, "")
	}
	e.file.State = types.StateFailed
	e.file.DownloadRef = ""
	e.file.ErrorKind = string(ae.Kind)
	e.file.ErrorDetail = ae.Message
	e.file.UpdatedAt = c.now()
}

// attemptLocked returns the entry for id if it still exists and is on
// attempt gen.
func (c *Controller) attemptLocked(id string, gen uint64) *entry {
	e, ok := c.files[id]
	if !ok || e.gen != gen {
		return nil
	}
	return e
}

// RemoveFile cancels any upload, poll or copy timer for id and drops it.
func (c *Controller) RemoveFile(id string) error {
	c.mu.Lock()
	e, ok := c.files[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	c.releaseLocked(e)
	c.engine.Cancel(id)
	delete(c.files, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	c.broadcastLocked()
	if c.observer != nil {
		c.observer.Removed(id)
	}
	c.mu.Unlock()
	return nil
}

// ClearAll cancels all activity and empties the tracked set.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	c.engine.CancelAll()
	ids := c.order
	for _, e := range c.files {
		c.releaseLocked(e)
	}
	c.files = make(map[string]*entry)
	c.order = nil
	c.broadcastLocked()
	if c.observer != nil {
		for _, id := range ids {
			c.observer.Removed(id)
		}
	}
	c.mu.Unlock()
}

func (c *Controller) releaseLocked(e *entry) {
	if e.cancelUpload != nil {
		e.cancelUpload()
		e.cancelUpload = nil
	}
	c.stopCopyTimerLocked(e)
}

// Close stops polling and waits for polling goroutines to exit. Tracked
// files keep their last state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.engine.CancelAll()
	for _, e := range c.files {
		c.releaseLocked(e)
	}
	c.mu.Unlock()
	c.engine.Wait()
}

// File returns a copy of the tracked file with id.
func (c *Controller) File(id string) (types.TrackedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.files[id]
	if !ok {
		return types.TrackedFile{}, false
	}
	return e.file, true
}

// Snapshot returns copies of all tracked files in the order they were added.
func (c *Controller) Snapshot() []types.TrackedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.TrackedFile, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.files[id].file)
	}
	return out
}

// Polling reports whether id has an active status subscription.
func (c *Controller) Polling(id string) bool {
	return c.engine.Active(id)
}

// Counts tallies tracked files by lifecycle group.
type Counts struct {
	Idle      int
	Live      int
	Completed int
	Failed    int
}

// Total returns the number of tracked files.
func (n Counts) Total() int {
	return n.Idle + n.Live + n.Completed + n.Failed
}

// Counts returns the current tally.
func (c *Controller) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n Counts
	for _, e := range c.files {
		switch s := e.file.State; {
		case s == types.StateIdle:
			n.Idle++
		case s.Live():
			n.Live++
		case s == types.StateFailed:
			n.Failed++
		default:
			n.Completed++
		}
	}
	return n
}

// Wait blocks until no tracked file is uploading, pending or processing.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		live := false
		for _, e := range c.files {
			if e.file.State.Live() {
				live = true
				break
			}
		}
		ch := c.changed
		c.mu.Unlock()

		if !live {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) broadcastLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// publishLocked wakes Wait callers and reports e to the observer.
func (c *Controller) publishLocked(e *entry) {
	c.broadcastLocked()
	if c.observer != nil {
		c.observer.Changed(e.file)
	}
}

func (c *Controller) record(f types.TrackedFile) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(context.Background(), f); err != nil {
		c.log.Warnf("recording %s: %v", f.Source.Name, err)
	}
}
