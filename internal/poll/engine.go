// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package poll tracks conversion tasks by querying their status until they
// finish. Each tracked file has at most one subscription; a subscription's
// next poll is scheduled only after the previous one returned, so requests
// for the same file never overlap.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/pdfnmd/internal/apierr"
	"github.com/pdiddy/pdfnmd/internal/logging"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

// StatusFetcher queries task status. *transport.Client implements it.
type StatusFetcher interface {
	Status(ctx context.Context, taskID string) (*types.TaskStatusResponse, error)
	DownloadURL(taskID string) string
}

// UpdateKind says which transition an Update requests.
type UpdateKind int

const (
	// UpdateProgress keeps the file live with new progress.
	UpdateProgress UpdateKind = iota
	// UpdateCompleted finishes the file successfully.
	UpdateCompleted
	// UpdateFailed finishes the file with an error.
	UpdateFailed
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateProgress:
		return "progress"
	case UpdateCompleted:
		return "completed"
	case UpdateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Update is one status delta delivered to a subscription's handler.
type Update struct {
	FileID  string
	TaskID  string
	Kind    UpdateKind
	Status  types.TaskStatus
	Attempt int

	Progress    int
	DownloadRef string
	Filename    string

	// Err is set for UpdateFailed.
	Err *apierr.Error
}

// Handler applies an update. It returns false when the file is no longer
// interested in updates; the engine then drops the subscription.
type Handler func(Update) bool

// Config controls polling cadence.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

type subscription struct {
	fileID   string
	taskID   string
	attempts int
	cancel   context.CancelFunc
	handler  Handler
}

// Engine owns all active subscriptions.
type Engine struct {
	fetcher StatusFetcher
	cfg     Config
	log     *logging.Logger

	mu   sync.Mutex
	subs map[string]*subscription
	wg   sync.WaitGroup
}

// NewEngine returns an engine polling through fetcher.
func NewEngine(fetcher StatusFetcher, cfg Config, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		fetcher: fetcher,
		cfg:     cfg,
		log:     log,
		subs:    make(map[string]*subscription),
	}
}

// Subscribe starts polling taskID on behalf of fileID. An existing
// subscription for fileID is cancelled first. The first poll is issued
// immediately.
func (e *Engine) Subscribe(fileID, taskID string, h Handler) {
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	if old, ok := e.subs[fileID]; ok {
		old.cancel()
	}
	sub := &subscription{fileID: fileID, taskID: taskID, cancel: cancel, handler: h}
	e.subs[fileID] = sub
	e.wg.Add(1)
	e.mu.Unlock()

	go e.run(ctx, sub)
}

// Cancel stops polling for fileID. It does not wait for an in-flight
// request; that request's result is discarded.
func (e *Engine) Cancel(fileID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, ok := e.subs[fileID]
	if !ok {
		return false
	}
	sub.cancel()
	delete(e.subs, fileID)
	return true
}

// CancelAll stops every subscription.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, sub := range e.subs {
		sub.cancel()
		delete(e.subs, id)
	}
}

// Active reports whether fileID has a subscription.
func (e *Engine) Active(fileID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.subs[fileID]
	return ok
}

// Len returns the number of active subscriptions.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Wait blocks until every polling goroutine has exited. Call it after
// CancelAll, or once all files are terminal.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// current reports whether sub is still the registered subscription.
func (e *Engine) current(sub *subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subs[sub.fileID] == sub
}

// drop removes sub if it is still registered.
func (e *Engine) drop(sub *subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs[sub.fileID] == sub {
		sub.cancel()
		delete(e.subs, sub.fileID)
	}
}

func (e *Engine) run(ctx context.Context, sub *subscription) {
	defer e.wg.Done()
	log := e.log.With(map[string]string{"file_id": sub.fileID, "task_id": sub.taskID})

	for {
		if ctx.Err() != nil {
			return
		}

		sub.attempts++
		if sub.attempts > e.cfg.MaxAttempts {
			log.Warnf("no result after %d polls, giving up", e.cfg.MaxAttempts)
			e.deliver(sub, Update{
				Kind: UpdateFailed,
				Err:  apierr.New(apierr.Timeout, fmt.Sprintf("conversion did not finish after %d status checks", e.cfg.MaxAttempts)),
			})
			e.drop(sub)
			return
		}

		upd, terminal := e.pollOnce(ctx, sub, log)
		if ctx.Err() != nil {
			return
		}
		if upd != nil && !e.deliver(sub, *upd) {
			e.drop(sub)
			return
		}
		if terminal {
			e.drop(sub)
			return
		}

		timer := time.NewTimer(e.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// pollOnce issues one status query and translates the answer. A nil
// update with terminal=false means "keep polling without a change".
func (e *Engine) pollOnce(ctx context.Context, sub *subscription, log *logging.Logger) (*Update, bool) {
	st, err := e.fetcher.Status(ctx, sub.taskID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		if apierr.IsPermanent(err) {
			log.Warnf("status query failed permanently: %v", err)
			return &Update{Kind: UpdateFailed, Err: apierr.FromTransport(err)}, true
		}
		log.Debugf("status query failed (attempt %d/%d): %v", sub.attempts, e.cfg.MaxAttempts, err)
		return nil, false
	}

	switch st.Status {
	case types.TaskPending, types.TaskProcessing:
		return &Update{Kind: UpdateProgress, Status: st.Status, Progress: clamp(st.Progress), Filename: st.Filename}, false

	case types.TaskCompleted:
		ref := e.fetcher.DownloadURL(sub.taskID)
		if st.DownloadURL != nil && *st.DownloadURL != "" {
			ref = *st.DownloadURL
		}
		return &Update{Kind: UpdateCompleted, Status: st.Status, Progress: 100, DownloadRef: ref, Filename: st.Filename}, true

	case types.TaskFailed:
		msg := ""
		if st.Error != nil {
			msg = *st.Error
		}
		return &Update{Kind: UpdateFailed, Status: st.Status, Filename: st.Filename, Err: apierr.New(apierr.ConversionFailed, msg)}, true

	default:
		log.Warnf("unexpected task status %q", st.Status)
		return nil, false
	}
}

// deliver hands upd to the handler unless the subscription was replaced or
// cancelled in the meantime.
func (e *Engine) deliver(sub *subscription, upd Update) bool {
	if !e.current(sub) {
		return false
	}
	upd.FileID = sub.fileID
	upd.TaskID = sub.taskID
	upd.Attempt = sub.attempts
	return sub.handler(upd)
}

func clamp(p int) int {
	return max(0, min(100, p))
}
