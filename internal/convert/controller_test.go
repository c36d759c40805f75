// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdfnmd/internal/apierr"
	"github.com/pdiddy/pdfnmd/internal/transport"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

// fakeClient implements Client. Uploads succeed unless the file name is in
// failUploads; each successful upload gets a fresh task id. Status answers
// come from statusFn, defaulting to "completed".
type fakeClient struct {
	mu          sync.Mutex
	failUploads map[string]int // remaining failures per file name
	uploadGate  chan struct{}
	uploads     int
	statusCalls map[string]int
	statusFn    func(taskID string, call int) (*types.TaskStatusResponse, error)
	content     string
}

func newFakeClient() *fakeClient {
	return &fakeClient{failUploads: map[string]int{}, statusCalls: map[string]int{}, content: "# converted"}
}

func (f *fakeClient) Convert(ctx context.Context, file types.SourceFile, _ types.ConversionMode, onProgress transport.ProgressFunc) (*types.ConvertResponse, error) {
	f.mu.Lock()
	gate := f.uploadGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if onProgress != nil {
		onProgress(40)
		onProgress(100)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUploads[file.Name] > 0 {
		f.failUploads[file.Name]--
		return nil, apierr.New(apierr.NetworkError, "connection reset")
	}
	f.uploads++
	return &types.ConvertResponse{TaskID: fmt.Sprintf("task-%s-%d", file.Name, f.uploads), Status: types.TaskPending}, nil
}

func (f *fakeClient) Status(_ context.Context, taskID string) (*types.TaskStatusResponse, error) {
	f.mu.Lock()
	f.statusCalls[taskID]++
	n := f.statusCalls[taskID]
	fn := f.statusFn
	f.mu.Unlock()
	if fn == nil {
		return &types.TaskStatusResponse{TaskID: taskID, Status: types.TaskCompleted, Progress: 100, Filename: "out.md"}, nil
	}
	return fn(taskID, n)
}

func (f *fakeClient) Content(_ context.Context, taskID string) (*types.ContentResponse, error) {
	return &types.ContentResponse{TaskID: taskID, Content: f.content, Format: "markdown"}, nil
}

func (f *fakeClient) DownloadURL(taskID string) string {
	return "/api/download/" + taskID
}

func (f *fakeClient) calls(taskID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[taskID]
}

type fakeClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (c *fakeClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

// events records observer calls, notifications and history writes.
type events struct {
	mu       sync.Mutex
	changes  map[string][]types.TrackedFile
	removed  []string
	notes    []Notification
	recorded []types.TrackedFile
}

func newEvents() *events {
	return &events{changes: map[string][]types.TrackedFile{}}
}

func (e *events) Changed(f types.TrackedFile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes[f.ID] = append(e.changes[f.ID], f)
}

func (e *events) Removed(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, id)
}

func (e *events) Notify(n Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notes = append(e.notes, n)
}

func (e *events) Record(_ context.Context, f types.TrackedFile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorded = append(e.recorded, f)
	return nil
}

func (e *events) history(id string) []types.TrackedFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.TrackedFile(nil), e.changes[id]...)
}

func (e *events) records() []types.TrackedFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.TrackedFile(nil), e.recorded...)
}

func (e *events) removedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.removed...)
}

func (e *events) notifications() []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Notification(nil), e.notes...)
}

func testConfig() types.ClientConfig {
	return types.ClientConfig{
		Mode:            types.ModePDFToMarkdown,
		CopyRevertDelay: 30 * time.Millisecond,
		Limits:          types.LimitsConfig{MaxFiles: 20, MaxFileSizeMB: 20, MaxTotalSizeMB: 100},
		Polling:         types.PollingConfig{Interval: 2 * time.Millisecond, MaxAttempts: 50},
		Upload:          types.UploadConfig{Concurrent: 3},
	}
}

type harness struct {
	c      *Controller
	client *fakeClient
	clip   *fakeClipboard
	ev     *events
}

func newHarness(t *testing.T, cfg types.ClientConfig) *harness {
	t.Helper()
	h := &harness{client: newFakeClient(), clip: &fakeClipboard{}, ev: newEvents()}
	c, err := New(cfg, Deps{Client: h.client, Clipboard: h.clip, Notifier: h.ev, Observer: h.ev, Recorder: h.ev})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func pdf(name string) types.SourceFile {
	return types.SourceFile{Name: name, Size: 1024, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func pdfs(n int) []types.SourceFile {
	out := make([]types.SourceFile, n)
	for i := range out {
		out[i] = pdf(fmt.Sprintf("f%d.pdf", i+1))
	}
	return out
}

func waitStable(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestNew_RequiresClientAndKnownMode(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Mode = "doc-to-pdf"
	_, err = New(cfg, Deps{Client: newFakeClient()})
	assert.Error(t, err)
}

func TestAddFiles(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.MaxFiles = 3
	h := newHarness(t, cfg)

	added, rejected := h.c.AddFiles([]types.SourceFile{pdf("a.pdf"), {Name: "notes.txt", Size: 10, ContentType: "text/plain"}})
	require.Len(t, added, 1)
	require.Len(t, rejected, 1)
	assert.Equal(t, string(apierr.InvalidFileType), rejected[0].Reason)
	assert.Equal(t, types.StateIdle, added[0].State)
	assert.NotEmpty(t, added[0].ID)

	added2, rejected2 := h.c.AddFiles(pdfs(3))
	assert.Len(t, added2, 2)
	require.Len(t, rejected2, 1)
	assert.Equal(t, string(apierr.TooManyFiles), rejected2[0].Reason)

	ids := map[string]bool{}
	for _, f := range h.c.Snapshot() {
		assert.False(t, ids[f.ID], "duplicate id %s", f.ID)
		ids[f.ID] = true
	}
	assert.Len(t, ids, 3)
	assert.Equal(t, Counts{Idle: 3}, h.c.Counts())
}

func TestConversion_HappyPath(t *testing.T) {
	h := newHarness(t, testConfig())
	h.client.statusFn = func(taskID string, call int) (*types.TaskStatusResponse, error) {
		switch call {
		case 1:
			return &types.TaskStatusResponse{Status: types.TaskPending}, nil
		case 2:
			return &types.TaskStatusResponse{Status: types.TaskProcessing, Progress: 50}, nil
		default:
			return &types.TaskStatusResponse{Status: types.TaskCompleted, Progress: 100, Filename: "paper.md"}, nil
		}
	}
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("paper.pdf")})
	id := added[0].ID

	outcomes := h.c.StartConversion(context.Background(), nil, 0)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	waitStable(t, h.c)

	f, ok := h.c.File(id)
	require.True(t, ok)
	assert.Equal(t, types.StateCompleted, f.State)
	assert.Equal(t, 100, f.Progress)
	assert.Equal(t, "/api/download/"+f.TaskID, f.DownloadRef)
	assert.Equal(t, "paper.md", f.ResultName)
	assert.Empty(t, f.ErrorDetail)
	assert.Equal(t, 1, f.Attempt)
	assert.False(t, h.c.Polling(id))

	var states []types.LifecycleState
	for _, s := range h.ev.history(id) {
		if len(states) == 0 || states[len(states)-1] != s.State {
			states = append(states, s.State)
		}
	}
	assert.Equal(t, []types.LifecycleState{
		types.StateIdle, types.StateUploading, types.StatePending, types.StateProcessing, types.StateCompleted,
	}, states)

	// Notifications and history writes happen after the state is published.
	require.Eventually(t, func() bool { return len(h.ev.notifications()) == 1 && len(h.ev.records()) == 1 }, time.Second, time.Millisecond)
	notes := h.ev.notifications()
	assert.Equal(t, EventCompleted, notes[0].Event)
	assert.Equal(t, "paper.pdf", notes[0].FileName)
	assert.Equal(t, types.StateCompleted, h.ev.records()[0].State)
}

func TestConversion_ProgressNeverRegressesWithinPhase(t *testing.T) {
	h := newHarness(t, testConfig())
	h.client.statusFn = func(_ string, call int) (*types.TaskStatusResponse, error) {
		switch call {
		case 1:
			return &types.TaskStatusResponse{Status: types.TaskProcessing, Progress: 60}, nil
		case 2:
			return &types.TaskStatusResponse{Status: types.TaskProcessing, Progress: 30}, nil
		case 3:
			return &types.TaskStatusResponse{Status: types.TaskPending, Progress: 70}, nil
		default:
			return &types.TaskStatusResponse{Status: types.TaskCompleted}, nil
		}
	}
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("a.pdf")})
	h.c.StartConversion(context.Background(), nil, 0)
	waitStable(t, h.c)

	last := map[types.LifecycleState]int{}
	sawProcessing := false
	for _, s := range h.ev.history(added[0].ID) {
		assert.GreaterOrEqual(t, s.Progress, last[s.State], "progress regressed in %s", s.State)
		last[s.State] = s.Progress
		if s.State == types.StateProcessing {
			sawProcessing = true
		}
		// A pending status after processing does not move the file back.
		if sawProcessing {
			assert.NotEqual(t, types.StatePending, s.State)
		}
	}
	assert.Equal(t, 70, last[types.StateProcessing])
}

func TestConversion_ProgressRestartsWhenUploadFinishes(t *testing.T) {
	h := newHarness(t, testConfig())
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("a.pdf")})
	h.c.StartConversion(context.Background(), nil, 0)
	waitStable(t, h.c)

	uploadEnd, pendingStart := -1, -1
	for _, s := range h.ev.history(added[0].ID) {
		switch s.State {
		case types.StateUploading:
			uploadEnd = s.Progress
		case types.StatePending:
			if pendingStart < 0 {
				pendingStart = s.Progress
			}
		}
	}
	assert.Equal(t, 100, uploadEnd)
	assert.Equal(t, 0, pendingStart)
}

func TestConversion_TerminalStatesLeaveNoSubscription(t *testing.T) {
	h := newHarness(t, testConfig())
	msg := "corrupt document"
	h.client.statusFn = func(taskID string, _ int) (*types.TaskStatusResponse, error) {
		if taskID == "task-f2.pdf-2" {
			return &types.TaskStatusResponse{Status: types.TaskFailed, Error: &msg}, nil
		}
		return &types.TaskStatusResponse{Status: types.TaskCompleted}, nil
	}

	// Checked from the observer, at the moment each state is published.
	var mu sync.Mutex
	var violations []string
	obs := observerFunc(func(f types.TrackedFile) {
		if f.State.Terminal() && h.c.engine.Active(f.ID) {
			mu.Lock()
			violations = append(violations, f.ID)
			mu.Unlock()
		}
	})
	h.c.observer = obs

	h.c.AddFiles(pdfs(3))
	h.c.StartConversion(context.Background(), nil, 1)
	waitStable(t, h.c)

	for _, f := range h.c.Snapshot() {
		assert.True(t, f.State.Terminal())
		assert.False(t, h.c.Polling(f.ID))
		if f.Source.Name == "f2.pdf" {
			assert.Equal(t, types.StateFailed, f.State)
			assert.Equal(t, "corrupt document", f.ErrorDetail)
			assert.Empty(t, f.DownloadRef)
		} else {
			assert.Equal(t, types.StateCompleted, f.State)
			assert.Empty(t, f.ErrorDetail)
		}
	}
	mu.Lock()
	assert.Empty(t, violations)
	mu.Unlock()
}

func TestConversion_PollingTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Polling.MaxAttempts = 5
	h := newHarness(t, cfg)
	h.client.statusFn = func(string, int) (*types.TaskStatusResponse, error) {
		return &types.TaskStatusResponse{Status: types.TaskProcessing, Progress: 10}, nil
	}
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("slow.pdf")})
	id := added[0].ID
	h.c.StartConversion(context.Background(), nil, 0)
	waitStable(t, h.c)

	f, _ := h.c.File(id)
	assert.Equal(t, types.StateFailed, f.State)
	assert.Equal(t, string(apierr.Timeout), f.ErrorKind)
	assert.False(t, h.c.Polling(id))

	calls := h.client.calls(f.TaskID)
	assert.Equal(t, 5, calls)
	time.Sleep(10 * cfg.Polling.Interval)
	assert.Equal(t, calls, h.client.calls(f.TaskID))

	require.Eventually(t, func() bool {
		notes := h.ev.notifications()
		return len(notes) > 0 && notes[len(notes)-1].Event == EventTimedOut
	}, time.Second, time.Millisecond)
}

func TestConversion_UploadFailuresAreIsolated(t *testing.T) {
	h := newHarness(t, testConfig())
	h.client.failUploads["f4.pdf"] = 1
	added, _ := h.c.AddFiles(pdfs(7))

	outcomes := h.c.StartConversion(context.Background(), nil, 3)
	require.Len(t, outcomes, 7)
	for i, o := range outcomes {
		assert.Equal(t, i/3, o.Batch)
		assert.Equal(t, added[i].ID, o.FileID)
	}
	waitStable(t, h.c)

	for _, f := range h.c.Snapshot() {
		if f.Source.Name == "f4.pdf" {
			assert.Equal(t, types.StateFailed, f.State)
			assert.Equal(t, string(apierr.NetworkError), f.ErrorKind)
			assert.Equal(t, "connection reset", f.ErrorDetail)
			assert.Empty(t, f.TaskID)
			continue
		}
		assert.Equal(t, types.StateCompleted, f.State, f.Source.Name)
	}
	assert.Equal(t, Counts{Completed: 6, Failed: 1}, h.c.Counts())
}

func TestRetry_ResetsAndResubscribesOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Polling.MaxAttempts = 100000
	h := newHarness(t, cfg)
	h.client.failUploads["a.pdf"] = 1
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("a.pdf")})
	id := added[0].ID

	h.c.StartConversion(context.Background(), nil, 0)
	f, _ := h.c.File(id)
	require.Equal(t, types.StateFailed, f.State)

	h.c.mu.Lock()
	h.c.files[id].file.Progress = 45
	h.c.files[id].file.ErrorDetail = "x"
	h.c.mu.Unlock()

	// Keep the new task live so the subscription can be inspected.
	h.client.statusFn = func(string, int) (*types.TaskStatusResponse, error) {
		return &types.TaskStatusResponse{Status: types.TaskProcessing, Progress: 5}, nil
	}
	gate := make(chan struct{})
	h.client.mu.Lock()
	h.client.uploadGate = gate
	h.client.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := h.c.Retry(context.Background(), id)
		done <- err
	}()

	require.Eventually(t, func() bool {
		f, _ := h.c.File(id)
		return f.State == types.StateUploading
	}, time.Second, time.Millisecond)
	f, _ = h.c.File(id)
	assert.Equal(t, 0, f.Progress)
	assert.Empty(t, f.ErrorDetail)
	assert.Empty(t, f.ErrorKind)
	assert.Equal(t, 2, f.Attempt)

	close(gate)
	require.NoError(t, <-done)

	f, _ = h.c.File(id)
	assert.Contains(t, []types.LifecycleState{types.StatePending, types.StateProcessing}, f.State)
	assert.NotEmpty(t, f.TaskID)
	assert.True(t, h.c.Polling(id))
	assert.Equal(t, 1, h.c.engine.Len())
}

func TestRetry_InvalidStates(t *testing.T) {
	h := newHarness(t, testConfig())
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("a.pdf")})

	_, err := h.c.Retry(context.Background(), added[0].ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = h.c.Retry(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartConversion_TargetsOnlyIdleAndFailed(t *testing.T) {
	h := newHarness(t, testConfig())
	h.client.failUploads["f2.pdf"] = 1
	added, _ := h.c.AddFiles(pdfs(2))
	h.c.StartConversion(context.Background(), []string{added[1].ID}, 0)
	waitStable(t, h.c)

	f2, _ := h.c.File(added[1].ID)
	require.Equal(t, types.StateFailed, f2.State)

	h.c.AddFiles([]types.SourceFile{pdf("f3.pdf")})
	outcomes := h.c.StartConversion(context.Background(), nil, 0)
	// f1 (idle), f2 (failed) and f3 (idle); nothing live or completed.
	assert.Len(t, outcomes, 3)
	waitStable(t, h.c)

	again := h.c.StartConversion(context.Background(), []string{added[0].ID, "missing"}, 0)
	assert.Empty(t, again)
}

func TestRemoveFile_CancelsPolling(t *testing.T) {
	cfg := testConfig()
	cfg.Polling.MaxAttempts = 100000
	h := newHarness(t, cfg)
	h.client.statusFn = func(string, int) (*types.TaskStatusResponse, error) {
		return &types.TaskStatusResponse{Status: types.TaskProcessing, Progress: 10}, nil
	}
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("a.pdf")})
	id := added[0].ID
	h.c.StartConversion(context.Background(), nil, 0)
	f, _ := h.c.File(id)
	require.True(t, h.c.Polling(id))
	require.Eventually(t, func() bool { return h.client.calls(f.TaskID) >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.c.RemoveFile(id))
	assert.False(t, h.c.Polling(id))
	_, ok := h.c.File(id)
	assert.False(t, ok)

	h.c.engine.Wait()
	calls := h.client.calls(f.TaskID)
	time.Sleep(10 * cfg.Polling.Interval)
	assert.Equal(t, calls, h.client.calls(f.TaskID))

	assert.ErrorIs(t, h.c.RemoveFile(id), ErrNotFound)
	assert.Equal(t, []string{id}, h.ev.removedIDs())
}

func TestRemoveFile_DuringUploadDiscardsResult(t *testing.T) {
	h := newHarness(t, testConfig())
	gate := make(chan struct{})
	h.client.uploadGate = gate
	added, _ := h.c.AddFiles(pdfs(2))

	done := make(chan struct{})
	go func() {
		h.c.StartConversion(context.Background(), nil, 0)
		close(done)
	}()
	require.Eventually(t, func() bool {
		f, _ := h.c.File(added[0].ID)
		return f.State == types.StateUploading
	}, time.Second, time.Millisecond)

	require.NoError(t, h.c.RemoveFile(added[0].ID))
	close(gate)
	<-done
	waitStable(t, h.c)

	snap := h.c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, added[1].ID, snap[0].ID)
	assert.Equal(t, types.StateCompleted, snap[0].State)
	assert.False(t, h.c.Polling(added[0].ID))
}

func TestClearAll(t *testing.T) {
	cfg := testConfig()
	cfg.Polling.MaxAttempts = 100000
	h := newHarness(t, cfg)
	h.client.statusFn = func(string, int) (*types.TaskStatusResponse, error) {
		return &types.TaskStatusResponse{Status: types.TaskPending}, nil
	}
	h.c.AddFiles(pdfs(3))
	h.c.StartConversion(context.Background(), nil, 0)
	require.Equal(t, 3, h.c.engine.Len())

	h.c.ClearAll()
	assert.Empty(t, h.c.Snapshot())
	assert.Equal(t, 0, h.c.engine.Len())
	assert.Len(t, h.ev.removedIDs(), 3)

	// Ids are never reused after a clear.
	added, _ := h.c.AddFiles(pdfs(1))
	for _, old := range h.ev.removedIDs() {
		assert.NotEqual(t, old, added[0].ID)
	}
}

func completedFile(t *testing.T, h *harness) string {
	t.Helper()
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("a.pdf")})
	h.c.StartConversion(context.Background(), nil, 0)
	waitStable(t, h.c)
	f, _ := h.c.File(added[0].ID)
	require.Equal(t, types.StateCompleted, f.State)
	return f.ID
}

func TestCopyResult_RevertsAfterDelay(t *testing.T) {
	h := newHarness(t, testConfig())
	id := completedFile(t, h)

	require.NoError(t, h.c.CopyResult(context.Background(), id))
	f, _ := h.c.File(id)
	assert.Equal(t, types.StateCopied, f.State)
	assert.Equal(t, "# converted", h.clip.text)

	require.Eventually(t, func() bool {
		f, _ := h.c.File(id)
		return f.State == types.StateCompleted
	}, time.Second, time.Millisecond)

	f, _ = h.c.File(id)
	assert.Equal(t, 100, f.Progress)
	assert.NotEmpty(t, f.DownloadRef)

	var copied bool
	for _, n := range h.ev.notifications() {
		copied = copied || n.Event == EventCopied
	}
	assert.True(t, copied)
}

func TestCopyResult_ReentryRestartsTimer(t *testing.T) {
	cfg := testConfig()
	cfg.CopyRevertDelay = 100 * time.Millisecond
	h := newHarness(t, cfg)
	id := completedFile(t, h)

	require.NoError(t, h.c.CopyResult(context.Background(), id))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, h.c.CopyResult(context.Background(), id))

	// The first timer would have fired by now; the second has not.
	time.Sleep(60 * time.Millisecond)
	f, _ := h.c.File(id)
	assert.Equal(t, types.StateCopied, f.State)

	require.Eventually(t, func() bool {
		f, _ := h.c.File(id)
		return f.State == types.StateCompleted
	}, time.Second, time.Millisecond)
}

func TestCopyResult_RemoveBeforeRevertIsNoop(t *testing.T) {
	h := newHarness(t, testConfig())
	id := completedFile(t, h)

	require.NoError(t, h.c.CopyResult(context.Background(), id))
	require.NoError(t, h.c.RemoveFile(id))

	// Fire the revert directly as a late timer would.
	assert.NotPanics(t, func() { h.c.revertCopy(id, 1, 1) })
	time.Sleep(2 * h.c.cfg.CopyRevertDelay)

	_, ok := h.c.File(id)
	assert.False(t, ok)
	assert.Empty(t, h.c.Snapshot())
}

func TestCopyResult_Errors(t *testing.T) {
	h := newHarness(t, testConfig())
	added, _ := h.c.AddFiles([]types.SourceFile{pdf("idle.pdf")})

	assert.ErrorIs(t, h.c.CopyResult(context.Background(), added[0].ID), ErrInvalidState)
	assert.ErrorIs(t, h.c.CopyResult(context.Background(), "missing"), ErrNotFound)

	h.c.RemoveFile(added[0].ID)
	id := completedFile(t, h)
	h.clip.err = errors.New("no display")
	err := h.c.CopyResult(context.Background(), id)
	assert.ErrorContains(t, err, "no display")

	f, _ := h.c.File(id)
	assert.Equal(t, types.StateCompleted, f.State)
	notes := h.ev.notifications()
	assert.Equal(t, EventCopyFailed, notes[len(notes)-1].Event)

	noClip, err := New(testConfig(), Deps{Client: newFakeClient()})
	require.NoError(t, err)
	assert.ErrorIs(t, noClip.CopyResult(context.Background(), id), ErrNoClipboard)
}

func TestWait_HonorsContext(t *testing.T) {
	cfg := testConfig()
	cfg.Polling.MaxAttempts = 100000
	h := newHarness(t, cfg)
	h.client.statusFn = func(string, int) (*types.TaskStatusResponse, error) {
		return &types.TaskStatusResponse{Status: types.TaskPending}, nil
	}
	h.c.AddFiles(pdfs(1))
	h.c.StartConversion(context.Background(), nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.c.Wait(ctx), context.DeadlineExceeded)
}

type observerFunc func(types.TrackedFile)

func (f observerFunc) Changed(tf types.TrackedFile) { f(tf) }
func (f observerFunc) Removed(string)               {}
