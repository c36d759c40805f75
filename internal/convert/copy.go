// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/pdfnmd/internal/apierr"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

// ErrNoClipboard is returned by CopyResult when no clipboard was configured.
var ErrNoClipboard = errors.New("no clipboard available")

// CopyResult fetches the converted text of a completed file and writes it
// to the clipboard. On success the file shows as copied until the revert
// delay passes, another copy starts, or the file is removed or retried.
func (c *Controller) CopyResult(ctx context.Context, id string) error {
	if c.clipboard == nil {
		return ErrNoClipboard
	}

	c.mu.Lock()
	e, ok := c.files[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("copy %s: %w", id, ErrNotFound)
	}
	if e.file.State != types.StateCompleted && e.file.State != types.StateCopied {
		state := e.file.State
		c.mu.Unlock()
		return fmt.Errorf("copy %s in state %s: %w", id, state, ErrInvalidState)
	}
	gen, taskID, name := e.gen, e.file.TaskID, e.file.Source.Name
	c.mu.Unlock()

	content, err := c.client.Content(ctx, taskID)
	if err == nil {
		err = c.clipboard.WriteText(content.Content)
	}
	if err != nil {
		c.notify(Notification{Level: LevelError, Event: EventCopyFailed, FileID: id, FileName: name, Message: apierr.Detail(err)})
		return fmt.Errorf("copying result of %s: %w", name, err)
	}

	c.mu.Lock()
	e = c.attemptLocked(id, gen)
	if e == nil {
		c.mu.Unlock()
		return fmt.Errorf("copy %s: %w", id, ErrNotFound)
	}
	if e.file.State != types.StateCompleted && e.file.State != types.StateCopied {
		c.mu.Unlock()
		return fmt.Errorf("copy %s: %w", id, ErrInvalidState)
	}
	c.stopCopyTimerLocked(e)
	e.copySeq++
	seq := e.copySeq
	e.copyTimer = time.AfterFunc(c.cfg.CopyRevertDelay, func() { c.revertCopy(id, gen, seq) })
	e.file.State = types.StateCopied
	e.file.UpdatedAt = c.now()
	c.publishLocked(e)
	c.mu.Unlock()

	c.notify(Notification{Level: LevelSuccess, Event: EventCopied, FileID: id, FileName: name, Message: "copied to clipboard"})
	return nil
}

// revertCopy returns a copied file to completed if nothing else happened
// to it since copy seq was armed.
func (c *Controller) revertCopy(id string, gen, seq uint64) {
	c.mu.Lock()
	e := c.attemptLocked(id, gen)
	if e == nil || e.copySeq != seq || e.file.State != types.StateCopied {
		c.mu.Unlock()
		return
	}
	e.copyTimer = nil
	e.file.State = types.StateCompleted
	e.file.UpdatedAt = c.now()
	c.publishLocked(e)
	c.mu.Unlock()
}

func (c *Controller) stopCopyTimerLocked(e *entry) {
	if e.copyTimer != nil {
		e.copyTimer.Stop()
		e.copyTimer = nil
	}
}
