// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress renders tracked files as terminal progress bars, or as
// one line per state change when output is not a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/pdiddy/pdfnmd/pkg/types"
)

// Renderer implements convert.Observer.
type Renderer struct {
	out        io.Writer
	isTerminal bool
	progress   *mpb.Progress

	mu    sync.Mutex
	bars  map[string]*fileBar
	count int
}

type fileBar struct {
	bar   *mpb.Bar
	index int
	name  string
	state atomic.Value // types.LifecycleState
	last  types.LifecycleState

	// done is set once the bar was completed or aborted. The bar itself is
	// not queried: mpb updates that state from its render goroutine.
	done bool
}

// New returns a renderer writing to f. Bars are drawn only when f is a
// terminal.
func New(f *os.File) *Renderer {
	return NewWithWriter(f, term.IsTerminal(int(f.Fd())))
}

// NewWithWriter returns a renderer writing to w. When terminal is false
// no bars are drawn.
func NewWithWriter(w io.Writer, terminal bool) *Renderer {
	r := &Renderer{out: w, isTerminal: terminal, bars: make(map[string]*fileBar)}
	if terminal {
		r.progress = mpb.New(
			mpb.WithOutput(w),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(60),
			mpb.WithAutoRefresh(),
		)
	}
	return r
}

// IsTerminal reports whether bars are drawn.
func (r *Renderer) IsTerminal() bool {
	return r.isTerminal
}

// Writer returns a writer that prints above the bars.
func (r *Renderer) Writer() io.Writer {
	if r.progress != nil {
		return r.progress
	}
	return r.out
}

// Changed updates the bar or prints a line for f.
func (r *Renderer) Changed(f types.TrackedFile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fb, ok := r.bars[f.ID]
	if !ok {
		r.count++
		fb = &fileBar{index: r.count, name: filepath.Base(f.Source.Name)}
		r.bars[f.ID] = fb
	}
	fb.state.Store(f.State)

	if !r.isTerminal {
		if f.State != fb.last {
			fmt.Fprintln(r.out, line(fb, f))
		}
		fb.last = f.State
		return
	}

	if fb.bar == nil || (f.State.Live() && fb.done) {
		fb.bar = r.newBar(fb)
		fb.done = false
	}
	switch f.State {
	case types.StateCompleted, types.StateCopied:
		if !fb.done {
			fb.bar.SetCurrent(100)
			fb.done = true
		}
		if f.State != fb.last && fb.last != types.StateCopied && fb.last != types.StateCompleted {
			fmt.Fprintln(r.progress, line(fb, f))
		}
	case types.StateFailed:
		if !fb.done {
			fb.bar.Abort(false)
			fb.done = true
		}
		if f.State != fb.last {
			fmt.Fprintln(r.progress, line(fb, f))
		}
	default:
		fb.bar.SetCurrent(int64(f.Progress))
	}
	fb.last = f.State
}

// Removed drops the bar for id.
func (r *Renderer) Removed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fb, ok := r.bars[id]
	if !ok {
		return
	}
	if fb.bar != nil && !fb.done {
		fb.bar.Abort(true)
	}
	delete(r.bars, id)
}

// Shutdown finishes every open bar and waits for the final render.
func (r *Renderer) Shutdown() {
	if r.progress == nil {
		return
	}
	r.mu.Lock()
	for _, fb := range r.bars {
		if fb.bar != nil && !fb.done {
			fb.bar.Abort(false)
			fb.done = true
		}
	}
	r.mu.Unlock()
	r.progress.Wait()
}

func (r *Renderer) newBar(fb *fileBar) *mpb.Bar {
	return r.progress.New(100,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(fb.name, decor.WCSyncSpaceR),
			decor.Any(func(decor.Statistics) string {
				s, _ := fb.state.Load().(types.LifecycleState)
				return string(s)
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(decor.Percentage(decor.WCSyncSpace)),
	)
}

func line(fb *fileBar, f types.TrackedFile) string {
	switch f.State {
	case types.StateFailed:
		return fmt.Sprintf("✗ [%d] %s: failed (%s)", fb.index, fb.name, f.ErrorDetail)
	case types.StateCompleted, types.StateCopied:
		return fmt.Sprintf("✓ [%d] %s: %s", fb.index, fb.name, f.State)
	case types.StateUploading:
		if f.Attempt > 1 {
			return fmt.Sprintf("  [%d] %s: uploading (attempt %d)", fb.index, fb.name, f.Attempt)
		}
	}
	return fmt.Sprintf("  [%d] %s: %s", fb.index, fb.name, f.State)
}
