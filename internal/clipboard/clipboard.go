// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package clipboard writes converted text to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when the platform has no clipboard utility.
var ErrUnsupported = errors.New("system clipboard is not available")

// System is the platform clipboard.
type System struct{}

// Available reports whether a clipboard utility was found.
func Available() bool {
	return !clipboard.Unsupported
}

// WriteText replaces the clipboard contents with text.
func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	return nil
}

// Memory holds copied text in process. It is used when the system
// clipboard is unavailable and in tests.
type Memory struct {
	text string
}

// WriteText stores text.
func (m *Memory) WriteText(text string) error {
	m.text = text
	return nil
}

// Text returns the last written text.
func (m *Memory) Text() string {
	return m.text
}
