// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"io"
	"os"
	"time"
)

// LifecycleState is the position of a tracked file in the conversion lifecycle.
type LifecycleState string

const (
	StateIdle       LifecycleState = "idle"
	StateUploading  LifecycleState = "uploading"
	StatePending    LifecycleState = "pending"
	StateProcessing LifecycleState = "processing"
	StateCompleted  LifecycleState = "completed"
	StateFailed     LifecycleState = "failed"

	// StateCopied is a short-lived view of StateCompleted shown after the
	// result was copied to the clipboard. It reverts to StateCompleted.
	StateCopied LifecycleState = "copied"
)

// Live reports whether an async owner (upload or polling) drives the state.
func (s LifecycleState) Live() bool {
	return s == StateUploading || s == StatePending || s == StateProcessing
}

// Terminal reports whether no further automatic transitions occur.
func (s LifecycleState) Terminal() bool {
	return s == StateCompleted || s == StateCopied || s == StateFailed
}

// SourceFile is the raw input selected by the user. Data, when set, takes
// precedence over Path.
type SourceFile struct {
	Name        string `json:"name" yaml:"name"`
	Size        int64  `json:"size" yaml:"size"`
	ContentType string `json:"content_type" yaml:"content_type"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Data        []byte `json:"-" yaml:"-"`
}

// Open returns a reader over the file contents.
func (f SourceFile) Open() (io.ReadCloser, error) {
	if f.Data != nil {
		return io.NopCloser(bytes.NewReader(f.Data)), nil
	}
	return os.Open(f.Path)
}

// SizeMB returns the file size in mebibytes.
func (f SourceFile) SizeMB() float64 {
	return float64(f.Size) / (1024 * 1024)
}

// TrackedFile is one file's journey through the conversion lifecycle.
type TrackedFile struct {
	// ID is assigned when the file is added and never reused in a session.
	ID string `json:"id" yaml:"id"`

	Source SourceFile `json:"source" yaml:"source"`

	// TaskID is the server-assigned task identifier for the current attempt.
	// Empty until the upload succeeds.
	TaskID string `json:"task_id,omitempty" yaml:"task_id,omitempty"`

	State LifecycleState `json:"state" yaml:"state"`

	// Progress is 0-100. Upload progress while uploading, conversion progress
	// while pending or processing, 100 once completed. It never decreases
	// within a phase; it restarts at 0 when the upload finishes and the file
	// enters pending.
	Progress int `json:"progress" yaml:"progress"`

	// DownloadRef is set only when the conversion completed.
	DownloadRef string `json:"download_ref,omitempty" yaml:"download_ref,omitempty"`

	// ResultName is the server-reported output filename.
	ResultName string `json:"result_name,omitempty" yaml:"result_name,omitempty"`

	// ErrorKind and ErrorDetail are set only when the file failed.
	ErrorKind   string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty" yaml:"error_detail,omitempty"`

	// Attempt counts conversion attempts; retry starts a new one.
	Attempt int `json:"attempt" yaml:"attempt"`

	AddedAt   time.Time `json:"added_at" yaml:"added_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Rejection pairs a candidate file with the reason the validation gate
// refused it.
type Rejection struct {
	File   SourceFile `json:"file" yaml:"file"`
	Reason string     `json:"reason" yaml:"reason"`

	// Message is a human-readable explanation with the relevant limit.
	Message string `json:"message" yaml:"message"`
}
