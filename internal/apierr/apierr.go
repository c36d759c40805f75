// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apierr defines the error taxonomy shared by the validation gate,
// the transport, and the conversion controller. Transport failures are
// converted to *Error once, at the HTTP boundary; callers switch on Kind.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	InvalidFileType   Kind = "INVALID_FILE_TYPE"
	TooManyFiles      Kind = "TOO_MANY_FILES"
	FileTooLarge      Kind = "FILE_TOO_LARGE"
	TotalSizeExceeded Kind = "TOTAL_SIZE_EXCEEDED"
	TaskNotFound      Kind = "TASK_NOT_FOUND"
	ConversionFailed  Kind = "CONVERSION_FAILED"
	NetworkError      Kind = "NETWORK_ERROR"
	Timeout           Kind = "TIMEOUT"
	Unknown           Kind = "UNKNOWN"
)

var defaultMessages = map[Kind]string{
	InvalidFileType:   "unsupported file format",
	TooManyFiles:      "too many files",
	FileTooLarge:      "file is too large",
	TotalSizeExceeded: "total size of selected files is too large",
	TaskNotFound:      "conversion task not found",
	ConversionFailed:  "conversion failed",
	NetworkError:      "network error, check your connection",
	Timeout:           "request timed out",
	Unknown:           "unknown error",
}

// DefaultMessage returns the generic message for k.
func DefaultMessage(k Kind) string {
	if m, ok := defaultMessages[k]; ok {
		return m
	}
	return defaultMessages[Unknown]
}

// Error is the tagged error value produced at the transport boundary.
type Error struct {
	Kind    Kind
	Message string

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error with the given kind and message. An empty message
// falls back to the kind's default.
func New(k Kind, msg string) *Error {
	if msg == "" {
		msg = DefaultMessage(k)
	}
	return &Error{Kind: k, Message: msg}
}

// KindOf returns the Kind carried by err, Unknown if err is not an *Error,
// and "" if err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Detail returns the human-readable message carried by err.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsPermanent reports whether retrying the same request cannot succeed.
// Only a missing task qualifies: other failures may be transient.
func IsPermanent(err error) bool {
	return KindOf(err) == TaskNotFound
}

var statusKinds = map[int]Kind{
	http.StatusNotFound:              TaskNotFound,
	http.StatusRequestEntityTooLarge: FileTooLarge,
	http.StatusUnsupportedMediaType:  InvalidFileType,
	http.StatusInternalServerError:   ConversionFailed,
}

// FromResponse maps an HTTP error response to an *Error. detail is the
// server's free-text explanation, possibly empty.
func FromResponse(status int, detail string) *Error {
	k := Unknown
	if status == http.StatusBadRequest {
		k = ClassifyBadRequest(detail)
	} else if mapped, ok := statusKinds[status]; ok {
		k = mapped
	}

	msg := detail
	if msg == "" {
		msg = DefaultMessage(k)
	}
	return &Error{Kind: k, Message: msg, StatusCode: status}
}

// FromTransport maps a failure that produced no HTTP response.
func FromTransport(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if isTimeout(err) {
		return &Error{Kind: Timeout, Message: DefaultMessage(Timeout), Err: err}
	}
	return &Error{Kind: NetworkError, Message: DefaultMessage(NetworkError), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

var (
	tooManyFilesRe = regexp.MustCompile(`too many files|exceeds?\s*(the\s*)?(maximum\s*)?files?|maximum\s*files?\s*exceeded|file\s*count\s*exceeded|max(imum)?\s*\d+\s*files?`)
	fileTooLargeRe = regexp.MustCompile(`file\s*(is\s*)?too\s*large|exceeds?\s*(the\s*)?(maximum\s*)?size|size\s*limit\s*exceeded|exceeded\s*\d+\s*mb|max(imum)?\s*size`)
	invalidTypeRe  = regexp.MustCompile(`invalid\s*file\s*type|unsupported\s*file\s*type|wrong\s*file\s*type|file\s*type\s*(is\s*)?(not\s*)?(allowed|supported|valid)`)
)

// ClassifyBadRequest maps the free-text detail of an HTTP 400 to the closest
// kind. Order matters: count, then size, then type.
func ClassifyBadRequest(detail string) Kind {
	msg := strings.ToLower(detail)
	switch {
	case tooManyFilesRe.MatchString(msg):
		return TooManyFiles
	case fileTooLargeRe.MatchString(msg):
		return FileTooLarge
	case invalidTypeRe.MatchString(msg):
		return InvalidFileType
	default:
		return Unknown
	}
}
