package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStream means the backend closed the stream without sending a single line.
	ErrEmptyStream = errors.New("empty stream: no data received from backend")
	// ErrIncompleteStream means the stream ended before a chunk with done=true.
	ErrIncompleteStream = errors.New("stream closed before completion")
	// ErrNoRecoverableText is returned by Extract when no strategy produced text.
	ErrNoRecoverableText = errors.New("no recoverable text in stream")
)

// ParseFailure reports a line that could not be decoded as a known chunk layout.
// It is recoverable: the accumulator records the raw line and keeps reading.
type ParseFailure struct {
	Raw string
	Err error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse failure: %v (line %q)", e.Err, clip(e.Raw, 80))
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// BackendError is an {"error": "..."} line sent by the backend mid-stream.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return "backend error: " + e.Message }

// GenerationFailure means the stream produced no usable text, even after fallback recovery.
type GenerationFailure struct {
	Cause         error
	Lines         int
	ParseFailures int
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed after %d lines (%d unparsable): %v", e.Lines, e.ParseFailures, e.Cause)
}

func (e *GenerationFailure) Unwrap() error { return e.Cause }

// IsParseFailure reports whether err is or wraps a *ParseFailure.
func IsParseFailure(err error) bool {
	var pf *ParseFailure
	return errors.As(err, &pf)
}

// IsGenerationFailure reports whether err is or wraps a *GenerationFailure.
func IsGenerationFailure(err error) bool {
	var gf *GenerationFailure
	return errors.As(err, &gf)
}

// IsBackendError reports whether err is or wraps a *BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
