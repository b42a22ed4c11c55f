package generate

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"lowkeyllama/internal/stream"
)

// BadRequestError rejects a request before the backend is contacted.
type BadRequestError struct{ msg string }

func (e BadRequestError) Error() string   { return e.msg }
func (e BadRequestError) StatusCode() int { return http.StatusBadRequest }

func badRequest(format string, args ...any) error {
	return BadRequestError{msg: fmt.Sprintf(format, args...)}
}

// IsBadRequest reports whether err is a request validation error.
func IsBadRequest(err error) bool {
	var e BadRequestError
	return errors.As(err, &e)
}

// ModelNotFoundError means the backend does not have the requested model.
type ModelNotFoundError struct{ Model string }

func (e ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q is not available; pull it with `ollama pull %s`", e.Model, e.Model)
}
func (e ModelNotFoundError) StatusCode() int { return http.StatusNotFound }

// IsModelNotFound reports whether err indicates a missing model.
func IsModelNotFound(err error) bool {
	var e ModelNotFoundError
	return errors.As(err, &e)
}

// BackendUnavailableError means the backend is unreachable or not ready.
type BackendUnavailableError struct{ Err error }

func (e BackendUnavailableError) Error() string {
	if e.Err == nil {
		return "backend unavailable"
	}
	return "backend unavailable: " + e.Err.Error()
}
func (e BackendUnavailableError) Unwrap() error   { return e.Err }
func (e BackendUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// IsBackendUnavailable reports whether err indicates an unreachable backend.
func IsBackendUnavailable(err error) bool {
	var e BackendUnavailableError
	return errors.As(err, &e)
}

// UpstreamError wraps a failed generation: no usable text, a backend error
// line, or a non-2xx answer from the backend.
type UpstreamError struct{ Err error }

func (e UpstreamError) Error() string {
	var gf *stream.GenerationFailure
	if errors.As(e.Err, &gf) {
		return gf.Error()
	}
	return "generation failed: " + e.Err.Error()
}
func (e UpstreamError) Unwrap() error   { return e.Err }
func (e UpstreamError) StatusCode() int { return http.StatusBadGateway }

// IsUpstream reports whether err is a failed generation.
func IsUpstream(err error) bool {
	var e UpstreamError
	return errors.As(err, &e)
}

// TimeoutError means the overall request deadline expired.
type TimeoutError struct{ After time.Duration }

func (e TimeoutError) Error() string {
	return fmt.Sprintf("generation timed out after %s", e.After)
}
func (e TimeoutError) StatusCode() int { return http.StatusGatewayTimeout }

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	var e TimeoutError
	return errors.As(err, &e)
}
