package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/tidwall/gjson"
)

// NetworkError means no response reached the client.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError means the request exceeded the transport timeout.
type TimeoutError struct {
	Method string
	Path   string
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: request timed out", e.Method, e.Path)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// HTTPError is a response outside the 2xx range.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
	if m := e.Message(); m != "" {
		msg += ": " + m
	}
	return msg
}

// Message extracts a human-readable message from a JSON error body
// ({"error": "..."} or {"message": "..."}), if there is one.
func (e *HTTPError) Message() string {
	if !gjson.ValidBytes(e.Body) {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		if v := gjson.GetBytes(e.Body, key); v.Type == gjson.String {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an HTTPError.
func StatusCode(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Status
	}
	return 0
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	return StatusCode(err) == status
}

// classify turns a client-side failure into a NetworkError or TimeoutError.
// Caller cancellation is returned unchanged.
func classify(req Request, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &TimeoutError{Method: req.Method, Path: req.Path, Err: err}
	}
	return &NetworkError{Method: req.Method, Path: req.Path, Err: err}
}
