// Package reasoning is the client side of the external reasoning service: a
// role-tagged request goes out and one free-text completion comes back.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// Request is one role-tagged prompt. Stage names the analyzer that sent it and
// is used for logging, tracing and replay lookups.
type Request struct {
	Stage  string
	System string
	User   string
}

// Caller sends a request and returns the completion text.
type Caller interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, req Request) (string, error)

func (f CallerFunc) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// FailureClass groups collaborator failures by how they should be handled.
type FailureClass string

const (
	FailureTimeout     FailureClass = "timeout"
	FailureRateLimit   FailureClass = "rate_limit"
	FailureServer      FailureClass = "server"
	FailureClient      FailureClass = "client"
	FailureEmpty       FailureClass = "empty"
	FailureUnavailable FailureClass = "unavailable"
	FailureCanceled    FailureClass = "canceled"
)

// Retryable reports whether another attempt may succeed.
func (c FailureClass) Retryable() bool {
	switch c {
	case FailureTimeout, FailureRateLimit, FailureServer, FailureEmpty:
		return true
	}
	return false
}

var (
	// ErrEmptyCompletion means the service answered with no text at all.
	ErrEmptyCompletion = errors.New("reasoning service returned no text")
	// ErrDisabled means calls to the service are switched off for this process.
	ErrDisabled = errors.New("reasoning service disabled")
)

// CollaboratorError is a call that could not be completed.
type CollaboratorError struct {
	Stage    string
	Class    FailureClass
	Attempts int
	Err      error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: reasoning call failed (%s after %d attempt(s)): %v", e.Stage, e.Class, e.Attempts, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Classify maps a transport error to a failure class.
func Classify(err error) FailureClass {
	if errors.Is(err, ErrEmptyCompletion) {
		return FailureEmpty
	}
	if errors.Is(err, ErrDisabled) {
		return FailureUnavailable
	}
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return FailureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return FailureServer
	case strings.Contains(msg, "status code: 4"):
		return FailureClient
	default:
		return FailureServer
	}
}

// envEnabled reports whether an environment flag is set to a truthy value.
func envEnabled(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
