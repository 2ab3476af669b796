package reasoning

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAttempts is used when a RetryingCaller is built with a non-positive limit.
const DefaultMaxAttempts = 3

// RetryingCaller retries timeouts, rate limits, server errors and empty
// completions with a short backoff. Every failure it returns is a *CollaboratorError.
type RetryingCaller struct {
	next        Caller
	maxAttempts int
	logger      *zap.Logger
	sleep       func(context.Context, time.Duration) error
}

func NewRetryingCaller(next Caller, maxAttempts int, logger *zap.Logger) *RetryingCaller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingCaller{next: next, maxAttempts: maxAttempts, logger: logger, sleep: sleepContext}
}

func (r *RetryingCaller) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	class := FailureServer
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		raw, err := r.next.Complete(ctx, req)
		if err == nil && strings.TrimSpace(raw) == "" {
			err = ErrEmptyCompletion
		}
		if err == nil {
			return raw, nil
		}
		var ce *CollaboratorError
		if errors.As(err, &ce) {
			class = ce.Class
		} else {
			class = Classify(err)
		}
		lastErr = err
		if !class.Retryable() || attempt == r.maxAttempts {
			return "", &CollaboratorError{Stage: req.Stage, Class: class, Attempts: attempt, Err: lastErr}
		}
		delay := backoffDelay(attempt)
		r.logger.Warn("reasoning call failed, retrying",
			zap.String("stage", req.Stage),
			zap.String("class", string(class)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return "", &CollaboratorError{Stage: req.Stage, Class: Classify(err), Attempts: attempt, Err: err}
		}
	}
	return "", &CollaboratorError{Stage: req.Stage, Class: class, Attempts: r.maxAttempts, Err: lastErr}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
