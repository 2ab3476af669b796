package basinanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/reasoning"
)

var tracer = otel.Tracer("github.com/joelkehle/basin-analysis/internal/basinanalysis")

// StageExecutor sends one role-tagged request per stage and hands back the
// narrative text. Retries belong to the caller it wraps.
type StageExecutor struct {
	caller reasoning.Caller
	logger *zap.Logger
}

func NewStageExecutor(caller reasoning.Caller, logger *zap.Logger) *StageExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageExecutor{caller: caller, logger: logger}
}

// Run marshals payload as the user role and returns the completion. A call
// that cannot be completed, or completes with no text, is a *reasoning.CollaboratorError.
func (e *StageExecutor) Run(ctx context.Context, stage, system string, payload any) (string, StageAttemptMetrics, error) {
	ctx, span := tracer.Start(ctx, "reasoning."+stage)
	defer span.End()

	metrics := StageAttemptMetrics{Attempts: 1}
	user, err := json.Marshal(payload)
	if err != nil {
		return "", metrics, fmt.Errorf("%s: encode inputs: %w", stage, err)
	}
	span.SetAttributes(attribute.String("stage", stage), attribute.Int("request.bytes", len(user)))

	raw, err := e.caller.Complete(ctx, reasoning.Request{Stage: stage, System: system, User: string(user)})
	if err == nil && strings.TrimSpace(raw) == "" {
		err = &reasoning.CollaboratorError{Stage: stage, Class: reasoning.FailureEmpty, Attempts: 1, Err: reasoning.ErrEmptyCompletion}
	}
	if err != nil {
		var ce *reasoning.CollaboratorError
		if !errors.As(err, &ce) {
			ce = &reasoning.CollaboratorError{Stage: stage, Class: reasoning.Classify(err), Attempts: 1, Err: err}
		}
		metrics.Attempts = max(ce.Attempts, 1)
		span.RecordError(ce)
		span.SetStatus(codes.Error, string(ce.Class))
		e.logger.Error("reasoning call failed", zap.String("stage", stage), zap.String("class", string(ce.Class)), zap.Error(err))
		return "", metrics, ce
	}
	span.SetAttributes(attribute.Int("response.bytes", len(raw)))
	e.logger.Debug("reasoning call completed", zap.String("stage", stage), zap.Int("response_bytes", len(raw)))
	return raw, metrics, nil
}

// IsCollaboratorFailure reports whether err means the reasoning service gave no text to parse.
func IsCollaboratorFailure(err error) bool {
	var ce *reasoning.CollaboratorError
	return errors.As(err, &ce)
}
