package reasoning

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeStageChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

func stageFile(dir, stage string) string {
	return filepath.Join(dir, unsafeStageChars.ReplaceAllString(stage, "_")+".txt")
}

// ReplayCaller answers from saved completions, one <stage>.txt file per stage,
// so a pipeline can be rerun offline against fixed narratives.
type ReplayCaller struct {
	dir string
}

func NewReplayCaller(dir string) *ReplayCaller { return &ReplayCaller{dir: dir} }

func (r *ReplayCaller) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(stageFile(r.dir, req.Stage))
	if errors.Is(err, fs.ErrNotExist) {
		return "", &CollaboratorError{Stage: req.Stage, Class: FailureUnavailable, Attempts: 1, Err: fmt.Errorf("no saved completion: %w", err)}
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RecordingCaller forwards to another caller and saves every completion where a
// ReplayCaller over the same directory will find it.
type RecordingCaller struct {
	next Caller
	dir  string
}

func NewRecordingCaller(next Caller, dir string) *RecordingCaller {
	return &RecordingCaller{next: next, dir: dir}
}

func (r *RecordingCaller) Complete(ctx context.Context, req Request) (string, error) {
	out, err := r.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("record %s: %w", req.Stage, err)
	}
	if err := os.WriteFile(stageFile(r.dir, req.Stage), []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("record %s: %w", req.Stage, err)
	}
	return out, nil
}
