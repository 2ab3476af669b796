package basinanalysis

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds a BatchRunner built with a non-positive limit.
const DefaultBatchConcurrency = 4

// BatchItem is the outcome of one analysis in a batch. Err is set when the
// inputs were rejected or the run was canceled.
type BatchItem struct {
	Result PipelineResult
	Err    error
}

// BatchRunner runs independent analyses concurrently. Runs share only the
// pipeline, which holds no per-run state.
type BatchRunner struct {
	pipeline    *Pipeline
	concurrency int
}

func NewBatchRunner(p *Pipeline, concurrency int) *BatchRunner {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &BatchRunner{pipeline: p, concurrency: concurrency}
}

// Run returns one item per input, in input order. A failing analysis does not
// stop the others; the returned error is the context's, if it ended early.
func (b *BatchRunner) Run(ctx context.Context, inputs []PipelineInputs) ([]BatchItem, error) {
	items := make([]BatchItem, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, in := range inputs {
		if gctx.Err() != nil {
			items[i].Err = gctx.Err()
			continue
		}
		g.Go(func() error {
			res, err := b.pipeline.Run(gctx, in)
			items[i] = BatchItem{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items, ctx.Err()
}
