package backtest

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult pairs a job with its outcome
type BatchResult struct {
	Job    Job
	Result *Result
	Err    error
}

// RunBatch runs independent jobs in parallel, at most parallelism at a
// time. A failing job does not stop the others; results keep job order.
func (b *Backtester) RunBatch(ctx context.Context, jobs []Job, parallelism int) []BatchResult {
	results := make([]BatchResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := b.Run(ctx, job)
			results[i] = BatchResult{Job: job, Result: res, Err: err}
			if err != nil {
				b.logger.Warn("backtest failed",
					zap.String("strategy", job.Strategy),
					zap.String("symbol", job.Symbol),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
