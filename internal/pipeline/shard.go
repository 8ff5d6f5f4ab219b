package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tracegate/internal/trace"
)

// Runner fans a batch out over contiguous shards, analyzes each shard on its
// own goroutine and merges the results in shard order.
type Runner struct {
	// Shards is the number of chunks. Values below 1 mean one shard.
	Shards int
	Logger *slog.Logger
}

// Run analyzes traces. The result is identical to AnalyzeTraceObjects over
// the whole batch; ctx only cancels shards that have not started.
func (r *Runner) Run(ctx context.Context, traces []trace.Object) (Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	chunks := Partition(traces, r.Shards)
	results := make([]Result, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			start := time.Now()
			logger.Debug("shard started", "shard", i, "traces", len(chunk))
			results[i] = AnalyzeTraceObjects(chunk)
			logger.Debug("shard finished",
				"shard", i,
				"reports", len(results[i].Reports),
				"skipped", results[i].TracesSkipped,
				"duration", time.Since(start))
			if n := results[i].TracesSkipped; n > 0 {
				logger.Debug("traces skipped", "shard", i, "skipped", n, "reason", "no event stream")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Merge(results...)
}

// Partition splits traces into at most n contiguous chunks whose sizes differ
// by at most one. An empty batch yields a single empty chunk.
func Partition(traces []trace.Object, n int) [][]trace.Object {
	if n < 1 {
		n = 1
	}
	if n > len(traces) {
		n = max(len(traces), 1)
	}
	chunks := make([][]trace.Object, 0, n)
	size, extra := len(traces)/n, len(traces)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, traces[start:end])
		start = end
	}
	return chunks
}
