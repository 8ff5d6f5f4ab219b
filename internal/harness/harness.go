package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/tracegate/internal/pipeline"
	"github.com/roach88/tracegate/internal/store"
	"github.com/roach88/tracegate/internal/testutil"
)

// scenarioEpoch is the archive timestamp every scenario batch starts from.
var scenarioEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is the test execution engine.
// It runs scenarios against an isolated archive with a deterministic clock.
type Harness struct {
	store  *store.Store
	clock  *testutil.FixedClock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Run the traces through the (optionally sharded) pipeline
// 3. Archive the batch
// 4. Evaluate assertions against the reports and the archive
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewFixedClock(scenarioEpoch, time.Second),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.execute(ctx, scenario)
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario) (*Result, error) {
	runner := pipeline.Runner{Shards: scenario.Shards, Logger: h.logger}
	analyzed, err := runner.Run(ctx, scenario.Traces)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze traces: %w", err)
	}

	batch, err := h.store.WriteBatch(ctx, store.BatchInput{
		Label:         scenario.Name,
		CreatedAt:     h.clock.Now(),
		Summary:       analyzed.Summary,
		Reports:       analyzed.Reports,
		TracesSkipped: analyzed.TracesSkipped,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive batch: %w", err)
	}

	result := NewResult()
	result.Analysis = analyzed
	result.BatchID = batch.ID

	actx := &AssertionContext{
		Store:   h.store,
		Ctx:     ctx,
		BatchID: batch.ID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}
