package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracegate/internal/gate"
)

func TestGateEvaluations_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	result := gate.Evaluate(nil, nil, gate.DefaultThresholds())
	readiness := &gate.Readiness{
		HistoryPath:               "/tmp/readiness.json",
		TotalRuns:                 1,
		CurrentConsecutivePasses:  1,
		RequiredConsecutivePasses: 2,
		LastTimestamp:             "2026-02-01T00:00:00Z",
	}

	first, err := s.WriteGateEvaluation(ctx, GateEvaluation{
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Result:    result,
		Readiness: readiness,
	})
	require.NoError(t, err)
	assert.True(t, first.Passed)
	assert.Equal(t, int64(1), first.Seq)

	failed := result
	failed.Passed = false
	second, err := s.WriteGateEvaluation(ctx, GateEvaluation{Result: failed})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Seq)

	evals, err := s.ListGateEvaluations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, evals, 2)

	assert.Equal(t, second.ID, evals[0].ID)
	assert.False(t, evals[0].Passed)
	assert.Nil(t, evals[0].Readiness)

	assert.Equal(t, first.ID, evals[1].ID)
	assert.True(t, evals[1].Passed)
	assert.Equal(t, result, evals[1].Result)
	assert.Equal(t, readiness, evals[1].Readiness)

	limited, err := s.ListGateEvaluations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
