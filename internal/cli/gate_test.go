package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracegate/internal/gate"
	"github.com/roach88/tracegate/internal/store"
)

type gateFixture struct {
	dir       string
	baseline  string
	candidate string
	regressed string
	history   string
}

func newGateFixture(t *testing.T) gateFixture {
	t.Helper()
	dir := t.TempDir()
	return gateFixture{
		dir:       dir,
		baseline:  writeJSONL(t, filepath.Join(dir, "verbose.jsonl"), verboseRun("b1"), verboseRun("b2")),
		candidate: writeJSONL(t, filepath.Join(dir, "compact.jsonl"), compactRun("c1", "success"), compactRun("c2", "success")),
		regressed: writeJSONL(t, filepath.Join(dir, "broken.jsonl"), compactRun("c1", "failure")),
		history:   filepath.Join(dir, "readiness.json"),
	}
}

func TestGate_PassesAndRecordsReadiness(t *testing.T) {
	fx := newGateFixture(t)

	for i := 1; i <= 2; i++ {
		out, err := execRoot(t, "gate",
			"--baseline", fx.baseline,
			"--candidate", fx.candidate,
			"--history", fx.history,
			"--format", "json")
		require.NoError(t, err)

		resp, data := decodeResponse(t, out)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, true, data["passed"])

		readiness := data["readiness"].(map[string]any)
		assert.Equal(t, float64(i), readiness["total_runs"])
		assert.Equal(t, float64(i), readiness["current_consecutive_passes"])
		assert.Equal(t, i == 2, readiness["ready_to_flip_defaults"])
	}

	h, err := gate.ReadHistory(fx.history)
	require.NoError(t, err)
	assert.Len(t, h.Runs, 2)
}

func TestGate_FailureExitCode(t *testing.T) {
	fx := newGateFixture(t)

	out, err := execRoot(t, "gate",
		"--baseline", fx.baseline,
		"--candidate", fx.regressed,
		"--history", fx.history,
		"--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeGateFailed, resp.Error.Code)
	assert.Equal(t, false, data["passed"])

	checks := data["checks"].(map[string]any)
	parity := checks["quality_parity"].(map[string]any)
	assert.Equal(t, false, parity["passed"])

	readiness := data["readiness"].(map[string]any)
	assert.Equal(t, float64(0), readiness["current_consecutive_passes"])
}

func TestGate_TextOutput(t *testing.T) {
	fx := newGateFixture(t)

	out, err := execRoot(t, "gate",
		"--baseline", fx.baseline,
		"--candidate", fx.candidate,
		"--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "Gate: PASS")
	assert.Contains(t, out, "event_reduction")
	assert.Contains(t, out, "80.00% (min 50.00%)")
	assert.NotContains(t, out, "Readiness:")
}

func TestGate_ThresholdFlags(t *testing.T) {
	fx := newGateFixture(t)

	_, err := execRoot(t, "gate",
		"--baseline", fx.baseline,
		"--candidate", fx.candidate,
		"--min-event-reduction", "90",
		"--no-history")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestGate_NoHistoryLeavesFileAbsent(t *testing.T) {
	fx := newGateFixture(t)

	_, err := execRoot(t, "gate",
		"--baseline", fx.baseline,
		"--candidate", fx.candidate,
		"--history", fx.history,
		"--no-history")
	require.NoError(t, err)

	_, err = os.Stat(fx.history)
	assert.True(t, os.IsNotExist(err))
}

func TestGate_MalformedHistoryStartsFresh(t *testing.T) {
	fx := newGateFixture(t)
	require.NoError(t, os.WriteFile(fx.history, []byte(`{"runs": "nope"}`), 0644))

	out, err := execRoot(t, "gate",
		"--baseline", fx.baseline,
		"--candidate", fx.candidate,
		"--history", fx.history,
		"--format", "json")
	require.NoError(t, err)

	_, data := decodeResponse(t, out)
	readiness := data["readiness"].(map[string]any)
	assert.Equal(t, float64(1), readiness["total_runs"])
}

func TestGate_UnreadableHistory(t *testing.T) {
	fx := newGateFixture(t)

	_, err := execRoot(t, "gate",
		"--baseline", fx.baseline,
		"--candidate", fx.candidate,
		"--history", fx.dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGate_ArchivesEvaluation(t *testing.T) {
	fx := newGateFixture(t)
	dbPath := filepath.Join(fx.dir, "archive.db")

	out, err := execRoot(t, "gate",
		"--baseline", fx.baseline,
		"--candidate", fx.candidate,
		"--history", fx.history,
		"--db", dbPath,
		"--format", "json")
	require.NoError(t, err)
	_, data := decodeResponse(t, out)
	require.NotEmpty(t, data["evaluation_id"])

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	evals, err := st.ListGateEvaluations(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.True(t, evals[0].Passed)
	require.NotNil(t, evals[0].Readiness)
	assert.Equal(t, 1, evals[0].Readiness.TotalRuns)
}

func TestGate_MissingInputs(t *testing.T) {
	fx := newGateFixture(t)

	out, err := execRoot(t, "gate", "--baseline", fx.baseline, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp, _ := decodeResponse(t, out)
	assert.Equal(t, ErrCodeMissingInput, resp.Error.Code)
}

func TestGate_FlagOverridesAreValidated(t *testing.T) {
	tests := map[string][]string{
		"required passes below one": {"--required-passes", "0"},
		"event reduction above 100": {"--min-event-reduction", "150"},
		"negative repeat reduction": {"--min-repeat-reduction=-5"},
	}
	for name, flags := range tests {
		t.Run(name, func(t *testing.T) {
			fx := newGateFixture(t)

			args := append([]string{"gate",
				"--baseline", fx.baseline,
				"--candidate", fx.candidate,
				"--no-history",
				"--format", "json"}, flags...)
			out, err := execRoot(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp, _ := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, ErrCodeConfig, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "invalid configuration")
		})
	}
}
