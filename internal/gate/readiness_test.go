package gate

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracegate/internal/testutil"
)

func newTracker(t *testing.T, path string) *ReadinessTracker {
	t.Helper()
	clock := testutil.NewFixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), time.Minute)
	return &ReadinessTracker{
		Path:     path,
		Required: 2,
		Now:      clock.Now,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func passing() Result { return Result{Passed: true} }
func failing() Result { return Result{Passed: false} }

func TestReadiness_StreakReachesRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readiness.json")
	tr := newTracker(t, path)

	first, err := tr.Update(passing())
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentConsecutivePasses)
	assert.False(t, first.ReadyToFlipDefaults)
	assert.Equal(t, "2026-03-01T12:00:00Z", first.LastTimestamp)

	second, err := tr.Update(passing())
	require.NoError(t, err)
	assert.Equal(t, 2, second.CurrentConsecutivePasses)
	assert.True(t, second.ReadyToFlipDefaults)
	assert.Equal(t, 2, second.TotalRuns)
	assert.Equal(t, "2026-03-01T12:01:00Z", second.LastTimestamp)

	h, err := ReadHistory(path)
	require.NoError(t, err)
	require.Len(t, h.Runs, 2)
	assert.True(t, h.Runs[0].Passed)
	assert.JSONEq(t, `{
		"quality_parity": {"passed": false, "baseline_failures_per_run": 0, "candidate_failures_per_run": 0, "delta": 0},
		"event_reduction": {"passed": false, "baseline": 0, "candidate": 0, "reduction_pct": 0, "min_reduction_pct": 0},
		"repeat_reduction": {"passed": false, "baseline": 0, "candidate": 0, "reduction_pct": 0, "min_reduction_pct": 0}
	}`, string(h.Runs[0].Checks))
}

func TestReadiness_FailureResetsStreak(t *testing.T) {
	tr := newTracker(t, filepath.Join(t.TempDir(), "readiness.json"))

	for _, r := range []Result{passing(), passing(), failing()} {
		_, err := tr.Update(r)
		require.NoError(t, err)
	}
	got, err := tr.Update(passing())
	require.NoError(t, err)

	assert.Equal(t, 4, got.TotalRuns)
	assert.Equal(t, 1, got.CurrentConsecutivePasses)
	assert.False(t, got.ReadyToFlipDefaults)
}

func TestReadiness_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "gate", "readiness.json")

	_, err := newTracker(t, path).Update(passing())
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestReadiness_BadHistoryStartsFresh(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{runs: nope"},
		{name: "array root", content: `[1, 2]`},
		{name: "runs not a list", content: `{"runs": "x"}`},
		{name: "missing runs", content: `{"history": []}`},
		{name: "passed not a bool", content: `{"runs": [{"passed": "yes"}]}`},
		{name: "entry not an object", content: `{"runs": [true]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "readiness.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := ReadHistory(path)
			require.Error(t, err)

			got, err := newTracker(t, path).Update(passing())
			require.NoError(t, err)
			assert.Equal(t, 1, got.TotalRuns)
			assert.Equal(t, 1, got.CurrentConsecutivePasses)
		})
	}
}

func TestReadiness_KeepsExistingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readiness.json")
	existing := `{"runs": [{"timestamp": "2025-12-31T00:00:00Z", "passed": true, "checks": {"custom": 1}}]}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	got, err := newTracker(t, path).Update(passing())
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentConsecutivePasses)
	assert.True(t, got.ReadyToFlipDefaults)

	h, err := ReadHistory(path)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31T00:00:00Z", h.Runs[0].Timestamp)
	assert.JSONEq(t, `{"custom": 1}`, string(h.Runs[0].Checks))
}

func TestReadiness_UnreadablePathErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := newTracker(t, dir).Update(passing())
	require.Error(t, err)
}

func TestReadHistory_Missing(t *testing.T) {
	h, err := ReadHistory(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, h.Runs)
	assert.NotNil(t, h.Runs)
}

func TestUpdateDefaultFlipReadiness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readiness.json")

	r1, err := UpdateDefaultFlipReadiness(path, passing(), 2)
	require.NoError(t, err)
	r2, err := UpdateDefaultFlipReadiness(path, passing(), 2)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, []int{r1.CurrentConsecutivePasses, r2.CurrentConsecutivePasses})
	assert.Equal(t, []bool{false, true}, []bool{r1.ReadyToFlipDefaults, r2.ReadyToFlipDefaults})
	_, err = time.Parse(time.RFC3339Nano, r2.LastTimestamp)
	assert.NoError(t, err)
}

func TestConsecutivePasses(t *testing.T) {
	runs := func(passed ...bool) []HistoryEntry {
		out := make([]HistoryEntry, len(passed))
		for i, p := range passed {
			out[i] = HistoryEntry{Passed: p}
		}
		return out
	}
	assert.Equal(t, 0, ConsecutivePasses(nil))
	assert.Equal(t, 0, ConsecutivePasses(runs(true, false)))
	assert.Equal(t, 2, ConsecutivePasses(runs(false, true, true)))
	assert.Equal(t, 3, ConsecutivePasses(runs(true, true, true)))
}
