package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/gate"
	"github.com/roach88/tracegate/internal/pipeline"
	testevents "github.com/roach88/tracegate/internal/testutil"
	"github.com/roach88/tracegate/internal/trace"
)

func sampleResult() pipeline.Result {
	verified := testevents.NewRun("verified")
	unverified := testevents.NewRun("unverified")
	return pipeline.AnalyzeTraceObjects([]trace.Object{
		testevents.TraceObject(
			verified.ToolSuccess("write_file", testevents.Path("main.go")),
			verified.Exec("go test ./..."),
		),
		testevents.TraceObject(
			unverified.ToolSuccess("edit_file", testevents.Path("app.py")),
			unverified.Followup(trace.FollowupSourceVerifier),
		),
		{"nothing": true},
	})
}

func TestObserveBatch(t *testing.T) {
	r := NewRecorder()
	r.ObserveBatch(sampleResult())

	assert.Equal(t, 2.0, testutil.ToFloat64(r.TracesTotal.WithLabelValues(OutcomeAnalyzed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TracesTotal.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FindingsTotal.WithLabelValues(string(analysis.CategoryNoVerification))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FindingsTotal.WithLabelValues(string(analysis.CategoryPrematureDone))))

	families, err := r.Registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() != "tracegate_behavior_score" {
			continue
		}
		found = true
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(2), h.GetSampleCount())
		assert.Equal(t, 150.0, h.GetSampleSum())
	}
	assert.True(t, found, "behavior score histogram not gathered")
}

func TestObserveBatch_Accumulates(t *testing.T) {
	r := NewRecorder()
	r.ObserveBatch(sampleResult())
	r.ObserveBatch(sampleResult())

	assert.Equal(t, 4.0, testutil.ToFloat64(r.TracesTotal.WithLabelValues(OutcomeAnalyzed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.TracesTotal.WithLabelValues(OutcomeSkipped)))
}

func TestObserveGate(t *testing.T) {
	r := NewRecorder()
	r.ObserveGate(gate.Result{
		Checks: gate.Checks{
			QualityParity:   gate.ParityCheck{Passed: true},
			EventReduction:  gate.ReductionCheck{Passed: false},
			RepeatReduction: gate.ReductionCheck{Passed: true},
		},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.GateChecksTotal.WithLabelValues(gate.CheckQualityParity, "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.GateChecksTotal.WithLabelValues(gate.CheckEventReduction, "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.GateChecksTotal.WithLabelValues(gate.CheckRepeatReduction, "pass")))
	assert.Equal(t, 3, testutil.CollectAndCount(r.GateChecksTotal))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveBatch(sampleResult())

	path := filepath.Join(t.TempDir(), "tracegate.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `tracegate_traces_total{outcome="analyzed"} 2`)
	assert.Contains(t, out, `tracegate_findings_total{category="no_verification"} 1`)
	assert.Contains(t, out, "tracegate_behavior_score_count 2")
}
