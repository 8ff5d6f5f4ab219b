package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/pipeline"
	"github.com/roach88/tracegate/internal/testutil"
	"github.com/roach88/tracegate/internal/trace"
)

// analyzedResult wraps a pipeline result the way Run does, without an archive.
func analyzedResult(objs ...trace.Object) *Result {
	r := NewResult()
	r.Analysis = pipeline.AnalyzeTraceObjects(objs)
	return r
}

func unverifiedRun() trace.Object {
	b := testutil.NewRun("r1")
	return testutil.TraceObject(
		b.ToolSuccess("edit_file", testutil.Path("app.py")),
		b.Followup(trace.FollowupSourceVerifier),
		b.RunEnd(),
	)
}

func TestAssertFindingPresent(t *testing.T) {
	result := analyzedResult(unverifiedRun())

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"present", Assertion{Run: "r1", Category: "no_verification"}, ""},
		{"severity matches", Assertion{Run: "r1", Category: "premature_completion", Severity: "medium"}, ""},
		{"severity differs", Assertion{Run: "r1", Category: "premature_completion", Severity: "high"}, "severity medium"},
		{"absent", Assertion{Run: "r1", Category: "looping_or_doom_edits"}, "findings [no_verification premature_completion]"},
		{"unknown run", Assertion{Run: "r9", Category: "no_verification"}, `run "r9" in analyzed reports`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertFindingPresent
			err := assertFindingPresent(result, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertFindingAbsent(t *testing.T) {
	result := analyzedResult(unverifiedRun())

	assert.NoError(t, assertFindingAbsent(result, Assertion{Run: "r1", Category: "looping_or_doom_edits"}))

	err := assertFindingAbsent(result, Assertion{Run: "r1", Category: "no_verification"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finding present")
}

func TestAssertStatEquals(t *testing.T) {
	result := analyzedResult(unverifiedRun())

	tests := []struct {
		name    string
		stat    string
		value   any
		wantErr string
	}{
		{"int against decoded number", "event_count", 3, ""},
		{"float literal", "behavior.score", 50.0, ""},
		{"bool", "coding_intent", true, ""},
		{"nested discipline", "behavior.verification.discipline", "missed", ""},
		{"wrong value", "tool_successes", 2, "tool_successes = 1"},
		{"number against string", "event_count", "3", "event_count = 3"},
		{"missing stat", "behavior.mood", 1, "stat not present"},
		{"path through scalar", "event_count.x", 1, "stat not present"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertStatEquals(result, Assertion{Type: AssertStatEquals, Run: "r1", Stat: tt.stat, Value: tt.value})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertBehaviorDiscipline(t *testing.T) {
	result := analyzedResult(unverifiedRun())

	assert.NoError(t, assertBehaviorDiscipline(result, Assertion{Run: "r1", Axis: "verification", Discipline: string(analysis.DisciplineMissed)}))
	assert.NoError(t, assertBehaviorDiscipline(result, Assertion{Run: "r1", Axis: "todo", Discipline: string(analysis.DisciplineNotApplicable)}))

	err := assertBehaviorDiscipline(result, Assertion{Run: "r1", Axis: "parallel", Discipline: string(analysis.DisciplineMet)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"not_applicable"`)
}

func TestEvaluateAssertions_SummaryCountNeedsArchive(t *testing.T) {
	result := analyzedResult(unverifiedRun())
	errs := EvaluateAssertions(result, []Assertion{{Type: AssertSummaryCount, Category: "no_verification", Count: 1}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires archive context")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "final_state"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}

func TestAssertionError_ListsRuns(t *testing.T) {
	result := analyzedResult(unverifiedRun())
	err := assertFindingPresent(result, Assertion{Type: AssertFindingPresent, Run: "r1", Category: "looping_or_doom_edits"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Assertion failed: finding_present")
	assert.Contains(t, err.Error(), "[1] r1 [no_verification premature_completion]")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual(nil, 0))
	assert.True(t, valuesEqual(float64(3), 3))
	assert.True(t, valuesEqual(float64(3), int64(3)))
	assert.False(t, valuesEqual(float64(3), 3.5))
	assert.True(t, valuesEqual("met", "met"))
	assert.False(t, valuesEqual(true, 1))
}
