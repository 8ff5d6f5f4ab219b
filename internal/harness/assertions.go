package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/store"
	"github.com/roach88/tracegate/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string                  // Assertion type for categorization
	Expected string                  // Human-readable expected outcome
	Actual   string                  // Human-readable actual outcome
	Reports  []analysis.ReportRecord // Analyzed runs for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Reports) > 0 {
		fmt.Fprintf(&buf, "\nAnalyzed runs:\n")
		for i, rec := range e.Reports {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, rec.RunID, categoriesOf(rec))
		}
	}

	return buf.String()
}

func categoriesOf(rec analysis.ReportRecord) []analysis.Category {
	out := make([]analysis.Category, len(rec.Findings))
	for i, f := range rec.Findings {
		out[i] = f.Category
	}
	return out
}

// lookupRun finds the report an assertion targets.
func lookupRun(result *Result, a Assertion) (analysis.ReportRecord, error) {
	rec, ok := result.Report(a.Run)
	if !ok {
		return analysis.ReportRecord{}, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("run %q in analyzed reports", a.Run),
			Actual:   fmt.Sprintf("analyzed runs: %v", result.RunIDs()),
			Reports:  result.Analysis.Reports,
		}
	}
	return rec, nil
}

// assertFindingPresent checks that the run has a finding of the category,
// optionally with the given severity.
func assertFindingPresent(result *Result, a Assertion) error {
	rec, err := lookupRun(result, a)
	if err != nil {
		return err
	}
	for _, f := range rec.Findings {
		if string(f.Category) != a.Category {
			continue
		}
		if a.Severity != "" && string(f.Severity) != a.Severity {
			return &AssertionError{
				Type:     AssertFindingPresent,
				Expected: fmt.Sprintf("%s on run %s with severity %s", a.Category, a.Run, a.Severity),
				Actual:   fmt.Sprintf("severity %s", f.Severity),
				Reports:  result.Analysis.Reports,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertFindingPresent,
		Expected: fmt.Sprintf("%s on run %s", a.Category, a.Run),
		Actual:   fmt.Sprintf("findings %v", categoriesOf(rec)),
		Reports:  result.Analysis.Reports,
	}
}

// assertFindingAbsent checks that the run has no finding of the category.
func assertFindingAbsent(result *Result, a Assertion) error {
	rec, err := lookupRun(result, a)
	if err != nil {
		return err
	}
	for _, f := range rec.Findings {
		if string(f.Category) == a.Category {
			return &AssertionError{
				Type:     AssertFindingAbsent,
				Expected: fmt.Sprintf("no %s on run %s", a.Category, a.Run),
				Actual:   fmt.Sprintf("finding present: %s", f.Reason),
				Reports:  result.Analysis.Reports,
			}
		}
	}
	return nil
}

// assertStatEquals checks one stats field addressed by a dotted path such as
// "tool_failures" or "behavior.score".
func assertStatEquals(result *Result, a Assertion) error {
	rec, err := lookupRun(result, a)
	if err != nil {
		return err
	}
	actual, ok := lookupPath(rec.Stats, a.Stat)
	if !ok {
		return &AssertionError{
			Type:     AssertStatEquals,
			Expected: fmt.Sprintf("stat %q on run %s", a.Stat, a.Run),
			Actual:   "stat not present",
		}
	}
	if !valuesEqual(actual, a.Value) {
		return &AssertionError{
			Type:     AssertStatEquals,
			Expected: fmt.Sprintf("%s = %v on run %s", a.Stat, a.Value, a.Run),
			Actual:   fmt.Sprintf("%s = %v", a.Stat, actual),
		}
	}
	return nil
}

// assertBehaviorDiscipline checks the discipline judgment on one axis.
func assertBehaviorDiscipline(result *Result, a Assertion) error {
	rec, err := lookupRun(result, a)
	if err != nil {
		return err
	}
	actual, _ := lookupPath(rec.Stats, "behavior."+a.Axis+".discipline")
	if trace.String(actual) != a.Discipline {
		return &AssertionError{
			Type:     AssertBehaviorDiscipline,
			Expected: fmt.Sprintf("%s discipline %q on run %s", a.Axis, a.Discipline, a.Run),
			Actual:   fmt.Sprintf("%q", trace.String(actual)),
		}
	}
	return nil
}

// assertSummaryCount checks the archived findings tally for a category, and
// that it agrees with the in-memory summary.
func assertSummaryCount(ctx context.Context, st *store.Store, batchID string, result *Result, a Assertion) error {
	counts, err := st.CategoryCounts(ctx, batchID)
	if err != nil {
		return fmt.Errorf("summary_count: %w", err)
	}
	category := analysis.Category(a.Category)
	archived := counts[category]
	if archived != a.Count {
		return &AssertionError{
			Type:     AssertSummaryCount,
			Expected: fmt.Sprintf("%d %s finding(s)", a.Count, a.Category),
			Actual:   fmt.Sprintf("%d archived", archived),
			Reports:  result.Analysis.Reports,
		}
	}
	if summarized := result.Analysis.Summary.FailureCounts[category]; summarized != archived {
		return &AssertionError{
			Type:     AssertSummaryCount,
			Expected: fmt.Sprintf("summary count for %s to match the archive (%d)", a.Category, archived),
			Actual:   fmt.Sprintf("summary count %d", summarized),
		}
	}
	return nil
}

// lookupPath walks a dotted path through nested mappings.
func lookupPath(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		next, ok := trace.Map(cur)
		if !ok {
			return nil, false
		}
		cur, ok = next[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// valuesEqual compares a decoded stat with a YAML literal. Numbers compare by
// value whatever their Go type.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	if a, ok := toFloat(actual); ok {
		if e, ok := toFloat(expected); ok {
			return a == e
		}
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store   *store.Store
	Ctx     context.Context
	BatchID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides archive access for summary_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFindingPresent:
			err = assertFindingPresent(result, assertion)
		case AssertFindingAbsent:
			err = assertFindingAbsent(result, assertion)
		case AssertStatEquals:
			err = assertStatEquals(result, assertion)
		case AssertBehaviorDiscipline:
			err = assertBehaviorDiscipline(result, assertion)
		case AssertSummaryCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: summary_count requires archive context", i)
			} else {
				err = assertSummaryCount(actx.Ctx, actx.Store, actx.BatchID, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
