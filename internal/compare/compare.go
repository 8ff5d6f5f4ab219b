// Package compare diffs two batch summaries into a verdict, per-category
// deltas and behavior-rate movement.
package compare

import (
	"sort"

	"github.com/roach88/tracegate/internal/analysis"
)

// Verdict is the overall direction of a comparison.
type Verdict string

const (
	VerdictImproved  Verdict = "improved"
	VerdictRegressed Verdict = "regressed"
	VerdictFlat      Verdict = "flat"
)

// topN caps the regression and improvement lists.
const topN = 5

// BehaviorMetrics are the behavior-summary fields compared, in report order.
var BehaviorMetrics = []string{
	"avg_behavior_score",
	"todo_compliance_rate",
	"parallel_capture_rate",
	"verification_compliance_rate",
	"followup_reverify_rate",
}

// Comparison is the result of Compare. It marshals to plain JSON values only.
type Comparison struct {
	Verdict                Verdict                   `json:"verdict"`
	BaselineRuns           int                       `json:"baseline_runs"`
	CandidateRuns          int                       `json:"candidate_runs"`
	BaselineTotalFailures  int                       `json:"baseline_total_failures"`
	CandidateTotalFailures int                       `json:"candidate_total_failures"`
	TotalFailureDelta      int                       `json:"total_failure_delta"`
	CategoryDeltas         map[analysis.Category]int `json:"category_deltas"`
	TopRegressions         []CategoryDelta           `json:"top_regressions"`
	TopImprovements        []CategoryDelta           `json:"top_improvements"`
	BehaviorDelta          map[string]MetricDelta    `json:"behavior_delta"`
}

// CategoryDelta is one signed category movement.
type CategoryDelta struct {
	Category analysis.Category `json:"category"`
	Delta    int               `json:"delta"`
}

// MetricDelta holds one behavior metric on both sides, rounded to two decimals.
type MetricDelta struct {
	Baseline  float64 `json:"baseline"`
	Candidate float64 `json:"candidate"`
	Delta     float64 `json:"delta"`
}

// Compare diffs candidate against baseline. Positive deltas mean the
// candidate failed more often.
func Compare(baseline, candidate analysis.Summary) Comparison {
	deltas := make(map[analysis.Category]int)
	for c, n := range baseline.FailureCounts {
		deltas[c] -= n
	}
	for c, n := range candidate.FailureCounts {
		deltas[c] += n
	}

	baseTotal := total(baseline.FailureCounts)
	candTotal := total(candidate.FailureCounts)
	diff := candTotal - baseTotal

	verdict := VerdictFlat
	switch {
	case diff < 0:
		verdict = VerdictImproved
	case diff > 0:
		verdict = VerdictRegressed
	}

	return Comparison{
		Verdict:                verdict,
		BaselineRuns:           baseline.RunsAnalyzed,
		CandidateRuns:          candidate.RunsAnalyzed,
		BaselineTotalFailures:  baseTotal,
		CandidateTotalFailures: candTotal,
		TotalFailureDelta:      diff,
		CategoryDeltas:         deltas,
		TopRegressions:         top(deltas, func(d int) bool { return d > 0 }, func(a, b int) bool { return a > b }),
		TopImprovements:        top(deltas, func(d int) bool { return d < 0 }, func(a, b int) bool { return a < b }),
		BehaviorDelta:          behaviorDelta(baseline.BehaviorSummary, candidate.BehaviorSummary),
	}
}

func total(counts map[analysis.Category]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

// top selects deltas matching keep, ordered by less with category name as the
// tie-break, capped at topN.
func top(deltas map[analysis.Category]int, keep func(int) bool, less func(a, b int) bool) []CategoryDelta {
	out := make([]CategoryDelta, 0)
	for c, d := range deltas {
		if keep(d) {
			out = append(out, CategoryDelta{Category: c, Delta: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Delta != out[j].Delta {
			return less(out[i].Delta, out[j].Delta)
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func behaviorDelta(base, cand analysis.BehaviorSummary) map[string]MetricDelta {
	b, c := behaviorMetrics(base), behaviorMetrics(cand)
	out := make(map[string]MetricDelta, len(BehaviorMetrics))
	for _, name := range BehaviorMetrics {
		out[name] = MetricDelta{
			Baseline:  analysis.Round2(b[name]),
			Candidate: analysis.Round2(c[name]),
			Delta:     analysis.Round2(c[name] - b[name]),
		}
	}
	return out
}

func behaviorMetrics(bs analysis.BehaviorSummary) map[string]float64 {
	return map[string]float64{
		"avg_behavior_score":           bs.AvgBehaviorScore,
		"todo_compliance_rate":         bs.TodoComplianceRate,
		"parallel_capture_rate":        bs.ParallelCaptureRate,
		"verification_compliance_rate": bs.VerificationComplianceRate,
		"followup_reverify_rate":       bs.FollowupReverifyRate,
	}
}
