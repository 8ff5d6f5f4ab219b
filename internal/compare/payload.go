package compare

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/trace"
)

// ComparePayloads compares two decoded analysis outputs. Each payload may be
// the pipeline result ({"summary": {...}, "reports": [...]}) or a bare summary.
func ComparePayloads(baseline, candidate map[string]any) Comparison {
	return Compare(SummaryFromPayload(baseline), SummaryFromPayload(candidate))
}

// SummaryFromPayload rebuilds a summary from decoded JSON. Missing or
// non-numeric fields coerce to zero; ranked failures and recommendations are
// rebuilt from the counts.
func SummaryFromPayload(payload map[string]any) analysis.Summary {
	src := payload
	if nested, ok := trace.Map(payload["summary"]); ok {
		src = nested
	}

	counts := make(map[analysis.Category]int)
	if fc, ok := trace.Map(src["failure_counts"]); ok {
		for c, v := range fc {
			counts[analysis.Category(c)] = int(number(v))
		}
	}

	bs := analysis.BehaviorSummary{}
	if raw, ok := trace.Map(src["behavior_summary"]); ok {
		f := func(key string) float64 { return number(raw[key]) }
		i := func(key string) int { return int(number(raw[key])) }
		bs = analysis.BehaviorSummary{
			AvgBehaviorScore:           f("avg_behavior_score"),
			TodoExpectedRuns:           i("todo_expected_runs"),
			TodoCompliantRuns:          i("todo_compliant_runs"),
			TodoComplianceRate:         f("todo_compliance_rate"),
			ParallelExpectedRuns:       i("parallel_expected_runs"),
			ParallelCapturedRuns:       i("parallel_captured_runs"),
			ParallelCaptureRate:        f("parallel_capture_rate"),
			VerificationExpectedRuns:   i("verification_expected_runs"),
			VerificationCompliantRuns:  i("verification_compliant_runs"),
			VerificationComplianceRate: f("verification_compliance_rate"),
			FollowupRuns:               i("followup_runs"),
			ReverifiedFollowupRuns:     i("reverified_followup_runs"),
			FollowupReverifyRate:       f("followup_reverify_rate"),
		}
	}

	s := rankCounts(counts)
	s.RunsAnalyzed = int(number(src["runs_analyzed"]))
	s.BehaviorSummary = bs
	return s
}

// rankCounts orders categories by count descending. Ties keep taxonomy
// order, with categories outside the taxonomy last by name.
func rankCounts(counts map[analysis.Category]int) analysis.Summary {
	order := make([]analysis.Category, 0, len(counts))
	known := make(map[analysis.Category]bool, len(analysis.Categories))
	for _, c := range analysis.Categories {
		known[c] = true
		if _, ok := counts[c]; ok {
			order = append(order, c)
		}
	}
	var extra []analysis.Category
	for c := range counts {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	order = append(order, extra...)

	ranked := make([]analysis.RankedFailure, 0, len(order))
	for _, c := range order {
		ranked = append(ranked, analysis.RankedFailure{Category: c, Count: counts[c]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })

	recs := make([]analysis.Recommendation, 0, len(ranked))
	for _, rf := range ranked {
		recs = append(recs, analysis.Recommendation{
			Category: rf.Category,
			Count:    rf.Count,
			Action:   analysis.RecommendationFor(rf.Category),
		})
	}
	return analysis.Summary{
		FailureCounts:   counts,
		RankedFailures:  ranked,
		Recommendations: recs,
	}
}

// number coerces a decoded JSON/YAML scalar to float64. Anything that is not
// a finite number, or a string holding one, is 0.
func number(v any) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case interface{ Float64() (float64, error) }:
		n, err := val.Float64()
		if err != nil {
			return 0
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = n
	case bool:
		return 0
	default:
		n, ok := trace.Int64(v)
		if !ok {
			return 0
		}
		f = float64(n)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
