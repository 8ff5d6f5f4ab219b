package analysis

import (
	"math"
	"sort"
)

// Summary aggregates many per-run reports.
type Summary struct {
	RunsAnalyzed    int              `json:"runs_analyzed"`
	FailureCounts   map[Category]int `json:"failure_counts"`
	RankedFailures  []RankedFailure  `json:"ranked_failures"`
	Recommendations []Recommendation `json:"recommendations"`
	BehaviorSummary BehaviorSummary  `json:"behavior_summary"`
}

// RankedFailure is one (category, count) pair in descending count order.
type RankedFailure struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Recommendation pairs a ranked category with its fixed action text.
type Recommendation struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Action   string   `json:"action"`
}

// BehaviorSummary holds batch-level discipline rates. Rates are percentages
// rounded to two decimals; a zero denominator yields 0.0.
type BehaviorSummary struct {
	AvgBehaviorScore           float64 `json:"avg_behavior_score"`
	TodoExpectedRuns           int     `json:"todo_expected_runs"`
	TodoCompliantRuns          int     `json:"todo_compliant_runs"`
	TodoComplianceRate         float64 `json:"todo_compliance_rate"`
	ParallelExpectedRuns       int     `json:"parallel_expected_runs"`
	ParallelCapturedRuns       int     `json:"parallel_captured_runs"`
	ParallelCaptureRate        float64 `json:"parallel_capture_rate"`
	VerificationExpectedRuns   int     `json:"verification_expected_runs"`
	VerificationCompliantRuns  int     `json:"verification_compliant_runs"`
	VerificationComplianceRate float64 `json:"verification_compliance_rate"`
	FollowupRuns               int     `json:"followup_runs"`
	ReverifiedFollowupRuns     int     `json:"reverified_followup_runs"`
	FollowupReverifyRate       float64 `json:"followup_reverify_rate"`
}

// Summarize tallies findings and behavior across reports. It never fails;
// an empty input produces an all-zero summary.
func Summarize(reports []Report) Summary {
	counts := make(map[Category]int)
	var order []Category
	for _, r := range reports {
		for _, f := range r.Findings {
			if _, seen := counts[f.Category]; !seen {
				order = append(order, f.Category)
			}
			counts[f.Category]++
		}
	}

	ranked := make([]RankedFailure, 0, len(order))
	for _, c := range order {
		ranked = append(ranked, RankedFailure{Category: c, Count: counts[c]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	recs := make([]Recommendation, 0, len(ranked))
	for _, rf := range ranked {
		recs = append(recs, Recommendation{
			Category: rf.Category,
			Count:    rf.Count,
			Action:   RecommendationFor(rf.Category),
		})
	}

	return Summary{
		RunsAnalyzed:    len(reports),
		FailureCounts:   counts,
		RankedFailures:  ranked,
		Recommendations: recs,
		BehaviorSummary: summarizeBehavior(reports),
	}
}

func summarizeBehavior(reports []Report) BehaviorSummary {
	var (
		bs         BehaviorSummary
		scoreTotal float64
		scored     int
	)
	for _, r := range reports {
		b := r.Stats.Behavior
		if b == nil {
			continue
		}
		scored++
		scoreTotal += float64(b.Score)

		if b.Todo.Expected {
			bs.TodoExpectedRuns++
			if b.Todo.Used {
				bs.TodoCompliantRuns++
			}
		}
		if b.Parallel.Expected {
			bs.ParallelExpectedRuns++
			if b.Parallel.Used {
				bs.ParallelCapturedRuns++
			}
		}
		if b.Verification.Expected {
			bs.VerificationExpectedRuns++
			if b.Verification.Verified {
				bs.VerificationCompliantRuns++
			}
		}
		if b.Verification.Followups > 0 {
			bs.FollowupRuns++
			if b.Verification.ReverifiedAfterFollowup {
				bs.ReverifiedFollowupRuns++
			}
		}
	}

	if scored > 0 {
		bs.AvgBehaviorScore = Round2(scoreTotal / float64(scored))
	}
	bs.TodoComplianceRate = rate(bs.TodoCompliantRuns, bs.TodoExpectedRuns)
	bs.ParallelCaptureRate = rate(bs.ParallelCapturedRuns, bs.ParallelExpectedRuns)
	bs.VerificationComplianceRate = rate(bs.VerificationCompliantRuns, bs.VerificationExpectedRuns)
	bs.FollowupReverifyRate = rate(bs.ReverifiedFollowupRuns, bs.FollowupRuns)
	return bs
}

func rate(num, den int) float64 {
	if den == 0 {
		return 0.0
	}
	return Round2(float64(num) / float64(den) * 100)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
