package gate

import (
	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/trace"
)

// Check names as they appear in results and metrics labels.
const (
	CheckQualityParity   = "quality_parity"
	CheckEventReduction  = "event_reduction"
	CheckRepeatReduction = "repeat_reduction"
)

// Thresholds configure the gate. Percentages are in 0..100.
type Thresholds struct {
	MinEventReductionPct      float64 `json:"min_event_reduction_pct"`
	MinRepeatReductionPct     float64 `json:"min_repeat_reduction_pct"`
	RequiredConsecutivePasses int     `json:"required_consecutive_passes"`
}

// DefaultThresholds returns the stock gate configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinEventReductionPct:      50.0,
		MinRepeatReductionPct:     60.0,
		RequiredConsecutivePasses: 2,
	}
}

// ParityCheck compares tool failures per run.
type ParityCheck struct {
	Passed                  bool    `json:"passed"`
	BaselineFailuresPerRun  float64 `json:"baseline_failures_per_run"`
	CandidateFailuresPerRun float64 `json:"candidate_failures_per_run"`
	Delta                   float64 `json:"delta"`
}

// ReductionCheck compares one per-run volume against a minimum reduction.
type ReductionCheck struct {
	Passed          bool    `json:"passed"`
	Baseline        float64 `json:"baseline"`
	Candidate       float64 `json:"candidate"`
	ReductionPct    float64 `json:"reduction_pct"`
	MinReductionPct float64 `json:"min_reduction_pct"`
}

// Checks holds the three gate checks.
type Checks struct {
	QualityParity   ParityCheck    `json:"quality_parity"`
	EventReduction  ReductionCheck `json:"event_reduction"`
	RepeatReduction ReductionCheck `json:"repeat_reduction"`
}

// Results lists each check's outcome keyed by check name.
func (c Checks) Results() map[string]bool {
	return map[string]bool{
		CheckQualityParity:   c.QualityParity.Passed,
		CheckEventReduction:  c.EventReduction.Passed,
		CheckRepeatReduction: c.RepeatReduction.Passed,
	}
}

// Result is the outcome of one gate evaluation.
type Result struct {
	Passed           bool       `json:"passed"`
	Checks           Checks     `json:"checks"`
	BaselineMetrics  Metrics    `json:"baseline_metrics"`
	CandidateMetrics Metrics    `json:"candidate_metrics"`
	Thresholds       Thresholds `json:"thresholds"`
}

// Evaluate runs the gate over baseline and candidate trace batches. It is a
// pure function; persisting the outcome is the ReadinessTracker's job.
func Evaluate(baseline, candidate []trace.Object, th Thresholds) Result {
	base := AggregateMetrics(baseline)
	cand := AggregateMetrics(candidate)

	failureDelta := cand.FailuresPerRun - base.FailuresPerRun
	checks := Checks{
		QualityParity: ParityCheck{
			Passed:                  failureDelta <= 0,
			BaselineFailuresPerRun:  base.FailuresPerRun,
			CandidateFailuresPerRun: cand.FailuresPerRun,
			Delta:                   analysis.Round2(failureDelta),
		},
		EventReduction:  reductionCheck(base.EventsPerRun, cand.EventsPerRun, th.MinEventReductionPct),
		RepeatReduction: reductionCheck(base.RepeatedIdenticalCommandsPerRun, cand.RepeatedIdenticalCommandsPerRun, th.MinRepeatReductionPct),
	}

	return Result{
		Passed:           checks.QualityParity.Passed && checks.EventReduction.Passed && checks.RepeatReduction.Passed,
		Checks:           checks,
		BaselineMetrics:  base,
		CandidateMetrics: cand,
		Thresholds:       th,
	}
}

func reductionCheck(baseline, candidate, minPct float64) ReductionCheck {
	pct := PercentReduction(baseline, candidate)
	return ReductionCheck{
		Passed:          pct >= minPct,
		Baseline:        baseline,
		Candidate:       candidate,
		ReductionPct:    analysis.Round2(pct),
		MinReductionPct: minPct,
	}
}

// PercentReduction returns how far candidate fell below baseline, in percent.
// A zero baseline yields 100 when the candidate is also at or below zero and 0
// otherwise.
func PercentReduction(baseline, candidate float64) float64 {
	if baseline > 0 {
		return 100 * (baseline - candidate) / baseline
	}
	if candidate <= 0 {
		return 100.0
	}
	return 0.0
}
