// Package metrics records Prometheus counters for analysis batches and gate
// evaluations. tracegate is a batch tool, so metrics are written to a
// node_exporter textfile instead of being served.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/gate"
	"github.com/roach88/tracegate/internal/pipeline"
)

const namespace = "tracegate"

// Trace outcomes.
const (
	OutcomeAnalyzed = "analyzed"
	OutcomeSkipped  = "skipped"
)

// Recorder holds tracegate metrics on a private registry.
type Recorder struct {
	Registry *prometheus.Registry

	// TracesTotal counts traces by outcome (analyzed, skipped).
	TracesTotal *prometheus.CounterVec

	// FindingsTotal counts findings by category.
	FindingsTotal *prometheus.CounterVec

	// GateChecksTotal counts gate checks by check name and result (pass, fail).
	GateChecksTotal *prometheus.CounterVec

	// BehaviorScore observes per-run behavior scores.
	BehaviorScore prometheus.Histogram
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		TracesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "traces_total",
				Help:      "Trace objects processed by outcome",
			},
			[]string{"outcome"},
		),
		FindingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "findings_total",
				Help:      "Failure findings detected by category",
			},
			[]string{"category"},
		),
		GateChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_checks_total",
				Help:      "Hardening gate checks evaluated by check and result",
			},
			[]string{"check", "result"},
		),
		BehaviorScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "behavior_score",
				Help:      "Per-run behavior discipline score",
				Buckets:   []float64{25, 50, 65, 80, 90, 100},
			},
		),
	}
	r.Registry.MustRegister(r.TracesTotal, r.FindingsTotal, r.GateChecksTotal, r.BehaviorScore)
	return r
}

// ObserveBatch records one analyzed batch. Records whose stats cannot be
// decoded still count their findings but contribute no behavior score.
func (r *Recorder) ObserveBatch(res pipeline.Result) {
	r.TracesTotal.WithLabelValues(OutcomeAnalyzed).Add(float64(len(res.Reports)))
	r.TracesTotal.WithLabelValues(OutcomeSkipped).Add(float64(res.TracesSkipped))
	for _, rec := range res.Reports {
		for _, f := range rec.Findings {
			r.FindingsTotal.WithLabelValues(string(f.Category)).Inc()
		}
		rep, err := analysis.ReportFromRecord(rec)
		if err == nil && rep.Stats.Behavior != nil {
			r.BehaviorScore.Observe(float64(rep.Stats.Behavior.Score))
		}
	}
}

// ObserveGate records each check of a gate result.
func (r *Recorder) ObserveGate(result gate.Result) {
	for name, passed := range result.Checks.Results() {
		outcome := "fail"
		if passed {
			outcome = "pass"
		}
		r.GateChecksTotal.WithLabelValues(name, outcome).Inc()
	}
}

// WriteTextfile writes the registry in text exposition format. The write is
// atomic so node_exporter never reads a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
