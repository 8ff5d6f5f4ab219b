package harness

import (
	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/pipeline"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Analysis is the pipeline output for the scenario's traces.
	Analysis pipeline.Result `json:"analysis"`

	// BatchID identifies the batch in the scenario's archive.
	BatchID string `json:"batch_id"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Report returns the first report for runID.
func (r *Result) Report(runID string) (analysis.ReportRecord, bool) {
	for _, rec := range r.Analysis.Reports {
		if rec.RunID == runID {
			return rec, true
		}
	}
	return analysis.ReportRecord{}, false
}

// RunIDs lists analyzed runs in report order.
func (r *Result) RunIDs() []string {
	ids := make([]string, len(r.Analysis.Reports))
	for i, rec := range r.Analysis.Reports {
		ids[i] = rec.RunID
	}
	return ids
}
