// Package pipeline runs the extract, normalize, classify and summarize stages
// over a batch of raw trace objects.
package pipeline

import (
	"fmt"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/trace"
)

// Result is the batch-level output: the summary plus one serialized report
// per analyzed run. TracesSkipped counts objects that yielded no events.
type Result struct {
	Summary       analysis.Summary        `json:"summary"`
	Reports       []analysis.ReportRecord `json:"reports"`
	TracesSkipped int                     `json:"traces_skipped"`
}

// AnalyzeTraceObjects classifies every trace object with a nonempty event
// stream and summarizes the reports. Reports keep input order.
func AnalyzeTraceObjects(traces []trace.Object) Result {
	reports := make([]analysis.Report, 0, len(traces))
	skipped := 0
	for _, obj := range traces {
		events := trace.Normalize(trace.ExtractEventStream(obj))
		if len(events) == 0 {
			skipped++
			continue
		}
		reports = append(reports, analysis.Classify(events))
	}
	return Result{
		Summary:       analysis.Summarize(reports),
		Reports:       analysis.Records(reports),
		TracesSkipped: skipped,
	}
}

// Merge concatenates shard results in argument order and re-aggregates the
// reconstructed reports, so the merged summary equals a single unsharded run.
func Merge(results ...Result) (Result, error) {
	var (
		records []analysis.ReportRecord
		skipped int
	)
	for _, r := range results {
		records = append(records, r.Reports...)
		skipped += r.TracesSkipped
	}

	reports := make([]analysis.Report, 0, len(records))
	for _, rec := range records {
		rep, err := analysis.ReportFromRecord(rec)
		if err != nil {
			return Result{}, fmt.Errorf("merge: %w", err)
		}
		reports = append(reports, rep)
	}
	if records == nil {
		records = []analysis.ReportRecord{}
	}
	return Result{
		Summary:       analysis.Summarize(reports),
		Reports:       records,
		TracesSkipped: skipped,
	}, nil
}
