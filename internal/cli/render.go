package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/compare"
	"github.com/roach88/tracegate/internal/gate"
	"github.com/roach88/tracegate/internal/store"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func passLabel(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func renderAnalysis(w io.Writer, out AnalyzeOutput) {
	s := out.Summary
	fmt.Fprintf(w, "Analyzed %d run(s) from %d file(s)", s.RunsAnalyzed, out.Files)
	if out.TracesSkipped > 0 {
		fmt.Fprintf(w, ", skipped %d trace(s) without events", out.TracesSkipped)
	}
	fmt.Fprintln(w)
	if out.BatchID != "" {
		fmt.Fprintf(w, "Archived as batch %s\n", out.BatchID)
	}
	renderSummary(w, s)
}

func renderSummary(w io.Writer, s analysis.Summary) {
	if len(s.RankedFailures) == 0 {
		fmt.Fprintln(w, "\nNo failures detected.")
	} else {
		fmt.Fprintln(w, "\nFailures:")
		tw := newTable(w)
		fmt.Fprintln(tw, "  CATEGORY\tCOUNT\tACTION")
		for _, rec := range s.Recommendations {
			fmt.Fprintf(tw, "  %s\t%d\t%s\n", rec.Category, rec.Count, rec.Action)
		}
		tw.Flush()
	}

	b := s.BehaviorSummary
	fmt.Fprintln(w, "\nBehavior:")
	tw := newTable(w)
	fmt.Fprintf(tw, "  avg score\t%.2f\n", b.AvgBehaviorScore)
	fmt.Fprintf(tw, "  todo compliance\t%.2f%%\t(%d/%d)\n", b.TodoComplianceRate, b.TodoCompliantRuns, b.TodoExpectedRuns)
	fmt.Fprintf(tw, "  parallel capture\t%.2f%%\t(%d/%d)\n", b.ParallelCaptureRate, b.ParallelCapturedRuns, b.ParallelExpectedRuns)
	fmt.Fprintf(tw, "  verification compliance\t%.2f%%\t(%d/%d)\n", b.VerificationComplianceRate, b.VerificationCompliantRuns, b.VerificationExpectedRuns)
	fmt.Fprintf(tw, "  followup reverify\t%.2f%%\t(%d/%d)\n", b.FollowupReverifyRate, b.ReverifiedFollowupRuns, b.FollowupRuns)
	tw.Flush()
}

func renderComparison(w io.Writer, c compare.Comparison) {
	fmt.Fprintf(w, "Verdict: %s\n", c.Verdict)
	fmt.Fprintf(w, "Runs: %d -> %d\n", c.BaselineRuns, c.CandidateRuns)
	fmt.Fprintf(w, "Failures: %d -> %d (%+d)\n", c.BaselineTotalFailures, c.CandidateTotalFailures, c.TotalFailureDelta)

	renderDeltas(w, "Top regressions", c.TopRegressions)
	renderDeltas(w, "Top improvements", c.TopImprovements)

	fmt.Fprintln(w, "\nBehavior:")
	tw := newTable(w)
	for _, name := range compare.BehaviorMetrics {
		d, ok := c.BehaviorDelta[name]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%.2f\t->\t%.2f\t(%+.2f)\n", name, d.Baseline, d.Candidate, d.Delta)
	}
	tw.Flush()
}

func renderDeltas(w io.Writer, title string, deltas []compare.CategoryDelta) {
	if len(deltas) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	tw := newTable(w)
	for _, d := range deltas {
		fmt.Fprintf(tw, "  %s\t%+d\n", d.Category, d.Delta)
	}
	tw.Flush()
}

func renderGate(w io.Writer, out GateOutput) {
	r := out.Result
	fmt.Fprintf(w, "Gate: %s\n", passLabel(r.Passed))
	fmt.Fprintf(w, "Runs: baseline %d, candidate %d\n\n", r.BaselineMetrics.Runs, r.CandidateMetrics.Runs)

	tw := newTable(w)
	fmt.Fprintln(tw, "  CHECK\tRESULT\tBASELINE\tCANDIDATE\tDETAIL")
	p := r.Checks.QualityParity
	fmt.Fprintf(tw, "  %s\t%s\t%.2f\t%.2f\tdelta %+.2f failures/run\n",
		gate.CheckQualityParity, passLabel(p.Passed), p.BaselineFailuresPerRun, p.CandidateFailuresPerRun, p.Delta)
	for _, rc := range []struct {
		name  string
		check gate.ReductionCheck
	}{
		{gate.CheckEventReduction, r.Checks.EventReduction},
		{gate.CheckRepeatReduction, r.Checks.RepeatReduction},
	} {
		fmt.Fprintf(tw, "  %s\t%s\t%.2f\t%.2f\t%.2f%% (min %.2f%%)\n",
			rc.name, passLabel(rc.check.Passed), rc.check.Baseline, rc.check.Candidate,
			rc.check.ReductionPct, rc.check.MinReductionPct)
	}
	tw.Flush()

	if len(r.CandidateMetrics.TelemetryModes) > 0 {
		fmt.Fprintf(w, "\nCandidate telemetry modes: %s\n", formatModes(r.CandidateMetrics.TelemetryModes))
	}

	if rd := out.Readiness; rd != nil {
		fmt.Fprintf(w, "\nReadiness: %d/%d consecutive passes over %d run(s)",
			rd.CurrentConsecutivePasses, rd.RequiredConsecutivePasses, rd.TotalRuns)
		if rd.ReadyToFlipDefaults {
			fmt.Fprint(w, ", ready to flip defaults")
		}
		fmt.Fprintln(w)
	}
	if out.EvaluationID != "" {
		fmt.Fprintf(w, "Archived as evaluation %s\n", out.EvaluationID)
	}
}

func formatModes(modes map[string]int) string {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, modes[name])
	}
	return strings.Join(parts, " ")
}

func renderBatches(w io.Writer, batches []store.BatchInfo) {
	if len(batches) == 0 {
		fmt.Fprintln(w, "No batches archived.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SEQ\tID\tCREATED\tLABEL\tRUNS\tSKIPPED\tFINDINGS")
	for _, b := range batches {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\n",
			b.Seq, b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"), b.Label,
			b.RunsAnalyzed, b.TracesSkipped, b.Findings)
	}
	tw.Flush()
}

func renderBatch(w io.Writer, out BatchOutput) {
	b := out.Batch
	fmt.Fprintf(w, "Batch %s (seq %d)\n", b.ID, b.Seq)
	if b.Label != "" {
		fmt.Fprintf(w, "Label: %s\n", b.Label)
	}
	fmt.Fprintf(w, "Created: %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Runs: %d, skipped: %d\n", len(b.Reports), b.TracesSkipped)

	if len(b.Reports) > 0 {
		fmt.Fprintln(w, "\nRuns:")
		tw := newTable(w)
		fmt.Fprintln(tw, "  RUN\tSESSION\tFINDINGS")
		for _, r := range b.Reports {
			cats := make([]string, len(r.Findings))
			for i, f := range r.Findings {
				cats[i] = string(f.Category)
			}
			findings := "-"
			if len(cats) > 0 {
				findings = strings.Join(cats, ",")
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.RunID, r.SessionID, findings)
		}
		tw.Flush()
	}
	renderSummary(w, b.Summary)
}

func renderGateEvaluations(w io.Writer, evals []store.GateEvaluation) {
	if len(evals) == 0 {
		fmt.Fprintln(w, "No gate evaluations archived.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SEQ\tID\tCREATED\tRESULT\tEVENT RED.\tREPEAT RED.")
	for _, ev := range evals {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f%%\t%.2f%%\n",
			ev.Seq, ev.ID, ev.CreatedAt.Format("2006-01-02 15:04:05"), passLabel(ev.Passed),
			ev.Result.Checks.EventReduction.ReductionPct, ev.Result.Checks.RepeatReduction.ReductionPct)
	}
	tw.Flush()
}
