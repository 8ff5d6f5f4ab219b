package analysis

import (
	"encoding/json"
	"fmt"
)

// ReportRecord is the JSON-compatible per-run report emitted by the pipeline.
// Stats is kept as an open mapping so records survive schema additions on
// either side of a merge.
type ReportRecord struct {
	RunID     string         `json:"run_id"`
	SessionID string         `json:"session_id"`
	Stats     map[string]any `json:"stats"`
	Findings  []Finding      `json:"findings"`
}

// Record serializes a report into its record form.
func (r Report) Record() ReportRecord {
	stats := r.Stats.record()
	findings := make([]Finding, len(r.Findings))
	for i, f := range r.Findings {
		f.EventRefs = append([]int64{}, f.EventRefs...)
		findings[i] = f
	}
	return ReportRecord{
		RunID:     r.RunID,
		SessionID: r.SessionID,
		Stats:     stats,
		Findings:  findings,
	}
}

// record lays Stats out under its JSON keys, with plain strings, bools and
// ints as values so the map reads the same in memory and after a JSON trip.
func (s Stats) record() map[string]any {
	m := map[string]any{
		"event_count":                 s.EventCount,
		"tool_calls":                  s.ToolCalls,
		"tool_successes":              s.ToolSuccesses,
		"tool_failures":               s.ToolFailures,
		"coding_intent":               s.CodingIntent,
		"verification_calls":          s.VerificationCalls,
		"verification_followups":      s.VerificationFollowups,
		"todo_write_calls":            s.TodoWriteCalls,
		"todo_read_calls":             s.TodoReadCalls,
		"spawn_parallel_calls":        s.SpawnParallelCalls,
		"parallel_tasks_total":        s.ParallelTasksTotal,
		"spawn_subagent_calls":        s.SpawnSubagentCalls,
		"run_subagent_workflow_calls": s.SubagentWorkflowCalls,
		"subagent_calls_total":        s.SubagentCallsTotal,
		"distinct_tools":              s.DistinctTools,
	}
	if b := s.Behavior; b != nil {
		m["behavior"] = map[string]any{
			"todo": map[string]any{
				"expected":   b.Todo.Expected,
				"used":       b.Todo.Used,
				"discipline": string(b.Todo.Discipline),
			},
			"parallel": map[string]any{
				"expected":   b.Parallel.Expected,
				"used":       b.Parallel.Used,
				"discipline": string(b.Parallel.Discipline),
			},
			"verification": map[string]any{
				"expected":                  b.Verification.Expected,
				"verified":                  b.Verification.Verified,
				"followups":                 b.Verification.Followups,
				"reverified_after_followup": b.Verification.ReverifiedAfterFollowup,
				"discipline":                string(b.Verification.Discipline),
			},
			"score": b.Score,
		}
	}
	return m
}

// ReportFromRecord rebuilds a report from its record form. Unknown stats keys
// are ignored; a missing behavior mapping leaves Stats.Behavior nil.
func ReportFromRecord(rec ReportRecord) (Report, error) {
	var stats Stats
	if len(rec.Stats) > 0 {
		raw, err := json.Marshal(rec.Stats)
		if err != nil {
			return Report{}, fmt.Errorf("report %q: encode stats: %w", rec.RunID, err)
		}
		if err := json.Unmarshal(raw, &stats); err != nil {
			return Report{}, fmt.Errorf("report %q: decode stats: %w", rec.RunID, err)
		}
	}

	findings := make([]Finding, 0, len(rec.Findings))
	for _, f := range rec.Findings {
		if f.EventRefs == nil {
			f.EventRefs = []int64{}
		}
		findings = append(findings, f)
	}
	return Report{
		RunID:     rec.RunID,
		SessionID: rec.SessionID,
		Findings:  findings,
		Stats:     stats,
	}, nil
}

// Records converts reports to records in order.
func Records(reports []Report) []ReportRecord {
	out := make([]ReportRecord, len(reports))
	for i, r := range reports {
		out[i] = r.Record()
	}
	return out
}
