// Package analysis classifies agent runs into a closed failure taxonomy and
// aggregates the per-run results across a batch.
//
// # Classification
//
// Classify derives sub-signals from one run's normalized events (tool
// results, verification commands, coding intent, todo and subagent usage,
// verification follow-ups) and evaluates six independent detectors:
//
//   - no_verification: coding intent without a successful verification command
//   - tool_misuse_or_instability: half or more of tool events are failures
//   - looping_or_doom_edits: a loop-recovery-hint was emitted
//   - timeout_budget_miss: a tool failure mentions a timeout
//   - premature_completion: the verification gate demanded a follow-up
//   - recovery_failure_after_error: three or more failures with no success between
//
// Every report also carries a behavior assessment in Stats.Behavior with a
// 0..100 discipline score.
//
// # Aggregation
//
// Summarize tallies categories, ranks them, attaches fixed recommendations and
// computes discipline rates. Summaries depend only on the reports' order and
// content, which is what lets sharded runs merge back to identical results.
package analysis
