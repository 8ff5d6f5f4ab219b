// Package gate decides whether a candidate harness configuration may replace
// the baseline by default.
//
// Evaluate compares per-run aggregate metrics of two trace batches and runs
// three checks:
//
//   - quality_parity: the candidate must not fail more tool calls per run
//   - event_reduction: raw telemetry volume per run must drop by a minimum percentage
//   - repeat_reduction: repeated identical commands per run must drop by a minimum percentage
//
// A ReadinessTracker keeps a JSON history of gate outcomes. Defaults are
// ready to flip once the trailing run of passing evaluations reaches the
// required length.
package gate
