// Package harness runs trace scenarios through the analysis pipeline and
// checks the outcome, as executable conformance tests for the classifier.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: timeout_recovery
//	description: "Three timed-out retries trip timeout and recovery findings"
//	shards: 2            # optional, defaults to 1
//	traces:
//	  - events:
//	      - {seq: 1, event_type: tool-failure, run_id: r1,
//	         data: {tool_name: execute, tool_input: {command: pytest}, error: timeout}}
//	assertions:
//	  - type: finding_present
//	    run: r1
//	    category: timeout_budget_miss
//	  - type: stat_equals
//	    run: r1
//	    stat: behavior.score
//	    value: 65
//	  - type: summary_count
//	    category: timeout_budget_miss
//	    count: 1
//
// Traces are raw trace objects in any shape the pipeline accepts.
//
// # Assertion Types
//
//   - finding_present: the run has a finding of the category (and severity, if given)
//   - finding_absent: the run has no finding of the category
//   - stat_equals: a stats field, addressed by dotted path, equals value
//   - behavior_discipline: a behavior axis (todo, parallel, verification) has the discipline
//   - summary_count: the archived batch holds exactly count findings of the category
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory SQLite archive with a fixed
// clock, so snapshots are identical across runs. Snapshots are canonical
// JSON compared with goldie:
//
//	go test ./internal/harness -update
package harness
