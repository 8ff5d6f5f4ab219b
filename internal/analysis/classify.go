package analysis

import (
	"fmt"
	"strings"

	"github.com/roach88/tracegate/internal/trace"
)

const (
	instabilityFailureRate = 0.5
	recoveryStreakLimit    = 3
)

// Classify detects failure modes in one run's normalized event sequence.
//
// Classify is a pure function of its input: calling it twice on the same
// events yields identical findings and stats.
func Classify(events []trace.Event) Report {
	s := deriveSignals(events)

	findings := make([]Finding, 0)
	for _, detect := range detectors {
		if f, ok := detect(s); ok {
			findings = append(findings, f)
		}
	}

	behavior := behaviorAssessment(s)
	return Report{
		RunID:     s.runID,
		SessionID: s.sessionID,
		Findings:  findings,
		Stats: Stats{
			EventCount:            s.eventCount,
			ToolCalls:             len(s.toolEvents),
			ToolSuccesses:         len(s.successes),
			ToolFailures:          len(s.failures),
			CodingIntent:          s.codingIntent,
			VerificationCalls:     len(s.verifications),
			VerificationFollowups: len(s.gateFollowups),
			TodoWriteCalls:        s.todoWrites,
			TodoReadCalls:         s.todoReads,
			SpawnParallelCalls:    s.spawnParallel,
			ParallelTasksTotal:    s.parallelTasks,
			SpawnSubagentCalls:    s.spawnSubagent,
			SubagentWorkflowCalls: s.subagentWorkflow,
			SubagentCallsTotal:    s.subagentCallsTotal(),
			DistinctTools:         s.distinctTools,
			Behavior:              &behavior,
		},
	}
}

type detector func(*signals) (Finding, bool)

// detectors run in taxonomy order; each is evaluated independently.
var detectors = []detector{
	detectNoVerification,
	detectToolInstability,
	detectLooping,
	detectTimeoutBudget,
	detectPrematureCompletion,
	detectRecoveryFailure,
}

func detectNoVerification(s *signals) (Finding, bool) {
	if !s.codingIntent || len(s.verifications) > 0 {
		return Finding{}, false
	}
	return Finding{
		Category:  CategoryNoVerification,
		Severity:  SeverityHigh,
		Reason:    "coding activity detected but no successful verification command ran",
		EventRefs: seqs(s.runEnds),
	}, true
}

func detectToolInstability(s *signals) (Finding, bool) {
	total := len(s.toolEvents)
	if total == 0 {
		return Finding{}, false
	}
	rate := float64(len(s.failures)) / float64(total)
	if rate < instabilityFailureRate {
		return Finding{}, false
	}
	return Finding{
		Category:  CategoryToolInstability,
		Severity:  SeverityMedium,
		Reason:    fmt.Sprintf("%d of %d tool events failed", len(s.failures), total),
		EventRefs: seqs(s.failures),
	}, true
}

func detectLooping(s *signals) (Finding, bool) {
	if len(s.loopHints) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category:  CategoryLooping,
		Severity:  SeverityHigh,
		Reason:    fmt.Sprintf("loop recovery hint emitted %d time(s)", len(s.loopHints)),
		EventRefs: seqs(s.loopHints),
	}, true
}

func detectTimeoutBudget(s *signals) (Finding, bool) {
	var hits []trace.Event
	for _, ev := range s.failures {
		msg := strings.ToLower(ev.Str("error"))
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
			hits = append(hits, ev)
		}
	}
	if len(hits) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category:  CategoryTimeoutBudget,
		Severity:  SeverityHigh,
		Reason:    fmt.Sprintf("%d tool failure(s) hit a timeout", len(hits)),
		EventRefs: seqs(hits),
	}, true
}

func detectPrematureCompletion(s *signals) (Finding, bool) {
	if len(s.gateFollowups) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category:  CategoryPrematureDone,
		Severity:  SeverityMedium,
		Reason:    "run attempted completion while the verification gate required a follow-up",
		EventRefs: seqs(s.gateFollowups),
	}, true
}

// detectRecoveryFailure folds over tool results carrying the current failure
// streak. A success resets the streak; every failure that belongs to a streak
// of recoveryStreakLimit or more is referenced.
func detectRecoveryFailure(s *signals) (Finding, bool) {
	var (
		streak  []trace.Event
		refs    []int64
		longest int
	)
	flush := func() {
		if len(streak) >= recoveryStreakLimit {
			refs = append(refs, seqs(streak)...)
		}
		streak = streak[:0]
	}
	for _, ev := range s.toolEvents {
		switch ev.EventType {
		case trace.TypeToolSuccess:
			flush()
		case trace.TypeToolFailure:
			streak = append(streak, ev)
			if len(streak) > longest {
				longest = len(streak)
			}
		}
	}
	flush()

	if longest < recoveryStreakLimit {
		return Finding{}, false
	}
	return Finding{
		Category:  CategoryRecoveryFailure,
		Severity:  SeverityHigh,
		Reason:    fmt.Sprintf("%d consecutive tool failures without a successful recovery", longest),
		EventRefs: refs,
	}, true
}
