package analysis

const (
	todoToolCallThreshold     = 6
	todoDistinctToolThreshold = 4

	penaltyMissedTodos        = 25
	penaltyMissedParallel     = 20
	penaltyMissedVerification = 35
	penaltyUnverifiedFollowup = 15
)

// behaviorAssessment judges todo, parallel and verification discipline and
// folds them into a 0..100 score. It is computed for every run regardless of
// which findings fired.
func behaviorAssessment(s *signals) Behavior {
	expectedTodos := s.codingIntent &&
		(len(s.toolEvents) >= todoToolCallThreshold ||
			s.distinctTools >= todoDistinctToolThreshold ||
			s.subagentCallsTotal() > 0)
	todoUsed := s.todoWrites > 0

	expectedParallel := s.spawnSubagent >= 2 || (s.spawnParallel > 0 && s.parallelTasks >= 2)
	parallelUsed := s.spawnParallel > 0

	expectedVerification := s.codingIntent
	verified := len(s.verifications) > 0
	followups := len(s.followups)
	reverified := followups > 0 && verified

	b := Behavior{
		Todo: TodoAxis{
			Expected:   expectedTodos,
			Used:       todoUsed,
			Discipline: expectedDiscipline(expectedTodos, todoUsed, DisciplineNotApplicable),
		},
		Parallel: ParallelAxis{
			Expected:   expectedParallel,
			Used:       parallelUsed,
			Discipline: parallelDiscipline(expectedParallel, parallelUsed),
		},
		Verification: VerificationAxis{
			Expected:                expectedVerification,
			Verified:                verified,
			Followups:               followups,
			ReverifiedAfterFollowup: reverified,
			Discipline:              DisciplineMet,
		},
	}
	if expectedVerification && !verified {
		b.Verification.Discipline = DisciplineMissed
	}

	score := 100
	if expectedTodos && !todoUsed {
		score -= penaltyMissedTodos
	}
	if expectedParallel && !parallelUsed {
		score -= penaltyMissedParallel
	}
	if expectedVerification && !verified {
		score -= penaltyMissedVerification
	}
	if followups > 0 && !reverified {
		score -= penaltyUnverifiedFollowup
	}
	b.Score = clampScore(score)
	return b
}

func expectedDiscipline(expected, used bool, otherwise Discipline) Discipline {
	switch {
	case expected && used:
		return DisciplineMet
	case expected:
		return DisciplineMissed
	default:
		return otherwise
	}
}

// parallelDiscipline distinguishes unprompted fan-out ("used") from the
// not-applicable case; rate computations key off the booleans instead.
func parallelDiscipline(expected, used bool) Discipline {
	if !expected && used {
		return DisciplineUsed
	}
	return expectedDiscipline(expected, used, DisciplineNotApplicable)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
