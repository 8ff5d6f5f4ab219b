package analysis

// Category is one failure mode in the closed taxonomy.
type Category string

const (
	CategoryNoVerification  Category = "no_verification"
	CategoryToolInstability Category = "tool_misuse_or_instability"
	CategoryLooping         Category = "looping_or_doom_edits"
	CategoryTimeoutBudget   Category = "timeout_budget_miss"
	CategoryPrematureDone   Category = "premature_completion"
	CategoryRecoveryFailure Category = "recovery_failure_after_error"
)

// Categories lists the taxonomy in classifier evaluation order.
var Categories = []Category{
	CategoryNoVerification,
	CategoryToolInstability,
	CategoryLooping,
	CategoryTimeoutBudget,
	CategoryPrematureDone,
	CategoryRecoveryFailure,
}

// Severity grades a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Discipline is the per-axis behavior judgment.
type Discipline string

const (
	DisciplineMet           Discipline = "met"
	DisciplineMissed        Discipline = "missed"
	DisciplineUsed          Discipline = "used"
	DisciplineNotApplicable Discipline = "not_applicable"
)

// Finding is one reported problem in a single run.
type Finding struct {
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	Reason    string   `json:"reason"`
	EventRefs []int64  `json:"event_refs"`
}

// Report is one run's classification result. It is built once by Classify
// and only read afterwards.
type Report struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	Findings  []Finding `json:"findings"`
	Stats     Stats     `json:"stats"`
}

// Stats holds the flat per-run counts plus the nested behavior assessment.
// Behavior is nil only for reports reconstructed from records that lacked it.
type Stats struct {
	EventCount            int       `json:"event_count"`
	ToolCalls             int       `json:"tool_calls"`
	ToolSuccesses         int       `json:"tool_successes"`
	ToolFailures          int       `json:"tool_failures"`
	CodingIntent          bool      `json:"coding_intent"`
	VerificationCalls     int       `json:"verification_calls"`
	VerificationFollowups int       `json:"verification_followups"`
	TodoWriteCalls        int       `json:"todo_write_calls"`
	TodoReadCalls         int       `json:"todo_read_calls"`
	SpawnParallelCalls    int       `json:"spawn_parallel_calls"`
	ParallelTasksTotal    int       `json:"parallel_tasks_total"`
	SpawnSubagentCalls    int       `json:"spawn_subagent_calls"`
	SubagentWorkflowCalls int       `json:"run_subagent_workflow_calls"`
	SubagentCallsTotal    int       `json:"subagent_calls_total"`
	DistinctTools         int       `json:"distinct_tools"`
	Behavior              *Behavior `json:"behavior,omitempty"`
}

// Behavior is the discipline assessment across the todo, parallel and
// verification axes.
type Behavior struct {
	Todo         TodoAxis         `json:"todo"`
	Parallel     ParallelAxis     `json:"parallel"`
	Verification VerificationAxis `json:"verification"`
	Score        int              `json:"score"`
}

type TodoAxis struct {
	Expected   bool       `json:"expected"`
	Used       bool       `json:"used"`
	Discipline Discipline `json:"discipline"`
}

type ParallelAxis struct {
	Expected   bool       `json:"expected"`
	Used       bool       `json:"used"`
	Discipline Discipline `json:"discipline"`
}

type VerificationAxis struct {
	Expected                bool       `json:"expected"`
	Verified                bool       `json:"verified"`
	Followups               int        `json:"followups"`
	ReverifiedAfterFollowup bool       `json:"reverified_after_followup"`
	Discipline              Discipline `json:"discipline"`
}

var recommendations = map[Category]string{
	CategoryNoVerification:  "Require a verification command (tests, compile or lint) before the run may report completion on coding tasks.",
	CategoryToolInstability: "Audit tool argument construction and sandbox stability; half or more of tool events failed.",
	CategoryLooping:         "Tighten loop detection and inject a strategy change earlier when identical edits or commands repeat.",
	CategoryTimeoutBudget:   "Raise per-tool timeouts or split long-running commands; prefer targeted test selection.",
	CategoryPrematureDone:   "Block completion while a verification follow-up is outstanding and re-run checks before finishing.",
	CategoryRecoveryFailure: "Add a recovery step after consecutive tool failures: re-read state, change approach, or escalate.",
}

const genericRecommendation = "Investigate representative traces for this category and add a targeted guardrail."

// RecommendationFor returns the fixed action text for a category.
func RecommendationFor(c Category) string {
	if action, ok := recommendations[c]; ok {
		return action
	}
	return genericRecommendation
}

// IsKnownCategory reports whether c is one of the taxonomy categories.
func IsKnownCategory(c Category) bool {
	_, ok := recommendations[c]
	return ok
}
