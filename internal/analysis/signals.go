package analysis

import (
	"strings"

	"github.com/roach88/tracegate/internal/trace"
)

// verificationTokens mark a successful tool call as a verification step.
var verificationTokens = []string{
	"pytest",
	"test",
	"go test",
	"cargo test",
	"npm test",
	"pnpm test",
	"py_compile",
	"ruff check",
	"mypy",
	"make compile",
	"make smoke",
}

// readOnlyCommands never count as coding activity, whatever follows them.
var readOnlyCommands = []string{"pwd", "ls", "cat ", "head ", "tail ", "find ", "grep ", "rg ", "which "}

var codingExecTokens = []string{
	"pytest",
	"py_compile",
	"python -m",
	"python ",
	"make ",
	"npm ",
	"pnpm ",
	"yarn ",
	"go test",
	"cargo test",
	"ruff",
	"mypy",
	"tsc",
}

var sourceExtensions = []string{
	".py", ".ts", ".tsx", ".js", ".jsx", ".java", ".go", ".rs",
	".cpp", ".c", ".cs", ".rb", ".php", ".swift", ".kt",
}

const (
	toolExecute          = "execute"
	toolExecutePython    = "execute_python"
	toolWriteFile        = "write_file"
	toolEditFile         = "edit_file"
	toolWriteTodos       = "write_todos"
	toolReadTodos        = "read_todos"
	toolSpawnParallel    = "spawn_parallel"
	toolSpawnSubagent    = "spawn_subagent"
	toolSubagentWorkflow = "run_subagent_workflow"
)

// signals are the derived per-run sub-signals every finding and the behavior
// assessment read from.
type signals struct {
	runID     string
	sessionID string

	eventCount    int
	toolEvents    []trace.Event
	successes     []trace.Event
	failures      []trace.Event
	verifications []trace.Event
	distinctTools int
	codingIntent  bool

	todoWrites int
	todoReads  int

	spawnParallel    int
	parallelTasks    int
	spawnSubagent    int
	subagentWorkflow int

	followups     []trace.Event
	gateFollowups []trace.Event
	loopHints     []trace.Event
	runEnds       []trace.Event
}

func (s *signals) subagentCallsTotal() int {
	return s.spawnParallel + s.spawnSubagent + s.subagentWorkflow
}

func deriveSignals(events []trace.Event) *signals {
	s := &signals{
		runID:      firstNonEmpty(events, func(e trace.Event) string { return e.RunID }),
		sessionID:  firstNonEmpty(events, func(e trace.Event) string { return e.SessionID }),
		eventCount: len(events),
	}

	tools := make(map[string]struct{})
	for _, ev := range events {
		switch ev.EventType {
		case trace.TypeFollowupRequired:
			s.followups = append(s.followups, ev)
			if ev.Str("source") == trace.FollowupSourceVerifier {
				s.gateFollowups = append(s.gateFollowups, ev)
				s.codingIntent = true
			}
			continue
		case trace.TypeLoopRecoveryHint:
			s.loopHints = append(s.loopHints, ev)
			continue
		case trace.TypeRunEnd:
			s.runEnds = append(s.runEnds, ev)
			continue
		}

		if !ev.IsTool() {
			continue
		}
		s.toolEvents = append(s.toolEvents, ev)
		name := ev.ToolName()
		if name != "" {
			tools[name] = struct{}{}
		}
		if indicatesCoding(ev) {
			s.codingIntent = true
		}

		switch ev.EventType {
		case trace.TypeToolStart:
			s.countStart(ev)
		case trace.TypeToolSuccess:
			s.successes = append(s.successes, ev)
			if isVerification(ev) {
				s.verifications = append(s.verifications, ev)
			}
		case trace.TypeToolFailure:
			s.failures = append(s.failures, ev)
		}
	}
	s.distinctTools = len(tools)
	return s
}

func (s *signals) countStart(ev trace.Event) {
	switch ev.ToolName() {
	case toolWriteTodos:
		s.todoWrites++
	case toolReadTodos:
		s.todoReads++
	case toolSpawnParallel:
		s.spawnParallel++
		if tasks, ok := trace.List(ev.ToolInput()["tasks"]); ok {
			s.parallelTasks += len(tasks)
		}
	case toolSpawnSubagent:
		s.spawnSubagent++
	case toolSubagentWorkflow:
		s.subagentWorkflow++
	}
}

// indicatesCoding applies the coding-intent heuristics to a single tool event.
func indicatesCoding(ev trace.Event) bool {
	switch ev.ToolName() {
	case toolExecute:
		switch ev.EventType {
		case trace.TypeToolStart, trace.TypeToolSuccess, trace.TypeToolFailure:
			return isCodingExec(ev.Command())
		}
		return false
	case toolExecutePython:
		return true
	case toolWriteFile, toolEditFile:
		return hasSourceExtension(ev.ToolInput())
	}
	return false
}

// isCodingExec expects a lower-cased, trimmed command.
func isCodingExec(cmd string) bool {
	if cmd == "" {
		return false
	}
	for _, prefix := range readOnlyCommands {
		if strings.HasPrefix(cmd, prefix) {
			return false
		}
	}
	return containsAny(cmd, codingExecTokens)
}

func hasSourceExtension(input map[string]any) bool {
	path := trace.String(input["path"])
	if path == "" {
		path = trace.String(input["file_path"])
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func isVerification(ev trace.Event) bool {
	cmd := ev.Command()
	return cmd != "" && containsAny(cmd, verificationTokens)
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// firstNonEmpty scans events in order and returns the first non-empty value
// produced by get, or "".
func firstNonEmpty(events []trace.Event, get func(trace.Event) string) string {
	for _, ev := range events {
		if v := get(ev); v != "" {
			return v
		}
	}
	return ""
}

func seqs(events []trace.Event) []int64 {
	refs := make([]int64, 0, len(events))
	for _, ev := range events {
		refs = append(refs, ev.Seq)
	}
	return refs
}
