package testutil

import (
	"github.com/roach88/tracegate/internal/trace"
)

// RunBuilder emits raw events for one run with monotonically increasing seq.
//
// Builders return raw mappings, the shape trace capture produces, so the same
// fixtures drive normalization, classification and pipeline tests.
type RunBuilder struct {
	RunID     string
	SessionID string
	seq       int64
}

// NewRun creates a builder for runID. The session id defaults to "sess-"+runID.
func NewRun(runID string) *RunBuilder {
	return &RunBuilder{RunID: runID, SessionID: "sess-" + runID}
}

// Event builds an arbitrary event with the next seq.
func (b *RunBuilder) Event(eventType string, data map[string]any) map[string]any {
	b.seq++
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"seq":        b.seq,
		"event_type": eventType,
		"run_id":     b.RunID,
		"session_id": b.SessionID,
		"data":       data,
	}
}

func (b *RunBuilder) RunStart() map[string]any {
	return b.Event(trace.TypeRunStart, nil)
}

func (b *RunBuilder) RunEnd() map[string]any {
	return b.Event(trace.TypeRunEnd, nil)
}

func (b *RunBuilder) ToolStart(tool string, input map[string]any) map[string]any {
	return b.Event(trace.TypeToolStart, toolData(tool, input))
}

func (b *RunBuilder) ToolSuccess(tool string, input map[string]any) map[string]any {
	return b.Event(trace.TypeToolSuccess, toolData(tool, input))
}

func (b *RunBuilder) ToolFailure(tool string, input map[string]any, errMsg string) map[string]any {
	data := toolData(tool, input)
	data["error"] = errMsg
	data["error_type"] = "ToolError"
	return b.Event(trace.TypeToolFailure, data)
}

// Exec emits a tool-start/tool-success pair for an execute command.
func (b *RunBuilder) Exec(command string) []map[string]any {
	input := Cmd(command)
	return []map[string]any{
		b.ToolStart("execute", input),
		b.ToolSuccess("execute", input),
	}
}

// ExecFail emits a tool-start/tool-failure pair for an execute command.
func (b *RunBuilder) ExecFail(command, errMsg string) []map[string]any {
	input := Cmd(command)
	return []map[string]any{
		b.ToolStart("execute", input),
		b.ToolFailure("execute", input, errMsg),
	}
}

// Followup emits a verification-followup-required event. An empty source
// omits the key.
func (b *RunBuilder) Followup(source string) map[string]any {
	data := map[string]any{"reason": "verification required"}
	if source != "" {
		data["source"] = source
	}
	return b.Event(trace.TypeFollowupRequired, data)
}

func (b *RunBuilder) LoopHint() map[string]any {
	return b.Event(trace.TypeLoopRecoveryHint, map[string]any{"reason": "repeated edit"})
}

// Summary emits a compact tool_call_summary record.
func (b *RunBuilder) Summary(tool string, input map[string]any, status string) map[string]any {
	data := map[string]any{
		"tool_name":          tool,
		"tool_input_preview": input,
		"status":             status,
		"duration_ms":        12,
	}
	if status == "failure" {
		data["error"] = "command failed"
		data["error_type"] = "ToolError"
	} else {
		data["tool_output_preview"] = "ok"
	}
	return b.Event(trace.TypeToolCallSummary, data)
}

// Cmd builds an execute tool input.
func Cmd(command string) map[string]any {
	return map[string]any{"command": command}
}

// Path builds a file tool input.
func Path(path string) map[string]any {
	return map[string]any{"path": path}
}

// Flatten joins single events and event groups into one raw list.
func Flatten(parts ...any) []any {
	var out []any
	for _, p := range parts {
		switch v := p.(type) {
		case map[string]any:
			out = append(out, v)
		case []map[string]any:
			for _, ev := range v {
				out = append(out, ev)
			}
		case []any:
			out = append(out, v...)
		}
	}
	return out
}

// Normalized flattens parts and runs them through trace.Normalize.
func Normalized(parts ...any) []trace.Event {
	return trace.Normalize(Flatten(parts...))
}

// TraceObject wraps raw events as a direct event-log trace object.
func TraceObject(parts ...any) trace.Object {
	return trace.Object{"events": Flatten(parts...)}
}

func toolData(tool string, input map[string]any) map[string]any {
	if input == nil {
		input = map[string]any{}
	}
	return map[string]any{"tool_name": tool, "tool_input": input}
}
