package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonical event_type vocabulary.
const (
	TypeRunStart           = "run-start"
	TypeRunEnd             = "run-end"
	TypeToolStart          = "tool-start"
	TypeToolSuccess        = "tool-success"
	TypeToolFailure        = "tool-failure"
	TypeFollowupRequired   = "verification-followup-required"
	TypeLoopRecoveryHint   = "loop-recovery-hint"
	TypeToolCallSummary    = "tool_call_summary"
	toolEventPrefix        = "tool-"
	FollowupSourceVerifier = "verification"
)

// Object is a raw trace object as decoded from JSON or YAML.
type Object = map[string]any

// Event is the canonical, post-normalization event shape.
//
// Data is an open mapping: readers default absent keys instead of rejecting
// unknown ones, so heterogeneous producers can share one stream.
type Event struct {
	Seq       int64          `json:"seq"`
	EventType string         `json:"event_type"`
	RunID     string         `json:"run_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data"`
}

// IsTool reports whether the event belongs to the tool-* family.
func (e Event) IsTool() bool {
	return strings.HasPrefix(e.EventType, toolEventPrefix)
}

// Str returns data[key] as a string, or "" when absent.
func (e Event) Str(key string) string {
	return String(e.Data[key])
}

// ToolName returns data.tool_name.
func (e Event) ToolName() string {
	return e.Str("tool_name")
}

// ToolInput returns data.tool_input, or an empty map when it is not a mapping.
func (e Event) ToolInput() map[string]any {
	if m, ok := Map(e.Data["tool_input"]); ok {
		return m
	}
	return map[string]any{}
}

// Command returns the lower-cased, trimmed command/cmd field of the tool input.
func (e Event) Command() string {
	input := e.ToolInput()
	cmd := String(input["command"])
	if cmd == "" {
		cmd = String(input["cmd"])
	}
	return strings.ToLower(strings.TrimSpace(cmd))
}

// String renders scalar values as strings. Nil maps to "".
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// Int64 coerces JSON/YAML numerics to int64. Non-numeric values yield 0, false.
func Int64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case int32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case interface{ Int64() (int64, error) }:
		n, err := val.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Map returns v as a string-keyed mapping. YAML documents decoded into
// interface{} may carry map[any]any, which is converted.
func Map(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = elem
		}
		return out, true
	default:
		return nil, false
	}
}

// List returns v as a slice.
func List(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = elem
		}
		return out, true
	default:
		return nil, false
	}
}
