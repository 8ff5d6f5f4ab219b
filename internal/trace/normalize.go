package trace

// Normalize converts heterogeneous raw event records into canonical events.
//
// Non-mapping entries and entries without an event_type are dropped. Compact
// tool_call_summary records are expanded in place into a tool-start event
// immediately followed by tool-success or tool-failure; every other record
// passes through in its original position.
func Normalize(raw []any) []Event {
	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		m, ok := Map(item)
		if !ok {
			continue
		}
		ev, ok := fromMap(m)
		if !ok {
			continue
		}
		if ev.EventType == TypeToolCallSummary {
			events = append(events, expandSummary(ev)...)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// fromMap lifts one raw record into the canonical shape. Data always ends up
// non-nil so downstream lookups stay total.
func fromMap(m map[string]any) (Event, bool) {
	eventType := String(m["event_type"])
	if eventType == "" {
		return Event{}, false
	}
	seq, _ := Int64(m["seq"])
	data, ok := Map(m["data"])
	if !ok {
		data = map[string]any{}
	}
	return Event{
		Seq:       seq,
		EventType: eventType,
		RunID:     String(m["run_id"]),
		SessionID: String(m["session_id"]),
		Data:      data,
	}, true
}

func expandSummary(ev Event) []Event {
	toolName := ev.Data["tool_name"]
	toolInput, ok := Map(ev.Data["tool_input_preview"])
	if !ok {
		toolInput = map[string]any{}
	}

	start := Event{
		Seq:       ev.Seq,
		EventType: TypeToolStart,
		RunID:     ev.RunID,
		SessionID: ev.SessionID,
		Data: map[string]any{
			"tool_name":  toolName,
			"tool_input": toolInput,
		},
	}

	end := Event{
		Seq:       ev.Seq,
		RunID:     ev.RunID,
		SessionID: ev.SessionID,
		Data: map[string]any{
			"tool_name":   toolName,
			"tool_input":  toolInput,
			"duration_ms": ev.Data["duration_ms"],
		},
	}
	if String(ev.Data["status"]) == "failure" {
		end.EventType = TypeToolFailure
		end.Data["error"] = ev.Data["error"]
		end.Data["error_type"] = ev.Data["error_type"]
	} else {
		end.EventType = TypeToolSuccess
		end.Data["tool_output_preview"] = ev.Data["tool_output_preview"]
	}
	if mode, ok := ev.Data["telemetry_mode"]; ok {
		start.Data["telemetry_mode"] = mode
		end.Data["telemetry_mode"] = mode
	}

	return []Event{start, end}
}
