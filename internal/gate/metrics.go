package gate

import (
	"strings"

	"github.com/roach88/tracegate/internal/trace"
)

// UnknownTelemetryMode is tallied for runs with no telemetry_mode field.
const UnknownTelemetryMode = "unknown"

// Metrics are per-run averages over one side of a gate evaluation.
type Metrics struct {
	Runs                            int            `json:"runs"`
	EventsPerRun                    float64        `json:"events_per_run"`
	FailuresPerRun                  float64        `json:"failures_per_run"`
	RepeatedIdenticalCommandsPerRun float64        `json:"repeated_identical_commands_per_run"`
	TelemetryModes                  map[string]int `json:"telemetry_modes"`
}

// AggregateMetrics averages telemetry volume, failures and command repeats
// over traces whose normalized stream is nonempty. Events per run counts the
// raw extracted events, before compact summaries are expanded.
func AggregateMetrics(traces []trace.Object) Metrics {
	m := Metrics{TelemetryModes: map[string]int{}}
	var rawEvents, failures, repeats int
	for _, obj := range traces {
		raw := trace.ExtractEventStream(obj)
		events := trace.Normalize(raw)
		if len(events) == 0 {
			continue
		}
		m.Runs++
		rawEvents += len(raw)
		failures += countFailures(events)
		repeats += RepeatedIdenticalCommands(events)
		m.TelemetryModes[telemetryMode(events)]++
	}
	if m.Runs > 0 {
		n := float64(m.Runs)
		m.EventsPerRun = float64(rawEvents) / n
		m.FailuresPerRun = float64(failures) / n
		m.RepeatedIdenticalCommandsPerRun = float64(repeats) / n
	}
	return m
}

func countFailures(events []trace.Event) int {
	n := 0
	for _, ev := range events {
		if ev.EventType == trace.TypeToolFailure {
			n++
		}
	}
	return n
}

// RepeatedIdenticalCommands counts tool-start events that repeat the previous
// start's tool and command for the second time or more in a row. A run of
// three identical starts yields one repeat. Starts with neither a tool name
// nor a command are ignored and do not break a run.
func RepeatedIdenticalCommands(events []trace.Event) int {
	var (
		lastSig string
		streak  int
		repeats int
	)
	for _, ev := range events {
		if ev.EventType != trace.TypeToolStart {
			continue
		}
		tool, cmd := ev.ToolName(), ev.Command()
		if tool == "" && cmd == "" {
			continue
		}
		sig := tool + ":" + cmd
		if sig == lastSig {
			streak++
			if streak >= 2 {
				repeats++
			}
			continue
		}
		lastSig, streak = sig, 0
	}
	return repeats
}

func telemetryMode(events []trace.Event) string {
	for _, ev := range events {
		if mode := strings.TrimSpace(ev.Str("telemetry_mode")); mode != "" {
			return mode
		}
	}
	return UnknownTelemetryMode
}
