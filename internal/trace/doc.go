// Package trace defines the canonical agent execution event and the
// routines that get raw trace captures into that shape.
//
// Trace objects arrive from different capture backends: direct event logs
// ({"events": [...]}), observability-platform exports that nest events under
// output, metadata or observations, and single bare events. ExtractEventStream
// locates the event array and Normalize expands compact tool_call_summary
// records into tool-start plus tool-success/tool-failure pairs.
//
// Both functions are pure and tolerate malformed input by dropping what they
// cannot interpret.
package trace
