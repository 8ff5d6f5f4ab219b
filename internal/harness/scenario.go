package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/trace"
)

// Scenario defines a conformance test scenario: a batch of raw traces and
// assertions about what the pipeline makes of them.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Shards is the number of pipeline shards. Zero means one.
	Shards int `yaml:"shards,omitempty"`

	// Traces are raw trace objects in any supported capture shape.
	Traces []trace.Object `yaml:"traces"`

	// Assertions validate the per-run reports and the archived batch.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of the analysis.
type Assertion struct {
	// Type specifies the assertion type (see the Assert* constants).
	Type string `yaml:"type"`

	// Run is the run_id the assertion targets (all but summary_count).
	Run string `yaml:"run,omitempty"`

	// Category is the finding category (finding_*, summary_count).
	Category string `yaml:"category,omitempty"`

	// Severity optionally narrows finding_present.
	Severity string `yaml:"severity,omitempty"`

	// Stat is a dotted path into the run's stats (stat_equals).
	Stat string `yaml:"stat,omitempty"`

	// Value is the expected stat value (stat_equals).
	Value any `yaml:"value,omitempty"`

	// Axis is todo, parallel or verification (behavior_discipline).
	Axis string `yaml:"axis,omitempty"`

	// Discipline is the expected axis judgment (behavior_discipline).
	Discipline string `yaml:"discipline,omitempty"`

	// Count is the expected number of findings (summary_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFindingPresent     = "finding_present"
	AssertFindingAbsent      = "finding_absent"
	AssertStatEquals         = "stat_equals"
	AssertBehaviorDiscipline = "behavior_discipline"
	AssertSummaryCount       = "summary_count"
)

var behaviorAxes = map[string]bool{"todo": true, "parallel": true, "verification": true}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Traces) == 0 {
		return fmt.Errorf("traces list is required and must be non-empty")
	}

	if s.Shards < 0 {
		return fmt.Errorf("shards must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFindingPresent, AssertFindingAbsent:
		if a.Run == "" {
			return fmt.Errorf("assertions[%d]: run is required for %s", index, a.Type)
		}
		if !analysis.IsKnownCategory(analysis.Category(a.Category)) {
			return fmt.Errorf("assertions[%d]: unknown category %q", index, a.Category)
		}
	case AssertStatEquals:
		if a.Run == "" {
			return fmt.Errorf("assertions[%d]: run is required for stat_equals", index)
		}
		if a.Stat == "" {
			return fmt.Errorf("assertions[%d]: stat is required for stat_equals", index)
		}
	case AssertBehaviorDiscipline:
		if a.Run == "" {
			return fmt.Errorf("assertions[%d]: run is required for behavior_discipline", index)
		}
		if !behaviorAxes[a.Axis] {
			return fmt.Errorf("assertions[%d]: axis must be todo, parallel or verification, got %q", index, a.Axis)
		}
		if a.Discipline == "" {
			return fmt.Errorf("assertions[%d]: discipline is required for behavior_discipline", index)
		}
	case AssertSummaryCount:
		if !analysis.IsKnownCategory(analysis.Category(a.Category)) {
			return fmt.Errorf("assertions[%d]: unknown category %q", index, a.Category)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for summary_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
