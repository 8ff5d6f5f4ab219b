package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/canon"
)

// Snapshot captures the analysis outcome of a scenario execution.
// It is serialized as canonical JSON for deterministic comparison.
type Snapshot struct {
	ScenarioName  string                    `json:"scenario_name"`
	Pass          bool                      `json:"pass"`
	RunsAnalyzed  int                       `json:"runs_analyzed"`
	TracesSkipped int                       `json:"traces_skipped"`
	FailureCounts map[analysis.Category]int `json:"failure_counts"`
	Runs          []RunSnapshot             `json:"runs"`
}

// RunSnapshot is the per-run part of a Snapshot.
type RunSnapshot struct {
	RunID         string            `json:"run_id"`
	BehaviorScore any               `json:"behavior_score"`
	Findings      []FindingSnapshot `json:"findings"`
}

// FindingSnapshot omits the free-text reason so wording changes don't
// invalidate snapshots.
type FindingSnapshot struct {
	Category  analysis.Category `json:"category"`
	Severity  analysis.Severity `json:"severity"`
	EventRefs []int64           `json:"event_refs"`
}

// NewSnapshot builds the snapshot of a scenario result.
func NewSnapshot(name string, result *Result) Snapshot {
	runs := make([]RunSnapshot, len(result.Analysis.Reports))
	for i, rec := range result.Analysis.Reports {
		findings := make([]FindingSnapshot, len(rec.Findings))
		for j, f := range rec.Findings {
			refs := f.EventRefs
			if refs == nil {
				refs = []int64{}
			}
			findings[j] = FindingSnapshot{Category: f.Category, Severity: f.Severity, EventRefs: refs}
		}
		score, _ := lookupPath(rec.Stats, "behavior.score")
		runs[i] = RunSnapshot{RunID: rec.RunID, BehaviorScore: score, Findings: findings}
	}
	counts := result.Analysis.Summary.FailureCounts
	if counts == nil {
		counts = map[analysis.Category]int{}
	}
	return Snapshot{
		ScenarioName:  name,
		Pass:          result.Pass,
		RunsAnalyzed:  result.Analysis.Summary.RunsAnalyzed,
		TracesSkipped: result.Analysis.TracesSkipped,
		FailureCounts: counts,
		Runs:          runs,
	}
}

// Marshal returns the canonical JSON of the snapshot followed by a newline.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := canon.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-computed result against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

// GoldenPath returns the golden file path for a scenario file:
// a golden/ directory next to it, named after the file.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// UpdateGolden writes the snapshot of result to path.
func UpdateGolden(path, scenarioName string, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// MatchesGolden reports whether the snapshot of result equals the golden
// file at path.
func MatchesGolden(path, scenarioName string, result *Result) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	current, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return bytes.Equal(golden, current), nil
}
