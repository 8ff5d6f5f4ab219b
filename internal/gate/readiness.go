package gate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed history.schema.json
var historySchemaJSON string

const historySchemaURL = "history.schema.json"

var historySchema = mustCompileHistorySchema()

func mustCompileHistorySchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(historySchemaURL, bytes.NewReader([]byte(historySchemaJSON))); err != nil {
		panic(fmt.Sprintf("gate: add history schema: %v", err))
	}
	return compiler.MustCompile(historySchemaURL)
}

// History is the on-disk readiness log. It is rewritten wholesale on every
// update.
type History struct {
	Runs []HistoryEntry `json:"runs"`
}

// HistoryEntry records one gate outcome. Checks is kept raw so entries
// written by other versions survive a rewrite.
type HistoryEntry struct {
	Timestamp string          `json:"timestamp"`
	Passed    bool            `json:"passed"`
	Checks    json.RawMessage `json:"checks,omitempty"`
}

// Readiness summarizes the history after an update.
type Readiness struct {
	HistoryPath               string `json:"history_path"`
	TotalRuns                 int    `json:"total_runs"`
	CurrentConsecutivePasses  int    `json:"current_consecutive_passes"`
	RequiredConsecutivePasses int    `json:"required_consecutive_passes"`
	ReadyToFlipDefaults       bool   `json:"ready_to_flip_defaults"`
	LastTimestamp             string `json:"last_timestamp"`
}

// ReadinessTracker appends gate outcomes to a history file. Updates are a
// read-modify-write of Path with no locking; callers sharing a path must
// serialize calls.
type ReadinessTracker struct {
	Path     string
	Required int
	Now      func() time.Time
	Logger   *slog.Logger
}

// UpdateDefaultFlipReadiness records result in the history at path using the
// wall clock and reports whether defaults are ready to flip.
func UpdateDefaultFlipReadiness(path string, result Result, required int) (Readiness, error) {
	t := &ReadinessTracker{Path: path, Required: required}
	return t.Update(result)
}

// Update appends result to the history, persists it and returns the derived
// readiness. A missing, unparsable or malformed history file starts fresh.
func (t *ReadinessTracker) Update(result Result) (Readiness, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := t.Now
	if now == nil {
		now = time.Now
	}

	history, err := t.load(logger)
	if err != nil {
		return Readiness{}, err
	}

	checks, err := json.Marshal(result.Checks)
	if err != nil {
		return Readiness{}, fmt.Errorf("encode checks: %w", err)
	}
	entry := HistoryEntry{
		Timestamp: now().UTC().Format(time.RFC3339Nano),
		Passed:    result.Passed,
		Checks:    checks,
	}
	history.Runs = append(history.Runs, entry)

	if err := t.save(history); err != nil {
		return Readiness{}, err
	}

	streak := ConsecutivePasses(history.Runs)
	logger.Debug("readiness updated",
		"path", t.Path,
		"passed", result.Passed,
		"streak", streak,
		"required", t.Required)

	return Readiness{
		HistoryPath:               t.Path,
		TotalRuns:                 len(history.Runs),
		CurrentConsecutivePasses:  streak,
		RequiredConsecutivePasses: t.Required,
		ReadyToFlipDefaults:       streak >= t.Required,
		LastTimestamp:             entry.Timestamp,
	}, nil
}

// ConsecutivePasses counts passing entries from the end of runs back to the
// first failure.
func ConsecutivePasses(runs []HistoryEntry) int {
	n := 0
	for i := len(runs) - 1; i >= 0; i-- {
		if !runs[i].Passed {
			break
		}
		n++
	}
	return n
}

// ReadHistory loads and validates the history at path. A missing file is an
// empty history; anything that fails to parse or validate is an error.
func ReadHistory(path string) (History, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return History{Runs: []HistoryEntry{}}, nil
	}
	if err != nil {
		return History{}, fmt.Errorf("read history: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return History{}, fmt.Errorf("parse history: %w", err)
	}
	if err := historySchema.Validate(doc); err != nil {
		return History{}, fmt.Errorf("validate history: %w", err)
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return History{}, fmt.Errorf("decode history: %w", err)
	}
	if h.Runs == nil {
		h.Runs = []HistoryEntry{}
	}
	return h, nil
}

func (t *ReadinessTracker) load(logger *slog.Logger) (History, error) {
	h, err := ReadHistory(t.Path)
	if err == nil {
		return h, nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return History{}, err
	}
	logger.Warn("readiness history unreadable, starting fresh", "path", t.Path, "error", err)
	return History{Runs: []HistoryEntry{}}, nil
}

func (t *ReadinessTracker) save(h History) error {
	if dir := filepath.Dir(t.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(t.Path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
