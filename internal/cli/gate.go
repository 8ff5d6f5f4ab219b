package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tracegate/internal/gate"
	"github.com/roach88/tracegate/internal/metrics"
	"github.com/roach88/tracegate/internal/store"
)

// GateOptions holds flags for the gate command.
type GateOptions struct {
	*RootOptions
	Baseline           []string
	Candidate          []string
	HistoryPath        string
	NoHistory          bool
	MinEventReduction  float64
	MinRepeatReduction float64
	RequiredPasses     int
	Database           string
	MetricsTextfile    string

	now func() time.Time
}

// GateOutput is the gate payload.
type GateOutput struct {
	gate.Result
	Readiness    *gate.Readiness `json:"readiness,omitempty"`
	EvaluationID string          `json:"evaluation_id,omitempty"`
}

// NewGateCommand creates the gate command.
func NewGateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GateOptions{RootOptions: rootOpts, now: time.Now}

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Evaluate the telemetry hardening gate",
		Long: `Evaluate a candidate trace batch against a baseline.

The gate passes when failures per run do not regress and the candidate
cuts events per run and repeated identical commands per run by at least
the configured percentages. Each outcome is appended to a readiness
history; defaults are ready to flip after enough consecutive passes.

Exit codes:
  0 - Gate passed
  1 - Gate failed
  2 - Command error (unreadable traces, bad history file, etc.)

Examples:
  tracegate gate --baseline ./verbose --candidate ./compact
  tracegate gate --baseline a.jsonl --candidate b.jsonl --min-event-reduction 40
  tracegate gate --baseline ./verbose --candidate ./compact --no-history --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(cmd, opts)
		},
	}

	defaults := gate.DefaultThresholds()
	cmd.Flags().StringSliceVar(&opts.Baseline, "baseline", nil, "baseline trace files or directories")
	cmd.Flags().StringSliceVar(&opts.Candidate, "candidate", nil, "candidate trace files or directories")
	cmd.Flags().StringVar(&opts.HistoryPath, "history", "", "readiness history file")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record this evaluation in the readiness history")
	cmd.Flags().Float64Var(&opts.MinEventReduction, "min-event-reduction", defaults.MinEventReductionPct, "minimum events-per-run reduction (percent)")
	cmd.Flags().Float64Var(&opts.MinRepeatReduction, "min-repeat-reduction", defaults.MinRepeatReductionPct, "minimum repeated-command reduction (percent)")
	cmd.Flags().IntVar(&opts.RequiredPasses, "required-passes", defaults.RequiredConsecutivePasses, "consecutive passes required before flipping defaults")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the evaluation in this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this textfile")

	return cmd
}

func runGate(cmd *cobra.Command, opts *GateOptions) error {
	f := opts.formatter(cmd)
	cfg := opts.config()
	logger := opts.logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(opts.Baseline) == 0 || len(opts.Candidate) == 0 {
		return fail(f, ExitCommandError, ErrCodeMissingInput, "both --baseline and --candidate are required", nil)
	}

	flags := cmd.Flags()
	if flags.Changed("min-event-reduction") {
		cfg.Gate.MinEventReductionPct = opts.MinEventReduction
	}
	if flags.Changed("min-repeat-reduction") {
		cfg.Gate.MinRepeatReductionPct = opts.MinRepeatReduction
	}
	if flags.Changed("required-passes") {
		cfg.Gate.RequiredConsecutivePasses = opts.RequiredPasses
	}
	// flags bypass Load, so the overridden thresholds are checked here
	if err := cfg.Validate(); err != nil {
		return fail(f, ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	th := cfg.Gate.Thresholds()
	if !flags.Changed("history") {
		opts.HistoryPath = cfg.Gate.HistoryPath
	}
	if !flags.Changed("db") {
		opts.Database = cfg.Store.Path
	}
	if !flags.Changed("metrics-textfile") {
		opts.MetricsTextfile = cfg.Metrics.TextfilePath
	}

	baseline, errs := LoadTraces(opts.Baseline)
	if len(errs) > 0 {
		return failLoad(f, errs)
	}
	candidate, errs := LoadTraces(opts.Candidate)
	if len(errs) > 0 {
		return failLoad(f, errs)
	}

	result := gate.Evaluate(baseline.Traces, candidate.Traces, th)
	logger.Info("gate evaluated",
		"passed", result.Passed,
		"baseline_runs", result.BaselineMetrics.Runs,
		"candidate_runs", result.CandidateMetrics.Runs)

	out := GateOutput{Result: result}

	if !opts.NoHistory && opts.HistoryPath != "" {
		tracker := &gate.ReadinessTracker{
			Path:     opts.HistoryPath,
			Required: th.RequiredConsecutivePasses,
			Now:      opts.now,
			Logger:   logger,
		}
		readiness, err := tracker.Update(result)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeWriteFailed, "failed to update readiness history", err)
		}
		out.Readiness = &readiness
	}

	if opts.Database != "" {
		id, err := archiveGate(ctx, opts.Database, result, out.Readiness)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeStore, "failed to archive gate evaluation", err)
		}
		out.EvaluationID = id
	}

	if opts.MetricsTextfile != "" {
		rec := metrics.NewRecorder()
		rec.ObserveGate(result)
		if err := rec.WriteTextfile(opts.MetricsTextfile); err != nil {
			return fail(f, ExitCommandError, ErrCodeWriteFailed, "failed to write metrics textfile", err)
		}
	}

	render := func(w io.Writer) { renderGate(w, out) }
	if !result.Passed {
		if err := f.Failure(ErrCodeGateFailed, "hardening gate failed", out, render); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "hardening gate failed")
	}
	return f.Success(out, render)
}

func archiveGate(ctx context.Context, dbPath string, result gate.Result, readiness *gate.Readiness) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	ev, err := st.WriteGateEvaluation(ctx, store.GateEvaluation{Result: result, Readiness: readiness})
	if err != nil {
		return "", fmt.Errorf("write evaluation: %w", err)
	}
	return ev.ID, nil
}
