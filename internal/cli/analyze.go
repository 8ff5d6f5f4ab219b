package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tracegate/internal/metrics"
	"github.com/roach88/tracegate/internal/pipeline"
	"github.com/roach88/tracegate/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Shards          int
	Database        string
	Label           string
	Out             string
	MetricsTextfile string
}

// AnalyzeOutput is the analyze payload: the pipeline result plus where it
// was archived.
type AnalyzeOutput struct {
	pipeline.Result
	Files   int    `json:"files"`
	BatchID string `json:"batch_id,omitempty"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <paths...>",
		Short: "Classify failure modes in a batch of traces",
		Long: `Analyze trace files and directories.

Each trace object is normalized and classified; the batch summary ranks
failure categories with recommended actions and reports behavior rates.

Exit codes:
  0 - Analysis completed
  2 - Command error (unreadable traces, archive errors, etc.)

Examples:
  tracegate analyze ./traces
  tracegate analyze run1.jsonl run2.json --shards 4
  tracegate analyze ./traces --db tracegate.db --label nightly
  tracegate analyze ./traces --out result.json --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.Shards, "shards", 1, "number of pipeline shards")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the batch in this SQLite database")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label for the archived batch")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the pipeline result JSON to this file")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this textfile")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *AnalyzeOptions, paths []string) error {
	f := opts.formatter(cmd)
	cfg := opts.config()
	logger := opts.logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !cmd.Flags().Changed("shards") {
		opts.Shards = cfg.Pipeline.Shards
	}
	if !cmd.Flags().Changed("db") {
		opts.Database = cfg.Store.Path
	}
	if !cmd.Flags().Changed("metrics-textfile") {
		opts.MetricsTextfile = cfg.Metrics.TextfilePath
	}

	loaded, errs := LoadTraces(paths)
	if len(errs) > 0 {
		return failLoad(f, errs)
	}
	f.VerboseLog("Loaded %d trace(s) from %d file(s)", len(loaded.Traces), loaded.FileCount)

	runner := pipeline.Runner{Shards: opts.Shards, Logger: logger}
	result, err := runner.Run(ctx, loaded.Traces)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeGeneric, "analysis failed", err)
	}
	logger.Info("batch analyzed",
		"runs", result.Summary.RunsAnalyzed,
		"skipped", result.TracesSkipped,
		"shards", opts.Shards)

	out := AnalyzeOutput{Result: result, Files: loaded.FileCount}

	if opts.Out != "" {
		if err := writeJSONFile(opts.Out, result); err != nil {
			return fail(f, ExitCommandError, ErrCodeWriteFailed, "failed to write result", err)
		}
		f.VerboseLog("Wrote result to %s", opts.Out)
	}

	if opts.Database != "" {
		batchID, err := archiveBatch(ctx, opts.Database, opts.Label, result)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeStore, "failed to archive batch", err)
		}
		out.BatchID = batchID
		logger.Debug("batch archived", "db", opts.Database, "batch_id", batchID)
	}

	if opts.MetricsTextfile != "" {
		rec := metrics.NewRecorder()
		rec.ObserveBatch(result)
		if err := rec.WriteTextfile(opts.MetricsTextfile); err != nil {
			return fail(f, ExitCommandError, ErrCodeWriteFailed, "failed to write metrics textfile", err)
		}
	}

	return f.Success(out, func(w io.Writer) { renderAnalysis(w, out) })
}

func archiveBatch(ctx context.Context, dbPath, label string, result pipeline.Result) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	batch, err := st.WriteBatch(ctx, store.BatchInput{
		Label:         label,
		Summary:       result.Summary,
		Reports:       result.Reports,
		TracesSkipped: result.TracesSkipped,
	})
	if err != nil {
		return "", err
	}
	return batch.ID, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
