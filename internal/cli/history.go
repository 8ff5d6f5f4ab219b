package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	BatchID  string
	Gates    bool
}

// BatchOutput is one archived batch with its SQL-side category tally.
type BatchOutput struct {
	store.Batch
	CategoryCounts map[analysis.Category]int `json:"category_counts"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse archived analyses and gate evaluations",
		Long: `List batches archived by analyze --db, newest first.

With --batch, show one batch with its per-run reports. With --gates,
list archived gate evaluations instead.

Examples:
  tracegate history --db traces.db
  tracegate history --db traces.db --batch 0190c7a4-...
  tracegate history --db traces.db --gates --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite archive to read")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum entries to list (0 for all)")
	cmd.Flags().StringVar(&opts.BatchID, "batch", "", "show a single batch")
	cmd.Flags().BoolVar(&opts.Gates, "gates", false, "list gate evaluations instead of batches")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !cmd.Flags().Changed("db") {
		opts.Database = opts.config().Store.Path
	}
	if opts.Database == "" {
		return fail(f, ExitCommandError, ErrCodeMissingInput, "no archive given (use --db or store.path in config)", nil)
	}
	if _, err := os.Stat(opts.Database); err != nil {
		return fail(f, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("archive not found: %s", opts.Database), err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeStore, "failed to open archive", err)
	}
	defer st.Close()

	switch {
	case opts.BatchID != "":
		return showBatch(ctx, f, st, opts.BatchID)
	case opts.Gates:
		evals, err := st.ListGateEvaluations(ctx, opts.Limit)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeStore, "failed to list gate evaluations", err)
		}
		return f.Success(evals, func(w io.Writer) { renderGateEvaluations(w, evals) })
	default:
		batches, err := st.ListBatches(ctx, opts.Limit)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeStore, "failed to list batches", err)
		}
		return f.Success(batches, func(w io.Writer) { renderBatches(w, batches) })
	}
}

func showBatch(ctx context.Context, f *OutputFormatter, st *store.Store, id string) error {
	b, err := st.ReadBatch(ctx, id)
	if errors.Is(err, store.ErrBatchNotFound) {
		return fail(f, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("batch not found: %s", id), err)
	}
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeStore, "failed to read batch", err)
	}
	counts, err := st.CategoryCounts(ctx, id)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeStore, "failed to tally findings", err)
	}
	out := BatchOutput{Batch: b, CategoryCounts: counts}
	return f.Success(out, func(w io.Writer) { renderBatch(w, out) })
}
