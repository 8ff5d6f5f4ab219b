package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tracegate/internal/compare"
)

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <baseline.json> <candidate.json>",
		Short: "Compare two analysis results",
		Long: `Compare a baseline and a candidate analysis.

Each file is either a full pipeline result (as written by analyze --out)
or a bare summary. The verdict is improved, regressed or flat on total
failure count.

Examples:
  tracegate compare before.json after.json
  tracegate compare before.json after.json --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, rootOpts, args[0], args[1])
		},
	}
	return cmd
}

func runCompare(cmd *cobra.Command, opts *RootOptions, baselinePath, candidatePath string) error {
	f := opts.formatter(cmd)

	baseline, err := readJSONObject(baselinePath)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeBadPayload, fmt.Sprintf("failed to read baseline %s", baselinePath), err)
	}
	candidate, err := readJSONObject(candidatePath)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeBadPayload, fmt.Sprintf("failed to read candidate %s", candidatePath), err)
	}

	cmp := compare.ComparePayloads(baseline, candidate)
	opts.logger().Debug("compared summaries",
		"verdict", cmp.Verdict,
		"total_failure_delta", cmp.TotalFailureDelta)

	return f.Success(cmp, func(w io.Writer) { renderComparison(w, cmp) })
}
