package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded finalize passes",
		Long: `List every finalize pass recorded in the metadata store, oldest first.

Examples:
  wcq runs
  wcq runs --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	return cmd
}

// RunView is one recorded finalize pass.
type RunView struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	Revision   int64  `json:"revision"`
	Applied    int    `json:"applied"`
	Failed     int    `json:"failed"`
	NotApplied int    `json:"not_applied"`
	Cancelled  bool   `json:"cancelled"`
	Error      string `json:"error,omitempty"`
}

// RunsResult is the output of runs.
type RunsResult struct {
	Runs []RunView `json:"runs"`
}

func (r RunsResult) String() string {
	if len(r.Runs) == 0 {
		return "No finalize runs recorded."
	}
	var b strings.Builder
	for i, run := range r.Runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d  r%d  applied=%d failed=%d not_applied=%d  %s",
			run.Seq, run.Revision, run.Applied, run.Failed, run.NotApplied, run.ID)
		if run.Cancelled {
			b.WriteString("  (cancelled)")
		}
		if run.Error != "" {
			fmt.Fprintf(&b, "  error: %s", run.Error)
		}
	}
	return b.String()
}

func runRuns(opts *RootOptions, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	runs, err := st.Runs(cmdContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	res := RunsResult{Runs: make([]RunView, 0, len(runs))}
	for _, r := range runs {
		res.Runs = append(res.Runs, RunView{
			ID:         r.ID,
			Seq:        r.Seq,
			Revision:   r.Revision,
			Applied:    r.Applied,
			Failed:     r.Failed,
			NotApplied: r.NotApplied,
			Cancelled:  r.Cancelled,
			Error:      r.Error,
		})
	}
	return opts.formatter(cmd).Success(res)
}
