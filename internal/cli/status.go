package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	TrailURL  string
	Committed bool
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Summarize revisions of a working-copy tree",
		Long: `Summarize the revision range, switched state and modification state of
everything tracked under a path, in the compact form "MIN[:MAX][M][S]".

Examples:
  wcq status
  wcq status trunk --trail-url /trunk
  wcq status --committed --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runStatus(opts, root, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TrailURL, "trail-url", "", "expected URL suffix of the root; a mismatch reports switched")
	cmd.Flags().BoolVar(&opts.Committed, "committed", false, "use last-changed revisions instead of base revisions")

	return cmd
}

// StatusResult is the output of status.
type StatusResult struct {
	Path     string `json:"path"`
	MinRev   int64  `json:"min_rev"`
	MaxRev   int64  `json:"max_rev"`
	Switched bool   `json:"switched"`
	Modified bool   `json:"modified"`
}

// String renders the compact "4:7MS" form. A tree with no revisioned nodes
// renders as "Uncommitted".
func (r StatusResult) String() string {
	var b strings.Builder
	switch {
	case r.MinRev < 0:
		b.WriteString("Uncommitted")
	case r.MinRev == r.MaxRev:
		fmt.Fprintf(&b, "%d", r.MinRev)
	default:
		fmt.Fprintf(&b, "%d:%d", r.MinRev, r.MaxRev)
	}
	if r.Modified {
		b.WriteByte('M')
	}
	if r.Switched {
		b.WriteByte('S')
	}
	return b.String()
}

func runStatus(opts *StatusOptions, root string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	rs, err := st.RevisionStatus(cmdContext(cmd), root, opts.TrailURL, opts.Committed)
	if err != nil {
		return WrapExitError(ExitCommandError, "status failed", err)
	}

	return opts.formatter(cmd).Success(StatusResult{
		Path:     root,
		MinRev:   rs.MinRev,
		MaxRev:   rs.MaxRev,
		Switched: rs.Switched,
		Modified: rs.Modified,
	})
}
