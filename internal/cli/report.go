package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/wcq/internal/report"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	cmd := &cobra.Command{
		Use:   "report [path]",
		Short: "Print the reporter session for a working-copy tree",
		Long: `Describe the stored state under a path as a reporter session: the root,
then every path whose revision differs from its parent, which is switched,
which holds a lock, or which is missing.

The session is printed as YAML (or JSON with --format json).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runReport(opts, root, cmd)
		},
	}

	return cmd
}

// ReportResult is the output of report.
type ReportResult struct {
	Root  string        `json:"root" yaml:"root"`
	Calls []report.Call `json:"calls" yaml:"calls"`
}

func (r ReportResult) String() string {
	out, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Sprintf("report %s: %v", r.Root, err)
	}
	return strings.TrimRight(string(out), "\n")
}

func runReport(opts *RootOptions, root string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	rec := report.NewRecorder()
	if err := report.Crawl(cmdContext(cmd), st, root, rec); err != nil {
		return WrapExitError(ExitCommandError, "report failed", err)
	}

	return opts.formatter(cmd).Success(ReportResult{Root: root, Calls: rec.Calls()})
}
