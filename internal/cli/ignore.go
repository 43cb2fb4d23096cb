package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/wcq/internal/ignore"
)

// IgnoreOptions holds flags for the ignore command.
type IgnoreOptions struct {
	*RootOptions
	Patterns []string
	NoGlobal bool
}

// NewIgnoreCommand creates the ignore command.
func NewIgnoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IgnoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ignore <name>...",
		Short: "Check names against the ignore lists",
		Long: `Check names against the global ignore list (from config) and any extra
patterns given with --pattern, such as a directory's svn:ignore value.
The administrative directory name is always ignored.

Examples:
  wcq ignore foo.o README
  wcq ignore build --pattern build --pattern 'dist*' --no-global`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIgnore(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Patterns, "pattern", "p", nil, "extra ignore pattern (repeatable)")
	cmd.Flags().BoolVar(&opts.NoGlobal, "no-global", false, "skip the global ignore list")

	return cmd
}

// IgnoreMatch is the verdict for one name.
type IgnoreMatch struct {
	Name    string `json:"name"`
	Ignored bool   `json:"ignored"`
	Pattern string `json:"pattern,omitempty"`
}

// IgnoreResult is the output of ignore.
type IgnoreResult struct {
	Matches []IgnoreMatch `json:"matches"`
}

func (r IgnoreResult) String() string {
	lines := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		if m.Ignored {
			lines = append(lines, fmt.Sprintf("I %s (%s)", m.Name, m.Pattern))
		} else {
			lines = append(lines, "  "+m.Name)
		}
	}
	return strings.Join(lines, "\n")
}

func runIgnore(opts *IgnoreOptions, names []string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}

	var patterns []string
	if !opts.NoGlobal {
		patterns = append(patterns, opts.Config.Ignore.Global...)
	}
	patterns = append(patterns, opts.Patterns...)

	m, err := ignore.Compile(patterns)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid ignore pattern", err)
	}

	res := IgnoreResult{Matches: make([]IgnoreMatch, 0, len(names))}
	for _, name := range names {
		if opts.Config.IsAdmDir(name) {
			res.Matches = append(res.Matches, IgnoreMatch{Name: name, Ignored: true, Pattern: "adm"})
			continue
		}
		pattern, ok := m.MatchingPattern(name)
		res.Matches = append(res.Matches, IgnoreMatch{Name: name, Ignored: ok, Pattern: pattern})
	}
	return opts.formatter(cmd).Success(res)
}
