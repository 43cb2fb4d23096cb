package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/queue"
	"github.com/roach88/wcq/internal/store"
)

// EnsureAdmOptions holds flags for the ensure-adm command.
type EnsureAdmOptions struct {
	*RootOptions
	UUID      string
	URL       string
	ReposRoot string
	Revision  int64
}

// NewEnsureAdmCommand creates the ensure-adm command.
func NewEnsureAdmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnsureAdmOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ensure-adm <path>",
		Short: "Create or verify a working-copy administrative area",
		Long: `Create the administrative area for a working-copy root, or verify that
an existing one belongs to the same repository and URL.

Examples:
  wcq ensure-adm . --uuid 6a5b... --url https://svn.example.com/repo/trunk
  wcq ensure-adm . --uuid 6a5b... --url https://svn.example.com/repo/trunk --revision 42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnsureAdm(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.UUID, "uuid", "", "repository uuid (required)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "URL of the working-copy root (required)")
	cmd.Flags().StringVar(&opts.ReposRoot, "repos-root", "", "repository root URL")
	cmd.Flags().Int64Var(&opts.Revision, "revision", 0, "base revision of the root")
	_ = cmd.MarkFlagRequired("uuid")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

// AdmResult is the output of ensure-adm.
type AdmResult struct {
	Path     string `json:"path"`
	UUID     string `json:"uuid"`
	URL      string `json:"url"`
	Revision int64  `json:"revision"`
}

func (r AdmResult) String() string {
	return fmt.Sprintf("Administrative area ready: %s (%s at r%d)", r.Path, r.URL, r.Revision)
}

func runEnsureAdm(opts *EnsureAdmOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	ctx := cmdContext(cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	adm := store.Adm{
		Path:      path,
		UUID:      opts.UUID,
		URL:       opts.URL,
		ReposRoot: opts.ReposRoot,
		Revision:  opts.Revision,
	}
	if err := st.EnsureAdm(ctx, adm); err != nil {
		return WrapExitError(ExitCommandError, "ensure-adm failed", err)
	}

	got, err := st.Adm(ctx, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "ensure-adm failed", err)
	}
	opts.Logger.Info("administrative area ready", "path", got.Path, "uuid", got.UUID)

	return opts.formatter(cmd).Success(AdmResult{
		Path:     got.Path,
		UUID:     got.UUID,
		URL:      got.URL,
		Revision: got.Revision,
	})
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	cmd := &cobra.Command{
		Use:   "track <nodes.yaml>",
		Short: "Record working-copy nodes in the metadata store",
		Long: `Record the stored state of working-copy nodes from a YAML file.

The file holds a list of nodes:

  - path: a/b.txt
    kind: file
    revision: 7
    url: https://svn.example.com/repo/trunk/a/b.txt
    checksum: $sha1$aaaa...
    lock_token: opaquelocktoken:1234
    changelist: review
    props:
      svn:eol-style: native

Tracking a path again replaces its stored state. Properties listed under
props are set; properties already stored are kept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(opts, args[0], cmd)
		},
	}

	return cmd
}

// trackEntry is one node in a track file.
type trackEntry struct {
	store.Node `yaml:",inline"`
	Checksum   string            `yaml:"checksum"`
	Props      map[string]string `yaml:"props"`
}

// TrackResult is the output of track.
type TrackResult struct {
	Tracked int `json:"tracked"`
}

func (r TrackResult) String() string {
	return fmt.Sprintf("Tracked %d node(s)", r.Tracked)
}

func runTrack(opts *RootOptions, file string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	ctx := cmdContext(cmd)

	entries, err := readTrackFile(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read track file", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	for _, e := range entries {
		n := e.Node
		if e.Checksum != "" {
			if n.Checksum, err = digest.Parse(e.Checksum); err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("track %s", n.Path), err)
			}
		}
		if err := st.Track(ctx, n); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("track %s", n.Path), err)
		}
		if len(e.Props) > 0 {
			if err := st.ApplyPropertyChanges(ctx, n.Path, propChanges(e.Props)); err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("track %s", n.Path), err)
			}
		}
		opts.Logger.Debug("tracked", "path", n.Path, "revision", n.Revision)
	}

	return opts.formatter(cmd).Success(TrackResult{Tracked: len(entries)})
}

func readTrackFile(file string) ([]trackEntry, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var entries []trackEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	return entries, nil
}

func propChanges(m map[string]string) []queue.PropChange {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	changes := make([]queue.PropChange, 0, len(names))
	for _, name := range names {
		changes = append(changes, queue.SetProp(name, m[name]))
	}
	return changes
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show the stored state of a path",
		Long: `Show the stored state and properties of a tracked path.

Examples:
  wcq show a/b.txt
  wcq show a/b.txt --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	return cmd
}

// NodeView is the printable form of a stored node.
type NodeView struct {
	Path          string     `json:"path" yaml:"path"`
	Kind          string     `json:"kind" yaml:"kind"`
	Revision      int64      `json:"revision" yaml:"revision"`
	ChangedRev    int64      `json:"changed_rev,omitempty" yaml:"changed_rev,omitempty"`
	ChangedAuthor string     `json:"changed_author,omitempty" yaml:"changed_author,omitempty"`
	ChangedDate   string     `json:"changed_date,omitempty" yaml:"changed_date,omitempty"`
	URL           string     `json:"url,omitempty" yaml:"url,omitempty"`
	Checksum      string     `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	LockToken     string     `json:"lock_token,omitempty" yaml:"lock_token,omitempty"`
	Changelist    string     `json:"changelist,omitempty" yaml:"changelist,omitempty"`
	Depth         string     `json:"depth,omitempty" yaml:"depth,omitempty"`
	Missing       bool       `json:"missing,omitempty" yaml:"missing,omitempty"`
	Modified      bool       `json:"modified,omitempty" yaml:"modified,omitempty"`
	Props         []PropView `json:"props,omitempty" yaml:"props,omitempty"`
}

// PropView is a stored property.
type PropView struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Kind  string `json:"kind" yaml:"kind"`
}

func (v NodeView) String() string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%s: %v", v.Path, err)
	}
	return strings.TrimRight(string(out), "\n")
}

func newNodeView(n *store.Node, props []store.Prop) NodeView {
	v := NodeView{
		Path:          n.Path,
		Kind:          string(n.Kind),
		Revision:      n.Revision,
		ChangedRev:    n.ChangedRev,
		ChangedAuthor: n.ChangedAuthor,
		URL:           n.URL,
		LockToken:     n.LockToken,
		Changelist:    n.Changelist,
		Depth:         n.Depth,
		Missing:       n.Missing,
		Modified:      n.Modified,
	}
	if !n.ChangedDate.IsZero() {
		v.ChangedDate = n.ChangedDate.UTC().Format(time.RFC3339)
	}
	if n.Checksum != nil {
		v.Checksum = n.Checksum.String()
	}
	for _, p := range props {
		v.Props = append(v.Props, PropView{Name: p.Name, Value: p.Value, Kind: string(p.Kind)})
	}
	return v
}

func runShow(opts *RootOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	ctx := cmdContext(cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	n, err := st.Node(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitCommandError, "path not tracked", err)
		}
		return WrapExitError(ExitCommandError, "failed to read node", err)
	}
	props, err := st.Props(ctx, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read properties", err)
	}

	return opts.formatter(cmd).Success(newNodeView(n, props))
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned metadata and checkpoint the database",
		Long: `Remove properties of paths that are no longer tracked and checkpoint the
SQLite write-ahead log.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(opts, cmd)
		},
	}

	return cmd
}

// CleanupResult is the output of cleanup.
type CleanupResult struct {
	OrphanProps int64 `json:"orphan_props"`
}

func (r CleanupResult) String() string {
	return fmt.Sprintf("Cleanup complete: removed %d orphaned propert(ies)", r.OrphanProps)
}

func runCleanup(opts *RootOptions, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	res, err := st.Cleanup(cmdContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "cleanup failed", err)
	}
	return opts.formatter(cmd).Success(CleanupResult{OrphanProps: res.OrphanProps})
}

// cmdContext returns the command's context, or Background when unset.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
