package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wcq/internal/manifest"
	"github.com/roach88/wcq/internal/queue"
	"github.com/roach88/wcq/internal/store"
)

// FinalizeOptions holds flags for the finalize command.
type FinalizeOptions struct {
	*RootOptions
	Revision int64
	Author   string
	Date     string
}

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FinalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "finalize <manifest>",
		Short: "Apply a commit manifest to the metadata store",
		Long: `Finalize the paths of a completed commit.

The manifest (a CUE file or package directory) lists one record per committed
path. Records are queued in order and applied path by path: the commit is
recorded, property changes are applied, then the lock and changelist are
cleared and the new pristine checksum is stored. A recursive record covers
every tracked descendant as of apply time.

A failing path does not stop the pass. Interrupting (Ctrl-C) stops it before
the next path; paths already finalized stay finalized.

Exit codes:
  0 - Every path finalized
  1 - Some paths failed or were not applied, or the pass was cancelled
  2 - Command error (unreadable manifest, invalid record, store unavailable)

Examples:
  wcq finalize commit.cue
  wcq finalize ./commit --revision 43 --author sally --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFinalize(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Revision, "revision", 0, "committed revision (overrides manifest)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "commit author (overrides manifest)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "commit date, RFC 3339 (overrides manifest)")

	return cmd
}

// FinalizeResult is the output of finalize.
type FinalizeResult struct {
	RunID      string          `json:"run_id,omitempty"`
	Revision   int64           `json:"revision"`
	Applied    int             `json:"applied"`
	Failures   []FailureResult `json:"failures"`
	NotApplied []string        `json:"not_applied"`
	Cancelled  bool            `json:"cancelled"`
	Error      string          `json:"error,omitempty"`
}

// FailureResult is one failed path.
type FailureResult struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// NewFinalizeResult converts an apply report. fatal is the error Apply
// returned, if any.
func NewFinalizeResult(runID string, info queue.CommitInfo, r *queue.Report, fatal error) FinalizeResult {
	res := FinalizeResult{
		RunID:      runID,
		Revision:   info.Revision,
		Applied:    r.Applied,
		Failures:   make([]FailureResult, 0, len(r.Failures)),
		NotApplied: append([]string{}, r.NotApplied...),
		Cancelled:  r.Cancelled,
	}
	for _, f := range r.Failures {
		res.Failures = append(res.Failures, FailureResult{Path: f.Path, Error: f.Err.Error()})
	}
	if fatal != nil && !queue.IsCancelled(fatal) {
		res.Error = fatal.Error()
	}
	return res
}

// OK reports whether every path was finalized.
func (r FinalizeResult) OK() bool {
	return len(r.Failures) == 0 && len(r.NotApplied) == 0 && !r.Cancelled && r.Error == ""
}

// WriteText renders the result for humans.
func (r FinalizeResult) WriteText(w io.Writer) {
	status := "ok"
	switch {
	case r.Error != "":
		status = "aborted"
	case r.Cancelled:
		status = "cancelled"
	case !r.OK():
		status = "incomplete"
	}

	fmt.Fprintf(w, "Finalize r%d: %s\n", r.Revision, status)
	fmt.Fprintf(w, "  applied:     %d\n", r.Applied)
	fmt.Fprintf(w, "  failed:      %d\n", len(r.Failures))
	fmt.Fprintf(w, "  not applied: %d\n", len(r.NotApplied))
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  FAIL %s: %s\n", f.Path, f.Error)
	}
	for _, p := range r.NotApplied {
		fmt.Fprintf(w, "  SKIP %s\n", p)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  ERROR %s\n", r.Error)
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", r.RunID)
	}
}

func (r FinalizeResult) String() string {
	var b strings.Builder
	r.WriteText(&b)
	return strings.TrimRight(b.String(), "\n")
}

func runFinalize(opts *FinalizeOptions, source string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	logger := opts.Logger

	m, err := manifest.Load(source)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	info, err := opts.commitInfo(cmd, m.Commit)
	if err != nil {
		return err
	}

	q := queue.New(append(opts.Config.QueueOptions(), queue.WithLogger(logger))...)
	for _, rec := range m.Records {
		if err := q.Enqueue(rec); err != nil {
			return WrapExitError(ExitCommandError, "invalid finalization record", err)
		}
	}
	logger.Info("manifest loaded", "source", source, "records", q.Len(), "revision", info.Revision)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	// Setup signal handling so Ctrl-C stops the pass between paths
	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, stopping finalize", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	report, applyErr := q.Apply(ctx, st, info, queue.ContextCancel(ctx))
	if report == nil {
		return WrapExitError(ExitCommandError, "finalize failed", applyErr)
	}

	run := store.Run{
		Revision:   info.Revision,
		Applied:    report.Applied,
		Failed:     len(report.Failures),
		NotApplied: len(report.NotApplied),
		Cancelled:  report.Cancelled,
	}
	if applyErr != nil {
		run.Error = applyErr.Error()
	}
	runID, err := st.RecordRun(context.WithoutCancel(ctx), run)
	if err != nil {
		logger.Warn("failed to record finalize run", "error", err)
	}

	res := NewFinalizeResult(runID, info, report, applyErr)
	logger.Info("finalize complete",
		"run", runID,
		"applied", res.Applied,
		"failed", len(res.Failures),
		"not_applied", len(res.NotApplied),
		"cancelled", res.Cancelled)

	if err := opts.formatter(cmd).Success(res); err != nil {
		return err
	}

	switch {
	case applyErr != nil && queue.IsCancelled(applyErr):
		return &ExitError{Code: ExitFailure, Message: "finalize cancelled", Err: applyErr, Reported: true}
	case applyErr != nil:
		return &ExitError{Code: ExitCommandError, Message: "finalize aborted", Err: applyErr, Reported: true}
	case !res.OK():
		return &ExitError{Code: ExitFailure, Message: "finalize incomplete", Err: errIncomplete, Reported: true}
	}
	return nil
}

// commitInfo applies flag overrides to the manifest's commit.
func (o *FinalizeOptions) commitInfo(cmd *cobra.Command, info queue.CommitInfo) (queue.CommitInfo, error) {
	flags := cmd.Flags()
	if flags.Changed("revision") {
		info.Revision = o.Revision
	}
	if flags.Changed("author") {
		info.Author = o.Author
	}
	if flags.Changed("date") {
		t, err := time.Parse(time.RFC3339, o.Date)
		if err != nil {
			return info, WrapExitError(ExitCommandError, "invalid --date", fmt.Errorf("%w: %w", errConfig, err))
		}
		info.Date = t
	}
	if info.Revision < 0 {
		return info, NewExitError(ExitCommandError, "revision must not be negative")
	}
	return info, nil
}
