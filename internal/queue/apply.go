package queue

import (
	"context"
	"errors"

	"github.com/roach88/wcq/internal/wcpath"
)

// Failure is a path whose finalization failed.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes an Apply pass.
type Report struct {
	// Applied counts paths finalized without error.
	Applied int

	// Failures lists per-path errors in apply order. A recursive record whose
	// descendants could not be listed fails once under its own path, without
	// resolving any targets.
	Failures []Failure

	// Unlisted counts the Failures that are unlisted recursive records
	// rather than resolved paths.
	Unlisted int

	// NotApplied lists paths (or unexpanded record paths) that were never
	// attempted because the pass stopped early.
	NotApplied []string

	// Cancelled is set when the pass stopped on a cancellation request.
	Cancelled bool
}

// Attempted returns the number of resolved paths the pass tried.
func (r *Report) Attempted() int {
	return r.Applied + len(r.Failures) - r.Unlisted
}

// OK reports whether every queued path was finalized.
func (r *Report) OK() bool {
	return len(r.Failures) == 0 && len(r.NotApplied) == 0 && !r.Cancelled
}

// Apply pushes every queued record into store, in enqueue order, on behalf
// of the commit described by info.
//
// The queue is consumed on entry. The returned Report is non-nil whenever
// the queue was not already consumed, including when Apply also returns an
// error: a STORE error means the store became unreachable, a CANCELLED error
// means cancel (or ctx) asked to stop. Paths already finalized are left as
// they are in both cases.
//
// Cancellation is checked before each resolved path. Store calls receive a
// context that carries ctx's values but not its cancellation, so a path is
// never left half finalized.
//
// cancel may be nil.
func (q *Queue) Apply(ctx context.Context, store MetadataStore, info CommitInfo, cancel CancelHook) (*Report, error) {
	if q.state == StateConsumed {
		return nil, invalidStateError("apply")
	}
	q.state = StateConsumed
	records := q.records
	q.records = nil
	q.index = nil

	report := &Report{Failures: []Failure{}}

	// Once a path is started its steps run to completion; ctx and cancel
	// only stop the pass between paths.
	storeCtx := context.WithoutCancel(ctx)

	for i, rec := range records {
		targets, err := resolveTargets(storeCtx, store, rec)
		if err != nil {
			serr := storeError(rec.Path, "list descendants", err)
			if errors.Is(err, ErrStoreUnavailable) {
				report.NotApplied = append(report.NotApplied, recordPaths(records[i:])...)
				q.logger.Error("metadata store unavailable", "path", rec.Path, "error", err)
				return report, serr
			}
			report.Failures = append(report.Failures, Failure{Path: rec.Path, Err: serr})
			report.Unlisted++
			q.logger.Warn("finalize failed", "path", rec.Path, "error", err)
			continue
		}

		for j, path := range targets {
			if cancelRequested(ctx, cancel) {
				report.Cancelled = true
				report.NotApplied = append(report.NotApplied, targets[j:]...)
				report.NotApplied = append(report.NotApplied, recordPaths(records[i+1:])...)
				q.logger.Info("finalize cancelled", "applied", report.Applied, "remaining", len(report.NotApplied))
				return report, &Error{Code: ErrCodeCancelled, Path: path, Message: "apply cancelled"}
			}

			if err := applyPath(storeCtx, store, path, rec, info); err != nil {
				if errors.Is(err, ErrStoreUnavailable) {
					report.NotApplied = append(report.NotApplied, targets[j:]...)
					report.NotApplied = append(report.NotApplied, recordPaths(records[i+1:])...)
					q.logger.Error("metadata store unavailable", "path", path, "error", err)
					return report, err
				}
				report.Failures = append(report.Failures, Failure{Path: path, Err: err})
				q.logger.Warn("finalize failed", "path", path, "error", err)
				continue
			}
			report.Applied++
			q.logger.Debug("finalized", "path", path)
		}
	}

	return report, nil
}

func resolveTargets(ctx context.Context, store MetadataStore, rec Record) ([]string, error) {
	if !rec.Recursive {
		return []string{rec.Path}, nil
	}
	listed, err := store.ListDescendants(ctx, rec.Path)
	if err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(listed))
	for _, p := range listed {
		if p = wcpath.Canonicalize(p); wcpath.IsLocal(p) {
			targets = append(targets, p)
		}
	}
	return targets, nil
}

// applyPath runs the per-path steps in a fixed order and stops at the first
// failing step.
func applyPath(ctx context.Context, store MetadataStore, path string, rec Record, info CommitInfo) error {
	if err := store.MarkCommitted(ctx, path, info); err != nil {
		return storeError(path, "mark committed", err)
	}
	if len(rec.PropChanges) > 0 {
		if err := store.ApplyPropertyChanges(ctx, path, rec.PropChanges); err != nil {
			return storeError(path, "apply property changes", err)
		}
	}
	if rec.RemoveLock {
		if err := store.ClearLock(ctx, path); err != nil {
			return storeError(path, "clear lock", err)
		}
	}
	if rec.RemoveChangelist {
		if err := store.ClearChangelist(ctx, path); err != nil {
			return storeError(path, "clear changelist", err)
		}
	}
	if rec.Checksum != nil {
		if err := store.SetPristineChecksum(ctx, path, rec.Checksum); err != nil {
			return storeError(path, "set pristine checksum", err)
		}
	}
	return nil
}

func cancelRequested(ctx context.Context, cancel CancelHook) bool {
	if ctx.Err() != nil {
		return true
	}
	return cancel != nil && cancel.Poll()
}

func recordPaths(records []Record) []string {
	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.Path
	}
	return paths
}
