package queue

import (
	"context"
	"time"

	"github.com/roach88/wcq/internal/digest"
)

// CommitInfo describes the commit the server acknowledged.
type CommitInfo struct {
	// Revision is the new revision; 0 leaves stored revisions untouched.
	Revision int64
	Author   string
	Date     time.Time
}

// MetadataStore persists per-path working-copy metadata.
//
// Every method may fail independently. Errors that wrap ErrStoreUnavailable
// abort an Apply pass; any other error is recorded against the path and the
// pass continues.
type MetadataStore interface {
	// MarkCommitted records that path is part of the acknowledged commit.
	// It is called for every resolved path before the record's other steps.
	MarkCommitted(ctx context.Context, path string, info CommitInfo) error
	ApplyPropertyChanges(ctx context.Context, path string, changes []PropChange) error
	ClearLock(ctx context.Context, path string) error
	ClearChangelist(ctx context.Context, path string) error
	SetPristineChecksum(ctx context.Context, path string, sum *digest.Checksum) error

	// ListDescendants returns the paths a recursive record covers, as known
	// to the store now. Implementations decide whether path itself is part
	// of the listing.
	ListDescendants(ctx context.Context, path string) ([]string, error)
}

// CancelHook is polled between per-path applications.
// Poll returns true when the user has asked to abort.
type CancelHook interface {
	Poll() bool
}

// CancelFunc adapts a function to CancelHook.
type CancelFunc func() bool

// Poll calls f.
func (f CancelFunc) Poll() bool { return f() }

// ContextCancel returns a hook that reports cancellation once ctx is done.
func ContextCancel(ctx context.Context) CancelHook {
	return CancelFunc(func() bool { return ctx.Err() != nil })
}
