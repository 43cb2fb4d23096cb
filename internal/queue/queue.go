package queue

import (
	"log/slog"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/wcpath"
)

// PropChange is one property change to record on finalization.
// A nil Value deletes the property.
type PropChange struct {
	Name  string
	Value *string
}

// SetProp returns a change that sets name to value.
func SetProp(name, value string) PropChange {
	return PropChange{Name: name, Value: &value}
}

// DeleteProp returns a change that deletes name.
func DeleteProp(name string) PropChange {
	return PropChange{Name: name}
}

// IsDelete reports whether the change deletes the property.
func (c PropChange) IsDelete() bool {
	return c.Value == nil
}

// Record describes the finalization owed to one committed path.
type Record struct {
	// Path is the committed path. It is canonicalised on Enqueue.
	Path string

	// Recursive applies the record to every path the store lists under Path
	// at apply time instead of to Path alone.
	Recursive bool

	// PropChanges are applied in order.
	PropChanges []PropChange

	// RemoveLock clears any lock token held for the path.
	RemoveLock bool

	// RemoveChangelist clears the path's changelist membership.
	RemoveChangelist bool

	// Checksum, if set, becomes the path's pristine-content fingerprint.
	Checksum *digest.Checksum
}

func (r Record) clone() Record {
	out := r
	if r.PropChanges != nil {
		out.PropChanges = make([]PropChange, len(r.PropChanges))
		for i, c := range r.PropChanges {
			out.PropChanges[i] = PropChange{Name: c.Name}
			if c.Value != nil {
				v := *c.Value
				out.PropChanges[i].Value = &v
			}
		}
	}
	if r.Checksum != nil {
		out.Checksum = &digest.Checksum{
			Kind:  r.Checksum.Kind,
			Bytes: append([]byte(nil), r.Checksum.Bytes...),
		}
	}
	return out
}

// State is the lifecycle state of a Queue.
type State int

const (
	// StateEmpty is a new queue with no records.
	StateEmpty State = iota
	// StateAccumulating is a queue holding at least one record.
	StateAccumulating
	// StateConsumed is a queue that has been applied. Terminal.
	StateConsumed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateConsumed:
		return "consumed"
	default:
		return "unknown"
	}
}

// DuplicatePropPolicy decides what Enqueue does with a record that names
// the same property twice.
type DuplicatePropPolicy int

const (
	// RejectDuplicateProps fails Enqueue with a validation error.
	RejectDuplicateProps DuplicatePropPolicy = iota
	// LastPropWins keeps the value of the last occurrence.
	LastPropWins
)

// Option configures a Queue.
type Option func(*Queue)

// WithDuplicatePropPolicy sets the duplicate property name policy.
func WithDuplicatePropPolicy(p DuplicatePropPolicy) Option {
	return func(q *Queue) { q.dupPolicy = p }
}

// WithLogger sets the logger used during Apply. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue accumulates finalization records for one commit.
type Queue struct {
	records      []Record
	index        map[string]int // path -> position in records
	hasRecursive bool
	state        State

	dupPolicy DuplicatePropPolicy
	logger    *slog.Logger
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		index:  make(map[string]int),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// State returns the current lifecycle state.
func (q *Queue) State() State {
	return q.state
}

// HasRecursive reports whether any queued record is recursive.
func (q *Queue) HasRecursive() bool {
	return q.hasRecursive
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	return len(q.records)
}

// Records returns a copy of the queued records in apply order.
func (q *Queue) Records() []Record {
	out := make([]Record, len(q.records))
	for i, r := range q.records {
		out[i] = r.clone()
	}
	return out
}

// Enqueue validates rec and appends it to the queue.
//
// Re-queuing a path that is already queued replaces the earlier record in
// place: the last write wins and the path keeps its original apply position.
// A rejected record leaves the queue unchanged.
func (q *Queue) Enqueue(rec Record) error {
	if q.state == StateConsumed {
		return invalidStateError("enqueue")
	}

	rec = rec.clone()
	rec.Path = wcpath.Canonicalize(rec.Path)
	if rec.Path == "" {
		return validationError("", "path must not be empty")
	}
	if !wcpath.IsLocal(rec.Path) {
		return validationError(rec.Path, "path must be relative to the working copy")
	}

	if rec.Checksum != nil {
		if err := rec.Checksum.Validate(); err != nil {
			return &Error{Code: ErrCodeValidation, Path: rec.Path, Message: "bad content checksum", Err: err}
		}
	}

	changes, err := q.normalizePropChanges(rec.Path, rec.PropChanges)
	if err != nil {
		return err
	}
	rec.PropChanges = changes

	if i, ok := q.index[rec.Path]; ok {
		q.records[i] = rec
		q.recomputeRecursive()
	} else {
		q.index[rec.Path] = len(q.records)
		q.records = append(q.records, rec)
		q.hasRecursive = q.hasRecursive || rec.Recursive
	}
	q.state = StateAccumulating
	return nil
}

func (q *Queue) normalizePropChanges(path string, changes []PropChange) ([]PropChange, error) {
	seen := make(map[string]int, len(changes))
	out := make([]PropChange, 0, len(changes))
	for _, c := range changes {
		if c.Name == "" {
			return nil, validationError(path, "property name must not be empty")
		}
		if i, dup := seen[c.Name]; dup {
			if q.dupPolicy == RejectDuplicateProps {
				return nil, validationError(path, "duplicate property %q", c.Name)
			}
			out[i] = c
			continue
		}
		seen[c.Name] = len(out)
		out = append(out, c)
	}
	return out, nil
}

func (q *Queue) recomputeRecursive() {
	q.hasRecursive = false
	for _, r := range q.records {
		if r.Recursive {
			q.hasRecursive = true
			return
		}
	}
}
