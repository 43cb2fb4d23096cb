package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/queue"
	"github.com/roach88/wcq/internal/wcpath"
)

// MemNode is the per-path state held by MemStore.
type MemNode struct {
	Revision   int64
	Props      map[string]string
	LockToken  string
	Changelist string
	Checksum   *digest.Checksum
}

// Call is one recorded MemStore method call.
type Call struct {
	Method string
	Path   string
}

// MemStore is an in-memory queue.MetadataStore for tests.
//
// Paths touched by any method are created on demand. Failures are injected
// per path with FailOn, and the whole store can be made unreachable after a
// number of calls with UnavailableAfter.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemStore struct {
	mu          sync.Mutex
	nodes       map[string]*MemNode
	descendants map[string][]string
	fail        map[string]error
	calls       []Call
	unavailable int // calls allowed before the store goes away; <0 = never
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		nodes:       make(map[string]*MemNode),
		descendants: make(map[string][]string),
		fail:        make(map[string]error),
		unavailable: -1,
	}
}

// AddNode registers path so recursive listings include it.
func (s *MemStore) AddNode(path string) *MemNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.node(wcpath.Canonicalize(path))
}

// SetDescendants overrides the listing returned for path.
func (s *MemStore) SetDescendants(path string, children ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descendants[wcpath.Canonicalize(path)] = children
}

// FailOn makes every call for path return err.
func (s *MemStore) FailOn(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[wcpath.Canonicalize(path)] = err
}

// UnavailableAfter makes the store unreachable once n calls have been made.
func (s *MemStore) UnavailableAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = n
}

// Node returns a copy of the state of path, or nil if unknown.
func (s *MemStore) Node(path string) *MemNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[wcpath.Canonicalize(path)]
	if !ok {
		return nil
	}
	cp := *n
	cp.Props = make(map[string]string, len(n.Props))
	for k, v := range n.Props {
		cp.Props[k] = v
	}
	return &cp
}

// Calls returns the recorded calls in order.
func (s *MemStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// TouchedPaths returns the distinct paths seen by MarkCommitted, in order.
func (s *MemStore) TouchedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c.Method == "MarkCommitted" {
			out = append(out, c.Path)
		}
	}
	return out
}

func (s *MemStore) node(path string) *MemNode {
	n, ok := s.nodes[path]
	if !ok {
		n = &MemNode{Props: make(map[string]string)}
		s.nodes[path] = n
	}
	return n
}

// enter records the call and returns the injected error, if any.
func (s *MemStore) enter(method, path string) error {
	if s.unavailable == 0 {
		return fmt.Errorf("%s %s: %w", method, path, queue.ErrStoreUnavailable)
	}
	if s.unavailable > 0 {
		s.unavailable--
	}
	s.calls = append(s.calls, Call{Method: method, Path: path})
	if err, ok := s.fail[path]; ok {
		return err
	}
	return nil
}

func (s *MemStore) MarkCommitted(_ context.Context, path string, info queue.CommitInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("MarkCommitted", path); err != nil {
		return err
	}
	if info.Revision > 0 {
		s.node(path).Revision = info.Revision
	}
	return nil
}

func (s *MemStore) ApplyPropertyChanges(_ context.Context, path string, changes []queue.PropChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ApplyPropertyChanges", path); err != nil {
		return err
	}
	n := s.node(path)
	for _, c := range changes {
		if c.IsDelete() {
			delete(n.Props, c.Name)
		} else {
			n.Props[c.Name] = *c.Value
		}
	}
	return nil
}

func (s *MemStore) ClearLock(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ClearLock", path); err != nil {
		return err
	}
	s.node(path).LockToken = ""
	return nil
}

func (s *MemStore) ClearChangelist(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ClearChangelist", path); err != nil {
		return err
	}
	s.node(path).Changelist = ""
	return nil
}

func (s *MemStore) SetPristineChecksum(_ context.Context, path string, sum *digest.Checksum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetPristineChecksum", path); err != nil {
		return err
	}
	s.node(path).Checksum = sum
	return nil
}

// ListDescendants returns the override set with SetDescendants, or else
// path (when known) followed by every known node below it, sorted.
func (s *MemStore) ListDescendants(_ context.Context, path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable == 0 {
		return nil, fmt.Errorf("ListDescendants %s: %w", path, queue.ErrStoreUnavailable)
	}
	if list, ok := s.descendants[path]; ok {
		return append([]string(nil), list...), nil
	}
	var out []string
	if _, ok := s.nodes[path]; ok {
		out = append(out, path)
	}
	var below []string
	for p := range s.nodes {
		if wcpath.IsAncestor(path, p) {
			below = append(below, p)
		}
	}
	sort.Strings(below)
	return append(out, below...), nil
}

var _ queue.MetadataStore = (*MemStore)(nil)
