package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/queue"
	"github.com/roach88/wcq/internal/store"
	"github.com/roach88/wcq/internal/testutil"
	"github.com/roach88/wcq/internal/wcpath"
)

// Harness is the scenario execution engine.
// It runs one finalization pass against a freshly seeded store.
type Harness struct {
	backend queue.MetadataStore
	state   func(ctx context.Context, path string) (NodeState, bool, error)
	cancel  queue.CancelHook
	logger  *slog.Logger
	closers []func() error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store for isolation.
//
// Execution flow:
// 1. Create the store and track the scenario's nodes
// 2. Install failure injection and the cancel hook
// 3. Enqueue records, checking expected rejections
// 4. Apply the queue and compare the report with the expect clause
// 5. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	traced := &tracingStore{inner: h.backend, result: result}

	q := queue.New(h.queueOptions(scenario)...)
	for i, spec := range scenario.Records {
		rec, err := spec.record()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		err = q.Enqueue(rec)
		switch {
		case spec.ExpectError == "validation" && !queue.IsValidation(err):
			result.AddError(fmt.Sprintf("record %d (%s): expected validation error, got %v", i, spec.Path, err))
		case spec.ExpectError == "" && err != nil:
			result.AddError(fmt.Sprintf("record %d (%s): unexpected enqueue error: %v", i, spec.Path, err))
		}
	}

	report, applyErr := q.Apply(ctx, traced, scenario.Commit.commitInfo(), h.cancel)
	if report == nil {
		return nil, fmt.Errorf("apply: %w", applyErr)
	}
	result.Report = summarize(report, applyErr)
	checkExpect(result, scenario.Expect, applyErr)

	if err := h.captureState(ctx, scenario, result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(ctx context.Context, s *Scenario) (*Harness, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in scenarios
	}
	if s.CancelAfter != nil {
		h.cancel = testutil.NewCancelAfter(*s.CancelAfter)
	}

	switch s.Backend {
	case BackendSQLite:
		st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDGenerator("run")))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		h.closers = append(h.closers, st.Close)
		if err := seedSQLite(ctx, st, s.Nodes); err != nil {
			h.close()
			return nil, err
		}
		h.backend = st
		h.state = sqliteState(st)
	default:
		ms := testutil.NewMemStore()
		seedMemory(ms, s)
		h.backend = ms
		h.state = memoryState(ms)
	}
	return h, nil
}

func (h *Harness) close() {
	for _, c := range h.closers {
		_ = c()
	}
}

func (h *Harness) queueOptions(s *Scenario) []queue.Option {
	opts := []queue.Option{queue.WithLogger(h.logger)}
	if s.DuplicateProps == "last-wins" {
		opts = append(opts, queue.WithDuplicatePropPolicy(queue.LastPropWins))
	}
	return opts
}

func seedMemory(ms *testutil.MemStore, s *Scenario) {
	for _, spec := range s.Nodes {
		n := ms.AddNode(spec.Path)
		n.Revision = spec.Revision
		n.LockToken = spec.LockToken
		n.Changelist = spec.Changelist
		for k, v := range spec.Props {
			n.Props[k] = v
		}
	}
	for path, msg := range s.FailOn {
		ms.FailOn(path, errors.New(msg))
	}
	if s.UnavailableAfter != nil {
		ms.UnavailableAfter(*s.UnavailableAfter)
	}
}

func seedSQLite(ctx context.Context, st *store.Store, nodes []NodeSpec) error {
	for _, spec := range nodes {
		n := store.Node{
			Path:       spec.Path,
			Kind:       store.NodeKind(spec.Kind),
			Revision:   spec.Revision,
			URL:        spec.URL,
			LockToken:  spec.LockToken,
			Changelist: spec.Changelist,
		}
		if err := st.Track(ctx, n); err != nil {
			return fmt.Errorf("seed %s: %w", spec.Path, err)
		}
		if len(spec.Props) == 0 {
			continue
		}
		names := make([]string, 0, len(spec.Props))
		for name := range spec.Props {
			names = append(names, name)
		}
		sort.Strings(names)
		changes := make([]queue.PropChange, 0, len(names))
		for _, name := range names {
			changes = append(changes, queue.SetProp(name, spec.Props[name]))
		}
		if err := st.ApplyPropertyChanges(ctx, spec.Path, changes); err != nil {
			return fmt.Errorf("seed %s: %w", spec.Path, err)
		}
	}
	return nil
}

func memoryState(ms *testutil.MemStore) func(context.Context, string) (NodeState, bool, error) {
	return func(_ context.Context, path string) (NodeState, bool, error) {
		n := ms.Node(path)
		if n == nil {
			return NodeState{}, false, nil
		}
		return NodeState{
			Revision:   n.Revision,
			LockToken:  n.LockToken,
			Changelist: n.Changelist,
			Checksum:   checksumString(n.Checksum),
			Props:      n.Props,
		}, true, nil
	}
}

func sqliteState(st *store.Store) func(context.Context, string) (NodeState, bool, error) {
	return func(ctx context.Context, path string) (NodeState, bool, error) {
		n, err := st.Node(ctx, path)
		if errors.Is(err, store.ErrNotFound) {
			return NodeState{}, false, nil
		}
		if err != nil {
			return NodeState{}, false, err
		}
		props, err := st.Props(ctx, path)
		if err != nil {
			return NodeState{}, false, err
		}
		ns := NodeState{
			Revision:   n.Revision,
			LockToken:  n.LockToken,
			Changelist: n.Changelist,
			Checksum:   checksumString(n.Checksum),
			Props:      make(map[string]string, len(props)),
		}
		for _, p := range props {
			ns.Props[p.Name] = p.Value
		}
		return ns, true, nil
	}
}

// captureState reads the final state of every path named by a
// final_state assertion.
func (h *Harness) captureState(ctx context.Context, s *Scenario, result *Result) error {
	for _, a := range s.Assertions {
		if a.Type != AssertFinalState {
			continue
		}
		path := wcpath.Canonicalize(a.Path)
		if _, done := result.State[path]; done {
			continue
		}
		ns, ok, err := h.state(ctx, path)
		if err != nil {
			return fmt.Errorf("read state of %s: %w", path, err)
		}
		if ok {
			result.State[path] = ns
		}
	}
	return nil
}

func summarize(r *queue.Report, applyErr error) ReportSummary {
	sum := ReportSummary{
		Applied:    r.Applied,
		Failures:   make([]FailureSummary, 0, len(r.Failures)),
		NotApplied: append([]string{}, r.NotApplied...),
		Cancelled:  r.Cancelled,
	}
	for _, f := range r.Failures {
		sum.Failures = append(sum.Failures, FailureSummary{Path: f.Path, Error: f.Err.Error()})
	}
	if applyErr != nil {
		sum.Error = applyErr.Error()
	}
	return sum
}

// checkExpect compares the apply report with the expect clause.
func checkExpect(result *Result, want ExpectClause, applyErr error) {
	got := result.Report

	if got.Applied != want.Applied {
		result.AddError(fmt.Sprintf("expected %d applied, got %d", want.Applied, got.Applied))
	}

	failed := make([]string, 0, len(got.Failures))
	for _, f := range got.Failures {
		failed = append(failed, f.Path)
	}
	if !equalPaths(failed, want.Failures) {
		result.AddError(fmt.Sprintf("expected failures %v, got %v", want.Failures, failed))
	}

	if !equalPaths(got.NotApplied, want.NotApplied) {
		result.AddError(fmt.Sprintf("expected not applied %v, got %v", want.NotApplied, got.NotApplied))
	}

	if got.Cancelled != want.Cancelled {
		result.AddError(fmt.Sprintf("expected cancelled=%v, got %v", want.Cancelled, got.Cancelled))
	}

	var gotClass string
	switch {
	case applyErr == nil:
	case queue.IsCancelled(applyErr):
		gotClass = "cancelled"
	case queue.IsStoreError(applyErr):
		gotClass = "store"
	default:
		gotClass = "other"
	}
	if gotClass != want.Error {
		result.AddError(fmt.Sprintf("expected apply error %q, got %q (%v)", want.Error, gotClass, applyErr))
	}
}

func equalPaths(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != wcpath.Canonicalize(want[i]) && got[i] != want[i] {
			return false
		}
	}
	return true
}

func checksumString(sum *digest.Checksum) string {
	if sum == nil {
		return ""
	}
	return sum.String()
}

// tracingStore records every call to the wrapped store.
type tracingStore struct {
	inner  queue.MetadataStore
	result *Result
}

func (t *tracingStore) MarkCommitted(ctx context.Context, path string, info queue.CommitInfo) error {
	err := t.inner.MarkCommitted(ctx, path, info)
	t.result.AddTrace("MarkCommitted", path, err)
	return err
}

func (t *tracingStore) ApplyPropertyChanges(ctx context.Context, path string, changes []queue.PropChange) error {
	err := t.inner.ApplyPropertyChanges(ctx, path, changes)
	t.result.AddTrace("ApplyPropertyChanges", path, err)
	return err
}

func (t *tracingStore) ClearLock(ctx context.Context, path string) error {
	err := t.inner.ClearLock(ctx, path)
	t.result.AddTrace("ClearLock", path, err)
	return err
}

func (t *tracingStore) ClearChangelist(ctx context.Context, path string) error {
	err := t.inner.ClearChangelist(ctx, path)
	t.result.AddTrace("ClearChangelist", path, err)
	return err
}

func (t *tracingStore) SetPristineChecksum(ctx context.Context, path string, sum *digest.Checksum) error {
	err := t.inner.SetPristineChecksum(ctx, path, sum)
	t.result.AddTrace("SetPristineChecksum", path, err)
	return err
}

func (t *tracingStore) ListDescendants(ctx context.Context, path string) ([]string, error) {
	paths, err := t.inner.ListDescendants(ctx, path)
	t.result.AddTrace("ListDescendants", path, err)
	return paths, err
}
