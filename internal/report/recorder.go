package report

import (
	"context"
	"sync"
)

// Call is one recorded reporter call.
type Call struct {
	Op         string `yaml:"op" json:"op"`
	Path       string `yaml:"path,omitempty" json:"path,omitempty"`
	URL        string `yaml:"url,omitempty" json:"url,omitempty"`
	Revision   int64  `yaml:"revision,omitempty" json:"revision,omitempty"`
	StartEmpty bool   `yaml:"start_empty,omitempty" json:"start_empty,omitempty"`
	LockToken  string `yaml:"lock_token,omitempty" json:"lock_token,omitempty"`
	Depth      *Depth `yaml:"depth,omitempty" json:"depth,omitempty"`
}

// Recorder is a Reporter that keeps every call in order.
// FailOn makes calls for a given path fail.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	fail  map[string]error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[string]error)}
}

// FailOn makes any path-carrying call for path return err.
func (r *Recorder) FailOn(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[path] = err
}

// Calls returns the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if c.Op == "finish" || c.Op == "abort" {
		return nil
	}
	return r.fail[c.Path]
}

func (r *Recorder) SetPath(_ context.Context, path string, rev int64, startEmpty bool, lockToken string, depth Depth) error {
	return r.record(Call{Op: "set_path", Path: path, Revision: rev, StartEmpty: startEmpty, LockToken: lockToken, Depth: &depth})
}

func (r *Recorder) LinkPath(_ context.Context, path, url string, rev int64, startEmpty bool, lockToken string, depth Depth) error {
	return r.record(Call{Op: "link_path", Path: path, URL: url, Revision: rev, StartEmpty: startEmpty, LockToken: lockToken, Depth: &depth})
}

func (r *Recorder) DeletePath(_ context.Context, path string) error {
	return r.record(Call{Op: "delete_path", Path: path})
}

func (r *Recorder) Finish(context.Context) error {
	return r.record(Call{Op: "finish"})
}

func (r *Recorder) Abort(context.Context) error {
	return r.record(Call{Op: "abort"})
}

var _ Reporter = (*Recorder)(nil)
