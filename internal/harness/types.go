package harness

// TraceEvent is one metadata store call made during the pass.
type TraceEvent struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Error  string `json:"error,omitempty"`
}

// FailureSummary is one failed path of the apply report.
type FailureSummary struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ReportSummary is the apply report in comparable form.
type ReportSummary struct {
	Applied    int              `json:"applied"`
	Failures   []FailureSummary `json:"failures"`
	NotApplied []string         `json:"not_applied"`
	Cancelled  bool             `json:"cancelled"`
	Error      string           `json:"error,omitempty"`
}

// NodeState is the finalization-relevant state of one stored path.
type NodeState struct {
	Revision   int64
	LockToken  string
	Changelist string
	Checksum   string
	Props      map[string]string
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if the report matches the expect clause and all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every store call in order.
	Trace []TraceEvent `json:"trace"`

	// Report is the apply report.
	Report ReportSummary `json:"report"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final state of every path named by the scenario.
	State map[string]NodeState `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]NodeState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a store call to the trace.
func (r *Result) AddTrace(method, path string, err error) {
	ev := TraceEvent{Method: method, Path: path}
	if err != nil {
		ev.Error = err.Error()
	}
	r.Trace = append(r.Trace, ev)
}
