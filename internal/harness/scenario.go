package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/queue"
)

// Backend names accepted by Scenario.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Scenario defines a finalization conformance scenario.
// A scenario seeds a metadata store, queues records, applies them on behalf
// of a commit, and checks the resulting report, call trace and node state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects the store: "memory" (default) or "sqlite".
	// Failure injection is only available on the memory backend.
	Backend string `yaml:"backend,omitempty"`

	// Commit is the commit the pass finalizes.
	Commit CommitSpec `yaml:"commit,omitempty"`

	// DuplicateProps selects the queue's duplicate property policy:
	// "reject" (default) or "last-wins".
	DuplicateProps string `yaml:"duplicate_props,omitempty"`

	// Nodes are tracked before the pass.
	Nodes []NodeSpec `yaml:"nodes,omitempty"`

	// FailOn maps paths to the error message every store call for that
	// path returns.
	FailOn map[string]string `yaml:"fail_on,omitempty"`

	// UnavailableAfter makes the store unreachable after this many calls.
	UnavailableAfter *int `yaml:"unavailable_after,omitempty"`

	// CancelAfter requests cancellation after this many polls.
	CancelAfter *int `yaml:"cancel_after,omitempty"`

	// Records are enqueued in order.
	Records []RecordSpec `yaml:"records"`

	// Expect describes the apply report.
	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the call trace and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// CommitSpec describes the acknowledged commit.
type CommitSpec struct {
	Revision int64  `yaml:"revision"`
	Author   string `yaml:"author,omitempty"`
	Date     string `yaml:"date,omitempty"`
}

// NodeSpec is a node tracked before the pass.
type NodeSpec struct {
	Path       string            `yaml:"path"`
	Kind       string            `yaml:"kind,omitempty"`
	Revision   int64             `yaml:"revision,omitempty"`
	URL        string            `yaml:"url,omitempty"`
	LockToken  string            `yaml:"lock_token,omitempty"`
	Changelist string            `yaml:"changelist,omitempty"`
	Props      map[string]string `yaml:"props,omitempty"`
}

// RecordSpec is one finalization record. A nil prop value deletes the
// property.
type RecordSpec struct {
	Path             string     `yaml:"path"`
	Recursive        bool       `yaml:"recursive,omitempty"`
	Props            []PropSpec `yaml:"props,omitempty"`
	RemoveLock       bool       `yaml:"remove_lock,omitempty"`
	RemoveChangelist bool       `yaml:"remove_changelist,omitempty"`
	Checksum         string     `yaml:"checksum,omitempty"`

	// ExpectError is "validation" when Enqueue must reject this record.
	// Rejected records are not part of the pass.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// PropSpec is an ordered property change.
type PropSpec struct {
	Name  string  `yaml:"name"`
	Value *string `yaml:"value"`
}

// ExpectClause specifies the expected apply report.
type ExpectClause struct {
	Applied    int      `yaml:"applied"`
	Failures   []string `yaml:"failures,omitempty"`
	NotApplied []string `yaml:"not_applied,omitempty"`
	Cancelled  bool     `yaml:"cancelled,omitempty"`

	// Error is the class of error Apply returns: "" (none), "store" or
	// "cancelled".
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the call trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a store call appears in the trace
	// - "trace_order": Check calls appear in order
	// - "trace_count": Check a method is called exactly N times
	// - "final_state": Check stored fields of a path
	Type string `yaml:"type"`

	// Method is the store method name (used by trace_contains, trace_count).
	Method string `yaml:"method,omitempty"`

	// Path restricts trace_contains and trace_count to one path, and names
	// the node for final_state.
	Path string `yaml:"path,omitempty"`

	// Calls is the expected call order, each "Method path"
	// (used by trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected node fields (used by final_state).
	// Keys are revision, lock_token, changelist, checksum, and
	// "prop:<name>" for a property value; null means absent.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Backend {
	case "":
		s.Backend = BackendMemory
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q (must be memory or sqlite)", s.Backend)
	}

	if s.Backend == BackendSQLite && (len(s.FailOn) > 0 || s.UnavailableAfter != nil) {
		return fmt.Errorf("fail_on and unavailable_after require the memory backend")
	}

	switch s.DuplicateProps {
	case "", "reject", "last-wins":
	default:
		return fmt.Errorf("unknown duplicate_props %q (must be reject or last-wins)", s.DuplicateProps)
	}

	if s.Commit.Date != "" {
		if _, err := time.Parse(time.RFC3339, s.Commit.Date); err != nil {
			return fmt.Errorf("commit.date: %w", err)
		}
	}

	for i, n := range s.Nodes {
		if n.Path == "" {
			return fmt.Errorf("node %d: path is required", i)
		}
	}

	for i, r := range s.Records {
		if r.Checksum != "" {
			if _, err := digest.Parse(r.Checksum); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		switch r.ExpectError {
		case "", "validation":
		default:
			return fmt.Errorf("record %d: unknown expect_error %q", i, r.ExpectError)
		}
	}

	switch s.Expect.Error {
	case "", "store", "cancelled":
	default:
		return fmt.Errorf("expect.error %q must be store or cancelled", s.Expect.Error)
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Method == "" {
			return fmt.Errorf("trace_contains requires method")
		}
	case AssertTraceOrder:
		if len(a.Calls) < 2 {
			return fmt.Errorf("trace_order requires at least two calls")
		}
	case AssertTraceCount:
		if a.Method == "" {
			return fmt.Errorf("trace_count requires method")
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("final_state requires path")
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("final_state requires expect")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// record converts a RecordSpec to a queue record.
func (r RecordSpec) record() (queue.Record, error) {
	rec := queue.Record{
		Path:             r.Path,
		Recursive:        r.Recursive,
		RemoveLock:       r.RemoveLock,
		RemoveChangelist: r.RemoveChangelist,
	}
	for _, p := range r.Props {
		rec.PropChanges = append(rec.PropChanges, queue.PropChange{Name: p.Name, Value: p.Value})
	}
	if r.Checksum != "" {
		sum, err := digest.Parse(r.Checksum)
		if err != nil {
			return rec, err
		}
		rec.Checksum = sum
	}
	return rec, nil
}

// commitInfo converts the commit spec. Dates were validated on load.
func (c CommitSpec) commitInfo() queue.CommitInfo {
	info := queue.CommitInfo{Revision: c.Revision, Author: c.Author}
	if c.Date != "" {
		info.Date, _ = time.Parse(time.RFC3339, c.Date)
	}
	return info
}
