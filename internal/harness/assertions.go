package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/wcq/internal/wcpath"
)

// propKeyPrefix marks final_state keys that name a property.
const propKeyPrefix = "prop:"

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event.call())
		}
	}

	return buf.String()
}

// call renders the event as "Method path".
func (e TraceEvent) call() string {
	return e.Method + " " + e.Path
}

// assertTraceContains checks that the trace holds a call to the method,
// on the given path when one is set.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	path := wcpath.Canonicalize(assertion.Path)
	for _, event := range trace {
		if event.Method == assertion.Method && (path == "" || event.Path == path) {
			return nil
		}
	}

	want := assertion.Method
	if path != "" {
		want += " " + path
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s", want),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the calls appear in the specified order.
// Calls don't need to be consecutive (intervening calls are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Find first position of each expected call (1-indexed for readability)
	positions := make(map[string]int)
	for i, event := range trace {
		c := event.call()
		if _, seen := positions[c]; !seen {
			positions[c] = i + 1
		}
	}

	for _, c := range assertion.Calls {
		if positions[normalizeCall(c)] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all calls present: %v", assertion.Calls),
				Actual:   fmt.Sprintf("missing call: %s", c),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Calls); i++ {
		prev, curr := normalizeCall(assertion.Calls[i-1]), normalizeCall(assertion.Calls[i])
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// normalizeCall canonicalizes the path half of a "Method path" string.
func normalizeCall(c string) string {
	method, path, ok := strings.Cut(strings.TrimSpace(c), " ")
	if !ok {
		return method
	}
	return method + " " + wcpath.Canonicalize(strings.TrimSpace(path))
}

// assertTraceCount checks that the method is called exactly Count times,
// on the given path when one is set.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	path := wcpath.Canonicalize(assertion.Path)
	count := 0
	for _, event := range trace {
		if event.Method == assertion.Method && (path == "" || event.Path == path) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d calls of %s", assertion.Count, assertion.Method),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks stored fields of one path using subset
// semantics: only keys present in Expect are compared. Keys are checked in
// sorted order so the first reported mismatch is stable.
func assertFinalState(state map[string]NodeState, assertion Assertion) error {
	path := wcpath.Canonicalize(assertion.Path)
	ns, exists := state[path]

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if want, ok := assertion.Expect["exists"]; ok {
		if b, isBool := want.(bool); isBool && b != exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s exists=%v", path, b),
				Actual:   fmt.Sprintf("exists=%v", exists),
			}
		}
		if !exists {
			return nil
		}
	}
	if !exists {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("node %s in store", path),
			Actual:   "node not found",
		}
	}

	for _, key := range keys {
		if key == "exists" {
			continue
		}
		expected := assertion.Expect[key]
		actual, present, err := stateField(ns, key)
		if err != nil {
			return err
		}
		if !stateValuesEqual(expected, actual, present) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s %s = %v", path, key, describe(expected)),
				Actual:   fmt.Sprintf("%s = %v", key, describeActual(actual, present)),
			}
		}
	}

	return nil
}

// stateField extracts a field of ns by assertion key.
func stateField(ns NodeState, key string) (any, bool, error) {
	switch key {
	case "revision":
		return ns.Revision, true, nil
	case "lock_token":
		return ns.LockToken, true, nil
	case "changelist":
		return ns.Changelist, true, nil
	case "checksum":
		return ns.Checksum, true, nil
	}
	if name, ok := strings.CutPrefix(key, propKeyPrefix); ok {
		v, present := ns.Props[name]
		return v, present, nil
	}
	return nil, false, fmt.Errorf("final_state: unknown field %q", key)
}

// stateValuesEqual compares an expected YAML value with a stored field.
// A nil expectation matches an absent property or an empty string field.
func stateValuesEqual(expected, actual any, present bool) bool {
	if expected == nil {
		if !present {
			return true
		}
		s, ok := actual.(string)
		return ok && s == ""
	}
	if !present {
		return false
	}

	switch exp := expected.(type) {
	case int:
		if a, ok := actual.(int64); ok {
			return int64(exp) == a
		}
	case int64:
		if a, ok := actual.(int64); ok {
			return exp == a
		}
	case string:
		if a, ok := actual.(string); ok {
			return exp == a
		}
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

func describe(v any) string {
	if v == nil {
		return "<absent>"
	}
	return fmt.Sprintf("%v", v)
}

func describeActual(v any, present bool) string {
	if !present {
		return "<absent>"
	}
	return fmt.Sprintf("%v", v)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
