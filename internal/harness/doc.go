// Package harness runs finalization conformance scenarios.
//
// A scenario seeds a metadata store, queues finalization records, applies
// them on behalf of a commit and checks the outcome. Scenarios can run on
// the in-memory store, which supports failure injection, or on a SQLite
// store opened in memory.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	backend: memory            # or sqlite
//	commit: {revision: 7, author: harry}
//	nodes:
//	  - path: c/d
//	    lock_token: opaquelocktoken:1
//	fail_on:
//	  c/d: disk full
//	cancel_after: 1            # optional
//	unavailable_after: 4       # optional, memory only
//	records:
//	  - path: c
//	    recursive: true
//	    remove_lock: true
//	    props:
//	      - {name: svn:wc:url, value: u}
//	      - {name: stale, value: null}
//	expect:
//	  applied: 1
//	  failures: [c/d]
//	  not_applied: []
//	  cancelled: false
//	  error: ""                # store | cancelled
//	assertions:
//	  - type: trace_order
//	    calls: ["MarkCommitted c", "MarkCommitted c/d"]
//	  - type: final_state
//	    path: c
//	    expect: {revision: 7, lock_token: "", "prop:stale": null}
//
// # Assertion Types
//
//   - trace_contains: A store call with the method (and path) was made
//   - trace_order: Calls ("Method path") appear in the given order
//   - trace_count: A method was called exactly N times
//   - final_state: Stored fields of a path match (subset match)
//
// # Golden Files
//
// RunWithGolden compares the call trace and apply report against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
