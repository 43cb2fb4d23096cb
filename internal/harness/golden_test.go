package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files live in testdata/golden. To regenerate them:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{
		"recursive_partial_failure",
		"cancel_after_first",
		"store_unavailable",
	} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_Marshal(t *testing.T) {
	s := TraceSnapshot{
		ScenarioName: "tiny",
		Trace:        []TraceEvent{{Method: "MarkCommitted", Path: "a"}},
		Report:       ReportSummary{Applied: 1, Failures: []FailureSummary{}, NotApplied: []string{}},
	}
	data, err := s.Marshal()
	require.NoError(t, err)

	want := `{
  "scenario_name": "tiny",
  "trace": [
    {
      "method": "MarkCommitted",
      "path": "a"
    }
  ],
  "report": {
    "applied": 1,
    "failures": [],
    "not_applied": [],
    "cancelled": false
  }
}
`
	assert.Equal(t, want, string(data))
}
