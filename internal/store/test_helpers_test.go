package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/wcq/internal/testutil"
)

const testUUID = "0b7d1a4e-6f6b-4c6e-9d0a-3c1f2b5e8a90"

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDGenerator("run")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// trackAll tracks nodes with sensible defaults for tests.
func trackAll(t *testing.T, s *Store, nodes ...Node) {
	t.Helper()
	for _, n := range nodes {
		require.NoError(t, s.Track(context.Background(), n))
	}
}
