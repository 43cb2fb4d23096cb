package queue_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/queue"
	"github.com/roach88/wcq/internal/testutil"
)

func mustChecksum(t *testing.T, kind digest.Kind, fill byte) *digest.Checksum {
	t.Helper()
	c, err := digest.New(kind, bytes.Repeat([]byte{fill}, kind.Size()))
	require.NoError(t, err)
	return c
}

func TestNew_IsEmpty(t *testing.T) {
	q := queue.New()
	assert.Equal(t, queue.StateEmpty, q.State())
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.HasRecursive())
}

func TestEnqueue_TransitionsToAccumulating(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Enqueue(queue.Record{Path: "a"}))
	assert.Equal(t, queue.StateAccumulating, q.State())

	require.NoError(t, q.Enqueue(queue.Record{Path: "b"}))
	assert.Equal(t, queue.StateAccumulating, q.State())
	assert.Equal(t, 2, q.Len())
}

func TestEnqueue_RejectsEmptyPath(t *testing.T) {
	q := queue.New()
	err := q.Enqueue(queue.Record{Path: ""})
	require.Error(t, err)
	assert.True(t, queue.IsValidation(err))
	assert.Equal(t, queue.StateEmpty, q.State())
}

func TestEnqueue_RejectsPathsOutsideWorkingCopy(t *testing.T) {
	q := queue.New()
	for _, p := range []string{"/", "/etc/passwd", "..", "../x", "a/../../x"} {
		err := q.Enqueue(queue.Record{Path: p})
		require.Error(t, err, p)
		assert.True(t, queue.IsValidation(err), p)
	}
	assert.Equal(t, queue.StateEmpty, q.State())

	require.NoError(t, q.Enqueue(queue.Record{Path: "./"}))
	assert.Equal(t, ".", q.Records()[0].Path)
}

func TestEnqueue_ChecksumLength(t *testing.T) {
	tests := []struct {
		name    string
		kind    digest.Kind
		size    int
		wantErr bool
	}{
		{"md5 16", digest.MD5, 16, false},
		{"md5 15", digest.MD5, 15, true},
		{"md5 20", digest.MD5, 20, true},
		{"sha1 20", digest.SHA1, 20, false},
		{"sha1 16", digest.SHA1, 16, true},
		{"sha1 0", digest.SHA1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queue.New()
			// Bypass digest.New so malformed checksums reach Enqueue.
			sum := &digest.Checksum{Kind: tt.kind, Bytes: make([]byte, tt.size)}
			err := q.Enqueue(queue.Record{Path: "f", Checksum: sum})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, queue.IsValidation(err))
				assert.Equal(t, 0, q.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, q.Len())
		})
	}
}

func TestEnqueue_PropertyNames(t *testing.T) {
	q := queue.New()

	err := q.Enqueue(queue.Record{Path: "f", PropChanges: []queue.PropChange{queue.SetProp("", "x")}})
	require.Error(t, err)
	assert.True(t, queue.IsValidation(err))

	err = q.Enqueue(queue.Record{Path: "f", PropChanges: []queue.PropChange{
		queue.SetProp("svn:wc:x", "1"),
		queue.DeleteProp("svn:wc:x"),
	}})
	require.Error(t, err)
	assert.True(t, queue.IsValidation(err))
	assert.Contains(t, err.Error(), "duplicate property")

	// Rejected records leave the queue usable.
	assert.Equal(t, queue.StateEmpty, q.State())
	require.NoError(t, q.Enqueue(queue.Record{Path: "f"}))
}

func TestEnqueue_LastPropWinsPolicy(t *testing.T) {
	q := queue.New(queue.WithDuplicatePropPolicy(queue.LastPropWins))

	err := q.Enqueue(queue.Record{Path: "f", PropChanges: []queue.PropChange{
		queue.SetProp("a", "1"),
		queue.SetProp("b", "2"),
		queue.SetProp("a", "3"),
	}})
	require.NoError(t, err)

	recs := q.Records()
	require.Len(t, recs, 1)
	require.Len(t, recs[0].PropChanges, 2)
	assert.Equal(t, "a", recs[0].PropChanges[0].Name)
	assert.Equal(t, "3", *recs[0].PropChanges[0].Value)
	assert.Equal(t, "b", recs[0].PropChanges[1].Name)
}

func TestEnqueue_RequeuedPathLastWriteWins(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Enqueue(queue.Record{Path: "a", Recursive: true}))
	require.NoError(t, q.Enqueue(queue.Record{Path: "b"}))
	require.True(t, q.HasRecursive())

	require.NoError(t, q.Enqueue(queue.Record{Path: "a/", RemoveLock: true}))

	recs := q.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Path)
	assert.True(t, recs[0].RemoveLock)
	assert.False(t, recs[0].Recursive)
	assert.False(t, q.HasRecursive(), "replacing the only recursive record clears the flag")
}

func TestHasRecursive(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Enqueue(queue.Record{Path: "a"}))
	assert.False(t, q.HasRecursive())

	require.NoError(t, q.Enqueue(queue.Record{Path: "b", Recursive: true}))
	assert.True(t, q.HasRecursive())

	require.NoError(t, q.Enqueue(queue.Record{Path: "c"}))
	assert.True(t, q.HasRecursive())
}

func TestEnqueue_CopiesRecord(t *testing.T) {
	q := queue.New()
	changes := []queue.PropChange{queue.SetProp("p", "v")}
	sum := mustChecksum(t, digest.MD5, 0x01)

	require.NoError(t, q.Enqueue(queue.Record{Path: "f", PropChanges: changes, Checksum: sum}))
	*changes[0].Value = "mutated"
	sum.Bytes[0] = 0xFF

	rec := q.Records()[0]
	assert.Equal(t, "v", *rec.PropChanges[0].Value)
	assert.Equal(t, byte(0x01), rec.Checksum.Bytes[0])
}

func TestEnqueueAfterApply_InvalidState(t *testing.T) {
	for _, failApply := range []bool{false, true} {
		q := queue.New()
		require.NoError(t, q.Enqueue(queue.Record{Path: "a"}))

		store := testutil.NewMemStore()
		if failApply {
			store.UnavailableAfter(0)
		}
		_, _ = q.Apply(context.Background(), store, queue.CommitInfo{}, nil)

		err := q.Enqueue(queue.Record{Path: "b"})
		require.Error(t, err)
		assert.True(t, queue.IsInvalidState(err))
		assert.Equal(t, queue.StateConsumed, q.State())
	}
}

func TestApplyTwice_InvalidState(t *testing.T) {
	q := queue.New()
	store := testutil.NewMemStore()

	_, err := q.Apply(context.Background(), store, queue.CommitInfo{}, nil)
	require.NoError(t, err)

	report, err := q.Apply(context.Background(), store, queue.CommitInfo{}, nil)
	require.Error(t, err)
	assert.True(t, queue.IsInvalidState(err))
	assert.Nil(t, report)
}
