package manifest

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/queue"
)

func TestLoad_File(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "commit.cue"))
	require.NoError(t, err)

	assert.Equal(t, int64(42), m.Commit.Revision)
	assert.Equal(t, "harry", m.Commit.Author)
	assert.True(t, m.Commit.Date.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	require.Len(t, m.Records, 3)

	first := m.Records[0]
	assert.Equal(t, "a/b.txt", first.Path)
	require.NotNil(t, first.Checksum)
	assert.Equal(t, digest.SHA1, first.Checksum.Kind)
	assert.False(t, first.Recursive)

	second := m.Records[1]
	assert.Equal(t, "c/", second.Path)
	assert.True(t, second.Recursive)
	assert.True(t, second.RemoveChangelist)
	assert.Nil(t, second.Checksum)

	third := m.Records[2]
	assert.True(t, third.RemoveLock)
	require.NotNil(t, third.Checksum)
	assert.Equal(t, digest.SHA1, third.Checksum.Kind, "sha1 wins over md5")
	require.Len(t, third.PropChanges, 2)
	assert.Equal(t, "svn:wc:ra_dav:version-url", third.PropChanges[0].Name)
	require.NotNil(t, third.PropChanges[0].Value)
	assert.Equal(t, "/!svn/ver/42/d", *third.PropChanges[0].Value)
	assert.Equal(t, "stale", third.PropChanges[1].Name)
	assert.True(t, third.PropChanges[1].IsDelete())
}

func TestLoad_Dir(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "split"))
	require.NoError(t, err)

	assert.Equal(t, int64(9), m.Commit.Revision)
	assert.Equal(t, "sally", m.Commit.Author)
	require.Len(t, m.Records, 1)
	assert.Equal(t, "iota", m.Records[0].Path)
	assert.True(t, m.Records[0].RemoveLock)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)

	var merr *Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, ErrCodeRead, merr.Code)
}

func TestParse_RecordsFeedQueue(t *testing.T) {
	m, err := Parse([]byte(`records: [{path: "x", props: {a: "1"}}, {path: "y", recursive: true}]`), "inline.cue")
	require.NoError(t, err)

	q := queue.New()
	for _, rec := range m.Records {
		require.NoError(t, q.Enqueue(rec))
	}
	assert.Equal(t, 2, q.Len())
	assert.True(t, q.HasRecursive())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", `records: [`, ErrCodeBuild},
		{"no records", `revision: 1`, ErrCodeNoRecords},
		{"records not a list", `records: {a: 1}`, ErrCodeInvalidField},
		{"missing path", `records: [{recursive: true}]`, ErrCodeInvalidField},
		{"path not string", `records: [{path: 3}]`, ErrCodeInvalidField},
		{"recursive not bool", `records: [{path: "a", recursive: "yes"}]`, ErrCodeInvalidField},
		{"prop not string", `records: [{path: "a", props: {x: 1}}]`, ErrCodeInvalidField},
		{"bad hex", `records: [{path: "a", sha1: "zz"}]`, ErrCodeChecksum},
		{"short md5", `records: [{path: "a", md5: "abcd"}]`, ErrCodeChecksum},
		{"negative revision", `revision: -1, records: []`, ErrCodeInvalidField},
		{"bad date", `date: "yesterday", records: []`, ErrCodeInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.cue")
			require.Error(t, err)

			var merr *Error
			require.True(t, errors.As(err, &merr), "expected *manifest.Error, got %T", err)
			assert.Equal(t, tt.code, merr.Code)
		})
	}
}

func TestError_Format(t *testing.T) {
	_, err := Parse([]byte("records: [\n\t{path: 3},\n]"), "pos.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pos.cue:2:")
	assert.Contains(t, err.Error(), ErrCodeInvalidField)

	plain := &Error{Code: ErrCodeNoRecords, Message: "records list is required"}
	assert.Equal(t, "M003: records list is required", plain.Error())
}
