package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodePaths(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Path
	}
	return out
}

func TestWalk_OrderedParentsFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	trackAll(t, s,
		Node{Path: "a/z"},
		Node{Path: "a", Kind: KindDir},
		Node{Path: "a/b", Kind: KindDir},
		Node{Path: "a/b/c"},
		Node{Path: "ab"},
		Node{Path: "b"},
	)

	nodes, err := s.Walk(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/b", "a/b/c", "a/z"}, nodePaths(nodes))

	nodes, err = s.Walk(ctx, ".")
	require.NoError(t, err)
	assert.Len(t, nodes, 6)

	nodes, err = s.Walk(ctx, "nothing")
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestWalk_RootBeforeLowSortingNames(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	trackAll(t, s,
		Node{Path: "-notes"},
		Node{Path: "#scratch#"},
		Node{Path: "a"},
		Node{Path: ".", Kind: KindDir},
		Node{Path: "!bang"},
	)

	nodes, err := s.Walk(ctx, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "!bang", "#scratch#", "-notes", "a"}, nodePaths(nodes))

	paths, err := s.ListDescendants(ctx, ".")
	require.NoError(t, err)
	assert.Equal(t, ".", paths[0])
}

func TestListDescendants_SkipsMissing(t *testing.T) {
	s := createTestStore(t)
	trackAll(t, s,
		Node{Path: "d", Kind: KindDir},
		Node{Path: "d/x"},
		Node{Path: "d/y", Missing: true},
	)

	paths, err := s.ListDescendants(context.Background(), "d/")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "d/x"}, paths)
}

func TestAdm_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Adm(context.Background(), "wc")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRuns_Empty(t *testing.T) {
	s := createTestStore(t)
	runs, err := s.Runs(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}
