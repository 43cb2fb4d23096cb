package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchList(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     bool
	}{
		{"foo.o", []string{"*.o"}, true},
		{"foo.c", []string{"*.o"}, false},
		{"dir/foo.o", []string{"*.o"}, true},
		{"libx.so.1", []string{"*.so.[0-9]*"}, true},
		{"a.txt", []string{"?.txt"}, true},
		{"ab.txt", []string{"?.txt"}, false},
		{"anything", nil, false},
		{"anything", []string{""}, false},
		{"exact", []string{"other", "exact"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchList(tt.name, tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchList_FnmatchLiterals(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"{a,b}", "{a,b}", true},
		{"a", "{a,b}", false},
		{"x{1}.tmp", "x{1}*", true},
		{"[unterminated", "[unterminated", true},
		{"[abc", "[a*", true},
		{"b.o", "[^a].o", true},
		{"a.o", "[^a].o", false},
		{"a.o", "[!a].o", false},
		{"c.o", "[a-c].o", true},
		{"a*b", `a\*b`, true},
		{"axb", `a\*b`, false},
		{`tail\`, `tail\`, true},
		{"[]", "[]", true},
		{"a]", "a]", true},
		{"[!]", "[!]", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.name, func(t *testing.T) {
			got, err := MatchList(tt.name, []string{tt.pattern})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchingPattern(t *testing.T) {
	m, err := Compile([]string{"*.log", "build*"})
	require.NoError(t, err)

	p, ok := m.MatchingPattern("build.log")
	require.True(t, ok)
	assert.Equal(t, "*.log", p)

	_, ok = m.MatchingPattern("main.go")
	assert.False(t, ok)
	assert.Equal(t, []string{"*.log", "build*"}, m.Patterns())
}

func TestDefaultGlobalIgnores(t *testing.T) {
	m, err := Compile(DefaultGlobalIgnores)
	require.NoError(t, err)
	assert.True(t, m.Match("module.pyc"))
	assert.True(t, m.Match(".main.go.swp"))
	assert.False(t, m.Match("main.go"))
}
