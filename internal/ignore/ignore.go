// Package ignore matches names against ignore patterns.
//
// Patterns use fnmatch syntax: "*" and "?" wildcards and "[...]" classes.
// No path-separator handling is applied, so "*" also matches "/". A name is
// ignored when any pattern matches it in full.
//
// Braces are literal, "[^...]" negates like "[!...]", and a "[" with no
// closing "]" matches itself.
package ignore

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultGlobalIgnores is the global ignore list used when none is configured.
var DefaultGlobalIgnores = []string{
	"*.o", "*.lo", "*.la", "*.al", ".libs", "*.so", "*.so.[0-9]*", "*.a",
	"*.pyc", "*.pyo", "__pycache__", "*.rej", "*~", "#*#", ".#*", ".*.swp",
	".DS_Store",
}

// Matcher holds a compiled pattern list.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// Compile compiles patterns once for repeated matching. Empty patterns are
// skipped.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(translate(p))
		if err != nil {
			return nil, fmt.Errorf("compile ignore pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether name matches any pattern.
func (m *Matcher) Match(name string) bool {
	_, ok := m.MatchingPattern(name)
	return ok
}

// MatchingPattern returns the first pattern that matches name.
func (m *Matcher) MatchingPattern(name string) (string, bool) {
	for i, g := range m.globs {
		if g.Match(name) {
			return m.patterns[i], true
		}
	}
	return "", false
}

// Patterns returns the compiled patterns in order.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// MatchList compiles patterns and matches name against them.
func MatchList(name string, patterns []string) (bool, error) {
	m, err := Compile(patterns)
	if err != nil {
		return false, err
	}
	return m.Match(name), nil
}

// translate rewrites an fnmatch pattern into glob syntax.
func translate(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '\\':
			if i+1 == len(p) {
				b.WriteString(`\\`)
				continue
			}
			i++
			b.WriteByte(c)
			b.WriteByte(p[i])
		case '{', '}', ']':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '[':
			end := classEnd(p, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := p[i+1 : end]
			if strings.HasPrefix(class, "^") {
				class = "!" + class[1:]
			}
			if class == "" || class == "!" {
				b.WriteString(`\[`)
				continue
			}
			b.WriteByte('[')
			b.WriteString(class)
			b.WriteByte(']')
			i = end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// classEnd returns the index of the "]" closing the class opened at i,
// or -1.
func classEnd(p string, i int) int {
	if k := strings.IndexByte(p[i+1:], ']'); k >= 0 {
		return i + 1 + k
	}
	return -1
}
