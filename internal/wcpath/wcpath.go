// Package wcpath canonicalises working-copy relative paths.
//
// Every path that enters the queue or the metadata store goes through
// Canonicalize so that equivalent spellings ("c/", "./c", a decomposed
// Unicode form of the same name) address the same record.
package wcpath

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Root is the canonical form of the working-copy root.
const Root = "."

// Canonicalize returns the NFC-normalised, cleaned form of p with no
// trailing slash. The empty string stays empty so callers can reject it.
func Canonicalize(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(norm.NFC.String(p))
}

// IsCanonical reports whether p is already in canonical form.
func IsCanonical(p string) bool {
	return p != "" && Canonicalize(p) == p
}

// IsLocal reports whether canonical p stays inside the working copy:
// not absolute and not escaping through "..".
func IsLocal(p string) bool {
	if p == "" || path.IsAbs(p) {
		return false
	}
	return p != ".." && !strings.HasPrefix(p, "../")
}

// IsAncestor reports whether child lies strictly below parent.
// Both paths must be canonical.
func IsAncestor(parent, child string) bool {
	if parent == child {
		return false
	}
	if parent == Root {
		return !path.IsAbs(child) && child != Root
	}
	if parent == "/" {
		return strings.HasPrefix(child, "/")
	}
	return strings.HasPrefix(child, parent+"/")
}

// Join joins elements and canonicalises the result.
func Join(elem ...string) string {
	return Canonicalize(path.Join(elem...))
}

// Dir returns the parent of p ("." for a top-level entry).
func Dir(p string) string {
	return path.Dir(p)
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(p)
}
