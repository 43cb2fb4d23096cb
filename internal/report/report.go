// Package report describes stored working-copy state to a server through
// the reporter protocol used by checkout and update.
//
// A Reporter session is a sequence of SetPath / LinkPath / DeletePath calls
// followed by exactly one Finish or Abort. Crawl drives a session from the
// metadata store; any handler error aborts the session.
package report

import (
	"context"
	"fmt"
	"strings"
)

// Depth is the depth a path is reported at.
type Depth int

const (
	DepthEmpty Depth = iota
	DepthFiles
	DepthImmediates
	DepthInfinity
)

func (d Depth) String() string {
	switch d {
	case DepthEmpty:
		return "empty"
	case DepthFiles:
		return "files"
	case DepthImmediates:
		return "immediates"
	case DepthInfinity:
		return "infinity"
	default:
		return fmt.Sprintf("depth(%d)", int(d))
	}
}

// MarshalYAML renders the depth by name.
func (d Depth) MarshalYAML() (any, error) {
	return d.String(), nil
}

// MarshalJSON renders the depth by name.
func (d Depth) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// ParseDepth parses a depth name. The empty string means infinity.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(s) {
	case "", "infinity":
		return DepthInfinity, nil
	case "empty":
		return DepthEmpty, nil
	case "files":
		return DepthFiles, nil
	case "immediates":
		return DepthImmediates, nil
	default:
		return 0, fmt.Errorf("unknown depth %q", s)
	}
}

// Reporter receives a description of the client's working copy.
//
// Paths are relative to the reported root; the root itself is "".
// A non-empty lockToken reports a lock held on the path.
type Reporter interface {
	SetPath(ctx context.Context, path string, rev int64, startEmpty bool, lockToken string, depth Depth) error
	LinkPath(ctx context.Context, path, url string, rev int64, startEmpty bool, lockToken string, depth Depth) error
	DeletePath(ctx context.Context, path string) error
	Finish(ctx context.Context) error
	Abort(ctx context.Context) error
}
