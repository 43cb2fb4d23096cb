package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/wcq/internal/store"
	"github.com/roach88/wcq/internal/wcpath"
)

// NodeSource lists tracked nodes under a root, parents first.
type NodeSource interface {
	Walk(ctx context.Context, root string) ([]store.Node, error)
}

// ErrRootNotTracked is returned when the crawl root is not in the store.
var ErrRootNotTracked = errors.New("report root not tracked")

// Crawl reports the state stored under root to r.
//
// The root is always reported with SetPath. Below it, a missing node is
// reported with DeletePath (and its subtree is skipped), a node whose URL
// is not its parent's URL plus its name is reported with LinkPath, and a
// node whose revision differs from its parent's or which holds a lock is
// reported with SetPath. Nodes that match their parent are implied.
//
// If any handler call fails, Abort is called and the failure is returned.
func Crawl(ctx context.Context, src NodeSource, root string, r Reporter) error {
	root = wcpath.Canonicalize(root)
	nodes, err := src.Walk(ctx, root)
	if err != nil {
		return fmt.Errorf("report %s: %w", root, err)
	}
	if len(nodes) == 0 || nodes[0].Path != root {
		return fmt.Errorf("report %s: %w", root, ErrRootNotTracked)
	}

	if err := crawl(ctx, root, nodes, r); err != nil {
		if abortErr := r.Abort(ctx); abortErr != nil {
			return errors.Join(err, fmt.Errorf("abort: %w", abortErr))
		}
		return err
	}
	return nil
}

func crawl(ctx context.Context, root string, nodes []store.Node, r Reporter) error {
	top := nodes[0]
	depth, err := ParseDepth(top.Depth)
	if err != nil {
		return fmt.Errorf("report %s: %w", top.Path, err)
	}
	if err := r.SetPath(ctx, "", top.Revision, false, top.LockToken, depth); err != nil {
		return fmt.Errorf("report %s: set path: %w", top.Path, err)
	}

	seen := map[string]store.Node{top.Path: top}
	var deleted []string

	for _, n := range nodes[1:] {
		if underAny(n.Path, deleted) {
			continue
		}
		rel := relative(root, n.Path)

		if n.Missing {
			if err := r.DeletePath(ctx, rel); err != nil {
				return fmt.Errorf("report %s: delete path: %w", n.Path, err)
			}
			deleted = append(deleted, n.Path)
			continue
		}
		seen[n.Path] = n

		depth, err := ParseDepth(n.Depth)
		if err != nil {
			return fmt.Errorf("report %s: %w", n.Path, err)
		}

		parent, hasParent := seen[wcpath.Dir(n.Path)]
		switch {
		case hasParent && isSwitched(parent, n):
			if err := r.LinkPath(ctx, rel, n.URL, n.Revision, false, n.LockToken, depth); err != nil {
				return fmt.Errorf("report %s: link path: %w", n.Path, err)
			}
		case !hasParent || n.Revision != parent.Revision || n.LockToken != "":
			if err := r.SetPath(ctx, rel, n.Revision, false, n.LockToken, depth); err != nil {
				return fmt.Errorf("report %s: set path: %w", n.Path, err)
			}
		}
	}

	if err := r.Finish(ctx); err != nil {
		return fmt.Errorf("report %s: finish: %w", root, err)
	}
	return nil
}

func isSwitched(parent, n store.Node) bool {
	if parent.URL == "" || n.URL == "" {
		return false
	}
	return n.URL != strings.TrimSuffix(parent.URL, "/")+"/"+wcpath.Base(n.Path)
}

func underAny(p string, roots []string) bool {
	for _, r := range roots {
		if wcpath.IsAncestor(r, p) {
			return true
		}
	}
	return false
}

func relative(root, p string) string {
	if root == wcpath.Root {
		return p
	}
	return strings.TrimPrefix(p, root+"/")
}
