package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/wcq/internal/wcpath"
)

// RevisionStatus reports the revision range, switched state and
// modification state of everything tracked under root.
//
// With committed set, last-changed revisions are used instead of base
// revisions. A non-empty trailURL marks the tree switched unless the root's
// URL ends with it. Nodes at revision 0 (scheduled additions) and missing
// nodes do not contribute to the revision range.
func (s *Store) RevisionStatus(ctx context.Context, root, trailURL string, committed bool) (*RevisionStatus, error) {
	nodes, err := s.Walk(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("revision status %s: %w", wcpath.Canonicalize(root), ErrNotFound)
	}

	st := &RevisionStatus{MinRev: -1, MaxRev: -1}
	urls := make(map[string]string, len(nodes))

	for _, n := range nodes {
		urls[n.Path] = n.URL

		if n.Modified || n.Missing {
			st.Modified = true
		}

		if parentURL, ok := urls[wcpath.Dir(n.Path)]; ok && n.URL != "" && parentURL != "" && n.Path != nodes[0].Path {
			if n.URL != strings.TrimSuffix(parentURL, "/")+"/"+wcpath.Base(n.Path) {
				st.Switched = true
			}
		}

		if n.Missing {
			continue
		}
		rev := n.Revision
		if committed {
			rev = n.ChangedRev
		}
		if rev <= 0 {
			continue
		}
		if st.MinRev < 0 || rev < st.MinRev {
			st.MinRev = rev
		}
		if rev > st.MaxRev {
			st.MaxRev = rev
		}
	}

	if trailURL != "" && !strings.HasSuffix(strings.TrimSuffix(nodes[0].URL, "/"), strings.TrimSuffix(trailURL, "/")) {
		st.Switched = true
	}

	return st, nil
}
