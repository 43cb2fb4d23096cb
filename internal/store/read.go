package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/props"
	"github.com/roach88/wcq/internal/wcpath"
)

const nodeColumns = `path, kind, revision, changed_rev, changed_author, changed_date, url,
	checksum_kind, checksum, lock_token, changelist, depth, missing, modified`

// Adm returns the administrative area rooted at path.
func (s *Store) Adm(ctx context.Context, path string) (*Adm, error) {
	path = wcpath.Canonicalize(path)
	var a Adm
	err := s.db.QueryRowContext(ctx, `
		SELECT path, repos_uuid, url, repos_root, revision FROM wc_roots WHERE path = ?
	`, path).Scan(&a.Path, &a.UUID, &a.URL, &a.ReposRoot, &a.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("adm %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, s.wrap(ctx, "adm", path, err)
	}
	return &a, nil
}

// Node returns the stored state of path.
func (s *Store) Node(ctx context.Context, path string) (*Node, error) {
	path = wcpath.Canonicalize(path)
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE path = ?`, path)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, s.wrap(ctx, "node", path, err)
	}
	return n, nil
}

// Walk returns root (if tracked) and every tracked node below it, ordered
// by path so that parents precede their descendants. The root always comes
// first, even when a child name sorts below ".".
//
// Returns an empty slice (not nil) if nothing is tracked under root.
func (s *Store) Walk(ctx context.Context, root string) ([]Node, error) {
	root = wcpath.Canonicalize(root)

	var rows *sql.Rows
	var err error
	if root == wcpath.Root {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+nodeColumns+` FROM nodes
			WHERE path = '.' OR substr(path, 1, 1) != '/'
			ORDER BY path != '.', path COLLATE BINARY ASC
		`)
	} else {
		lo, hi := prefixRange(root)
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+nodeColumns+` FROM nodes
			WHERE path = ? OR (path >= ? AND path < ?)
			ORDER BY path COLLATE BINARY ASC
		`, root, lo, hi)
	}
	if err != nil {
		return nil, s.wrap(ctx, "walk", root, err)
	}
	defer rows.Close()

	nodes := []Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, s.wrap(ctx, "walk", root, err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, "walk", root, err)
	}
	return nodes, nil
}

// ListDescendants returns path (if tracked) followed by every tracked path
// below it. Missing nodes are skipped: they no longer exist to finalize.
func (s *Store) ListDescendants(ctx context.Context, path string) ([]string, error) {
	nodes, err := s.Walk(ctx, path)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if !n.Missing {
			paths = append(paths, n.Path)
		}
	}
	return paths, nil
}

// Props returns the properties of path ordered by name.
func (s *Store) Props(ctx context.Context, path string) ([]Prop, error) {
	path = wcpath.Canonicalize(path)
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, kind FROM node_props
		WHERE path = ?
		ORDER BY name COLLATE BINARY ASC
	`, path)
	if err != nil {
		return nil, s.wrap(ctx, "props", path, err)
	}
	defer rows.Close()

	out := []Prop{}
	for rows.Next() {
		var p Prop
		var kind string
		if err := rows.Scan(&p.Name, &p.Value, &kind); err != nil {
			return nil, s.wrap(ctx, "props", path, err)
		}
		p.Kind = props.Kind(kind)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, "props", path, err)
	}
	return out, nil
}

// Runs returns the finalize audit log ordered by seq.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, revision, applied, failed, not_applied, cancelled, error
		FROM finalize_runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, s.wrap(ctx, "runs", "", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Seq, &r.Revision, &r.Applied, &r.Failed, &r.NotApplied, &r.Cancelled, &r.Error); err != nil {
			return nil, s.wrap(ctx, "runs", "", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, "runs", "", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var kind, changedDate, sumKind string
	var sum []byte
	err := row.Scan(&n.Path, &kind, &n.Revision, &n.ChangedRev, &n.ChangedAuthor, &changedDate,
		&n.URL, &sumKind, &sum, &n.LockToken, &n.Changelist, &n.Depth, &n.Missing, &n.Modified)
	if err != nil {
		return nil, err
	}
	n.Kind = NodeKind(kind)

	if changedDate != "" {
		t, err := time.Parse(time.RFC3339Nano, changedDate)
		if err != nil {
			return nil, fmt.Errorf("node %s: changed_date: %w", n.Path, err)
		}
		n.ChangedDate = t
	}

	if sumKind != "" {
		kind, err := digest.ParseKind(sumKind)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Path, err)
		}
		n.Checksum, err = digest.New(kind, sum)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Path, err)
		}
	}
	return &n, nil
}

// prefixRange returns the half-open range of paths strictly below root.
// '0' is the byte after '/'.
func prefixRange(root string) (string, string) {
	if root == "/" {
		return "/", "0"
	}
	return root + "/", root + "0"
}
