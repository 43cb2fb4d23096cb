package store

import (
	"context"
	"errors"
	"strings"

	"github.com/roach88/wcq/internal/wcpath"
)

// IsWorkingCopy reports whether path has an administrative area of its own.
func (s *Store) IsWorkingCopy(ctx context.Context, path string) (bool, error) {
	_, err := s.Adm(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ActualTarget splits path into the directory an operation locks (anchor)
// and the entry it acts on inside it (target). A working-copy root or a
// switched directory is its own anchor and has an empty target. Anything
// else is anchored at its parent.
func (s *Store) ActualTarget(ctx context.Context, path string) (anchor, target string, err error) {
	path = wcpath.Canonicalize(path)
	if path == wcpath.Root {
		return path, "", nil
	}

	root, err := s.isWCRoot(ctx, path)
	if err != nil {
		return "", "", err
	}
	if root {
		return path, "", nil
	}
	return wcpath.Dir(path), wcpath.Base(path), nil
}

func (s *Store) isWCRoot(ctx context.Context, path string) (bool, error) {
	if ok, err := s.IsWorkingCopy(ctx, path); ok || err != nil {
		return ok, err
	}

	n, err := s.Node(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil || n.Kind != KindDir {
		return false, err
	}

	parent, err := s.Node(ctx, wcpath.Dir(path))
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if n.URL == "" || parent.URL == "" {
		return false, nil
	}
	return n.URL != strings.TrimSuffix(parent.URL, "/")+"/"+wcpath.Base(path), nil
}
