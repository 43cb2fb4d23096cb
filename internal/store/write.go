package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/wcq/internal/digest"
	"github.com/roach88/wcq/internal/props"
	"github.com/roach88/wcq/internal/queue"
	"github.com/roach88/wcq/internal/wcpath"
)

// ErrAdmConflict is returned by EnsureAdm when the root already belongs to
// a different repository or URL.
var ErrAdmConflict = errors.New("administrative area conflict")

// EnsureAdm creates the administrative area for adm.Path, or verifies that
// an existing one matches adm. The root directory node is tracked as well.
func (s *Store) EnsureAdm(ctx context.Context, adm Adm) error {
	adm.Path = wcpath.Canonicalize(adm.Path)
	if adm.Path == "" {
		return fmt.Errorf("ensure adm: path must not be empty")
	}
	if _, err := uuid.Parse(adm.UUID); err != nil {
		return fmt.Errorf("ensure adm: invalid repository uuid %q: %w", adm.UUID, err)
	}
	if adm.URL == "" {
		return fmt.Errorf("ensure adm: url must not be empty")
	}

	existing, err := s.Adm(ctx, adm.Path)
	switch {
	case err == nil:
		if existing.UUID != adm.UUID || existing.URL != adm.URL {
			return fmt.Errorf("ensure adm %s: %w: have uuid=%s url=%s",
				adm.Path, ErrAdmConflict, existing.UUID, existing.URL)
		}
		return nil
	case !errors.Is(err, ErrNotFound):
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap(ctx, "ensure adm", adm.Path, err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wc_roots (path, repos_uuid, url, repos_root, revision)
		VALUES (?, ?, ?, ?, ?)
	`, adm.Path, adm.UUID, adm.URL, adm.ReposRoot, adm.Revision); err != nil {
		return s.wrap(ctx, "ensure adm", adm.Path, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (path, kind, revision, url)
		VALUES (?, 'dir', ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, adm.Path, adm.Revision, adm.URL); err != nil {
		return s.wrap(ctx, "ensure adm", adm.Path, err)
	}

	return s.wrap(ctx, "ensure adm", adm.Path, tx.Commit())
}

// Track inserts or replaces the stored state of n.Path.
// Properties already stored for the path are kept.
func (s *Store) Track(ctx context.Context, n Node) error {
	n.Path = wcpath.Canonicalize(n.Path)
	if n.Path == "" {
		return fmt.Errorf("track: path must not be empty")
	}
	if n.Kind == "" {
		n.Kind = KindFile
	}
	if n.Depth == "" {
		n.Depth = "infinity"
	}

	var sumKind string
	var sumBytes []byte
	if n.Checksum != nil {
		if err := n.Checksum.Validate(); err != nil {
			return fmt.Errorf("track %s: %w", n.Path, err)
		}
		sumKind, sumBytes = n.Checksum.Kind.String(), n.Checksum.Bytes
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes
		(path, kind, revision, changed_rev, changed_author, changed_date, url,
		 checksum_kind, checksum, lock_token, changelist, depth, missing, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind = excluded.kind,
			revision = excluded.revision,
			changed_rev = excluded.changed_rev,
			changed_author = excluded.changed_author,
			changed_date = excluded.changed_date,
			url = excluded.url,
			checksum_kind = excluded.checksum_kind,
			checksum = excluded.checksum,
			lock_token = excluded.lock_token,
			changelist = excluded.changelist,
			depth = excluded.depth,
			missing = excluded.missing,
			modified = excluded.modified
	`,
		n.Path, string(n.Kind), n.Revision, n.ChangedRev, n.ChangedAuthor, formatTime(n.ChangedDate),
		n.URL, sumKind, sumBytes, n.LockToken, n.Changelist, n.Depth, n.Missing, n.Modified,
	)
	return s.wrap(ctx, "track", n.Path, err)
}

// Untrack removes the node for path. Its properties are left for Cleanup.
func (s *Store) Untrack(ctx context.Context, path string) error {
	path = wcpath.Canonicalize(path)
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE path = ?`, path)
	return s.wrap(ctx, "untrack", path, requireRow(res, err))
}

// MarkCommitted clears the modified flag and, for a positive revision,
// records the commit as the node's revision and last change.
func (s *Store) MarkCommitted(ctx context.Context, path string, info queue.CommitInfo) error {
	var res sql.Result
	var err error
	if info.Revision > 0 {
		res, err = s.db.ExecContext(ctx, `
			UPDATE nodes SET
				modified = 0,
				revision = ?,
				changed_rev = ?,
				changed_author = ?,
				changed_date = ?
			WHERE path = ?
		`, info.Revision, info.Revision, info.Author, formatTime(info.Date), path)
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE nodes SET modified = 0 WHERE path = ?`, path)
	}
	return s.wrap(ctx, "mark committed", path, requireRow(res, err))
}

// ApplyPropertyChanges applies changes to path in one transaction.
func (s *Store) ApplyPropertyChanges(ctx context.Context, path string, changes []queue.PropChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap(ctx, "apply property changes", path, err)
	}
	defer tx.Rollback() // No-op if committed

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE path = ?`, path).Scan(&exists)
	if err != nil {
		return s.wrap(ctx, "apply property changes", path, err)
	}
	if exists == 0 {
		return s.wrap(ctx, "apply property changes", path, ErrNotFound)
	}

	for _, c := range changes {
		if c.IsDelete() {
			_, err = tx.ExecContext(ctx, `DELETE FROM node_props WHERE path = ? AND name = ?`, path, c.Name)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO node_props (path, name, value, kind)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(path, name) DO UPDATE SET value = excluded.value, kind = excluded.kind
			`, path, c.Name, *c.Value, string(props.KindOf(c.Name)))
		}
		if err != nil {
			return s.wrap(ctx, "apply property changes", path, err)
		}
	}

	return s.wrap(ctx, "apply property changes", path, tx.Commit())
}

// ClearLock removes any lock token recorded for path.
func (s *Store) ClearLock(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET lock_token = '' WHERE path = ?`, path)
	return s.wrap(ctx, "clear lock", path, requireRow(res, err))
}

// ClearChangelist removes path from its changelist.
func (s *Store) ClearChangelist(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET changelist = '' WHERE path = ?`, path)
	return s.wrap(ctx, "clear changelist", path, requireRow(res, err))
}

// SetPristineChecksum records sum as the pristine fingerprint of path.
func (s *Store) SetPristineChecksum(ctx context.Context, path string, sum *digest.Checksum) error {
	if err := sum.Validate(); err != nil {
		return fmt.Errorf("set pristine checksum %s: %w", path, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE nodes SET checksum_kind = ?, checksum = ? WHERE path = ?
	`, sum.Kind.String(), sum.Bytes, path)
	return s.wrap(ctx, "set pristine checksum", path, requireRow(res, err))
}

// RecordRun appends run to the finalize audit log and returns its id.
// Run.ID and Run.Seq are assigned by the store.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	run.ID = s.idGen.Generate()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", s.wrap(ctx, "record run", run.ID, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM finalize_runs`).Scan(&run.Seq); err != nil {
		return "", s.wrap(ctx, "record run", run.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO finalize_runs (id, seq, revision, applied, failed, not_applied, cancelled, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Seq, run.Revision, run.Applied, run.Failed, run.NotApplied, run.Cancelled, run.Error); err != nil {
		return "", s.wrap(ctx, "record run", run.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", s.wrap(ctx, "record run", run.ID, err)
	}
	return run.ID, nil
}

// CleanupResult reports what Cleanup removed.
type CleanupResult struct {
	OrphanProps int64
}

// Cleanup removes properties of untracked paths and checkpoints the WAL.
func (s *Store) Cleanup(ctx context.Context) (*CleanupResult, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM node_props WHERE path NOT IN (SELECT path FROM nodes)
	`)
	if err != nil {
		return nil, s.wrap(ctx, "cleanup", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, s.wrap(ctx, "cleanup", "", err)
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return nil, s.wrap(ctx, "cleanup", "", err)
	}
	return &CleanupResult{OrphanProps: n}, nil
}

// requireRow turns a zero-row update into ErrNotFound.
func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
