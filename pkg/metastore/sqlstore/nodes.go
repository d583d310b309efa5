package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/model"
)

const nodeColumns = `id, user_id, parent_id, name, path, type, size, mime_type, encrypted,
	starred, created_at, updated_at, deleted_at, original_path, deleted_with_parent_id`

func scanNode(row interface{ Scan(...any) error }) (*model.Node, error) {
	n := &model.Node{}
	var parentID, originalPath, deletedWithParentID sql.NullString
	var deletedAt sql.NullTime
	var typ string

	err := row.Scan(&n.ID, &n.UserID, &parentID, &n.Name, &n.Path, &typ, &n.Size, &n.MimeType,
		&n.Encrypted, &n.Starred, &n.CreatedAt, &n.UpdatedAt, &deletedAt, &originalPath, &deletedWithParentID)
	if err != nil {
		return nil, err
	}

	n.Type = model.NodeType(typ)
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		n.DeletedAt = &t
	}
	if originalPath.Valid {
		n.OriginalPath = &originalPath.String
	}
	if deletedWithParentID.Valid {
		n.DeletedWithParentID = &deletedWithParentID.String
	}
	return n, nil
}

// CreateNode implements metastore.Store.
func (s *Store) CreateNode(ctx context.Context, n *model.Node) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.ParentID, n.Name, n.Path, string(n.Type), n.Size, n.MimeType,
		n.Encrypted, n.Starred, n.CreatedAt, n.UpdatedAt, n.DeletedAt, n.OriginalPath, n.DeletedWithParentID,
	)
	return translateErr(err)
}

// UpdateNode implements metastore.Store. Every mutable column is rewritten;
// callers are expected to load-modify-save a full *model.Node.
func (s *Store) UpdateNode(ctx context.Context, n *model.Node) error {
	n.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE nodes SET parent_id=?, name=?, path=?, size=?, mime_type=?, encrypted=?,
			starred=?, updated_at=?, deleted_at=?, original_path=?, deleted_with_parent_id=?
		WHERE id=?`,
		n.ParentID, n.Name, n.Path, n.Size, n.MimeType, n.Encrypted,
		n.Starred, n.UpdatedAt, n.DeletedAt, n.OriginalPath, n.DeletedWithParentID, n.ID,
	)
	return translateErr(err)
}

// DeleteNodes implements metastore.Store.
func (s *Store) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id=?`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNode implements metastore.Store.
func (s *Store) GetNode(ctx context.Context, id string) (*model.Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id=?`, id)
	n, err := scanNode(row)
	if isNoRows(err) {
		return nil, errtypes.NotFound(id)
	}
	return n, err
}

// FindByPath implements metastore.Store.
func (s *Store) FindByPath(ctx context.Context, userID, path string) (*model.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE user_id=? AND path=? AND deleted_at IS NULL`,
		userID, path)
	n, err := scanNode(row)
	if isNoRows(err) {
		return nil, errtypes.NotFound(path)
	}
	return n, err
}

// ListChildren implements metastore.Store.
func (s *Store) ListChildren(ctx context.Context, userID string, parentID *string, opts metastore.ListChildrenOpts) ([]*model.Node, error) {
	q := `SELECT ` + nodeColumns + ` FROM nodes WHERE user_id=? AND `
	args := []any{userID}
	if parentID == nil {
		q += `parent_id IS NULL`
	} else {
		q += `parent_id=?`
		args = append(args, *parentID)
	}
	if !opts.IncludeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	q += ` ORDER BY type ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// FindDescendants implements metastore.Store: every live node whose path
// begins with pathPrefix + "/".
func (s *Store) FindDescendants(ctx context.Context, userID, pathPrefix string) ([]*model.Node, error) {
	// MySQL treats backslash as the LIKE escape by default; SQLite has no
	// default escape character and needs it named.
	escape := ``
	if s.driver == DriverSQLite {
		escape = ` ESCAPE '\'`
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE user_id=? AND deleted_at IS NULL AND path LIKE ?`+escape+` ORDER BY path ASC`,
		userID, escapeLike(pathPrefix)+`/%`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// ListStarred implements metastore.Store.
func (s *Store) ListStarred(ctx context.Context, userID string) ([]*model.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE user_id=? AND starred=1 AND deleted_at IS NULL ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// ListTrash implements metastore.Store.
func (s *Store) ListTrash(ctx context.Context, userID string) ([]*model.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE user_id=? AND deleted_at IS NOT NULL ORDER BY deleted_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// ListTrashOlderThan implements metastore.Store, for the reconciler's
// retention sweep.
func (s *Store) ListTrashOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// RenameOrMoveSubtree implements metastore.Store.
func (s *Store) RenameOrMoveSubtree(ctx context.Context, self *model.Node, rewrites []metastore.PathRewrite) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		self.UpdatedAt = time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET parent_id=?, name=?, path=?, updated_at=? WHERE id=?`,
			self.ParentID, self.Name, self.Path, self.UpdatedAt, self.ID); err != nil {
			return err
		}
		for _, rw := range rewrites {
			if _, err := tx.ExecContext(ctx, `UPDATE nodes SET path=?, updated_at=? WHERE id=?`,
				rw.NewPath, self.UpdatedAt, rw.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// TrashSubtree implements metastore.Store.
func (s *Store) TrashSubtree(ctx context.Context, entry *model.Node, members []*model.Node) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateTrashRow(ctx, tx, entry); err != nil {
			return err
		}
		for _, m := range members {
			if err := updateTrashRow(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func updateTrashRow(ctx context.Context, tx *sql.Tx, n *model.Node) error {
	n.UpdatedAt = time.Now()
	_, err := tx.ExecContext(ctx,
		`UPDATE nodes SET path=?, deleted_at=?, original_path=?, deleted_with_parent_id=?, updated_at=? WHERE id=?`,
		n.Path, n.DeletedAt, n.OriginalPath, n.DeletedWithParentID, n.UpdatedAt, n.ID)
	return err
}

// RestoreSubtree implements metastore.Store.
func (s *Store) RestoreSubtree(ctx context.Context, entry *model.Node, rewrites []metastore.PathRewrite) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		entry.UpdatedAt = time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET name=?, path=?, deleted_at=NULL, original_path=NULL, deleted_with_parent_id=NULL, updated_at=? WHERE id=?`,
			entry.Name, entry.Path, entry.UpdatedAt, entry.ID); err != nil {
			return err
		}
		for _, rw := range rewrites {
			if _, err := tx.ExecContext(ctx,
				`UPDATE nodes SET path=?, deleted_at=NULL, original_path=NULL, deleted_with_parent_id=NULL, updated_at=? WHERE id=?`,
				rw.NewPath, entry.UpdatedAt, rw.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func collectNodes(rows *sql.Rows) ([]*model.Node, error) {
	var out []*model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// escapeLike escapes SQL LIKE metacharacters so a path containing literal
// "%" or "_" doesn't widen the prefix match.
func escapeLike(s string) string {
	r := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' || s[i] == '_' || s[i] == '\\' {
			r = append(r, '\\')
		}
		r = append(r, s[i])
	}
	return string(r)
}
