package sqlstore

import (
	"context"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/model"
)

// CreateShare implements metastore.Store.
func (s *Store) CreateShare(ctx context.Context, sh *model.Share) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shares (id, file_id, owner_id, shared_with_id, permission)
		VALUES (?,?,?,?,?)`,
		sh.ID, sh.FileID, sh.OwnerID, sh.SharedWithID, string(sh.Permission))
	return translateErr(err)
}

// DeleteShare implements metastore.Store.
func (s *Store) DeleteShare(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE id=?`, id)
	return err
}

func scanShare(row interface{ Scan(...any) error }) (*model.Share, error) {
	sh := &model.Share{}
	var perm string
	if err := row.Scan(&sh.ID, &sh.FileID, &sh.OwnerID, &sh.SharedWithID, &perm); err != nil {
		return nil, err
	}
	sh.Permission = model.Permission(perm)
	return sh, nil
}

// GetShare implements metastore.Store.
func (s *Store) GetShare(ctx context.Context, id string) (*model.Share, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_id, owner_id, shared_with_id, permission FROM shares WHERE id=?`, id)
	sh, err := scanShare(row)
	if isNoRows(err) {
		return nil, errtypes.NotFound(id)
	}
	return sh, err
}

// ListSharedWithMe implements metastore.Store.
func (s *Store) ListSharedWithMe(ctx context.Context, userID string) ([]*model.Share, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_id, owner_id, shared_with_id, permission FROM shares WHERE shared_with_id=?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShares(rows)
}

// ListSharesForFile implements metastore.Store.
func (s *Store) ListSharesForFile(ctx context.Context, fileID string) ([]*model.Share, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_id, owner_id, shared_with_id, permission FROM shares WHERE file_id=?`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShares(rows)
}

func collectShares(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]*model.Share, error) {
	var out []*model.Share
	for rows.Next() {
		sh, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}
