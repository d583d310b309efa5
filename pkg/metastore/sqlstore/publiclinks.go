package sqlstore

import (
	"context"
	"database/sql"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/model"
)

// CreatePublicLink implements metastore.Store.
func (s *Store) CreatePublicLink(ctx context.Context, l *model.PublicLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO public_links (id, slug, file_id, user_id, expires_at)
		VALUES (?,?,?,?,?)`,
		l.ID, l.Slug, l.FileID, l.UserID, l.ExpiresAt)
	return translateErr(err)
}

// DeletePublicLink implements metastore.Store.
func (s *Store) DeletePublicLink(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM public_links WHERE id=?`, id)
	return err
}

// FindPublicLinkBySlug implements metastore.Store.
func (s *Store) FindPublicLinkBySlug(ctx context.Context, slug string) (*model.PublicLink, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, file_id, user_id, expires_at FROM public_links WHERE slug=?`, slug)

	l := &model.PublicLink{}
	var expiresAt sql.NullTime
	err := row.Scan(&l.ID, &l.Slug, &l.FileID, &l.UserID, &expiresAt)
	if isNoRows(err) {
		return nil, errtypes.NotFound(slug)
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		l.ExpiresAt = &t
	}
	return l, nil
}
