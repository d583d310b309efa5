package sqlstore

import (
	"context"

	"github.com/ddrive-io/ddrive/pkg/model"
)

// AppendLog implements metastore.Store.
func (s *Store) AppendLog(ctx context.Context, l *model.Log) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (id, user_id, category, level, message, created_at)
		VALUES (?,?,?,?,?,?)`,
		l.ID, l.UserID, string(l.Category), string(l.Level), l.Message, l.CreatedAt)
	return err
}
