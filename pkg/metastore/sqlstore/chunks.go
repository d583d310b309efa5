package sqlstore

import (
	"context"
	"database/sql"

	"github.com/ddrive-io/ddrive/pkg/model"
)

// InsertChunkPointer implements metastore.Store.
func (s *Store) InsertChunkPointer(ctx context.Context, cp *model.ChunkPointer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunk_pointers (id, file_id, chunk_index, message_id, channel_id, attachment_url, size)
		VALUES (?,?,?,?,?,?,?)`,
		cp.ID, cp.FileID, cp.ChunkIndex, cp.MessageID, cp.ChannelID, cp.AttachmentURL, cp.Size)
	return translateErr(err)
}

// ListChunkPointers implements metastore.Store, returning chunks ordered
// by chunkIndex ascending, as the chunk engine's fetch ordering guarantee
// requires.
func (s *Store) ListChunkPointers(ctx context.Context, fileID string) ([]*model.ChunkPointer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, chunk_index, message_id, channel_id, attachment_url, size
		FROM chunk_pointers WHERE file_id=? ORDER BY chunk_index ASC`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ChunkPointer
	for rows.Next() {
		cp := &model.ChunkPointer{}
		if err := rows.Scan(&cp.ID, &cp.FileID, &cp.ChunkIndex, &cp.MessageID, &cp.ChannelID, &cp.AttachmentURL, &cp.Size); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// DeleteChunkPointersByFile implements metastore.Store.
func (s *Store) DeleteChunkPointersByFile(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range fileIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_pointers WHERE file_id=?`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ScanChunkPointerMessageIDs implements metastore.Store: pages every
// referenced messageId for the reconciler's set-diff against the
// substrate's message history, 1000 rows at a time.
func (s *Store) ScanChunkPointerMessageIDs(ctx context.Context, yield func(ids []string) bool) error {
	const pageSize = 1000
	lastRowID := ""
	for {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, message_id FROM chunk_pointers WHERE id > ? ORDER BY id ASC LIMIT ?`,
			lastRowID, pageSize)
		if err != nil {
			return err
		}

		var ids []string
		rowCount := 0
		for rows.Next() {
			var rowID, messageID string
			if err := rows.Scan(&rowID, &messageID); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, messageID)
			lastRowID = rowID
			rowCount++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if rowCount == 0 {
			return nil
		}
		if !yield(ids) {
			return nil
		}
		if rowCount < pageSize {
			return nil
		}
	}
}
