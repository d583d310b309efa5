package chunkengine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/chunkcrypto"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metrics"
	"github.com/ddrive-io/ddrive/pkg/model"
	"github.com/ddrive-io/ddrive/pkg/namespace"
)

// Progress is emitted during Store for the caller to surface upload
// progress (mirrored in pkg/task's run progress map).
type Progress struct {
	ChunkIndex  int
	BytesSoFar  uint64
}

// StoreParams names everything a streaming upload needs: the parent is
// resolved by id only, never by a client-supplied path.
type StoreParams struct {
	UserID    string
	Parent    *model.Node // nil means root
	Name      string
	Encrypt   bool
	Source    Source
	OnProgress func(Progress)
}

// Store resolves the parent path, uniquifies the name,
// create the node row, stream-upload chunks in order, and commit the
// file's final size. On any fatal failure after the node row is created,
// it rolls back every chunk blob and row already committed plus the node
// row itself (step 6); the reconciler is the backstop for blobs that
// outlive a failed rollback.
func (e *Engine) Store(ctx context.Context, p StoreParams) (*model.Node, error) {
	parentPath := ""
	var parentID *string
	if p.Parent != nil {
		parentPath = p.Parent.Path
		parentID = &p.Parent.ID
	}

	var userKey []byte
	if p.Encrypt {
		var err error
		userKey, err = e.UserKey(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
	}

	now := e.now()
	node := &model.Node{
		UserID: p.UserID, ParentID: parentID, Type: model.NodeFile,
		Encrypted: p.Encrypt, CreatedAt: now, UpdatedAt: now,
	}
	if p.Source.Size >= 0 {
		node.Size = uint64(p.Source.Size)
	}

	err := namespace.CreateWithRetry(ctx, e.Meta, p.UserID, parentPath, p.Name,
		func(ctx context.Context, name, path string) error {
			node.ID = e.newID()
			node.Name = name
			node.Path = path
			return e.Meta.CreateNode(ctx, node)
		})
	if err != nil {
		return nil, err
	}

	chunks, totalSize, uploadErr := e.uploadChunks(ctx, node, p.Source, userKey, p.OnProgress)
	if uploadErr != nil {
		e.rollbackUpload(ctx, node, chunks)
		return nil, uploadErr
	}

	node.Size = totalSize
	node.MimeType = ""
	if err := e.Meta.UpdateNode(ctx, node); err != nil {
		e.rollbackUpload(ctx, node, chunks)
		return nil, err
	}
	metrics.ChunkUploadBytes.Add(float64(totalSize))

	// step 7: post-create race check for streaming uploads.
	if err := namespace.RacecheckRename(ctx, e.Meta, node); err != nil {
		logger.Error(ctx, fmt.Errorf("post-create race check for %s: %w", node.ID, err))
	}

	return node, nil
}

func (e *Engine) blockSize(encrypt bool) int {
	if encrypt {
		return EffectiveChunkSize
	}
	return ChunkSize
}

func (e *Engine) uploadChunks(ctx context.Context, node *model.Node, src Source, userKey []byte, onProgress func(Progress)) ([]*model.ChunkPointer, uint64, error) {
	blockSize := e.blockSize(node.Encrypted)
	buf := make([]byte, blockSize)

	var chunks []*model.ChunkPointer
	var total uint64

	for idx := 0; ; idx++ {
		n, readErr := io.ReadFull(src.Reader, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return chunks, total, readErr
		}
		if n == 0 {
			break
		}
		plain := buf[:n]

		payload := plain
		if node.Encrypted {
			ct, err := chunkcrypto.Encrypt(plain, userKey)
			if err != nil {
				return chunks, total, err
			}
			payload = ct
		}

		name := fmt.Sprintf("%s_chunk_%d_%s", node.ID, idx, node.Name)
		ref, err := e.uploadWithRetry(ctx, name, payload)
		if err != nil {
			return chunks, total, err
		}

		cp := &model.ChunkPointer{
			ID: e.newID(), FileID: node.ID, ChunkIndex: idx,
			MessageID: ref.MessageID, ChannelID: ref.ChannelID, AttachmentURL: ref.AttachmentURL,
			Size: uint64(n),
		}
		if err := e.Meta.InsertChunkPointer(ctx, cp); err != nil {
			return chunks, total, err
		}
		chunks = append(chunks, cp)
		total += uint64(n)

		if onProgress != nil {
			onProgress(Progress{ChunkIndex: idx, BytesSoFar: total})
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF || n < blockSize {
			break
		}
	}

	return chunks, total, nil
}

// uploadWithRetry implements the chunk upload retry policy: up to 3
// attempts with exponential backoff from 500ms on BLOB_NET or
// BLOB_RATE_LIMIT (honoring retry-after); BLOB_TOO_LARGE is never retried.
func (e *Engine) uploadWithRetry(ctx context.Context, name string, data []byte) (blob.Ref, error) {
	backoff := uploadRetryBase
	var lastErr error
	for attempt := 0; attempt < maxUploadRetries; attempt++ {
		ref, err := e.Blob.Put(ctx, name, data)
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if _, ok := err.(errtypes.BlobTooLarge); ok {
			return blob.Ref{}, err
		}

		wait := backoff
		if rl, ok := err.(errtypes.BlobRateLimit); ok {
			wait = time.Duration(rl.RetryAfterSeconds * float64(time.Second))
		} else if _, ok := err.(errtypes.BlobNet); !ok {
			return blob.Ref{}, err
		}

		select {
		case <-ctx.Done():
			return blob.Ref{}, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return blob.Ref{}, lastErr
}

// rollbackUpload performs best-effort blob deletion,
// chunk row deletion, node row deletion. Failures are collected and logged
// as one joined error, not retried inline — the reconciler is the
// authoritative cleanup path.
func (e *Engine) rollbackUpload(ctx context.Context, node *model.Node, chunks []*model.ChunkPointer) {
	var failures []error

	for _, c := range chunks {
		ref := blob.Ref{MessageID: c.MessageID, ChannelID: c.ChannelID}
		if err := e.Blob.Delete(ctx, ref); err != nil {
			failures = append(failures, fmt.Errorf("delete blob %s: %w", c.MessageID, err))
		}
	}
	if err := e.Meta.DeleteChunkPointersByFile(ctx, []string{node.ID}); err != nil {
		failures = append(failures, fmt.Errorf("delete chunk rows for %s: %w", node.ID, err))
	}
	if err := e.Meta.DeleteNodes(ctx, []string{node.ID}); err != nil {
		failures = append(failures, fmt.Errorf("delete node %s: %w", node.ID, err))
	}

	if len(failures) > 0 {
		logger.Error(ctx, fmt.Errorf("rollback for %s incomplete: %w", node.ID, errtypes.Join(failures...)))
	}
}
