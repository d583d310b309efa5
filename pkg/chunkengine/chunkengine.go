// Package chunkengine is the core storage subsystem: splitting a source
// into fixed-size blocks, optionally encrypting each with pkg/chunkcrypto,
// uploading via pkg/blob, and committing chunk pointer rows through
// pkg/metastore only after the blob is confirmed stored. Fetch reverses
// the path, including byte-range resolution; Copy re-uploads chunks under
// fresh blobs; Delete implements the permanent/soft-delete split this
// engine's concurrency model requires (permanent delete never touches
// blobs synchronously).
package chunkengine

import (
	"context"
	"io"
	"time"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/log"
	"github.com/ddrive-io/ddrive/pkg/metastore"
)

var logger = log.New("chunkengine")

const (
	// ChunkSize is the plaintext block size used when not encrypting.
	ChunkSize = 8 * 1024 * 1024

	// EncOverhead matches chunkcrypto.Overhead; duplicated as a named
	// constant here so this package's size arithmetic reads standalone
	// against the chunk engine's own interfaces without an import cycle concern.
	EncOverhead = 44

	// EffectiveChunkSize is the plaintext block size read per chunk when
	// encrypting, so that ciphertext length never exceeds ChunkSize.
	EffectiveChunkSize = ChunkSize - EncOverhead

	maxUploadRetries = 3
	uploadRetryBase  = 500 * time.Millisecond
)

// Engine wires the metadata store, blob adapter and per-user encryption
// key lookup the chunk operations depend on.
type Engine struct {
	Meta metastore.Store
	Blob blob.Adapter

	// UserKey resolves a user's opaque encryption key, generating and
	// persisting one lazily on first encrypted write if absent.
	UserKey func(ctx context.Context, userID string) ([]byte, error)

	// IDGenerator produces new row ids (nodes, chunk pointers). Swappable
	// for deterministic tests.
	IDGenerator func() string

	// Now is swappable for deterministic tests.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newID() string {
	if e.IDGenerator != nil {
		return e.IDGenerator()
	}
	return randomID()
}

// Source is the input a streaming upload reads from: an on-disk path, a
// bounded byte buffer or an arbitrary stream.
// Size is the known total plaintext size, or -1 if unknown (true
// streaming).
type Source struct {
	Reader io.Reader
	Size   int64
}
