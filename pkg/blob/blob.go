// Package blob defines the narrow contract the chunk engine uses to talk
// to whatever substrate is backing a blob: put/get/delete one byte-blob as
// one message-attachment. Concrete adapters live in
// sub-packages: discordblob talks to the real chat-service channel,
// memblob is an in-memory double used by tests.
package blob

import "context"

// Ref locates one stored blob: a message carrying exactly one attachment on
// one channel of the substrate.
type Ref struct {
	MessageID     string
	ChannelID     string
	AttachmentURL string
}

// Adapter is the contract the chunk engine, reconciler and task runner
// depend on. Implementations must surface rate limits and size limits
// structurally (errtypes.BlobRateLimit, errtypes.BlobTooLarge) rather than
// by retrying internally — the chunk engine owns the retry policy.
type Adapter interface {
	// Put publishes name/bytes as a single attachment and returns its
	// location. Fails with errtypes.BlobTooLarge if len(data) exceeds
	// MaxAttachmentSize, errtypes.BlobRateLimit if throttled,
	// errtypes.BlobNet on a transient failure.
	Put(ctx context.Context, name string, data []byte) (Ref, error)

	// Get fetches the attachment at ref. Fails with errtypes.BlobNotFound
	// if the message or its attachment no longer exists, errtypes.BlobNet
	// otherwise.
	Get(ctx context.Context, ref Ref) ([]byte, error)

	// Delete removes the message at ref. Idempotent: a not-found delete is
	// success.
	Delete(ctx context.Context, ref Ref) error

	// MaxAttachmentSize is the substrate's per-attachment byte ceiling.
	// The chunk engine must never hand Put more than this many bytes.
	MaxAttachmentSize() int64

	// ListMessageIDs pages the substrate channel's whole message history
	// in an adapter-specific order (discordblob newest-first, memblob
	// oldest-first), for the reconciler's orphaned-blob
	// sweep. It calls yield once per page (up to pageSize message ids);
	// yield returning false stops paging early.
	ListMessageIDs(ctx context.Context, pageSize int, yield func(ids []string) bool) error
}
