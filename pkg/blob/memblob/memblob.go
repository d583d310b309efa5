// Package memblob is an in-memory blob.Adapter used by tests in place of
// the real chat-service substrate, so the chunk engine, namespace manager
// and reconciler can be exercised hermetically. It reproduces the real
// adapter's size limit and not-found/idempotent-delete behavior, not its
// network failure modes.
package memblob

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
)

// Adapter is a thread-safe in-memory stand-in for a single substrate
// channel. MaxSize defaults to discordblob's DiscordMaxAttachmentSize if
// left zero.
type Adapter struct {
	MaxSize int64

	mu      sync.Mutex
	nextID  int64
	entries map[string]entry // messageID -> entry
	order   []string         // insertion order, for ListMessageIDs
}

type entry struct {
	data []byte
	seq  int64
}

// New returns an empty Adapter.
func New() *Adapter {
	return &Adapter{entries: map[string]entry{}}
}

func (a *Adapter) maxSize() int64 {
	if a.MaxSize > 0 {
		return a.MaxSize
	}
	return 8 * 1024 * 1024
}

// MaxAttachmentSize implements blob.Adapter.
func (a *Adapter) MaxAttachmentSize() int64 { return a.maxSize() }

// Put implements blob.Adapter.
func (a *Adapter) Put(ctx context.Context, name string, data []byte) (blob.Ref, error) {
	if int64(len(data)) > a.maxSize() {
		return blob.Ref{}, errtypes.BlobTooLarge{Size: int64(len(data)), Max: a.maxSize()}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entries == nil {
		a.entries = map[string]entry{}
	}
	seq := atomic.AddInt64(&a.nextID, 1)
	id := fmt.Sprintf("mem-%d", seq)
	cp := append([]byte(nil), data...)
	a.entries[id] = entry{data: cp, seq: seq}
	a.order = append(a.order, id)

	return blob.Ref{
		MessageID:     id,
		ChannelID:     "mem-channel",
		AttachmentURL: "mem://" + id + "/" + name,
	}, nil
}

// Get implements blob.Adapter.
func (a *Adapter) Get(ctx context.Context, ref blob.Ref) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[ref.MessageID]
	if !ok {
		return nil, errtypes.BlobNotFound(ref.MessageID)
	}
	return append([]byte(nil), e.data...), nil
}

// Delete implements blob.Adapter; deleting an absent id is success.
func (a *Adapter) Delete(ctx context.Context, ref blob.Ref) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, ref.MessageID)
	return nil
}

// ListMessageIDs implements blob.Adapter, yielding ids oldest-first in
// pages of pageSize.
func (a *Adapter) ListMessageIDs(ctx context.Context, pageSize int, yield func(ids []string) bool) error {
	if pageSize <= 0 {
		pageSize = 100
	}

	a.mu.Lock()
	ids := make([]string, 0, len(a.entries))
	for id := range a.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return a.entries[ids[i]].seq < a.entries[ids[j]].seq })
	a.mu.Unlock()

	for start := 0; start < len(ids); start += pageSize {
		end := start + pageSize
		if end > len(ids) {
			end = len(ids)
		}
		if !yield(ids[start:end]) {
			return nil
		}
	}
	return nil
}

// Len returns the number of blobs currently stored, for test assertions.
func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
