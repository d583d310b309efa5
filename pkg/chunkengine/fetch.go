package chunkengine

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/chunkcrypto"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/model"
)

// FetchResult is a fully assembled byte range, ready to write to the
// response.
type FetchResult struct {
	Data          []byte
	ContentRange  string // empty for a whole-file fetch
	ContentLength int64
	Partial       bool
}

// FetchWhole implements the whole-file download path: download every chunk in
// order, decrypt if node.Encrypted, concatenate.
func (e *Engine) FetchWhole(ctx context.Context, node *model.Node) (*FetchResult, error) {
	chunks, err := e.Meta.ListChunkPointers(ctx, node.ID)
	if err != nil {
		return nil, err
	}

	var userKey []byte
	if node.Encrypted {
		userKey, err = e.UserKey(ctx, node.UserID)
		if err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.Grow(int(node.Size))
	for _, c := range chunks {
		data, err := e.fetchAndDecryptWhole(ctx, c, node.Encrypted, userKey)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}

	return &FetchResult{Data: buf.Bytes(), ContentLength: int64(node.Size)}, nil
}

func (e *Engine) fetchAndDecryptWhole(ctx context.Context, c *model.ChunkPointer, encrypted bool, userKey []byte) ([]byte, error) {
	raw, err := e.Blob.Get(ctx, blob.Ref{MessageID: c.MessageID, ChannelID: c.ChannelID})
	if err != nil {
		return nil, err
	}
	if !encrypted {
		return raw, nil
	}
	return chunkcrypto.Decrypt(raw, userKey)
}

// FetchRange implements the byte-range download path.
func (e *Engine) FetchRange(ctx context.Context, node *model.Node, start, end int64) (*FetchResult, error) {
	size := int64(node.Size)
	if end < 0 || end >= size {
		end = size - 1
	}
	if start >= size || end >= size || start > end {
		return nil, errtypes.RangeUnsatisfiable{Size: node.Size}
	}

	chunks, err := e.Meta.ListChunkPointers(ctx, node.ID)
	if err != nil {
		return nil, err
	}

	prefix := make([]int64, len(chunks)+1)
	for i, c := range chunks {
		prefix[i+1] = prefix[i] + int64(c.Size)
	}

	startChunkIdx, endChunkIdx := -1, -1
	for i := range chunks {
		if prefix[i] <= start && start < prefix[i+1] {
			startChunkIdx = i
		}
		if prefix[i] <= end && end < prefix[i+1] {
			endChunkIdx = i
		}
	}
	if startChunkIdx == -1 || endChunkIdx == -1 {
		return nil, errtypes.RangeUnsatisfiable{Size: node.Size}
	}
	startOffset := start - prefix[startChunkIdx]

	var userKey []byte
	if node.Encrypted {
		userKey, err = e.UserKey(ctx, node.UserID)
		if err != nil {
			return nil, err
		}
	}

	plains, err := e.fetchRangeConcurrently(ctx, chunks[startChunkIdx:endChunkIdx+1], node.Encrypted, userKey)
	if err != nil {
		return nil, err
	}

	var full bytes.Buffer
	for _, p := range plains {
		full.Write(p)
	}

	wantLen := end - start + 1
	data := full.Bytes()
	if startOffset > int64(len(data)) {
		startOffset = int64(len(data))
	}
	sliceEnd := startOffset + wantLen
	if sliceEnd > int64(len(data)) {
		sliceEnd = int64(len(data))
	}
	sliced := data[startOffset:sliceEnd]
	actualEnd := start + int64(len(sliced)) - 1

	return &FetchResult{
		Data:          sliced,
		ContentRange:  fmt.Sprintf("bytes %d-%d/%d", start, actualEnd, size),
		ContentLength: int64(len(sliced)),
		Partial:       true,
	}, nil
}

// fetchRangeConcurrently downloads chunks[i] for each i in the slice, the
// adapter may cap concurrency internally; the assembled-bytes ordering guarantee is
// preserved by writing each decrypted result into its own slot before
// concatenation, regardless of fetch completion order.
func (e *Engine) fetchRangeConcurrently(ctx context.Context, chunks []*model.ChunkPointer, encrypted bool, userKey []byte) ([][]byte, error) {
	out := make([][]byte, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, c *model.ChunkPointer) {
			defer wg.Done()
			raw, err := e.Blob.Get(ctx, blob.Ref{MessageID: c.MessageID, ChannelID: c.ChannelID})
			if err != nil {
				errs[i] = err
				return
			}
			if !encrypted {
				out[i] = raw
				return
			}
			plain, err := chunkcrypto.DecryptRangeFallback(raw, userKey, int(c.Size))
			if err != nil {
				errs[i] = err
				return
			}
			out[i] = plain
		}(i, c)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
