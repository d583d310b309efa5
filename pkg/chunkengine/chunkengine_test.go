package chunkengine_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/blob/memblob"
	"github.com/ddrive-io/ddrive/pkg/chunkengine"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/metastore/sqlstore"
)

func newTestEngine(t *testing.T) (*chunkengine.Engine, metastore.Store) {
	t.Helper()
	store, err := sqlstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	seq := 0
	return &chunkengine.Engine{
		Meta: store,
		Blob: memblob.New(),
		UserKey: func(ctx context.Context, userID string) ([]byte, error) {
			return bytes.Repeat([]byte{7}, 32), nil
		},
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
		Now: func() time.Time { return time.Unix(0, 0) },
	}, store
}

func TestStoreAndFetchWholeRoundTripUnencrypted(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	data := bytes.Repeat([]byte("hello world "), 100)
	node, err := e.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "file.txt",
		Source: chunkengine.Source{Reader: bytes.NewReader(data), Size: int64(len(data))},
	})
	require.NoError(t, err)
	require.Equal(t, "file.txt", node.Name)
	require.Equal(t, uint64(len(data)), node.Size)

	got, err := e.FetchWhole(ctx, node)
	require.NoError(t, err)
	require.Equal(t, data, got.Data)
}

func TestStoreAndFetchWholeRoundTripEncrypted(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	data := bytes.Repeat([]byte("secret payload "), 500)
	node, err := e.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "secret.bin", Encrypt: true,
		Source: chunkengine.Source{Reader: bytes.NewReader(data), Size: int64(len(data))},
	})
	require.NoError(t, err)
	require.True(t, node.Encrypted)

	got, err := e.FetchWhole(ctx, node)
	require.NoError(t, err)
	require.Equal(t, data, got.Data)
}

func TestStoreSplitsAcrossMultipleChunks(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	data := bytes.Repeat([]byte{1}, chunkengine.ChunkSize*2+123)
	node, err := e.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "big.bin",
		Source: chunkengine.Source{Reader: bytes.NewReader(data), Size: int64(len(data))},
	})
	require.NoError(t, err)

	chunks, err := store.ListChunkPointers(ctx, node.ID)
	require.NoError(t, err)
	require.Equal(t, 3, len(chunks))
	require.Equal(t, 0, chunks[0].ChunkIndex)
	require.Equal(t, 2, chunks[2].ChunkIndex)
}

func TestFetchRangeReturnsExactSlice(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	data := make([]byte, chunkengine.ChunkSize+1000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	node, err := e.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "range.bin",
		Source: chunkengine.Source{Reader: bytes.NewReader(data), Size: int64(len(data))},
	})
	require.NoError(t, err)

	start, end := int64(chunkengine.ChunkSize-10), int64(chunkengine.ChunkSize+50)
	res, err := e.FetchRange(ctx, node, start, end)
	require.NoError(t, err)
	require.Equal(t, data[start:end+1], res.Data)
	require.True(t, res.Partial)
}

func TestFetchRangeOutOfBoundsIsUnsatisfiable(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	node, err := e.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "tiny.bin",
		Source: chunkengine.Source{Reader: bytes.NewReader([]byte("hi")), Size: 2},
	})
	require.NoError(t, err)

	_, err = e.FetchRange(ctx, node, 10, 20)
	require.Error(t, err)
	var ru errtypes.IsRangeUnsatisfiable
	require.ErrorAs(t, err, &ru)
}

func TestCopyFileReencryptsUnderDestinationPolicy(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	data := []byte("copy me please")
	src, err := e.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "orig.txt", Encrypt: true,
		Source: chunkengine.Source{Reader: bytes.NewReader(data), Size: int64(len(data))},
	})
	require.NoError(t, err)

	dst, err := e.CopyFile(ctx, src, chunkengine.CopyParams{Name: "copy.txt", Encrypt: false})
	require.NoError(t, err)
	require.False(t, dst.Encrypted)
	require.NotEqual(t, src.ID, dst.ID)

	got, err := e.FetchWhole(ctx, dst)
	require.NoError(t, err)
	require.Equal(t, data, got.Data)
}

func TestPermanentDeleteRemovesNodeAndChunkRows(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	node, err := e.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "gone.txt",
		Source: chunkengine.Source{Reader: bytes.NewReader([]byte("bye")), Size: 3},
	})
	require.NoError(t, err)

	require.NoError(t, e.PermanentDelete(ctx, node))

	_, err = store.GetNode(ctx, node.ID)
	require.Error(t, err)

	chunks, err := store.ListChunkPointers(ctx, node.ID)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestSoftDeleteAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	node, err := e.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "keepme.txt",
		Source: chunkengine.Source{Reader: bytes.NewReader([]byte("data")), Size: 4},
	})
	require.NoError(t, err)

	require.NoError(t, e.SoftDelete(ctx, node))
	trashed, err := store.GetNode(ctx, node.ID)
	require.NoError(t, err)
	require.True(t, trashed.IsDeleted())

	require.NoError(t, e.Restore(ctx, trashed, nil, nil))
	restored, err := store.GetNode(ctx, node.ID)
	require.NoError(t, err)
	require.False(t, restored.IsDeleted())
	require.Equal(t, "/keepme.txt", restored.Path)
}
