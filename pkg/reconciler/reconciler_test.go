package reconciler_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/blob/memblob"
	"github.com/ddrive-io/ddrive/pkg/chunkengine"
	"github.com/ddrive-io/ddrive/pkg/metastore/sqlstore"
	"github.com/ddrive-io/ddrive/pkg/namespace"
	"github.com/ddrive-io/ddrive/pkg/reconciler"
)

func TestSweepOrphansDeletesUnreferencedMessages(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	bl := memblob.New()
	engine := &chunkengine.Engine{Meta: store, Blob: bl}

	_, err = engine.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "keep.txt",
		Source: chunkengine.Source{Reader: strings.NewReader("data i keep"), Size: 11},
	})
	require.NoError(t, err)

	orphanRef, err := bl.Put(ctx, "orphan_blob", []byte("nobody points to me"))
	require.NoError(t, err)
	require.Equal(t, 2, bl.Len())

	r := &reconciler.Reconciler{Meta: store, Blob: bl}
	result, err := r.SweepOrphans(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Deleted)
	require.Equal(t, 1, bl.Len())

	_, err = bl.Get(ctx, orphanRef)
	require.Error(t, err)
}

func TestSweepRecycleBinPurgesExpiredEntries(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	bl := memblob.New()
	engine := &chunkengine.Engine{Meta: store, Blob: bl}

	node, err := engine.Store(ctx, chunkengine.StoreParams{
		UserID: "u1", Name: "old.txt",
		Source: chunkengine.Source{Reader: strings.NewReader("old data"), Size: 8},
	})
	require.NoError(t, err)
	require.NoError(t, namespace.Trash(ctx, store, node))

	future := time.Now().Add(40 * 24 * time.Hour)
	r := &reconciler.Reconciler{Meta: store, Blob: bl, Now: func() time.Time { return future }}

	result, err := r.SweepRecycleBin(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesPurged)

	_, err = store.GetNode(ctx, node.ID)
	require.Error(t, err)
	require.Equal(t, 0, bl.Len())
}
