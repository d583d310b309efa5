package memblob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	a := New()

	ref, err := a.Put(ctx, "chunk0", []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 1, a.Len())

	got, err := a.Get(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got)

	require.NoError(t, a.Delete(ctx, ref))
	require.Equal(t, 0, a.Len())

	// idempotent: deleting again is still success.
	require.NoError(t, a.Delete(ctx, ref))
}

func TestGetMissingReturnsBlobNotFound(t *testing.T) {
	a := New()
	_, err := a.Get(context.Background(), blob.Ref{MessageID: "missing"})
	var nf errtypes.IsBlobNotFound
	require.ErrorAs(t, err, &nf)
}

func TestPutOverLimitReturnsBlobTooLarge(t *testing.T) {
	a := New()
	a.MaxSize = 4
	_, err := a.Put(context.Background(), "big", []byte("too big"))
	var tooLarge errtypes.IsBlobTooLarge
	require.ErrorAs(t, err, &tooLarge)
}

func TestListMessageIDsPagesInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	a := New()
	var want []string
	for i := 0; i < 5; i++ {
		ref, err := a.Put(ctx, "c", []byte{byte(i)})
		require.NoError(t, err)
		want = append(want, ref.MessageID)
	}

	var got []string
	require.NoError(t, a.ListMessageIDs(ctx, 2, func(ids []string) bool {
		got = append(got, ids...)
		return true
	}))
	require.Equal(t, want, got)
}
