package access_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/access"
	"github.com/ddrive-io/ddrive/pkg/blob/memblob"
	"github.com/ddrive-io/ddrive/pkg/chunkengine"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/metastore/sqlstore"
	"github.com/ddrive-io/ddrive/pkg/model"
)

func newTestFacade(t *testing.T) (*access.Facade, metastore.Store) {
	t.Helper()
	store, err := sqlstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	seq := 0
	engine := &chunkengine.Engine{
		Meta: store,
		Blob: memblob.New(),
		UserKey: func(ctx context.Context, userID string) ([]byte, error) {
			return bytes.Repeat([]byte{9}, 32), nil
		},
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
		Now: func() time.Time { return time.Unix(0, 0) },
	}
	return &access.Facade{Meta: store, Chunks: engine}, store
}

func TestCreateDirAndListChildren(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)

	dir, err := f.CreateDir(ctx, "u1", nil, "Documents")
	require.NoError(t, err)
	require.Equal(t, "Documents", dir.Name)

	children, err := f.ListChildren(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, dir.ID, children[0].ID)
}

func TestUploadFileAndStreamWhole(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)

	data := []byte("facade round trip contents")
	node, err := f.UploadFile(ctx, "u1", nil, "notes.txt", false, chunkengine.Source{
		Reader: bytes.NewReader(data), Size: int64(len(data)),
	})
	require.NoError(t, err)

	res, err := f.StreamFile(ctx, "u1", node, -1, -1)
	require.NoError(t, err)
	require.Equal(t, data, res.Data)
}

func TestToggleStarAndListStarred(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)

	dir, err := f.CreateDir(ctx, "u1", nil, "Starred Dir")
	require.NoError(t, err)

	require.NoError(t, f.ToggleStar(ctx, "u1", dir))
	starred, err := f.ListStarred(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, starred, 1)
	require.Equal(t, dir.ID, starred[0].ID)
}

func TestSoftDeleteRestoreAndEmptyTrash(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)

	data := []byte("trash me")
	node, err := f.UploadFile(ctx, "u1", nil, "trashme.txt", false, chunkengine.Source{
		Reader: bytes.NewReader(data), Size: int64(len(data)),
	})
	require.NoError(t, err)

	require.NoError(t, f.SoftDelete(ctx, "u1", node))
	trashed, err := f.ListTrash(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, trashed, 1)

	require.NoError(t, f.Restore(ctx, "u1", trashed[0], nil, nil))
	trashed, err = f.ListTrash(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, trashed, 0)

	live, err := f.ListChildren(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, live, 1)

	require.NoError(t, f.SoftDelete(ctx, "u1", live[0]))
	require.NoError(t, f.EmptyTrash(ctx, "u1"))
	trashed, err = f.ListTrash(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, trashed, 0)
}

func TestShareLifecycle(t *testing.T) {
	ctx := context.Background()
	f, store := newTestFacade(t)

	require.NoError(t, store.CreateUser(ctx, &model.User{ID: "friend", AllowSharedWithMe: true}))

	data := []byte("shared contents")
	node, err := f.UploadFile(ctx, "owner", nil, "shared.txt", false, chunkengine.Source{
		Reader: bytes.NewReader(data), Size: int64(len(data)),
	})
	require.NoError(t, err)

	share, err := f.Share(ctx, "owner", node.ID, "friend", model.PermissionView)
	require.NoError(t, err)

	shared, err := f.ListSharedWithMe(ctx, "friend")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	require.Equal(t, share.ID, shared[0].ID)

	// a VIEW grant lets the recipient read but not write.
	res, err := f.StreamFile(ctx, "friend", node, -1, -1)
	require.NoError(t, err)
	require.Equal(t, data, res.Data)

	err = f.Rename(ctx, "friend", node, "renamed.txt")
	require.Error(t, err)
	var pd errtypes.PermissionDenied
	require.ErrorAs(t, err, &pd)

	// revoking requires the caller be the owner or the recipient.
	err = f.RevokeShare(ctx, "stranger", share.ID)
	require.Error(t, err)
	require.ErrorAs(t, err, &pd)

	require.NoError(t, f.RevokeShare(ctx, "friend", share.ID))
	shared, err = f.ListSharedWithMe(ctx, "friend")
	require.NoError(t, err)
	require.Len(t, shared, 0)
}

func TestShareRequiresRecipientOptIn(t *testing.T) {
	ctx := context.Background()
	f, store := newTestFacade(t)

	require.NoError(t, store.CreateUser(ctx, &model.User{ID: "recluse", AllowSharedWithMe: false}))

	data := []byte("shared contents")
	node, err := f.UploadFile(ctx, "owner", nil, "shared.txt", false, chunkengine.Source{
		Reader: bytes.NewReader(data), Size: int64(len(data)),
	})
	require.NoError(t, err)

	_, err = f.Share(ctx, "owner", node.ID, "recluse", model.PermissionView)
	require.Error(t, err)
	var pd errtypes.PermissionDenied
	require.ErrorAs(t, err, &pd)
}

func TestEditShareGrantsWriteAccess(t *testing.T) {
	ctx := context.Background()
	f, store := newTestFacade(t)

	require.NoError(t, store.CreateUser(ctx, &model.User{ID: "editor", AllowSharedWithMe: true}))

	data := []byte("shared contents")
	node, err := f.UploadFile(ctx, "owner", nil, "shared.txt", false, chunkengine.Source{
		Reader: bytes.NewReader(data), Size: int64(len(data)),
	})
	require.NoError(t, err)

	_, err = f.Share(ctx, "owner", node.ID, "editor", model.PermissionEdit)
	require.NoError(t, err)

	require.NoError(t, f.Rename(ctx, "editor", node, "renamed.txt"))
}

func TestPublicLinkResolveAndExpiry(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t)

	data := []byte("public contents")
	node, err := f.UploadFile(ctx, "owner", nil, "public.txt", false, chunkengine.Source{
		Reader: bytes.NewReader(data), Size: int64(len(data)),
	})
	require.NoError(t, err)

	link, err := f.CreatePublicLink(ctx, "owner", node.ID, "abc123", nil)
	require.NoError(t, err)

	resolved, err := f.ResolvePublicLink(ctx, link.Slug)
	require.NoError(t, err)
	require.Equal(t, node.ID, resolved.ID)

	past := time.Unix(0, 0)
	_, err = f.CreatePublicLink(ctx, "owner", node.ID, "expired-slug", &past)
	require.NoError(t, err)

	_, err = f.ResolvePublicLink(ctx, "expired-slug")
	require.Error(t, err)
	var nf errtypes.NotFound
	require.ErrorAs(t, err, &nf)
}
