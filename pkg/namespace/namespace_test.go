package namespace_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/metastore/sqlstore"
	"github.com/ddrive-io/ddrive/pkg/model"
	"github.com/ddrive-io/ddrive/pkg/namespace"
)

func newTestStore(t *testing.T) metastore.Store {
	t.Helper()
	s, err := sqlstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mkDir(t *testing.T, store metastore.Store, id, userID, path, name string, parentID *string) *model.Node {
	t.Helper()
	now := time.Now()
	n := &model.Node{ID: id, UserID: userID, ParentID: parentID, Name: name, Path: path, Type: model.NodeDir, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateNode(context.Background(), n))
	return n
}

func TestExpectedPath(t *testing.T) {
	require.Equal(t, "/foo.txt", namespace.ExpectedPath("", "foo.txt"))
	require.Equal(t, "/a/foo.txt", namespace.ExpectedPath("/a", "foo.txt"))
}

func TestWithSuffixPreservesExtension(t *testing.T) {
	require.Equal(t, "report (1).pdf", namespace.WithSuffix("report.pdf", 1))
	require.Equal(t, "README (2)", namespace.WithSuffix("README", 2))
}

func TestUniquifyAutoNumbers(t *testing.T) {
	taken := map[string]bool{"/x.txt": true, "/x (1).txt": true}
	exists := func(ctx context.Context, path string) (bool, error) { return taken[path], nil }

	name, path, err := namespace.Uniquify(context.Background(), exists, "", "x.txt")
	require.NoError(t, err)
	require.Equal(t, "x (2).txt", name)
	require.Equal(t, "/x (2).txt", path)
}

func TestRenameOrMoveRejectsConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	root := mkDir(t, store, "root", "u1", "/a", "a", nil)
	_ = mkDir(t, store, "c", "u1", "/a/c", "c", &root.ID)

	b := mkDir(t, store, "b", "u1", "/a/b", "b", &root.ID)

	err := namespace.RenameOrMove(ctx, store, b, root, "c")
	require.Error(t, err)
	var conflict errtypes.IsNameConflict
	require.ErrorAs(t, err, &conflict)
}

func TestRenameOrMoveRejectsCycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	root := mkDir(t, store, "root", "u1", "/a", "a", nil)
	child := mkDir(t, store, "child", "u1", "/a/b", "b", &root.ID)

	err := namespace.RenameOrMove(ctx, store, root, child, "a")
	require.Error(t, err)
	var cyc errtypes.IsCycle
	require.ErrorAs(t, err, &cyc)
}

func TestRenameOrMoveCascadesDescendants(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := mkDir(t, store, "a", "u1", "/a", "a", nil)
	b := mkDir(t, store, "b", "u1", "/a/b", "b", &a.ID)
	mkDir(t, store, "c", "u1", "/a/b/c", "c", &b.ID)

	require.NoError(t, namespace.RenameOrMove(ctx, store, a, nil, "z"))

	moved, err := store.GetNode(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, "/z/b/c", moved.Path)
}

func TestTrashAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := mkDir(t, store, "a", "u1", "/photos", "photos", nil)
	child := mkDir(t, store, "b", "u1", "/photos/2025", "2025", &a.ID)

	require.NoError(t, namespace.Trash(ctx, store, child))

	trashed, err := store.GetNode(ctx, "b")
	require.NoError(t, err)
	require.True(t, trashed.IsDeleted())
	require.Contains(t, trashed.Path, "/.trash/")

	// parent ("photos") still exists, so restore should land back at /photos/2025.
	require.NoError(t, namespace.Restore(ctx, store, trashed, nil, a))

	restored, err := store.GetNode(ctx, "b")
	require.NoError(t, err)
	require.False(t, restored.IsDeleted())
	require.Equal(t, "/photos/2025", restored.Path)
}

func TestRestoreToRootWhenOriginalParentGone(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := mkDir(t, store, "a", "u1", "/photos", "photos", nil)
	child := mkDir(t, store, "b", "u1", "/photos/2025", "2025", &a.ID)

	require.NoError(t, namespace.Trash(ctx, store, child))
	require.NoError(t, store.DeleteNodes(ctx, []string{"a"}))

	trashed, err := store.GetNode(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, namespace.Restore(ctx, store, trashed, nil, nil))

	restored, err := store.GetNode(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "/2025", restored.Path)
}
