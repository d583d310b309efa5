package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/metastore/sqlstore"
	"github.com/ddrive-io/ddrive/pkg/model"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndFindNodeByPath(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := &model.Node{
		ID: "n1", UserID: "u1", Name: "hello.txt", Path: "/hello.txt",
		Type: model.NodeFile, Size: 5, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, s.CreateNode(ctx, n))

	got, err := s.FindByPath(ctx, "u1", "/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "n1", got.ID)
}

func TestCreateNodeDuplicatePathReturnsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mk := func(id string) *model.Node {
		return &model.Node{ID: id, UserID: "u1", Name: "x.txt", Path: "/x.txt",
			Type: model.NodeFile, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	}
	require.NoError(t, s.CreateNode(ctx, mk("n1")))

	err := s.CreateNode(ctx, mk("n2"))
	require.Error(t, err)
	var uv errtypes.IsUniqueViolation
	require.ErrorAs(t, err, &uv)
}

func TestTrashedNodesDoNotCollideWithLiveNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now()
	trashedPath := "/.trash/abcd1234/x.txt"
	orig := "/x.txt"
	require.NoError(t, s.CreateNode(ctx, &model.Node{
		ID: "n1", UserID: "u1", Name: "x.txt", Path: trashedPath, Type: model.NodeFile,
		CreatedAt: now, UpdatedAt: now, DeletedAt: &now, OriginalPath: &orig,
	}))

	// Same live path as the trashed node's original path must be allowed.
	require.NoError(t, s.CreateNode(ctx, &model.Node{
		ID: "n2", UserID: "u1", Name: "x.txt", Path: orig, Type: model.NodeFile,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func TestListChildrenOrdersDirsFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.CreateNode(ctx, &model.Node{ID: "f1", UserID: "u1", Name: "b.txt", Path: "/b.txt", Type: model.NodeFile, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.CreateNode(ctx, &model.Node{ID: "d1", UserID: "u1", Name: "a-dir", Path: "/a-dir", Type: model.NodeDir, CreatedAt: now, UpdatedAt: now}))

	children, err := s.ListChildren(ctx, "u1", nil, metastore.ListChildrenOpts{})
	require.NoError(t, err)
	require.Len(t, children, 2)
	require.Equal(t, "d1", children[0].ID)
}

func TestChunkPointersOrderedByIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 2; i >= 0; i-- {
		require.NoError(t, s.InsertChunkPointer(ctx, &model.ChunkPointer{
			ID: "c" + string(rune('0'+i)), FileID: "f1", ChunkIndex: i,
			MessageID: "m" + string(rune('0'+i)), ChannelID: "ch", Size: 100,
		}))
	}

	cps, err := s.ListChunkPointers(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, cps, 3)
	require.Equal(t, 0, cps[0].ChunkIndex)
	require.Equal(t, 1, cps[1].ChunkIndex)
	require.Equal(t, 2, cps[2].ChunkIndex)
}

func TestTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	task := &model.Task{
		ID: "t1", UserID: "u1", Name: "nightly", Cron: "0 2 * * *", Enabled: true,
		Credentials:     model.TaskCredentials{Host: "example.com", Port: 22, User: "backup", Password: "secret"},
		SFTPPath:        "/data",
		DestinationID:   "root",
		DestinationPath: "/backups/nightly",
		ExcludePaths:    []string{"/data/tmp", "/data/cache"},
		Compress:        model.CompressionTarGz,
		MaxFiles:        5,
		Priority:        10,
	}
	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "secret", got.Credentials.Password)
	require.Equal(t, []string{"/data/tmp", "/data/cache"}, got.ExcludePaths)
	require.Equal(t, model.CompressionTarGz, got.Compress)
}
