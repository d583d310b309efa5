// Package metastore defines the narrow persistence contract the chunk
// engine and namespace manager rely on: typed CRUD over users, nodes, chunk pointers, shares,
// public links, tasks and audit log entries, with the (userId,path)
// uniqueness invariant enforced by the store rather than the caller.
// pkg/metastore/sqlstore is the concrete database/sql-backed
// implementation; tests use an in-memory sqlite DSN through the same
// implementation rather than a separate fake, since SQLite's partial index
// support makes the real thing hermetic enough to run in a test binary.
package metastore

import (
	"context"
	"time"

	"github.com/ddrive-io/ddrive/pkg/model"
)

// ListChildrenOpts narrows a listChildren call; IncludeDeleted defaults to
// false (live children only).
type ListChildrenOpts struct {
	IncludeDeleted bool
}

// Store is the metadata persistence contract. All multi-row mutations run
// inside a single transaction; operations that must additionally cross the
// blob substrate boundary are intentionally absent here — see the
// two-phase pattern in pkg/chunkengine.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByAuthPartyID(ctx context.Context, authPartyID string) (*model.User, error)
	UpdateUserEncryptionKey(ctx context.Context, userID string, key []byte) error

	// Nodes
	CreateNode(ctx context.Context, n *model.Node) error
	UpdateNode(ctx context.Context, n *model.Node) error
	DeleteNodes(ctx context.Context, ids []string) error
	GetNode(ctx context.Context, id string) (*model.Node, error)
	FindByPath(ctx context.Context, userID, path string) (*model.Node, error)
	ListChildren(ctx context.Context, userID string, parentID *string, opts ListChildrenOpts) ([]*model.Node, error)
	FindDescendants(ctx context.Context, userID, pathPrefix string) ([]*model.Node, error)
	ListStarred(ctx context.Context, userID string) ([]*model.Node, error)
	ListTrash(ctx context.Context, userID string) ([]*model.Node, error)
	ListTrashOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Node, error)

	// RenameOrMoveSubtree atomically rewrites self's (name, parentID, path)
	// and the path of every row in rewrites (by ID, to NewPath) in one
	// transaction — the namespace manager's cascade primitive.
	RenameOrMoveSubtree(ctx context.Context, self *model.Node, rewrites []PathRewrite) error

	// TrashSubtree atomically soft-deletes entry and every descendant
	// listed in members, per the recycle-bin move algorithm in
	// the recycle bin's move algorithm.
	TrashSubtree(ctx context.Context, entry *model.Node, members []*model.Node) error

	// RestoreSubtree atomically clears the soft-delete fields on entry and
	// rewrites ids' paths per rewrites.
	RestoreSubtree(ctx context.Context, entry *model.Node, rewrites []PathRewrite) error

	// Chunk pointers
	InsertChunkPointer(ctx context.Context, cp *model.ChunkPointer) error
	ListChunkPointers(ctx context.Context, fileID string) ([]*model.ChunkPointer, error)
	DeleteChunkPointersByFile(ctx context.Context, fileIDs []string) error
	ScanChunkPointerMessageIDs(ctx context.Context, yield func(ids []string) bool) error

	// Shares
	CreateShare(ctx context.Context, s *model.Share) error
	DeleteShare(ctx context.Context, id string) error
	GetShare(ctx context.Context, id string) (*model.Share, error)
	ListSharedWithMe(ctx context.Context, userID string) ([]*model.Share, error)
	ListSharesForFile(ctx context.Context, fileID string) ([]*model.Share, error)

	// Public links
	CreatePublicLink(ctx context.Context, l *model.PublicLink) error
	DeletePublicLink(ctx context.Context, id string) error
	FindPublicLinkBySlug(ctx context.Context, slug string) (*model.PublicLink, error)

	// Tasks
	CreateTask(ctx context.Context, t *model.Task) error
	UpdateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListEnabledTasks(ctx context.Context) ([]*model.Task, error)

	// Logs
	AppendLog(ctx context.Context, l *model.Log) error

	Close() error
}

// PathRewrite describes one row's path change within a cascade operation.
type PathRewrite struct {
	ID       string
	NewPath  string
}
