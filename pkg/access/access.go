// Package access is the stateless façade an external HTTP layer (itself
// out of this core's scope) calls into. Every method takes an
// already-authenticated model.User — this package never verifies a bearer
// token itself, see pkg/authtoken for that precondition — and maps
// directly onto pkg/chunkengine, pkg/namespace, pkg/metastore and
// pkg/task.
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ddrive-io/ddrive/pkg/chunkengine"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/model"
	"github.com/ddrive-io/ddrive/pkg/namespace"
	"github.com/ddrive-io/ddrive/pkg/task"
)

// Facade wires every component the access surface fronts.
type Facade struct {
	Meta    metastore.Store
	Chunks  *chunkengine.Engine
	Runtime *task.Runtime
}

// ListChildren lists a user's live children of parentID (nil for root).
func (f *Facade) ListChildren(ctx context.Context, userID string, parentID *string) ([]*model.Node, error) {
	return f.Meta.ListChildren(ctx, userID, parentID, metastore.ListChildrenOpts{})
}

// CreateDir creates a directory under parent (nil means root), uniquifying
// name on collision.
func (f *Facade) CreateDir(ctx context.Context, userID string, parent *model.Node, name string) (*model.Node, error) {
	var parentPath string
	var parentID *string
	if parent != nil {
		parentPath = parent.Path
		parentID = &parent.ID
	}

	node := &model.Node{UserID: userID, ParentID: parentID, Type: model.NodeDir, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	err := namespace.CreateWithRetry(ctx, f.Meta, userID, parentPath, name, func(ctx context.Context, n, p string) error {
		node.ID = uuid.NewString()
		node.Name = n
		node.Path = p
		return f.Meta.CreateNode(ctx, node)
	})
	return node, err
}

// UploadFile streams src into a new file node under parent.
func (f *Facade) UploadFile(ctx context.Context, userID string, parent *model.Node, name string, encrypt bool, src chunkengine.Source) (*model.Node, error) {
	return f.Chunks.Store(ctx, chunkengine.StoreParams{
		UserID: userID, Parent: parent, Name: name, Encrypt: encrypt, Source: src,
	})
}

// StreamFile serves the whole file, or a byte range if rangeStart >= 0.
// callerID must own node or hold at least a VIEW share on it.
func (f *Facade) StreamFile(ctx context.Context, callerID string, node *model.Node, rangeStart, rangeEnd int64) (*chunkengine.FetchResult, error) {
	if err := f.authorize(ctx, callerID, node, model.PermissionView); err != nil {
		return nil, err
	}
	if rangeStart < 0 {
		return f.Chunks.FetchWhole(ctx, node)
	}
	return f.Chunks.FetchRange(ctx, node, rangeStart, rangeEnd)
}

// authorize enforces the share permission model for a non-owner caller:
// the owner always passes, and a share recipient passes only if their
// grant covers need (a VIEW grant covers read access, only an EDIT grant
// covers a write).
func (f *Facade) authorize(ctx context.Context, callerID string, node *model.Node, need model.Permission) error {
	if node.UserID == callerID {
		return nil
	}
	shares, err := f.Meta.ListSharesForFile(ctx, node.ID)
	if err != nil {
		return err
	}
	for _, s := range shares {
		if s.SharedWithID != callerID {
			continue
		}
		if need == model.PermissionView || s.Permission == model.PermissionEdit {
			return nil
		}
	}
	return errtypes.PermissionDenied(fmt.Sprintf("%s lacks %s on %s", callerID, need, node.ID))
}

// Rename renames node in place (no parent change). callerID must own node
// or hold an EDIT share on it.
func (f *Facade) Rename(ctx context.Context, callerID string, node *model.Node, newName string) error {
	if err := f.authorize(ctx, callerID, node, model.PermissionEdit); err != nil {
		return err
	}
	var parent *model.Node
	if node.ParentID != nil {
		p, err := f.Meta.GetNode(ctx, *node.ParentID)
		if err != nil {
			return err
		}
		parent = p
	}
	return namespace.RenameOrMove(ctx, f.Meta, node, parent, newName)
}

// Move relocates node under newParent (nil means root), keeping its name.
// callerID must own node or hold an EDIT share on it.
func (f *Facade) Move(ctx context.Context, callerID string, node *model.Node, newParent *model.Node) error {
	if err := f.authorize(ctx, callerID, node, model.PermissionEdit); err != nil {
		return err
	}
	return namespace.RenameOrMove(ctx, f.Meta, node, newParent, node.Name)
}

// SoftDelete moves node into the recycle bin. callerID must own node or
// hold an EDIT share on it.
func (f *Facade) SoftDelete(ctx context.Context, callerID string, node *model.Node) error {
	if err := f.authorize(ctx, callerID, node, model.PermissionEdit); err != nil {
		return err
	}
	return f.Chunks.SoftDelete(ctx, node)
}

// Restore reverses SoftDelete. target is the live parent to restore under
// (nil means root); members are node's trashed descendants, if any.
// callerID must own node or hold an EDIT share on it.
func (f *Facade) Restore(ctx context.Context, callerID string, node *model.Node, members []*model.Node, target *model.Node) error {
	if err := f.authorize(ctx, callerID, node, model.PermissionEdit); err != nil {
		return err
	}
	return f.Chunks.Restore(ctx, node, members, target)
}

// PermanentDelete drops node (and its subtree) for good; blobs are left
// for the reconciler. callerID must own node or hold an EDIT share on it.
func (f *Facade) PermanentDelete(ctx context.Context, callerID string, node *model.Node) error {
	if err := f.authorize(ctx, callerID, node, model.PermissionEdit); err != nil {
		return err
	}
	return f.Chunks.PermanentDelete(ctx, node)
}

// Copy duplicates node under the given parameters. callerID must own node
// or hold at least a VIEW share on it.
func (f *Facade) Copy(ctx context.Context, callerID string, node *model.Node, p chunkengine.CopyParams) (*model.Node, error) {
	if err := f.authorize(ctx, callerID, node, model.PermissionView); err != nil {
		return nil, err
	}
	if node.IsDir() {
		return f.Chunks.CopyDir(ctx, node, p)
	}
	return f.Chunks.CopyFile(ctx, node, p)
}

// ToggleStar flips node's starred flag. callerID must own node or hold an
// EDIT share on it.
func (f *Facade) ToggleStar(ctx context.Context, callerID string, node *model.Node) error {
	if err := f.authorize(ctx, callerID, node, model.PermissionEdit); err != nil {
		return err
	}
	node.Starred = !node.Starred
	node.UpdatedAt = time.Now()
	return f.Meta.UpdateNode(ctx, node)
}

// ListStarred lists a user's starred nodes.
func (f *Facade) ListStarred(ctx context.Context, userID string) ([]*model.Node, error) {
	return f.Meta.ListStarred(ctx, userID)
}

// ListTrash lists a user's trashed nodes.
func (f *Facade) ListTrash(ctx context.Context, userID string) ([]*model.Node, error) {
	return f.Meta.ListTrash(ctx, userID)
}

// EmptyTrash permanently deletes every trashed node for userID.
func (f *Facade) EmptyTrash(ctx context.Context, userID string) error {
	trashed, err := f.Meta.ListTrash(ctx, userID)
	if err != nil {
		return err
	}
	var ids []string
	for _, n := range trashed {
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := f.Meta.DeleteChunkPointersByFile(ctx, ids); err != nil {
		return err
	}
	return f.Meta.DeleteNodes(ctx, ids)
}

// CreatePublicLink creates a link for fileID with the given slug (slug
// generation itself is an external collaborator's concern).
func (f *Facade) CreatePublicLink(ctx context.Context, userID, fileID, slug string, expiresAt *time.Time) (*model.PublicLink, error) {
	link := &model.PublicLink{ID: uuid.NewString(), Slug: slug, FileID: fileID, UserID: userID, ExpiresAt: expiresAt}
	if err := f.Meta.CreatePublicLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// ResolvePublicLink looks up the node a slug points to, for unauthenticated
// access, rejecting an expired link.
func (f *Facade) ResolvePublicLink(ctx context.Context, slug string) (*model.Node, error) {
	link, err := f.Meta.FindPublicLinkBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if link.Expired(time.Now()) {
		return nil, errtypes.NotFound(fmt.Sprintf("public link %s has expired", slug))
	}
	return f.Meta.GetNode(ctx, link.FileID)
}

// Share grants sharedWithID permission on fileID. The recipient must have
// opted into incoming shares (model.User.AllowSharedWithMe); otherwise the
// grant is refused rather than silently created.
func (f *Facade) Share(ctx context.Context, ownerID, fileID, sharedWithID string, permission model.Permission) (*model.Share, error) {
	recipient, err := f.Meta.GetUser(ctx, sharedWithID)
	if err != nil {
		return nil, err
	}
	if !recipient.AllowSharedWithMe {
		return nil, errtypes.PermissionDenied(fmt.Sprintf("%s disallows incoming shares", sharedWithID))
	}

	share := &model.Share{ID: uuid.NewString(), FileID: fileID, OwnerID: ownerID, SharedWithID: sharedWithID, Permission: permission}
	if err := f.Meta.CreateShare(ctx, share); err != nil {
		return nil, err
	}
	return share, nil
}

// RevokeShare deletes a share by id. callerID must be either the share's
// owner or its recipient.
func (f *Facade) RevokeShare(ctx context.Context, callerID, shareID string) error {
	share, err := f.Meta.GetShare(ctx, shareID)
	if err != nil {
		return err
	}
	if share.OwnerID != callerID && share.SharedWithID != callerID {
		return errtypes.PermissionDenied(fmt.Sprintf("%s may not revoke share %s", callerID, shareID))
	}
	return f.Meta.DeleteShare(ctx, shareID)
}

// ListSharedWithMe lists shares granted to userID.
func (f *Facade) ListSharedWithMe(ctx context.Context, userID string) ([]*model.Share, error) {
	return f.Meta.ListSharedWithMe(ctx, userID)
}
