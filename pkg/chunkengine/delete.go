package chunkengine

import (
	"context"
	"strings"

	"github.com/ddrive-io/ddrive/pkg/model"
	"github.com/ddrive-io/ddrive/pkg/namespace"
)

// SoftDelete moves node (and, for a directory, every live descendant) into
// the recycle bin. No blob I/O happens here; the bytes stay put until
// PermanentDelete or the reconciler's retention sweep runs.
func (e *Engine) SoftDelete(ctx context.Context, node *model.Node) error {
	return namespace.Trash(ctx, e.Meta, node)
}

// Restore reverses SoftDelete, landing the subtree back under target (nil
// meaning root) with a uniquified name if the original slot is occupied.
func (e *Engine) Restore(ctx context.Context, node *model.Node, members []*model.Node, target *model.Node) error {
	return namespace.Restore(ctx, e.Meta, node, members, target)
}

// PermanentDelete implements the permanent-delete path: collect the
// subtree (live descendants for a live directory, trashed descendants for a
// trashed one), drop every chunk-pointer row in one transaction and then
// every node row in a second one, and leave the underlying blobs alone —
// deleting them synchronously here would make every delete as slow and as
// failure-prone as the slowest remote delete call, so the reconciler's
// orphan sweep is the only place blobs are ever removed for this path. The
// two deletes are not atomic together: if the node-row delete fails, the
// chunk-pointer rows are already gone.
func (e *Engine) PermanentDelete(ctx context.Context, node *model.Node) error {
	ids := []string{node.ID}
	if node.IsDir() {
		var descendants []*model.Node
		var err error
		if node.IsDeleted() {
			descendants, err = e.Meta.ListTrash(ctx, node.UserID)
		} else {
			descendants, err = e.Meta.FindDescendants(ctx, node.UserID, node.Path)
		}
		if err != nil {
			return err
		}
		for _, d := range descendants {
			if strings.HasPrefix(d.Path, node.Path+"/") {
				ids = append(ids, d.ID)
			}
		}
	}

	if err := e.Meta.DeleteChunkPointersByFile(ctx, ids); err != nil {
		return err
	}
	return e.Meta.DeleteNodes(ctx, ids)
}
