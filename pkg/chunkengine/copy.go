package chunkengine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/model"
	"github.com/ddrive-io/ddrive/pkg/namespace"
)

// CopyParams names a copy's destination and re-encryption policy. Encrypt
// is independent of the source node's Encrypted flag: copying an encrypted
// file into an unencrypted destination folder (or vice versa) re-writes
// every chunk under the destination's policy rather than carrying the
// source ciphertext forward verbatim.
type CopyParams struct {
	Dest    *model.Node // nil means root
	Name    string      // empty means keep the source name
	Encrypt bool
}

// CopyFile implements a single-file copy: fetch and decrypt the
// source in full, then re-upload under fresh blobs and a fresh node row
// under the destination's encryption policy. A source whose re-encrypted
// size exceeds ChunkSize per original chunk still splits cleanly, since
// uploadChunks re-chunks from the assembled plaintext rather than copying
// chunk-for-chunk.
func (e *Engine) CopyFile(ctx context.Context, src *model.Node, p CopyParams) (*model.Node, error) {
	name := p.Name
	if name == "" {
		name = src.Name
	}

	whole, err := e.FetchWhole(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("copy %s: fetch source: %w", src.ID, err)
	}

	return e.Store(ctx, StoreParams{
		UserID:  src.UserID,
		Parent:  p.Dest,
		Name:    name,
		Encrypt: p.Encrypt,
		Source:  Source{Reader: bytes.NewReader(whole.Data), Size: int64(len(whole.Data))},
	})
}

// CopyDir implements a directory copy: a pre-order walk that
// replicates every descendant's relative structure under a new top-level
// node named "Copy of <name>" (only the entry point is renamed; nested
// entries keep their original names). Failure partway through leaves
// whatever was already copied in place — there is no whole-tree rollback,
// since a directory copy is many independent file copies rather than one
// atomic unit.
func (e *Engine) CopyDir(ctx context.Context, src *model.Node, p CopyParams) (*model.Node, error) {
	name := p.Name
	if name == "" {
		name = "Copy of " + src.Name
	}

	now := e.now()
	dir := &model.Node{
		UserID: src.UserID, Type: model.NodeDir,
		CreatedAt: now, UpdatedAt: now,
	}
	parentPath := ""
	var parentID *string
	if p.Dest != nil {
		parentPath = p.Dest.Path
		parentID = &p.Dest.ID
	}
	dir.ParentID = parentID

	err := namespace.CreateWithRetry(ctx, e.Meta, src.UserID, parentPath, name,
		func(ctx context.Context, gotName, gotPath string) error {
			dir.ID = e.newID()
			dir.Name = gotName
			dir.Path = gotPath
			return e.Meta.CreateNode(ctx, dir)
		})
	if err != nil {
		return nil, err
	}

	if err := e.copyChildren(ctx, src, dir, p.Encrypt); err != nil {
		return dir, err
	}
	return dir, nil
}

func (e *Engine) copyChildren(ctx context.Context, srcParent, destParent *model.Node, encrypt bool) error {
	children, err := e.Meta.ListChildren(ctx, srcParent.UserID, &srcParent.ID, metastore.ListChildrenOpts{})
	if err != nil {
		return err
	}

	for _, child := range children {
		if child.IsDir() {
			newDir := &model.Node{
				UserID: child.UserID, Name: child.Name,
				ParentID: &destParent.ID, Type: model.NodeDir,
				CreatedAt: e.now(), UpdatedAt: e.now(),
			}
			newDir.Path = namespace.ExpectedPath(destParent.Path, child.Name)
			newDir.ID = e.newID()
			if err := e.Meta.CreateNode(ctx, newDir); err != nil {
				return fmt.Errorf("copy dir %s: %w", child.Path, err)
			}
			if err := e.copyChildren(ctx, child, newDir, encrypt); err != nil {
				return err
			}
			continue
		}

		if _, err := e.CopyFile(ctx, child, CopyParams{Dest: destParent, Name: child.Name, Encrypt: encrypt}); err != nil {
			return fmt.Errorf("copy file %s: %w", child.Path, err)
		}
	}
	return nil
}
