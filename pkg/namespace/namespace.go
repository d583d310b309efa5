// Package namespace implements the path algebra this drive relies on:
// deriving a node's path from its parent, uniquifying a
// filename on collision, cascading a directory rename/move to every
// descendant, cycle detection, and the recycle-bin path scheme shared by
// the chunk engine's soft-delete and restore operations.
package namespace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/model"
)

// ExpectedPath computes the pure-function path derivation the node model
// requires: parentPath + "/" + name, with parentPath "" for a root-level
// entry.
func ExpectedPath(parentPath, name string) string {
	if parentPath == "" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// SplitExt separates a filename into its stem and extension (including the
// leading dot), for the " (n)" suffix rule — the suffix always lands
// before the extension.
func SplitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i:]
}

// WithSuffix returns name with " (n)" inserted before its extension.
func WithSuffix(name string, n int) string {
	stem, ext := SplitExt(name)
	return fmt.Sprintf("%s (%d)%s", stem, n, ext)
}

const maxUniquifyAttempts = 5

// Uniquify probes (userID, candidate path under parentPath) via exists,
// returning the first available name, auto-numbering with " (n)" on
// collision. It does not itself retry on a racing concurrent create — see
// CreateWithRetry and RacecheckRename for the create-time retry and the
// post-create race check that cover that case.
func Uniquify(ctx context.Context, exists func(ctx context.Context, path string) (bool, error), parentPath, name string) (string, string, error) {
	candidate := name
	for n := 0; n <= 10000; n++ {
		if n > 0 {
			candidate = WithSuffix(name, n)
		}
		path := ExpectedPath(parentPath, candidate)
		ok, err := exists(ctx, path)
		if err != nil {
			return "", "", err
		}
		if !ok {
			return candidate, path, nil
		}
	}
	return "", "", errtypes.NamespaceRace(name)
}

// CreateWithRetry wraps a node-create attempt with the retry-on-race
// discipline the chunk engine's create path needs: up to maxUniquifyAttempts
// retries when the store reports a losing race (errtypes.UniqueViolation)
// against a concurrent create.
func CreateWithRetry(ctx context.Context, store metastore.Store, userID, parentPath, name string,
	create func(ctx context.Context, name, path string) error) error {

	exists := func(ctx context.Context, path string) (bool, error) {
		_, err := store.FindByPath(ctx, userID, path)
		if err == nil {
			return true, nil
		}
		var nf errtypes.IsNotFound
		if asNotFound(err, &nf) {
			return false, nil
		}
		return false, err
	}

	for attempt := 0; attempt < maxUniquifyAttempts; attempt++ {
		candidate, path, err := Uniquify(ctx, exists, parentPath, name)
		if err != nil {
			return err
		}
		err = create(ctx, candidate, path)
		if err == nil {
			return nil
		}
		var uv errtypes.IsUniqueViolation
		if !asUniqueViolation(err, &uv) {
			return err
		}
		// lost the race: loop and reprobe.
	}
	return errtypes.NamespaceRace(name)
}

// RacecheckRename re-queries (userID, path) after a streaming create
// commits its node row; if another row now
// occupies that path, it renames self with the next free numeric suffix in
// one transaction.
func RacecheckRename(ctx context.Context, store metastore.Store, self *model.Node) error {
	existing, err := store.FindByPath(ctx, self.UserID, self.Path)
	if err != nil {
		var nf errtypes.IsNotFound
		if asNotFound(err, &nf) {
			return nil
		}
		return err
	}
	if existing.ID == self.ID {
		return nil
	}

	parentPath := self.Path[:len(self.Path)-len(self.Name)-1]
	exists := func(ctx context.Context, path string) (bool, error) {
		n, err := store.FindByPath(ctx, self.UserID, path)
		if err == nil {
			return n.ID != self.ID, nil
		}
		var nf errtypes.IsNotFound
		if asNotFound(err, &nf) {
			return false, nil
		}
		return false, err
	}

	name, path, err := Uniquify(ctx, exists, parentPath, self.Name)
	if err != nil {
		return err
	}
	self.Name = name
	self.Path = path
	return store.RenameOrMoveSubtree(ctx, self, nil)
}

// RenameOrMove validates and applies a rename/move: conflicts are rejected
// with NAME_CONFLICT (not auto-numbered), moving into one's own
// subtree is rejected with CYCLE, and every descendant's path is rewritten
// in the same transaction.
func RenameOrMove(ctx context.Context, store metastore.Store, self *model.Node, newParent *model.Node, newName string) error {
	var newParentID *string
	var newParentPath string
	if newParent != nil {
		newParentID = &newParent.ID
		newParentPath = newParent.Path

		if newParent.ID == self.ID || strings.HasPrefix(newParent.Path+"/", self.Path+"/") {
			return errtypes.Cycle(self.Path)
		}
	}

	newPath := ExpectedPath(newParentPath, newName)
	if newPath != self.Path {
		if existing, err := store.FindByPath(ctx, self.UserID, newPath); err == nil && existing.ID != self.ID {
			return errtypes.NameConflict(newPath)
		} else if err != nil {
			var nf errtypes.IsNotFound
			if !asNotFound(err, &nf) {
				return err
			}
		}
	}

	var rewrites []metastore.PathRewrite
	if self.IsDir() && newPath != self.Path {
		descendants, err := store.FindDescendants(ctx, self.UserID, self.Path)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			rewrites = append(rewrites, metastore.PathRewrite{
				ID:      d.ID,
				NewPath: newPath + d.Path[len(self.Path):],
			})
		}
	}

	oldPath := self.Path
	self.ParentID = newParentID
	self.Name = newName
	self.Path = newPath
	if err := store.RenameOrMoveSubtree(ctx, self, rewrites); err != nil {
		self.Path = oldPath
		return err
	}
	return nil
}

const trashIDLength = 8

// NewTrashID returns a fresh 8-character random token that prefixes the
// path of soft-deleted nodes, guaranteeing they never collide with live
// names.
func NewTrashID() (string, error) {
	b := make([]byte, trashIDLength/2+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:trashIDLength], nil
}

// TrashPath computes the synthetic path a node moves to when soft-deleted.
func TrashPath(trashID, originalPath string) string {
	return "/.trash/" + trashID + originalPath
}

// Trash soft-deletes entry and every live descendant in one transaction,
// per the recycle-bin move algorithm.
func Trash(ctx context.Context, store metastore.Store, entry *model.Node) error {
	trashID, err := NewTrashID()
	if err != nil {
		return err
	}

	now := time.Now()
	origPath := entry.Path
	newEntryPath := TrashPath(trashID, origPath)

	var members []*model.Node
	if entry.IsDir() {
		descendants, err := store.FindDescendants(ctx, entry.UserID, origPath)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			dOrig := d.Path
			d.OriginalPath = &dOrig
			d.Path = newEntryPath + d.Path[len(origPath):]
			d.DeletedAt = &now
			d.DeletedWithParentID = &entry.ID
			members = append(members, d)
		}
	}

	entry.OriginalPath = &origPath
	entry.Path = newEntryPath
	entry.DeletedAt = &now
	entry.DeletedWithParentID = nil

	return store.TrashSubtree(ctx, entry, members)
}

// Restore reverses Trash for entry and every node whose
// DeletedWithParentID equals entry.ID. target is the live parent node to
// restore under (nil means root); if the target path is occupied, only the
// entry point acquires a " (n)" suffix.
func Restore(ctx context.Context, store metastore.Store, entry *model.Node, members []*model.Node, target *model.Node) error {
	oldEntryPath := entry.Path
	restoredName := entry.Name
	var targetPath string
	var targetParentID *string
	if target != nil {
		targetPath = target.Path
		targetParentID = &target.ID
	}

	exists := func(ctx context.Context, path string) (bool, error) {
		_, err := store.FindByPath(ctx, entry.UserID, path)
		if err == nil {
			return true, nil
		}
		var nf errtypes.IsNotFound
		if asNotFound(err, &nf) {
			return false, nil
		}
		return false, err
	}

	name, newEntryPath, err := Uniquify(ctx, exists, targetPath, restoredName)
	if err != nil {
		return err
	}

	var rewrites []metastore.PathRewrite
	for _, m := range members {
		rewrites = append(rewrites, metastore.PathRewrite{
			ID:      m.ID,
			NewPath: newEntryPath + m.Path[len(oldEntryPath):],
		})
	}

	entry.Name = name
	entry.Path = newEntryPath
	entry.ParentID = targetParentID

	return store.RestoreSubtree(ctx, entry, rewrites)
}

func asNotFound(err error, out *errtypes.IsNotFound) bool {
	if v, ok := err.(errtypes.IsNotFound); ok {
		*out = v
		return true
	}
	return false
}

func asUniqueViolation(err error, out *errtypes.IsUniqueViolation) bool {
	if v, ok := err.(errtypes.IsUniqueViolation); ok {
		*out = v
		return true
	}
	return false
}
