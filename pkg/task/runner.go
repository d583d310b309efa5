package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ddrive-io/ddrive/pkg/chunkengine"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metastore"
	"github.com/ddrive-io/ddrive/pkg/metrics"
	"github.com/ddrive-io/ddrive/pkg/model"
	"github.com/ddrive-io/ddrive/pkg/namespace"
)

func cancelledErr(taskID string) error { return errtypes.Cancelled(taskID) }

// runOne executes one full backup run for taskID: the single call site the
// worker loop uses, implementing the per-run algorithm end to end.
func (rt *Runtime) runOne(ctx context.Context, taskID string) error {
	t, err := rt.Meta.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	ri := &runInfo{progress: Progress{Phase: PhaseConnecting, StartTime: rt.now()}}
	rt.mu.Lock()
	rt.running[taskID] = ri
	rt.mu.Unlock()
	metrics.TasksRunning.Set(1)
	defer func() {
		rt.mu.Lock()
		delete(rt.running, taskID)
		rt.mu.Unlock()
		metrics.TasksRunning.Set(0)
	}()

	now := rt.now()
	t.LastStarted = &now
	if err := rt.Meta.UpdateTask(ctx, t); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "ddrive-backup-"+taskID+"-")
	if err != nil {
		return err
	}
	ri.mu.Lock()
	ri.tmpDir = tmpDir
	ri.mu.Unlock()
	defer os.RemoveAll(tmpDir)

	runErr := rt.runBody(ctx, t, ri)

	finished := rt.now()
	if runErr != nil {
		if _, cancelled := runErr.(errtypes.IsCancelled); cancelled {
			t.LastRun = &finished
			logLine(ctx, rt.Meta, t.UserID, fmt.Sprintf("backup %s cancelled", t.Name))
			_ = rt.Meta.UpdateTask(ctx, t)
			metrics.ObserveTaskRun(taskID, "cancelled", finished.Sub(now))
			return runErr
		}
		logLine(ctx, rt.Meta, t.UserID, fmt.Sprintf("backup %s failed: %s", t.Name, runErr))
		metrics.ObserveTaskRun(taskID, "failed", finished.Sub(now))
		return runErr
	}

	t.LastRun = &finished
	t.LastRuntime = finished.Sub(now)
	if err := rt.Meta.UpdateTask(ctx, t); err != nil {
		logger.Error(ctx, fmt.Errorf("update task %s after run: %w", taskID, err))
	}
	logLine(ctx, rt.Meta, t.UserID, fmt.Sprintf("backup %s completed: %d files, %d bytes", t.Name, ri.snapshot().FilesProcessed, ri.snapshot().TotalBytes))
	ri.setPhase(PhaseComplete)
	metrics.ObserveTaskRun(taskID, "success", t.LastRuntime)
	return nil
}

func (rt *Runtime) runBody(ctx context.Context, t *model.Task, ri *runInfo) error {
	ri.setPhase(PhaseConnecting)
	conn, err := dial(t.Credentials)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.close()

	destParent, err := rt.ensureDestination(ctx, t)
	if err != nil {
		return fmt.Errorf("ensure destination: %w", err)
	}

	if ri.isCancelled() {
		return cancelledErr(t.ID)
	}

	if !t.SkipPrescan {
		ri.setPhase(PhaseScanning)
		res, err := prescan(ctx, conn, t.SFTPPath, t.ExcludePaths)
		if err != nil {
			logger.Error(ctx, fmt.Errorf("prescan %s falling back to defaults: %w", t.ID, err))
		} else {
			ri.mu.Lock()
			ri.progress.TotalFiles = res.totalFiles
			ri.progress.EstimatedTotalBytes = res.totalBytes
			ri.mu.Unlock()
		}
	}

	if ri.isCancelled() {
		return cancelledErr(t.ID)
	}

	if t.Compress == model.CompressionNone {
		if err := rt.mirrorTree(ctx, conn, ri, t, destParent); err != nil {
			return err
		}
	} else {
		if err := rt.archiveAndUpload(ctx, conn, ri, t, destParent); err != nil {
			return err
		}
	}

	return rt.applyRetention(ctx, t, destParent)
}

// ensureDestination recreates the destination folder by path if the
// original node was deleted, returning the live parent
// node backups should land under.
func (rt *Runtime) ensureDestination(ctx context.Context, t *model.Task) (*model.Node, error) {
	if t.DestinationID != "" {
		n, err := rt.Meta.GetNode(ctx, t.DestinationID)
		if err == nil && !n.IsDeleted() {
			return n, nil
		}
	}

	n, err := rt.Meta.FindByPath(ctx, t.UserID, t.DestinationPath)
	if err == nil {
		return n, nil
	}
	if _, notFound := err.(errtypes.IsNotFound); !notFound {
		return nil, err
	}

	return rt.createPathRecursive(ctx, t.UserID, t.DestinationPath)
}

func (rt *Runtime) createPathRecursive(ctx context.Context, userID, fullPath string) (*model.Node, error) {
	if fullPath == "" || fullPath == "/" {
		return nil, nil
	}
	cleaned := path.Clean(fullPath)
	var built string
	var parent *model.Node
	for _, seg := range splitPath(cleaned) {
		built = namespace.ExpectedPath(built, seg)
		existing, err := rt.Meta.FindByPath(ctx, userID, built)
		if err == nil {
			parent = existing
			continue
		}
		if _, notFound := err.(errtypes.IsNotFound); !notFound {
			return nil, err
		}

		var parentID *string
		if parent != nil {
			parentID = &parent.ID
		}
		node := &model.Node{
			ID: uuid.NewString(), UserID: userID, ParentID: parentID,
			Name: seg, Path: built, Type: model.NodeDir,
			CreatedAt: rt.now(), UpdatedAt: rt.now(),
		}
		if err := rt.Meta.CreateNode(ctx, node); err != nil {
			return nil, err
		}
		parent = node
	}
	return parent, nil
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range bytesSplit(p, '/') {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func bytesSplit(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// mirrorTree implements the compress=NONE shape: walk the source
// tree, mirroring directories as nodes and storing each file through the
// chunk engine (files up to smallFileThreshold stream straight in, larger
// ones are staged through a temp file first).
func (rt *Runtime) mirrorTree(ctx context.Context, conn *sftpConn, ri *runInfo, t *model.Task, destParent *model.Node) error {
	root := destParent
	if t.TimestampNames {
		name := rt.now().UTC().Format("2006-01-02T15-04-05Z")
		var err error
		root, err = rt.mkdirNode(ctx, t.UserID, destParent, name)
		if err != nil {
			return err
		}
	}
	return rt.mirrorDir(ctx, conn, ri, t, t.SFTPPath, root)
}

func (rt *Runtime) mkdirNode(ctx context.Context, userID string, parent *model.Node, name string) (*model.Node, error) {
	var parentPath string
	var parentID *string
	if parent != nil {
		parentPath = parent.Path
		parentID = &parent.ID
	}
	node := &model.Node{UserID: userID, ParentID: parentID, Type: model.NodeDir, CreatedAt: rt.now(), UpdatedAt: rt.now()}
	err := namespace.CreateWithRetry(ctx, rt.Meta, userID, parentPath, name, func(ctx context.Context, n, p string) error {
		node.ID = uuid.NewString()
		node.Name = n
		node.Path = p
		return rt.Meta.CreateNode(ctx, node)
	})
	return node, err
}

func (rt *Runtime) mirrorDir(ctx context.Context, conn *sftpConn, ri *runInfo, t *model.Task, absDir string, destParent *model.Node) error {
	ri.setPhase(PhaseDownloading)
	if ri.isCancelled() {
		return cancelledErr(t.ID)
	}
	if isExcluded(absDir, t.ExcludePaths) {
		return nil
	}

	entries, err := rt.listDirWithReconnect(ctx, conn, ri, t, absDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if ri.isCancelled() {
			return cancelledErr(t.ID)
		}
		abs := absDir + "/" + e.Name()
		if e.IsDir() {
			sub, err := rt.mkdirNode(ctx, t.UserID, destParent, e.Name())
			if err != nil {
				logger.Error(ctx, fmt.Errorf("mirror mkdir %s: %w", abs, err))
				continue
			}
			if err := rt.mirrorDir(ctx, conn, ri, t, abs, sub); err != nil {
				return err
			}
			continue
		}

		if err := rt.mirrorOneFile(ctx, conn, ri, t, abs, e.Size(), destParent); err != nil {
			logger.Error(ctx, fmt.Errorf("mirror file %s: %w", abs, err))
			continue
		}
		ri.mu.Lock()
		ri.progress.FilesProcessed++
		ri.progress.TotalBytes += uint64(e.Size())
		ri.mu.Unlock()
	}
	return nil
}

func (rt *Runtime) mirrorOneFile(ctx context.Context, conn *sftpConn, ri *runInfo, t *model.Task, abs string, size int64, destParent *model.Node) error {
	f, err := conn.client.Open(abs)
	if err != nil && isReconnectEligible(err) {
		if rerr := rt.reconnectWithCap(ctx, conn, ri); rerr != nil {
			return rerr
		}
		f, err = conn.client.Open(abs)
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if size > smallFileThreshold {
		tmp, err := os.CreateTemp(ri.tmpDirOrDefault(), "ddrive-mirror-*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())
		defer tmp.Close()
		if _, err := io.Copy(tmp, f); err != nil {
			return err
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return err
		}
		r = tmp
	}

	ri.setPhase(PhaseUploading)
	_, err = rt.Chunks.Store(ctx, chunkengine.StoreParams{
		UserID: t.UserID, Parent: destParent, Name: path.Base(abs),
		Encrypt: t.Encrypt, Source: chunkengine.Source{Reader: r, Size: size},
	})
	ri.setPhase(PhaseDownloading)
	return err
}

// archiveAndUpload implements the compressed shape: stream the
// walk into an archive writer backed by a temp file, then upload the
// finished archive as a single chunk-engine file.
func (rt *Runtime) archiveAndUpload(ctx context.Context, conn *sftpConn, ri *runInfo, t *model.Task, destParent *model.Node) error {
	tmp, err := os.CreateTemp(ri.tmpDirOrDefault(), "ddrive-archive-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	aw := newArchiveWriter(t.Compress, tmp)
	if err := rt.walkAndArchive(ctx, conn, ri, t, aw); err != nil {
		return err
	}
	if err := aw.close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	info, err := tmp.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("archive for task %s is empty", t.ID)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	name := archiveName(t)
	ri.setPhase(PhaseUploading)
	_, err = rt.Chunks.Store(ctx, chunkengine.StoreParams{
		UserID: t.UserID, Parent: destParent, Name: name,
		Encrypt: t.Encrypt, Source: chunkengine.Source{Reader: tmp, Size: info.Size()},
	})
	return err
}

func archiveName(t *model.Task) string {
	base := t.Name
	if t.TimestampNames {
		base = fmt.Sprintf("%s-%s", base, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	}
	if t.Compress == model.CompressionTarGz {
		return base + ".tar.gz"
	}
	return base + ".zip"
}

// applyRetention deletes the oldest N files in the
// destination beyond maxFiles. Blob cleanup itself is deferred to the
// reconciler; this only drops rows (and, for the permanent path, relies on
// chunkengine.PermanentDelete never touching blobs synchronously either).
func (rt *Runtime) applyRetention(ctx context.Context, t *model.Task, destParent *model.Node) error {
	if t.MaxFiles <= 0 || destParent == nil {
		return nil
	}
	children, err := rt.Meta.ListChildren(ctx, t.UserID, &destParent.ID, metastore.ListChildrenOpts{})
	if err != nil {
		return err
	}

	var files []*model.Node
	for _, c := range children {
		if !c.IsDir() {
			files = append(files, c)
		}
	}
	if len(files) <= t.MaxFiles {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.Before(files[j].CreatedAt) })
	excess := files[:len(files)-t.MaxFiles]
	for _, f := range excess {
		if err := rt.Chunks.PermanentDelete(ctx, f); err != nil {
			logger.Error(ctx, fmt.Errorf("retention delete %s: %w", f.ID, err))
		}
	}
	return nil
}

func logLine(ctx context.Context, store metastore.Store, userID, message string) {
	_ = store.AppendLog(ctx, &model.Log{
		ID: uuid.NewString(), UserID: userID,
		Category: model.LogCategoryTask, Level: model.LogLevelInfo,
		Message: message, CreatedAt: time.Now(),
	})
}

