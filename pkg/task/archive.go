package task

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	kzip "github.com/klauspost/compress/flate"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/pkg/sftp"

	"github.com/ddrive-io/ddrive/pkg/model"
)

// archiveEntry is one file or directory discovered by the walk, relative to
// the backup root.
type archiveEntry struct {
	relPath string
	isDir   bool
	size    int64
	modTime time.Time
	absPath string
}

// archiveWriter abstracts zip vs tar.gz so walkAndArchive doesn't care which
// compression the task requested.
type archiveWriter interface {
	writeDir(rel string, modTime time.Time) error
	writeFile(rel string, size int64, modTime time.Time, r io.Reader) error
	close() error
}

type zipArchiveWriter struct{ w *zip.Writer }

func newZipArchiveWriter(dst io.Writer) *zipArchiveWriter {
	w := zip.NewWriter(dst)
	// klauspost/compress's flate is a faster drop-in for the zip writer's
	// registered deflate compressor.
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return kzip.NewWriter(out, kzip.DefaultCompression)
	})
	return &zipArchiveWriter{w: w}
}

func (z *zipArchiveWriter) writeDir(rel string, modTime time.Time) error {
	_, err := z.w.CreateHeader(&zip.FileHeader{Name: rel + "/", Modified: modTime})
	return err
}

func (z *zipArchiveWriter) writeFile(rel string, size int64, modTime time.Time, r io.Reader) error {
	hdr := &zip.FileHeader{Name: rel, Modified: modTime, Method: zip.Deflate}
	hdr.UncompressedSize64 = uint64(size)
	w, err := z.w.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

func (z *zipArchiveWriter) close() error { return z.w.Close() }

type tarGzArchiveWriter struct {
	gz *kgzip.Writer
	tw *tar.Writer
}

func newTarGzArchiveWriter(dst io.Writer) *tarGzArchiveWriter {
	gz, _ := kgzip.NewWriterLevel(dst, kgzip.DefaultCompression)
	return &tarGzArchiveWriter{gz: gz, tw: tar.NewWriter(gz)}
}

func (t *tarGzArchiveWriter) writeDir(rel string, modTime time.Time) error {
	return t.tw.WriteHeader(&tar.Header{Name: rel + "/", Typeflag: tar.TypeDir, Mode: 0755, ModTime: modTime})
}

func (t *tarGzArchiveWriter) writeFile(rel string, size int64, modTime time.Time, r io.Reader) error {
	if err := t.tw.WriteHeader(&tar.Header{Name: rel, Typeflag: tar.TypeReg, Mode: 0644, Size: size, ModTime: modTime}); err != nil {
		return err
	}
	_, err := io.Copy(t.tw, r)
	return err
}

func (t *tarGzArchiveWriter) close() error {
	if err := t.tw.Close(); err != nil {
		return err
	}
	return t.gz.Close()
}

func newArchiveWriter(compress model.Compression, dst io.Writer) archiveWriter {
	if compress == model.CompressionTarGz {
		return newTarGzArchiveWriter(dst)
	}
	return newZipArchiveWriter(dst)
}

// walkAndArchive implements the compressed-transfer shape: walk
// the remote tree, append each entry to the archive writer (small files
// read fully into memory, larger ones staged through a temp file), in
// batches of archiveFileBatch files and archiveDirBatch directory siblings,
// reconnecting on an eligible SFTP error up to maxReconnectsPerRun times.
func (rt *Runtime) walkAndArchive(ctx context.Context, conn *sftpConn, ri *runInfo, t *model.Task, aw archiveWriter) error {
	ri.setPhase(PhaseArchiving)
	return rt.walkDirArchive(ctx, conn, ri, t, aw, t.SFTPPath, "")
}

func (rt *Runtime) walkDirArchive(ctx context.Context, conn *sftpConn, ri *runInfo, t *model.Task, aw archiveWriter, absDir, relDir string) error {
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

	var dirs []sftpDirEntry
	var files []sftpDirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, sftpDirEntry{name: e.Name(), size: e.Size(), modTime: e.ModTime()})
		} else {
			files = append(files, sftpDirEntry{name: e.Name(), size: e.Size(), modTime: e.ModTime()})
		}
	}

	ri.mu.Lock()
	ri.progress.CurrentDir = absDir
	ri.mu.Unlock()

	for start := 0; start < len(files); start += archiveFileBatch {
		end := start + archiveFileBatch
		if end > len(files) {
			end = len(files)
		}
		for _, f := range files[start:end] {
			if ri.isCancelled() {
				return cancelledErr(t.ID)
			}
			rel := path.Join(relDir, f.name)
			abs := absDir + "/" + f.name
			if err := rt.archiveOneFile(ctx, conn, ri, t, aw, abs, rel, f); err != nil {
				logger.Error(ctx, fmt.Errorf("archive %s: %w", abs, err))
				continue
			}
			ri.mu.Lock()
			ri.progress.FilesProcessed++
			ri.progress.TotalBytes += uint64(f.size)
			ri.mu.Unlock()
		}
	}

	for start := 0; start < len(dirs); start += archiveDirBatch {
		end := start + archiveDirBatch
		if end > len(dirs) {
			end = len(dirs)
		}
		var wg sync.WaitGroup
		var mu sync.Mutex
		var firstErr error
		for _, d := range dirs[start:end] {
			d := d
			rel := path.Join(relDir, d.name)
			if err := aw.writeDir(rel, d.modTime); err != nil {
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := rt.walkDirArchive(ctx, conn, ri, t, aw, absDir+"/"+d.name, rel); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if firstErr != nil {
			return firstErr
		}
	}

	return nil
}

type sftpDirEntry struct {
	name    string
	size    int64
	modTime time.Time
}

func (rt *Runtime) listDirWithReconnect(ctx context.Context, conn *sftpConn, ri *runInfo, t *model.Task, dir string) ([]os.FileInfo, error) {
	entries, err := conn.client.ReadDir(dir)
	if err == nil || !isReconnectEligible(err) {
		return entries, err
	}
	if err2 := rt.reconnectWithCap(ctx, conn, ri); err2 != nil {
		return nil, err2
	}
	return conn.client.ReadDir(dir)
}

func (rt *Runtime) reconnectWithCap(ctx context.Context, conn *sftpConn, ri *runInfo) error {
	ri.mu.Lock()
	count := ri.progress.Reconnects
	ri.mu.Unlock()
	if count >= maxReconnectsPerRun {
		return fmt.Errorf("exceeded %d reconnection attempts", maxReconnectsPerRun)
	}
	if err := conn.reconnect(); err != nil {
		return err
	}
	ri.mu.Lock()
	ri.progress.Reconnects++
	ri.mu.Unlock()
	return nil
}

func (rt *Runtime) archiveOneFile(ctx context.Context, conn *sftpConn, ri *runInfo, t *model.Task, aw archiveWriter, abs, rel string, meta sftpDirEntry) error {
	open := func() (*sftp.File, error) { return conn.client.Open(abs) }

	f, err := open()
	if err != nil && isReconnectEligible(err) {
		if rerr := rt.reconnectWithCap(ctx, conn, ri); rerr != nil {
			return rerr
		}
		f, err = open()
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if meta.size <= smallFileThreshold {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, f); err != nil {
			return err
		}
		return aw.writeFile(rel, meta.size, meta.modTime, &buf)
	}

	tmp, err := os.CreateTemp(ri.tmpDirOrDefault(), "ddrive-archive-src-*")
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
	return aw.writeFile(rel, meta.size, meta.modTime, tmp)
}

func (ri *runInfo) tmpDirOrDefault() string {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if ri.tmpDir != "" {
		return ri.tmpDir
	}
	return os.TempDir()
}
