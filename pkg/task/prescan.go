package task

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
)

// prescanResult is (totalFiles, estimatedTotalBytes).
type prescanResult struct {
	totalFiles int
	totalBytes uint64
}

// prescan tries the fast SSH exec path first, falling back to a parallel
// SFTP directory walk when the remote shell doesn't support it (restricted
// SFTP-only endpoints, Windows SFTP servers, etc).
func prescan(ctx context.Context, conn *sftpConn, root string, excludePaths []string) (prescanResult, error) {
	if res, err := prescanViaExec(ctx, conn, root); err == nil {
		return res, nil
	}
	return prescanViaWalk(ctx, conn.client, root, excludePaths)
}

func prescanViaExec(ctx context.Context, conn *sftpConn, root string) (prescanResult, error) {
	session, err := conn.ssh.NewSession()
	if err != nil {
		return prescanResult{}, err
	}
	defer session.Close()

	cmd := fmt.Sprintf("find %s -type f -exec stat -c %%s {} +", shellQuote(root))

	type out struct {
		data []byte
		err  error
	}
	done := make(chan out, 1)
	go func() {
		data, err := session.Output(cmd)
		done <- out{data: data, err: err}
	}()

	select {
	case <-time.After(prescanTimeout):
		session.Signal(0)
		return prescanResult{}, fmt.Errorf("prescan exec timed out")
	case o := <-done:
		if o.err != nil {
			return prescanResult{}, o.err
		}
		return parseStatSizes(o.data), nil
	}
}

func parseStatSizes(data []byte) prescanResult {
	var res prescanResult
	for _, field := range strings.Fields(string(data)) {
		n, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		res.totalFiles++
		res.totalBytes += n
	}
	return res
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// prescanViaWalk recurses the remote tree, listing up to walkDirConcurrency
// directories concurrently, skipping any path with a segment matching
// excludePaths case-insensitively.
func prescanViaWalk(ctx context.Context, client *sftp.Client, root string, excludePaths []string) (prescanResult, error) {
	var mu sync.Mutex
	var res prescanResult
	sem := make(chan struct{}, walkDirConcurrency)
	var wg sync.WaitGroup
	var firstErr error

	var walkDir func(dir string)
	walkDir = func(dir string) {
		defer wg.Done()
		if isExcluded(dir, excludePaths) {
			return
		}
		sem <- struct{}{}
		entries, err := client.ReadDir(dir)
		<-sem
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return
		}
		for _, e := range entries {
			full := dir + "/" + e.Name()
			if e.IsDir() {
				wg.Add(1)
				go walkDir(full)
				continue
			}
			mu.Lock()
			res.totalFiles++
			res.totalBytes += uint64(e.Size())
			mu.Unlock()
		}
	}

	wg.Add(1)
	go walkDir(root)
	wg.Wait()

	if firstErr != nil {
		return prescanResult{}, firstErr
	}
	return res, nil
}

func isExcluded(remotePath string, excludePaths []string) bool {
	segments := strings.Split(remotePath, "/")
	for _, seg := range segments {
		for _, ex := range excludePaths {
			if strings.EqualFold(seg, ex) {
				return true
			}
		}
	}
	return false
}
