// Package task implements the backup scheduler and runner: a process-wide
// priority queue that serializes SFTP-source -> chunk-store backup jobs,
// with cron wake-up, pre-scan, resumable SFTP transfers, archive
// compression, retention pruning and live progress.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/ddrive-io/ddrive/pkg/chunkengine"
	"github.com/ddrive-io/ddrive/pkg/log"
	"github.com/ddrive-io/ddrive/pkg/metastore"
)

var logger = log.New("task")

// Phase names a run's current stage.
type Phase string

const (
	PhaseConnecting Phase = "connecting"
	PhaseScanning   Phase = "scanning"
	PhaseDownloading Phase = "downloading"
	PhaseArchiving  Phase = "archiving"
	PhaseUploading  Phase = "uploading"
	PhaseComplete   Phase = "complete"
)

const (
	maxReconnectsPerRun  = 10
	watchdogInterval     = 30 * time.Second
	prescanTimeout       = 5 * time.Second
	smallFileThreshold   = 2 * 1024 * 1024
	walkDirConcurrency   = 10
	archiveFileBatch     = 100
	archiveDirBatch      = 5
)

// Progress mirrors the in-memory fields a run's status needs to report;
// Runtime.Progress returns a snapshot of it for a running task.
type Progress struct {
	Phase                Phase
	FilesProcessed       int
	TotalFiles           int
	TotalBytes           uint64
	EstimatedTotalBytes  uint64
	Reconnects           int
	StartTime            time.Time
	CurrentDir           string
}

type runInfo struct {
	mu        sync.Mutex
	cancelled bool
	tmpDir    string
	progress  Progress
}

func (ri *runInfo) setPhase(p Phase) {
	ri.mu.Lock()
	ri.progress.Phase = p
	ri.mu.Unlock()
}

func (ri *runInfo) isCancelled() bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return ri.cancelled
}

func (ri *runInfo) cancel() {
	ri.mu.Lock()
	ri.cancelled = true
	ri.mu.Unlock()
}

func (ri *runInfo) snapshot() Progress {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return ri.progress
}

// Runtime is the constructed-once, explicitly-started queue/worker/running
// map this runtime keeps per task instead of a package-level
// singleton. One Runtime serves every task; cmd/ddrived constructs it, and
// access.Facade holds a reference to it.
type Runtime struct {
	Meta   metastore.Store
	Chunks *chunkengine.Engine

	Now func() time.Time

	mu         sync.Mutex
	queue      []queued
	running    map[string]*runInfo
	workerDone chan struct{}
	cancel     context.CancelFunc
	wake       chan struct{}
}

type queued struct {
	taskID     string
	priority   int
	enqueuedAt time.Time
	done       chan error
}

func (rt *Runtime) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}
