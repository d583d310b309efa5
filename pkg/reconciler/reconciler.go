// Package reconciler runs the two periodic sweeps that are the only place
// blobs are proactively reaped: every other code path that fails to delete
// a remote attachment (a failed streaming-upload rollback, a permanent
// delete that never touches the blob substrate at all) relies on the
// orphan sweep here to eventually catch up.
package reconciler

import (
	"context"
	"time"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/log"
	"github.com/ddrive-io/ddrive/pkg/metastore"
)

var logger = log.New("reconciler")

const (
	orphanSweepPageSize    = 100
	orphanSweepMessageCap  = 10_000
	orphanDeleteMaxRetries = 5
	orphanDeletePacing     = 100 * time.Millisecond

	recycleBinRetention = 30 * 24 * time.Hour
)

// Reconciler wires the blob substrate and metadata store the two sweeps
// need. Both sweeps are independently callable and share no mutable state,
// so they can be scheduled on separate cron entries in pkg/task's Runtime
// without coordination.
type Reconciler struct {
	Meta metastore.Store
	Blob blob.Adapter

	// Now is swappable for deterministic tests.
	Now func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
