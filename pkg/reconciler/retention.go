package reconciler

import (
	"context"
	"fmt"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/metrics"
)

// RetentionSweepResult summarizes one run for logging/metrics.
type RetentionSweepResult struct {
	FilesPurged int
	Errors      int
}

// SweepRecycleBin purges every node soft-deleted more than
// recycleBinRetention ago: its blobs are best-effort deleted, then its
// chunk-pointer rows and its node row are deleted, each in its own
// transaction. A failure on one file is logged and the sweep continues to
// the next — there is no partial-file retry here, the next run picks up
// whatever remains.
func (r *Reconciler) SweepRecycleBin(ctx context.Context) (RetentionSweepResult, error) {
	cutoff := r.now().Add(-recycleBinRetention)

	expired, err := r.Meta.ListTrashOlderThan(ctx, cutoff)
	if err != nil {
		return RetentionSweepResult{}, fmt.Errorf("list expired trash: %w", err)
	}

	var result RetentionSweepResult
	for _, node := range expired {
		if err := r.purgeOne(ctx, node.ID); err != nil {
			result.Errors++
			logger.Error(ctx, fmt.Errorf("purge trashed node %s: %w", node.ID, err))
			continue
		}
		result.FilesPurged++
		metrics.ReconcilerRecycleBinPurged.Inc()
	}
	return result, nil
}

func (r *Reconciler) purgeOne(ctx context.Context, nodeID string) error {
	chunks, err := r.Meta.ListChunkPointers(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("list chunk pointers: %w", err)
	}

	for _, c := range chunks {
		ref := blob.Ref{MessageID: c.MessageID, ChannelID: c.ChannelID}
		if err := r.deleteWithRetry(ctx, ref); err != nil {
			logger.Error(ctx, fmt.Errorf("best-effort delete blob %s for %s: %w", c.MessageID, nodeID, err))
		}
	}

	if err := r.Meta.DeleteChunkPointersByFile(ctx, []string{nodeID}); err != nil {
		return fmt.Errorf("delete chunk pointer rows: %w", err)
	}
	return r.Meta.DeleteNodes(ctx, []string{nodeID})
}
