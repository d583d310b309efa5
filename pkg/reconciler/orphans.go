package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/ddrive-io/ddrive/pkg/blob"
	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metrics"
)

// OrphanSweepResult summarizes one run for logging/metrics.
type OrphanSweepResult struct {
	MessagesScanned int
	Deleted         int
	Errors          int
	CappedEarly     bool
}

// SweepOrphans pages the substrate channel's
// messages up to orphanSweepMessageCap, diff the observed set against every
// message id the metadata store still references via a chunk pointer, and
// delete whatever is left over.
func (r *Reconciler) SweepOrphans(ctx context.Context) (OrphanSweepResult, error) {
	referenced := make(map[string]struct{})
	if err := r.Meta.ScanChunkPointerMessageIDs(ctx, func(ids []string) bool {
		for _, id := range ids {
			referenced[id] = struct{}{}
		}
		return true
	}); err != nil {
		return OrphanSweepResult{}, fmt.Errorf("scan chunk pointer message ids: %w", err)
	}

	var result OrphanSweepResult
	var orphans []string

	err := r.Blob.ListMessageIDs(ctx, orphanSweepPageSize, func(ids []string) bool {
		for _, id := range ids {
			result.MessagesScanned++
			if result.MessagesScanned > orphanSweepMessageCap {
				result.CappedEarly = true
				return false
			}
			if _, ok := referenced[id]; !ok {
				orphans = append(orphans, id)
			}
		}
		return true
	})
	if err != nil {
		return result, fmt.Errorf("list substrate messages: %w", err)
	}
	if result.CappedEarly {
		logger.Printf(ctx, "orphan sweep stopped early at %d messages", orphanSweepMessageCap)
	}

	for i, messageID := range orphans {
		if i > 0 {
			time.Sleep(orphanDeletePacing)
		}
		if err := r.deleteWithRetry(ctx, blob.Ref{MessageID: messageID}); err != nil {
			result.Errors++
			logger.Error(ctx, fmt.Errorf("delete orphaned blob %s: %w", messageID, err))
			continue
		}
		result.Deleted++
		metrics.ReconcilerOrphansDeleted.Inc()
	}

	return result, nil
}

// deleteWithRetry honors rate-limit responses with their retry-after value,
// up to orphanDeleteMaxRetries retries after the first attempt. Non-rate-limit
// errors are returned immediately — the next sweep will retry this message.
func (r *Reconciler) deleteWithRetry(ctx context.Context, ref blob.Ref) error {
	for attempt := 0; ; attempt++ {
		err := r.Blob.Delete(ctx, ref)
		if err == nil {
			return nil
		}

		rl, ok := err.(errtypes.BlobRateLimit)
		if !ok || attempt >= orphanDeleteMaxRetries {
			return err
		}

		wait := time.Duration(rl.RetryAfterSeconds * float64(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
