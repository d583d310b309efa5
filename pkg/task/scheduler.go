package task

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/model"
)

// Scheduler owns one robfig/cron instance, wiring one entry per enabled
// task. It is separate from Runtime's worker loop: cron wake-ups only ever
// enqueue, never run a task body directly, so scheduling and execution stay
// strictly serialized through the queue.
type Scheduler struct {
	Runtime *Runtime

	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// ValidateCron parses expr without scheduling it, surfacing a malformed
// cron expression as errtypes.NotSupported, the way a task create/update
// validation.
func ValidateCron(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return errtypes.NotSupported(fmt.Sprintf("invalid cron expression %q: %s", expr, err))
	}
	return nil
}

// NewScheduler builds a Scheduler bound to rt. Call Load to populate
// entries from the metadata store's enabled tasks, then Start.
func NewScheduler(rt *Runtime) *Scheduler {
	return &Scheduler{
		Runtime: rt,
		cron:    cron.New(),
		entries: map[string]cron.EntryID{},
	}
}

// Load registers one cron entry per enabled task.
func (s *Scheduler) Load(ctx context.Context) error {
	tasks, err := s.Runtime.Meta.ListEnabledTasks(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := s.AddOrReplace(t); err != nil {
			logger.Error(ctx, fmt.Errorf("schedule task %s: %w", t.ID, err))
		}
	}
	return nil
}

// AddOrReplace (re)registers taskID's cron entry, removing any prior one.
func (s *Scheduler) AddOrReplace(t *model.Task) error {
	if id, ok := s.entries[t.ID]; ok {
		s.cron.Remove(id)
		delete(s.entries, t.ID)
	}
	if !t.Enabled {
		return nil
	}
	taskID := t.ID
	priority := t.Priority
	id, err := s.cron.AddFunc(t.Cron, func() {
		if s.Runtime.isQueued(taskID) || s.Runtime.isRunning(taskID) {
			return
		}
		s.Runtime.Enqueue(taskID, priority)
	})
	if err != nil {
		return errtypes.NotSupported(fmt.Sprintf("invalid cron expression %q: %s", t.Cron, err))
	}
	s.entries[t.ID] = id
	return nil
}

// Remove unregisters taskID's cron entry.
func (s *Scheduler) Remove(taskID string) {
	if id, ok := s.entries[taskID]; ok {
		s.cron.Remove(id)
		delete(s.entries, taskID)
	}
}

// Start begins firing scheduled entries.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the cron scheduler, waiting for any in-flight entry fire to
// finish (entries only enqueue, so this returns promptly).
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

func (rt *Runtime) workerLoop(ctx context.Context) {
	defer close(rt.workerDone)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		next, ok := rt.dequeueNext()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-rt.wake:
				continue
			case <-time.After(time.Second):
				continue
			}
		}

		err := rt.runOne(ctx, next.taskID)
		next.done <- err
	}
}

func (rt *Runtime) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.repairStaleState(ctx)
		}
	}
}

// repairStaleState implements the watchdog: a task row that looks
// in-progress (lastStarted after lastRun) but is neither queued nor running
// is repaired by setting lastRun = now and logging the inconsistency,
// rather than left to look forever-running to callers of Progress.
func (rt *Runtime) repairStaleState(ctx context.Context) {
	tasks, err := rt.Meta.ListEnabledTasks(ctx)
	if err != nil {
		logger.Error(ctx, fmt.Errorf("watchdog: list tasks: %w", err))
		return
	}
	now := rt.now()
	for _, t := range tasks {
		if t.LastStarted == nil {
			continue
		}
		if t.LastRun != nil && !t.LastStarted.After(*t.LastRun) {
			continue
		}
		if rt.isQueued(t.ID) || rt.isRunning(t.ID) {
			continue
		}
		t.LastRun = &now
		if err := rt.Meta.UpdateTask(ctx, t); err != nil {
			logger.Error(ctx, fmt.Errorf("watchdog: repair task %s: %w", t.ID, err))
			continue
		}
		logger.Printf(ctx, "watchdog repaired stale run state for task %s", t.ID)
	}
}
