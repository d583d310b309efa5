package task

import (
	"context"
	"sort"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/metrics"
)

// Start constructs the running map, launches the single worker and the
// 30s stale-state watchdog. Start/Stop are explicit so tests and
// cmd/ddrived control the Runtime's lifetime instead of relying on a
// package-level init.
func (rt *Runtime) Start(ctx context.Context) {
	rt.mu.Lock()
	rt.running = map[string]*runInfo{}
	rt.wake = make(chan struct{}, 1)
	rt.workerDone = make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.mu.Unlock()

	go rt.workerLoop(runCtx)
	go rt.watchdogLoop(runCtx)
}

// Stop cancels the worker and watchdog loops and waits for the current run
// (if any) to observe cancellation and exit.
func (rt *Runtime) Stop(ctx context.Context) {
	rt.mu.Lock()
	cancel := rt.cancel
	done := rt.workerDone
	rt.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Enqueue implements queueTaskAndWait: enqueues taskID and returns a
// channel that receives the run's terminal error (nil on success). Enqueuing
// an already-queued task is a no-op returning the existing handle; enqueuing
// a running task returns a handle that already holds errtypes.NotSupported.
func (rt *Runtime) Enqueue(taskID string, priority int) <-chan error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, running := rt.running[taskID]; running {
		done := make(chan error, 1)
		done <- errtypes.NotSupported("task already running")
		return done
	}
	for _, q := range rt.queue {
		if q.taskID == taskID {
			return q.done
		}
	}

	done := make(chan error, 1)
	rt.queue = append(rt.queue, queued{taskID: taskID, priority: priority, enqueuedAt: rt.now(), done: done})
	sort.SliceStable(rt.queue, func(i, j int) bool {
		if rt.queue[i].priority != rt.queue[j].priority {
			return rt.queue[i].priority < rt.queue[j].priority
		}
		return rt.queue[i].enqueuedAt.Before(rt.queue[j].enqueuedAt)
	})

	metrics.QueueDepth.Set(float64(len(rt.queue)))

	select {
	case rt.wake <- struct{}{}:
	default:
	}
	return done
}

// dequeueCancel removes taskID from the queue before it starts running,
// completing its handle with CANCELLED. Returns false if taskID was
// already running or not queued.
func (rt *Runtime) dequeueCancel(taskID string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for i, q := range rt.queue {
		if q.taskID == taskID {
			rt.queue = append(rt.queue[:i], rt.queue[i+1:]...)
			metrics.QueueDepth.Set(float64(len(rt.queue)))
			q.done <- errtypes.Cancelled(taskID)
			return true
		}
	}
	return false
}

// StopTask flips the cancelled flag on an in-progress run, or dequeues it
// if it hasn't started yet.
func (rt *Runtime) StopTask(taskID string) {
	rt.mu.Lock()
	ri, running := rt.running[taskID]
	rt.mu.Unlock()
	if running {
		ri.cancel()
		return
	}
	rt.dequeueCancel(taskID)
}

// Progress returns a snapshot of taskID's run info, or false if it is not
// currently running.
func (rt *Runtime) Progress(taskID string) (Progress, bool) {
	rt.mu.Lock()
	ri, ok := rt.running[taskID]
	rt.mu.Unlock()
	if !ok {
		return Progress{}, false
	}
	return ri.snapshot(), true
}

func (rt *Runtime) dequeueNext() (queued, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.queue) == 0 {
		return queued{}, false
	}
	next := rt.queue[0]
	rt.queue = rt.queue[1:]
	metrics.QueueDepth.Set(float64(len(rt.queue)))
	return next, true
}

func (rt *Runtime) isQueued(taskID string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, q := range rt.queue {
		if q.taskID == taskID {
			return true
		}
	}
	return false
}

func (rt *Runtime) isRunning(taskID string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	_, ok := rt.running[taskID]
	return ok
}
