package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
)

func TestQueueOrdersByPriorityThenFIFO(t *testing.T) {
	base := time.Unix(1000, 0)
	tick := 0
	rt := &Runtime{Now: func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}}

	rt.Enqueue("low-priority-first", 5)
	rt.Enqueue("high-priority", 1)
	rt.Enqueue("same-priority-later", 5)

	var order []string
	for {
		next, ok := rt.dequeueNext()
		if !ok {
			break
		}
		order = append(order, next.taskID)
	}

	require.Equal(t, []string{"high-priority", "low-priority-first", "same-priority-later"}, order)
}

func TestStopTaskDequeuesUnstartedRun(t *testing.T) {
	rt := &Runtime{Now: time.Now}
	done := rt.Enqueue("t1", 0)

	rt.StopTask("t1")

	err := <-done
	require.Error(t, err)
	var cancelled errtypes.IsCancelled
	require.ErrorAs(t, err, &cancelled)
	require.False(t, rt.isQueued("t1"))
}
