package preemption

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sift-lang/sift/lib/testutils"
)

func TestTaskManagerScheduleAndRun(t *testing.T) {
	t.Parallel()
	m := NewTaskManager(testutils.NewLogger(t))

	assert.False(t, m.TryRunScheduledPreemptionTask(), "nothing scheduled yet")

	var ran int
	require.True(t, m.Schedule(func() { ran++ }))
	assert.True(t, m.Pending())

	// Only one task may be pending at a time.
	assert.False(t, m.Schedule(func() { ran += 100 }))

	assert.True(t, m.TryRunScheduledPreemptionTask())
	assert.Equal(t, 1, ran)
	assert.False(t, m.Pending())

	// The slot is free again after running.
	assert.False(t, m.TryRunScheduledPreemptionTask())
	assert.True(t, m.Schedule(func() { ran++ }))
}

func TestTaskManagerScheduleNil(t *testing.T) {
	t.Parallel()
	m := NewTaskManager(testutils.NewLogger(t))

	assert.False(t, m.Schedule(nil))
	assert.False(t, m.Pending())
}

func TestTaskManagerCancel(t *testing.T) {
	t.Parallel()
	m := NewTaskManager(testutils.NewLogger(t))

	assert.False(t, m.Cancel())
	require.True(t, m.Schedule(func() { t.Error("canceled task must not run") }))
	assert.True(t, m.Cancel())
	assert.False(t, m.TryRunScheduledPreemptionTask())
}

func TestTaskManagerTaskMayScheduleSuccessor(t *testing.T) {
	t.Parallel()
	m := NewTaskManager(testutils.NewLogger(t))

	var second bool
	require.True(t, m.Schedule(func() {
		require.True(t, m.Schedule(func() { second = true }))
	}))
	assert.True(t, m.TryRunScheduledPreemptionTask())
	assert.False(t, second)
	assert.True(t, m.TryRunScheduledPreemptionTask())
	assert.True(t, second)
}

func TestTaskManagerConcurrentSchedulers(t *testing.T) {
	t.Parallel()
	m := NewTaskManager(testutils.NewLogger(t))

	// Many goroutines race to schedule; exactly one wins per drain.
	const attempts = 64
	var scheduled, ran int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Schedule(func() {
				mu.Lock()
				ran++
				mu.Unlock()
			}) {
				mu.Lock()
				scheduled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for m.TryRunScheduledPreemptionTask() { //nolint:revive
	}
	assert.Equal(t, 1, scheduled)
	assert.Equal(t, 1, ran)
}
