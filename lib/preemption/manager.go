// Package preemption holds the task manager that the epoch coordinator
// drains between slow-path attempts. Any goroutine may schedule a short
// task; the typecheck side runs it from the coordinator's preemption hook
// the moment the slow path commits or rolls back.
package preemption

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Task is a short piece of work scheduled to run between slow-path attempts.
type Task func()

// TaskManager stores at most one scheduled preemption task. It satisfies the
// coordinator's PreemptionHook contract: TryRunScheduledPreemptionTask runs
// at most one task per call and never calls back into the coordinator.
type TaskManager struct {
	mu     sync.Mutex
	task   Task
	logger logrus.FieldLogger
}

// NewTaskManager returns an empty TaskManager.
func NewTaskManager(logger logrus.FieldLogger) *TaskManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TaskManager{logger: logger.WithField("component", "preemption")}
}

// Schedule registers task to run at the next preemption point. It reports
// false, leaving the existing task in place, if one is already pending;
// callers coalesce their work into the pending task instead of queueing.
func (m *TaskManager) Schedule(task Task) bool {
	if task == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task != nil {
		return false
	}
	m.task = task
	return true
}

// Cancel drops a pending task without running it and reports whether there
// was one.
func (m *TaskManager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	had := m.task != nil
	m.task = nil
	return had
}

// Pending reports whether a task is currently scheduled.
func (m *TaskManager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.task != nil
}

// TryRunScheduledPreemptionTask runs and clears the pending task, if any, and
// reports whether one ran. The task itself executes outside the manager's
// mutex, so it may schedule a successor.
func (m *TaskManager) TryRunScheduledPreemptionTask() bool {
	m.mu.Lock()
	task := m.task
	m.task = nil
	m.mu.Unlock()

	if task == nil {
		return false
	}
	m.logger.Debug("running scheduled preemption task")
	task()
	return true
}
