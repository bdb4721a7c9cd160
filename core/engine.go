// Package core wires the epoch coordinator, the preemption task manager and
// the metrics sink into the engine that the typecheck thread drives.
package core

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sift-lang/sift/lib/epoch"
	"github.com/sift-lang/sift/lib/preemption"
	"github.com/sift-lang/sift/stats"
)

// CancelToken is handed to slow-path work so checker workers can poll for
// cooperative cancellation from their inner loops.
type CancelToken struct {
	c *epoch.Coordinator
}

// Canceled reports whether the current slow path has been requested-canceled.
// Lock-free and cheap; a stale answer is fine, callers re-poll.
func (t CancelToken) Canceled() bool {
	return t.c.WasTypecheckingCanceled()
}

// Engine owns one Coordinator and one preemption TaskManager for the life of
// the process, allocates epochs monotonically, and emits counters for every
// slow/fast path outcome.
type Engine struct {
	Coordinator *epoch.Coordinator
	Preemption  *preemption.TaskManager

	logger    logrus.FieldLogger
	collector stats.Collector

	// epochCounter is the allocator behind NextEpoch; it wraps, and the
	// protocol only ever compares epochs for equality.
	epochCounter atomic.Uint32
	// lastEpoch is the epoch of the most recent committed work, slow or
	// fast; it becomes the from argument of the next StartCommitEpoch,
	// retroactively acknowledging the fast paths since the last slow one.
	lastEpoch atomic.Uint32

	slowStarted   *stats.Metric
	slowCommitted *stats.Metric
	slowCanceled  *stats.Metric
	slowDuration  *stats.Metric
	fastPaths     *stats.Metric
	preemptions   *stats.Metric
}

// NewEngine returns an Engine. collector may be nil, in which case metrics
// are dropped.
func NewEngine(logger logrus.FieldLogger, registry *stats.Registry, collector stats.Collector) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if registry == nil {
		registry = stats.NewRegistry()
	}
	return &Engine{
		Coordinator: epoch.NewCoordinator(logger),
		Preemption:  preemption.NewTaskManager(logger),
		logger:      logger.WithField("component", "engine"),
		collector:   collector,

		slowStarted:   registry.GetOrNew("typecheck.slow_path.started", stats.Counter),
		slowCommitted: registry.GetOrNew("typecheck.slow_path.committed", stats.Counter),
		slowCanceled:  registry.GetOrNew("typecheck.slow_path.canceled", stats.Counter),
		slowDuration:  registry.GetOrNew("typecheck.slow_path.duration", stats.Timer),
		fastPaths:     registry.GetOrNew("typecheck.fast_path.count", stats.Counter),
		preemptions:   registry.GetOrNew("typecheck.preemption.run", stats.Counter),
	}
}

// NextEpoch hands out the next epoch. It skips any value that would collide
// with an epoch the coordinator still holds, so the StartCommitEpoch and
// TryCancelSlowPath preconditions survive counter wrap-around. Safe to call
// from the preprocess thread as well as the typecheck thread.
func (e *Engine) NextEpoch() epoch.Epoch {
	status := e.Coordinator.GetStatus()
	for {
		v := epoch.Epoch(e.epochCounter.Add(1))
		if v != status.CommittedEpoch && v != status.ProcessingEpoch && v != epoch.Epoch(e.lastEpoch.Load()) {
			return v
		}
	}
}

// RunSlowPath performs a cancelable whole-program typecheck at epoch to,
// which must come from NextEpoch. It returns true if the result was
// committed, false if the slow path was canceled and rolled back; in the
// latter case the caller discards partial work and waits for the next edit.
// Must be called from the typecheck thread.
func (e *Engine) RunSlowPath(to epoch.Epoch, work func(CancelToken)) bool {
	from := epoch.Epoch(e.lastEpoch.Load())
	e.Coordinator.StartCommitEpoch(from, to)
	e.emit(e.slowStarted, 1)

	started := time.Now()
	committed := e.Coordinator.TryCommitEpoch(to, true, preemptionHook{e}, func() {
		work(CancelToken{c: e.Coordinator})
	})
	if committed {
		e.lastEpoch.Store(uint32(to))
		e.emit(e.slowCommitted, 1)
		e.emit(e.slowDuration, float64(time.Since(started).Milliseconds()))
	} else {
		e.emit(e.slowCanceled, 1)
	}
	return committed
}

// RunFastPath performs a short incremental typecheck at epoch to. Fast paths
// are not cancelable and never touch the coordinator; their epochs are
// acknowledged retroactively by the next RunSlowPath. Must be called from
// the typecheck thread.
func (e *Engine) RunFastPath(to epoch.Epoch, work func()) {
	work()
	e.lastEpoch.Store(uint32(to))
	e.emit(e.fastPaths, 1)
}

// RunNonCancelable performs the initial compile or a plain command-line
// check. It is a fatal error to call it while a slow path is in flight.
func (e *Engine) RunNonCancelable(work func()) {
	e.Coordinator.TryCommitEpoch(0, false, nil, work)
}

// CancelSlowPath marks the running slow path (if any) canceled, with
// newEpoch as the epoch the next attempt should reach. Called from the
// preprocess thread.
func (e *Engine) CancelSlowPath(newEpoch epoch.Epoch) bool {
	return e.Coordinator.TryCancelSlowPath(newEpoch)
}

// Status returns a consistent snapshot of the coordinator's state.
func (e *Engine) Status() epoch.TypecheckingStatus {
	return e.Coordinator.GetStatus()
}

// preemptionHook adapts the engine's task manager to the coordinator's hook
// contract, counting drained tasks as it goes.
type preemptionHook struct {
	e *Engine
}

func (h preemptionHook) TryRunScheduledPreemptionTask() bool {
	ran := h.e.Preemption.TryRunScheduledPreemptionTask()
	if ran {
		h.e.emit(h.e.preemptions, 1)
	}
	return ran
}

func (e *Engine) emit(m *stats.Metric, value float64) {
	if e.collector == nil {
		return
	}
	e.collector.Collect([]stats.Sample{{Metric: m, Time: time.Now(), Value: value}})
}
