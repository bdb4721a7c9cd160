// Package epoch implements the cancellation coordinator that lets a
// long-running whole-program typecheck (the "slow path") be preempted by
// newly arriving edits or by short incremental typechecks (the "fast path").
//
// The protocol is encoded in three wrapping uint32 counters:
//
//   - committed records the epoch the outside world may depend on;
//   - processing records the epoch currently being attempted;
//   - invalidator records the target epoch that cancellation wants to jump to.
//
// The counters are only ever compared for equality. At every mutex-protected
// observation, committed == processing means no slow path is in flight, and
// processing != invalidator means the in-flight slow path has been
// requested-canceled.
//
// Exactly three roles interact with a Coordinator: the typecheck goroutine
// (StartCommitEpoch, TryCommitEpoch), the preprocess goroutine
// (TryCancelSlowPath), and any number of worker goroutines, which may only
// poll WasTypecheckingCanceled. The first two roles are pinned to the
// goroutine that first uses them; violations panic.
package epoch

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// PreemptionHook is the collaborator TryCommitEpoch drains once per committed
// or rolled-back slow path. The hook runs after the coordinator's mutex has
// been released, so it may call GetStatus, but it must not call back into any
// mutating coordinator operation.
type PreemptionHook interface {
	// TryRunScheduledPreemptionTask executes at most one task that was
	// scheduled by another goroutine while the slow path was running, and
	// reports whether one ran.
	TryRunScheduledPreemptionTask() bool
}

// Coordinator is the epoch state machine. One instance lives for the whole
// process; the zero counters mean "epoch 0 committed, nothing in flight".
//
// Writes to the counters happen only under mu. WasTypecheckingCanceled reads
// them lock-free, which is why they are atomics at all: a transiently stale
// answer on that path is acceptable, torn reads are not.
type Coordinator struct {
	committed   atomic.Uint32
	processing  atomic.Uint32
	invalidator atomic.Uint32

	mu               sync.Mutex
	preprocessThread threadSlot
	typecheckThread  threadSlot

	logger logrus.FieldLogger
}

// NewCoordinator returns a Coordinator with all counters at zero and both
// thread slots unpinned.
func NewCoordinator(logger logrus.FieldLogger) *Coordinator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Coordinator{logger: logger.WithField("component", "epoch")}
}

// StartCommitEpoch opens a slow path at epoch to. It must be called from the
// typecheck goroutine, with no slow path already in flight from the caller's
// point of view.
//
// from is the epoch of the most recent fast path; the implicit range
// (from, to] covers the fast-path commits that happened since the last slow
// path and retroactively acknowledges them, which is why committed is wound
// back to from rather than left alone.
func (c *Coordinator) StartCommitEpoch(from, to Epoch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typecheckThread.assertConsistent("StartCommitEpoch", "typecheck thread")

	if from == to {
		panic(fmt.Sprintf("epoch: StartCommitEpoch(%d, %d): from and to must differ", from, to))
	}
	if to == Epoch(c.processing.Load()) {
		panic(fmt.Sprintf("epoch: StartCommitEpoch: epoch %d is already being processed", to))
	}
	if to == Epoch(c.committed.Load()) {
		panic(fmt.Sprintf("epoch: StartCommitEpoch: epoch %d is already committed", to))
	}

	c.processing.Store(uint32(to))
	c.invalidator.Store(uint32(to))
	c.committed.Store(uint32(from))
	c.logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("slow path started")
}

// TryCancelSlowPath marks the in-flight slow path as canceled, recording
// newEpoch as the epoch the next attempt should target. It must be called
// from the preprocess goroutine.
//
// It returns false, without mutating anything, when no slow path is running.
// A true return means only that the slow path has been marked; the typecheck
// goroutine observes the mark cooperatively via WasTypecheckingCanceled, and
// repeated cancellations simply overwrite the target; the last one wins.
func (c *Coordinator) TryCancelSlowPath(newEpoch Epoch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preprocessThread.assertConsistent("TryCancelSlowPath", "preprocess thread")

	p := Epoch(c.processing.Load())
	if newEpoch == p {
		// Cancelling with the processing epoch would make cancellation
		// indistinguishable from completion.
		panic(fmt.Sprintf("epoch: TryCancelSlowPath(%d): epoch equals the processing epoch", newEpoch))
	}
	if p == Epoch(c.committed.Load()) {
		return false
	}

	c.invalidator.Store(uint32(newEpoch))
	c.logger.WithFields(logrus.Fields{"processing": p, "newEpoch": newEpoch}).Debug("slow path canceled")
	return true
}

// WasTypecheckingCanceled reports whether the in-flight slow path has been
// requested-canceled. It is lock-free and cheap enough to call from worker
// inner loops; the answer may be transiently stale in either direction, and
// workers are expected to re-poll.
func (c *Coordinator) WasTypecheckingCanceled() bool {
	return c.invalidator.Load() != c.processing.Load()
}

// TryCommitEpoch runs work and, in cancelable mode, attempts to publish its
// result by advancing committed to the processing epoch. It must be called
// from the typecheck goroutine.
//
// In non-cancelable mode (the initial compile, or plain command-line use) the
// epoch state is never consulted: work runs and the call returns true. It is
// a fatal error to enter this mode while a slow path is in flight.
//
// In cancelable mode, StartCommitEpoch(_, e) must already have been called.
// work runs outside the mutex (that is what allows TryCancelSlowPath to get
// in), and the commit decision afterwards is atomic: if no cancellation
// arrived, committed advances and the call returns true; otherwise all three
// counters roll back to the last committed epoch and the call returns false.
// Either way, if hook is non-nil it is invoked exactly once after the mutex
// has been released: the instant the slow path is no longer running, a
// preemption task scheduled during it becomes safe to drain, and no new slow
// path can begin until the typecheck goroutine calls StartCommitEpoch again.
//
// A false return is not an error. It tells the caller to discard partial work
// and wait for the next edit.
func (c *Coordinator) TryCommitEpoch(e Epoch, cancelable bool, hook PreemptionHook, work func()) bool {
	c.mu.Lock()
	c.typecheckThread.assertConsistent("TryCommitEpoch", "typecheck thread")
	p := Epoch(c.processing.Load())
	if !cancelable {
		if p != Epoch(c.committed.Load()) {
			c.mu.Unlock()
			panic("epoch: TryCommitEpoch: non-cancelable commit requested while a slow path is in flight")
		}
		c.mu.Unlock()
		work()
		return true
	}
	if p != e {
		c.mu.Unlock()
		panic(fmt.Sprintf("epoch: TryCommitEpoch(%d): processing epoch is %d; StartCommitEpoch must run first", e, p))
	}
	c.mu.Unlock()

	work()

	c.mu.Lock()
	p = Epoch(c.processing.Load())
	inv := Epoch(c.invalidator.Load())
	var committed bool
	if p == inv {
		if Epoch(c.committed.Load()) == p {
			c.mu.Unlock()
			panic(fmt.Sprintf("epoch: TryCommitEpoch: epoch %d is already committed", p))
		}
		c.committed.Store(uint32(p))
		committed = true
	} else {
		lastCommitted := c.committed.Load()
		c.processing.Store(lastCommitted)
		c.invalidator.Store(lastCommitted)
	}
	c.mu.Unlock()

	if committed {
		c.logger.WithField("epoch", p).Debug("slow path committed")
	} else {
		c.logger.WithFields(logrus.Fields{"epoch": e, "invalidator": inv}).Debug("slow path rolled back")
	}
	if hook != nil {
		hook.TryRunScheduledPreemptionTask()
	}
	return committed
}

// WithEpochLock calls fn with a consistent status snapshot while holding the
// coordinator's mutex. Intended for compound read-modify decisions that need
// the snapshot to stay stable; fn must be short and must not call back into
// the coordinator.
func (c *Coordinator) WithEpochLock(fn func(TypecheckingStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.statusLocked())
}

// GetStatus returns a consistent status snapshot.
func (c *Coordinator) GetStatus() TypecheckingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Coordinator) statusLocked() TypecheckingStatus {
	return deriveStatus(
		Epoch(c.committed.Load()),
		Epoch(c.processing.Load()),
		Epoch(c.invalidator.Load()),
	)
}
