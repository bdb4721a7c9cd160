package epoch

// Epoch identifies a single slow- or fast-path typechecking attempt. Epochs
// are allocated monotonically by the caller but stored as wrapping counters,
// so they are only ever compared for equality; ordering two epochs
// numerically is meaningless once the counter has wrapped.
type Epoch uint32

// TypecheckingStatus is a consistent snapshot of the coordinator's counters,
// taken under its mutex.
type TypecheckingStatus struct {
	// SlowPathRunning is true while a slow path is in flight, i.e. between a
	// StartCommitEpoch call and the commit or rollback of the matching
	// TryCommitEpoch.
	SlowPathRunning bool
	// SlowPathCanceled is true if the in-flight slow path has been
	// requested-canceled. Always false when no slow path is running.
	SlowPathCanceled bool
	// CommittedEpoch is the epoch of the most recently committed typecheck.
	CommittedEpoch Epoch
	// ProcessingEpoch is the epoch the current slow path is attempting, equal
	// to CommittedEpoch when no slow path is running.
	ProcessingEpoch Epoch
}

// deriveStatus computes the status record from a consistent snapshot of the
// three counters. It is the single source of truth for how the counters are
// interpreted; see the package doc for the encoding.
func deriveStatus(committed, processing, invalidator Epoch) TypecheckingStatus {
	return TypecheckingStatus{
		SlowPathRunning:  processing != committed,
		SlowPathCanceled: processing != invalidator,
		CommittedEpoch:   committed,
		ProcessingEpoch:  processing,
	}
}
