// Package v1 implements the v1 of sift's REST API.
package v1

import (
	"gopkg.in/guregu/null.v3"

	"github.com/sift-lang/sift/core"
)

// Status is the wire rendering of the coordinator's status snapshot.
type Status struct {
	SlowPathRunning  bool     `json:"slowPathRunning"`
	SlowPathCanceled bool     `json:"slowPathCanceled"`
	CommittedEpoch   null.Int `json:"committedEpoch"`
	ProcessingEpoch  null.Int `json:"processingEpoch"`
}

// NewStatus snapshots engine's coordinator.
func NewStatus(engine *core.Engine) Status {
	status := engine.Status()
	return Status{
		SlowPathRunning:  status.SlowPathRunning,
		SlowPathCanceled: status.SlowPathCanceled,
		CommittedEpoch:   null.IntFrom(int64(status.CommittedEpoch)),
		ProcessingEpoch:  null.IntFrom(int64(status.ProcessingEpoch)),
	}
}

// CancelResponse is the reply to POST /v1/cancel.
type CancelResponse struct {
	Epoch    null.Int `json:"epoch"`
	Canceled bool     `json:"canceled"`
}
