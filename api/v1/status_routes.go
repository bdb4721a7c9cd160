package v1

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sift-lang/sift/core"
	"github.com/sift-lang/sift/core/preprocess"
)

func handleGetStatus(rw http.ResponseWriter, engine *core.Engine) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(rw).Encode(NewStatus(engine))
}

func handlePostCancel(rw http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, pre *preprocess.Preprocessor) {
	res, err := pre.RequestCancel(r.Context())
	if err != nil {
		logger.WithError(err).Warn("cancel request dropped")
		apiError(rw, "cancel request dropped", http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	if !res.Canceled {
		// Nothing was running; report it without pretending a slow path died.
		rw.WriteHeader(http.StatusConflict)
	}
	_ = json.NewEncoder(rw).Encode(CancelResponse{
		Epoch:    intFrom(res.Epoch),
		Canceled: res.Canceled,
	})
}
