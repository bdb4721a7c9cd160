package v1

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sift-lang/sift/core"
	"github.com/sift-lang/sift/core/preprocess"
)

// NewHandler returns the v1 API handler.
func NewHandler(logger logrus.FieldLogger, engine *core.Engine, pre *preprocess.Preprocessor) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handleGetStatus(rw, engine)
	})

	mux.HandleFunc("/v1/cancel", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handlePostCancel(rw, r, logger, pre)
	})

	return mux
}
