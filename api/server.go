// Package api exposes the language server's control surface over HTTP.
package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	v1 "github.com/sift-lang/sift/api/v1"
	"github.com/sift-lang/sift/core"
	"github.com/sift-lang/sift/core/preprocess"
)

// NewHandler returns the root API handler with request logging.
func NewHandler(logger logrus.FieldLogger, engine *core.Engine, pre *preprocess.Preprocessor) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/", v1.NewHandler(logger, engine, pre))
	mux.HandleFunc("/ping", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	})
	return withLoggingHandler(logger, mux)
}

// ListenAndServe starts the API server; it blocks like http.ListenAndServe.
func ListenAndServe(addr string, logger logrus.FieldLogger, engine *core.Engine, pre *preprocess.Preprocessor) error {
	logger.WithField("addr", addr).Info("api server listening")
	return http.ListenAndServe(addr, NewHandler(logger, engine, pre)) //nolint:gosec
}

func withLoggingHandler(logger logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("api request")
		next.ServeHTTP(rw, r)
	})
}
