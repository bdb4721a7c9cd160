package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sift-lang/sift/core"
	"github.com/sift-lang/sift/core/preprocess"
	"github.com/sift-lang/sift/lib/testutils"
	"github.com/sift-lang/sift/stats"
)

type apiFixture struct {
	engine  *core.Engine
	pre     *preprocess.Preprocessor
	handler http.Handler
	events  chan preprocess.FileEvent
	jobs    chan preprocess.Job
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := testutils.NewLogger(t)
	engine := core.NewEngine(logger, stats.NewRegistry(), nil)
	pre := preprocess.New(engine, afero.NewMemMapFs(), logger)

	f := &apiFixture{
		engine:  engine,
		pre:     pre,
		handler: NewHandler(logger, engine, pre),
		events:  make(chan preprocess.FileEvent),
		jobs:    make(chan preprocess.Job, 16),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go pre.Run(ctx, f.events, f.jobs)
	return f
}

func (f *apiFixture) request(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rw := httptest.NewRecorder()
	f.handler.ServeHTTP(rw, httptest.NewRequest(method, path, nil))
	return rw
}

func TestGetStatusIdle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rw := f.request(t, http.MethodGet, "/v1/status")
	require.Equal(t, http.StatusOK, rw.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &status))
	assert.False(t, status.SlowPathRunning)
	assert.False(t, status.SlowPathCanceled)
	assert.Equal(t, int64(0), status.CommittedEpoch.Int64)
	assert.Equal(t, int64(0), status.ProcessingEpoch.Int64)
}

func TestGetStatusMethodNotAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rw := f.request(t, http.MethodPost, "/v1/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
}

func TestPostCancelWhileIdle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rw := f.request(t, http.MethodPost, "/v1/cancel")
	require.Equal(t, http.StatusConflict, rw.Code)

	var res CancelResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &res))
	assert.False(t, res.Canceled)
}

func TestPostCancelDuringSlowPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	entered := make(chan struct{})
	done := make(chan bool, 1)
	to := f.engine.NextEpoch()
	go func() {
		done <- f.engine.RunSlowPath(to, func(tok core.CancelToken) {
			close(entered)
			for !tok.Canceled() {
				time.Sleep(time.Millisecond)
			}
		})
	}()
	<-entered

	rw := f.request(t, http.MethodPost, "/v1/cancel")
	require.Equal(t, http.StatusOK, rw.Code)

	var res CancelResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &res))
	assert.True(t, res.Canceled)
	assert.NotEqual(t, int64(to), res.Epoch.Int64)

	committed := <-done
	assert.False(t, committed)
}

func TestStatusReflectsRunningSlowPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan bool, 1)
	to := f.engine.NextEpoch()
	go func() {
		done <- f.engine.RunSlowPath(to, func(core.CancelToken) {
			close(entered)
			<-release
		})
	}()
	<-entered

	rw := f.request(t, http.MethodGet, "/v1/status")
	require.Equal(t, http.StatusOK, rw.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &status))
	assert.True(t, status.SlowPathRunning)
	assert.Equal(t, int64(to), status.ProcessingEpoch.Int64)

	close(release)
	assert.True(t, <-done)
}
