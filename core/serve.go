package core

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sift-lang/sift/core/preprocess"
)

// CheckFunc performs the actual typechecking of a set of files. Slow-path
// invocations are expected to poll tok.Canceled() between units of work and
// may return early once it reports true; everything else about the check is
// the caller's business.
type CheckFunc func(paths []string, tok CancelToken)

// Serve is the typecheck thread's main loop in language-server mode: it
// consumes jobs from the preprocessor and runs them until ctx is done or the
// jobs channel closes.
//
// A canceled slow path leaves its paths pending; they are folded into the
// next job, which is escalated to a slow path regardless of its own
// classification, so discarded work is always retried.
func (e *Engine) Serve(ctx context.Context, jobs <-chan preprocess.Job, check CheckFunc) {
	var pending []string
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if job.FastPath && len(pending) == 0 {
				e.logger.WithFields(logrus.Fields{"epoch": job.Epoch, "paths": job.Paths}).Debug("running fast path")
				e.RunFastPath(job.Epoch, func() {
					check(job.Paths, CancelToken{c: e.Coordinator})
				})
				continue
			}

			paths := union(pending, job.Paths)
			e.logger.WithFields(logrus.Fields{"epoch": job.Epoch, "paths": paths}).Debug("running slow path")
			if e.RunSlowPath(job.Epoch, func(tok CancelToken) {
				check(paths, tok)
			}) {
				pending = nil
			} else {
				pending = paths
			}
		}
	}
}

// union merges two path lists, preserving order and dropping duplicates.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, paths := range [][]string{a, b} {
		for _, p := range paths {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
