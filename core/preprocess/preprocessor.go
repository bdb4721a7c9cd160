// Package preprocess turns raw file-change events into typecheck jobs. It
// runs on its own goroutine, the coordinator's pinned preprocess thread,
// and is the only component that cancels slow paths.
package preprocess

import (
	"bufio"
	"bytes"
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sift-lang/sift/lib/epoch"
)

// FileEvent is one edit: the new contents of a single file.
type FileEvent struct {
	Path     string
	Contents []byte
}

// Job is a unit of typechecking work for the typecheck thread. Epoch comes
// from the shared allocator, so a slow-path job's epoch is the same value a
// concurrent cancellation was issued with.
type Job struct {
	FastPath bool
	Epoch    epoch.Epoch
	Paths    []string
}

// Engine is the slice of core.Engine the preprocessor needs: the epoch
// allocator and the preprocess-side cancellation entry point.
type Engine interface {
	NextEpoch() epoch.Epoch
	CancelSlowPath(newEpoch epoch.Epoch) bool
}

type fileHashes struct {
	full      uint64
	structure uint64
}

// CancelResult is the reply to an explicit cancellation request.
type CancelResult struct {
	Epoch    epoch.Epoch
	Canceled bool
}

// Preprocessor classifies edits as fast- or slow-path work and cancels an
// in-flight slow path whenever a new edit makes its result stale. It is also
// the funnel for explicit cancellation requests (e.g. from the REST API):
// the coordinator pins the cancel operation to a single goroutine, so every
// cancellation must be marshalled onto the preprocess loop.
type Preprocessor struct {
	engine   Engine
	fs       afero.Fs
	logger   logrus.FieldLogger
	hashes   map[string]fileHashes
	cancelCh chan chan CancelResult
}

// New returns a Preprocessor reading baseline contents from fs.
func New(engine Engine, fs afero.Fs, logger logrus.FieldLogger) *Preprocessor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Preprocessor{
		engine:   engine,
		fs:       fs,
		logger:   logger.WithField("component", "preprocess"),
		hashes:   make(map[string]fileHashes),
		cancelCh: make(chan chan CancelResult),
	}
}

// RequestCancel asks the preprocess loop to cancel the in-flight slow path
// and reports the epoch the cancellation was issued with. Safe to call from
// any goroutine; blocks until the loop picks the request up or ctx is done.
func (p *Preprocessor) RequestCancel(ctx context.Context) (CancelResult, error) {
	reply := make(chan CancelResult, 1)
	select {
	case p.cancelCh <- reply:
	case <-ctx.Done():
		return CancelResult{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return CancelResult{}, ctx.Err()
	}
}

// Scan walks root and records baseline hashes for every source file, so the
// first edit of a session is classified against the on-disk state rather
// than treated as brand new.
func (p *Preprocessor) Scan(root string) error {
	return afero.Walk(p.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".rb" {
			return nil
		}
		contents, err := afero.ReadFile(p.fs, path)
		if err != nil {
			return err
		}
		p.hashes[path] = hashContents(contents)
		return nil
	})
}

// Paths returns the files recorded by Scan, sorted for deterministic
// iteration. Used for the initial compile; call it before Run starts, the
// hash table is not locked.
func (p *Preprocessor) Paths() []string {
	paths := make([]string, 0, len(p.hashes))
	for path := range p.hashes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Run consumes events until ctx is done or events is closed, emitting jobs.
// It must be the only goroutine calling CancelSlowPath; the coordinator pins
// the preprocess role to it on first use.
func (p *Preprocessor) Run(ctx context.Context, events <-chan FileEvent, jobs chan<- Job) {
	defer close(jobs)
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-p.cancelCh:
			e := p.engine.NextEpoch()
			reply <- CancelResult{Epoch: e, Canceled: p.engine.CancelSlowPath(e)}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if job, ok := p.process(ev); ok {
				select {
				case jobs <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// process classifies a single edit. It returns no job when the edit is a
// no-op (contents unchanged).
func (p *Preprocessor) process(ev FileEvent) (Job, bool) {
	next := hashContents(ev.Contents)
	prev, known := p.hashes[ev.Path]
	if known && prev.full == next.full {
		return Job{}, false
	}
	p.hashes[ev.Path] = next

	// An edit that leaves the file's structure (definitions, constants,
	// inheritance) intact only needs the fast path; anything else demands a
	// whole-program slow path.
	fastPath := known && prev.structure == next.structure

	e := p.engine.NextEpoch()
	if canceled := p.engine.CancelSlowPath(e); canceled {
		p.logger.WithFields(logrus.Fields{
			"path": ev.Path, "epoch": e,
		}).Debug("edit arrived mid slow path, canceled it")
	}
	return Job{FastPath: fastPath, Epoch: e, Paths: []string{ev.Path}}, true
}

// hashContents computes the full-content hash and the structural hash of one
// file. The structural hash only covers lines that can change the program's
// shape; everything else is method-body detail the fast path can absorb.
func hashContents(contents []byte) fileHashes {
	full := fnv.New64a()
	_, _ = full.Write(contents)

	structure := fnv.New64a()
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if isStructural(line) {
			_, _ = structure.Write([]byte(line))
			_, _ = structure.Write([]byte{'\n'})
		}
	}
	return fileHashes{full: full.Sum64(), structure: structure.Sum64()}
}

var structuralPrefixes = []string{
	"def ", "class ", "module ", "include ", "extend ", "attr_", "alias ",
}

func isStructural(line string) bool {
	if line == "end" {
		return true
	}
	for _, prefix := range structuralPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
