package preprocess

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Watch polls root on the given interval and emits a FileEvent for every
// source file whose modification time changed. The first walk only records
// the baseline; nothing is emitted for files that existed at startup.
//
// Polling is deliberate: edits normally arrive over the editor protocol, and
// the filesystem watch only backstops out-of-band changes (branch switches,
// code generators), where a little latency is fine.
func Watch(ctx context.Context, fs afero.Fs, root string, interval time.Duration, logger logrus.FieldLogger) <-chan FileEvent {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "watch")
	events := make(chan FileEvent)

	go func() {
		defer close(events)

		modTimes := make(map[string]time.Time)
		scan := func(emit bool) {
			err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() || filepath.Ext(path) != ".rb" {
					return nil
				}
				mod := info.ModTime()
				prev, seen := modTimes[path]
				modTimes[path] = mod
				if !emit || (seen && prev.Equal(mod)) {
					return nil
				}
				contents, err := afero.ReadFile(fs, path)
				if err != nil {
					log.WithError(err).WithField("path", path).Warn("couldn't read changed file")
					return nil
				}
				select {
				case events <- FileEvent{Path: path, Contents: contents}:
				case <-ctx.Done():
				}
				return nil
			})
			if err != nil {
				log.WithError(err).Warn("filesystem walk failed")
			}
		}

		scan(false)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				scan(true)
			}
		}
	}()

	return events
}
