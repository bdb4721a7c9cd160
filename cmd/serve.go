package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/guregu/null.v3"

	"github.com/sift-lang/sift/api"
	"github.com/sift-lang/sift/checker"
	"github.com/sift-lang/sift/core"
	"github.com/sift-lang/sift/core/preprocess"
	"github.com/sift-lang/sift/lib/types"
	"github.com/sift-lang/sift/stats"
	"github.com/sift-lang/sift/stats/statsd"
)

func getServeCmd(ctx context.Context) *cobra.Command {
	var sourceRoot string
	var pollInterval types.NullDuration

	// serveCmd represents the serve command.
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server",
		Long: `Run the language server.

Edits are picked up from the filesystem; incremental edits take the fast
path, structural ones trigger a cancelable whole-program slow path. The REST
API (see the global --address flag) exposes the typechecking status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			logger := logrus.StandardLogger()

			cliConf := Config{
				SourceRoot:   null.NewString(sourceRoot, cmd.Flags().Changed("source-root")),
				PollInterval: pollInterval,
			}
			conf, err := getConsolidatedConfig(fs, cliConf)
			if err != nil {
				return err
			}
			root := conf.SourceRoot.String

			registry := stats.NewRegistry()
			var collector stats.Collector
			if conf.StatsDOut.Bool {
				c := statsd.New(logger, conf.Collectors.StatsD)
				if err := c.Init(); err != nil {
					return err
				}
				go c.Run(ctx)
				collector = c
			}

			engine := core.NewEngine(logger, registry, collector)
			pre := preprocess.New(engine, fs, logger)
			if err := pre.Scan(root); err != nil {
				return err
			}
			chk := checker.New(fs, logger)

			// Initial compile: everything, non-cancelable.
			paths := pre.Paths()
			logger.WithField("files", len(paths)).Info("initial compile")
			engine.RunNonCancelable(func() {
				chk.Check(paths, nil)
			})

			events := preprocess.Watch(ctx, fs, root, conf.PollInterval.TimeDuration(), logger)
			jobs := make(chan preprocess.Job, 64)
			go pre.Run(ctx, events, jobs)

			go func() {
				if err := api.ListenAndServe(address, logger, engine, pre); err != nil {
					logger.WithError(err).Error("api server failed")
				}
			}()

			logger.WithField("root", root).Info("watching for changes")
			engine.Serve(ctx, jobs, func(paths []string, tok core.CancelToken) {
				chk.Check(paths, tok.Canceled)
			})
			return nil
		},
	}
	serveCmd.Flags().StringVar(&sourceRoot, "source-root", ".", "directory tree to typecheck")
	serveCmd.Flags().Var(&pollInterval, "poll-interval", "how often to poll the source tree for changes")
	return serveCmd
}
