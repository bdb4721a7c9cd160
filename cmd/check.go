package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sift-lang/sift/cfg"
	"github.com/sift-lang/sift/checker"
	"github.com/sift-lang/sift/core"
	"github.com/sift-lang/sift/stats"
)

// errTypecheckFailed signals diagnostics were reported; the details have
// already been printed.
var errTypecheckFailed = errors.New("typechecking failed")

func getCheckCmd() *cobra.Command {
	var dumpCFGPath string

	// checkCmd represents the check command.
	checkCmd := &cobra.Command{
		Use:   "check <paths...>",
		Short: "Typecheck a set of files once and exit",
		Long: `Typecheck a set of files once and exit.

This is the non-interactive mode: the whole run is a single non-cancelable
typecheck, the way the language-server mode runs its initial compile.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			logger := logrus.StandardLogger()

			engine := core.NewEngine(logger, stats.NewRegistry(), nil)
			chk := checker.New(fs, logger)

			var results []checker.Result
			engine.RunNonCancelable(func() {
				results = chk.Check(args, nil)
			})

			if dumpCFGPath != "" {
				if err := dumpGraphs(fs, dumpCFGPath, results); err != nil {
					return err
				}
			}
			return printSummary(results)
		},
	}
	checkCmd.Flags().StringVar(&dumpCFGPath, "dump-cfg", "", "write the serialized control-flow graphs to a file")
	return checkCmd
}

func dumpGraphs(fs afero.Fs, path string, results []checker.Result) error {
	out, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("couldn't create cfg dump file: %w", err)
	}
	defer func() { _ = out.Close() }()
	for _, res := range results {
		for _, g := range res.Graphs {
			if err := cfg.Serialize(out, g); err != nil {
				return fmt.Errorf("couldn't serialize cfg for %s: %w", g.Symbol, err)
			}
		}
	}
	return nil
}

func printSummary(results []checker.Result) error {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	var files, graphs, problems int
	for _, res := range results {
		files++
		graphs += len(res.Graphs)
		for _, d := range res.Diagnostics {
			problems++
			_, _ = red.Fprintln(stdout, d.String())
		}
	}

	if problems > 0 {
		_, _ = red.Fprintf(stdout, "%d problem(s) in %d file(s)\n", problems, files)
		return errTypecheckFailed
	}
	_, _ = green.Fprintf(stdout, "checked %d file(s), %d method(s), no problems\n", files, graphs)
	return nil
}
