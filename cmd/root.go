// Package cmd implements the command-line interface of sift.
package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sift-lang/sift/lib/consts"
)

var (
	verbose        bool
	quiet          bool
	noColor        bool
	logFmt         string
	address        string
	configFilePath string

	stderrTTY = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	stdout io.Writer = colorable.NewColorableStdout()
	stderr io.Writer = colorable.NewColorableStderr()
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:           "sift",
	Short:         "a typechecker for a dynamic language that keeps up with your edits",
	Long:          consts.Banner(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLoggers()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	RootCmd.AddCommand(
		getCheckCmd(),
		getServeCmd(ctx),
		getStatusCmd(ctx),
		getVersionCmd(),
	)

	if err := RootCmd.Execute(); err != nil {
		logrus.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "disable progress output")
	RootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	RootCmd.PersistentFlags().StringVar(&logFmt, "log-format", "", `log output format ("text" or "json")`)
	RootCmd.PersistentFlags().StringVarP(&address, "address", "a", "localhost:6585", "address for the api server")
	RootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "JSON config file")
}

func setupLoggers() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || os.Getenv("SIFT_NO_COLOR") != "" {
		noColor = true
	}
	if noColor {
		color.NoColor = true
	}

	logrus.SetOutput(stderr)
	switch {
	case verbose:
		logrus.SetLevel(logrus.DebugLevel)
	case quiet:
		logrus.SetLevel(logrus.WarnLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
	switch logFmt {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   stderrTTY && !noColor,
			DisableColors: !stderrTTY || noColor,
		})
	}
}
