package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"schemaextract/internal/config"
	"schemaextract/internal/logging"
)

// app carries state shared by the subcommands once the root has run.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	workers   int
	logLevel  string
	logPretty bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "schemaextract",
		Short: "Extract an FTL module schema from Python sources",
		Long: `schemaextract scans a Python FTL module for @verb entry points and the
records they reference, and writes the module schema in protobuf form.

Examples:
  schemaextract extract ./echo
  schemaextract inspect ./echo/.ftl/schema.pb --json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Workers = a.workers
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = a.logLevel
			}
			if flags.Changed("log-pretty") {
				cfg.LogPretty = a.logPretty
			}
			a.cfg = cfg
			a.log = logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Out: cmd.ErrOrStderr()})
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.IntVarP(&a.workers, "workers", "j", 0, "files analysed concurrently (0 = GOMAXPROCS)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.BoolVar(&a.logPretty, "log-pretty", false, "human-readable log output")

	root.AddCommand(newExtractCmd(a), newInspectCmd(a))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
