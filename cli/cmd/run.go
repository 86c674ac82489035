package cmd

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/fluxpack/cli/output"
	"github.com/fluxbase-eu/fluxpack/internal/bundler"
	"github.com/fluxbase-eu/fluxpack/internal/runtime"
)

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run [entry]",
	Short: "Bundle an entry in memory and execute it",
	Long: `Bundle the entry without writing a file and execute the bundle with the
embedded JavaScript runtime. console output goes to stdout and stderr.

Examples:
  fluxpack run ./src/index.js
  fluxpack run ./src/index.js --timeout 5s`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: requireConfig,
	RunE:    runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", runtime.DefaultTimeout, "Maximum execution time")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	entry := cfg.Entry
	if len(args) > 0 {
		entry = args[0]
	}

	b, err := bundler.New(cfg, bundler.WithLogger(log.Logger))
	if err != nil {
		return failCommand(cmd, err)
	}

	ctx, stop := bundleContext(cmd.Context())
	defer stop()

	result, err := b.Bundle(ctx, entry)
	if err != nil {
		return failCommand(cmd, err)
	}

	executor := runtime.NewExecutor(
		runtime.WithOutput(cmd.OutOrStdout()),
		runtime.WithErrorOutput(cmd.ErrOrStderr()),
		runtime.WithTimeout(runTimeout),
	)
	execution, err := executor.Execute(ctx, result.Entry.Base(), result.Code)
	if err != nil {
		return failCommand(cmd, err)
	}

	log.Debug().
		Str("build_id", result.BuildID).
		Int64("duration_ms", execution.DurationMs).
		Msg("Bundle executed")

	if formatter := GetFormatter(); formatter.Format != output.FormatTable {
		return formatter.Print(execution)
	}
	return nil
}
