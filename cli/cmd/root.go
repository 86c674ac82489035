// Package cmd provides the Cobra commands for the fluxpack CLI.
package cmd

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxbase-eu/fluxpack/cli/output"
	"github.com/fluxbase-eu/fluxpack/internal/config"
	"github.com/fluxbase-eu/fluxpack/internal/observability"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile   string
	outputFmt string
	noHeaders bool
	quiet     bool
	debug     bool

	// Shared across commands
	appConfig *config.Config
	formatter *output.Formatter
	tracer    *observability.Tracer

	// commandSpan covers one command run when tracing is enabled
	commandSpan trace.Span
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fluxpack",
	Short: "fluxpack - Bundle JavaScript modules into a single file",
	Long: `fluxpack follows the relative imports of an entry module and writes one
self-contained JavaScript file that runs without a module system.

Features:
  - Build: Bundle an entry module into an iife or cjs file
  - Graph: Inspect the discovered module graph
  - Run: Bundle in memory and execute with the embedded runtime

Get started:
  fluxpack build ./src/index.js   Bundle into ./dist/main.js
  fluxpack --help                 Show available commands`,
	SilenceUsage: true,
	// main prints the returned error once
	SilenceErrors: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnFinalize(shutdownTracer)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./fluxpack.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(runCmd)
}

// requireConfig loads the build configuration and sets up logging, tracing
// and the formatter. Used as PreRunE by commands that build.
func requireConfig(cmd *cobra.Command, args []string) error {
	observability.SetupLogger(os.Stderr, debug)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Debug && !debug {
		debug = true
		observability.SetupLogger(os.Stderr, true)
	}
	appConfig = cfg

	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return err
	}
	formatter = output.NewFormatter(format, noHeaders, quiet)
	formatter.Writer = cmd.OutOrStdout()
	formatter.ErrWriter = cmd.ErrOrStderr()

	tracer, err = observability.NewTracer(cmd.Context(), cfg.Tracing, Version)
	if err != nil {
		// Tracing never blocks a build
		log.Warn().Err(err).Msg("Failed to initialize tracing")
		return nil
	}
	if tracer.IsEnabled() {
		ctx, span := tracer.StartSpan(cmdContext(cmd), "fluxpack "+cmd.Name(),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.String("fluxpack.version", Version)),
		)
		commandSpan = span
		cmd.SetContext(ctx)
	}

	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// failCommand records err on the command span and returns it
func failCommand(cmd *cobra.Command, err error) error {
	observability.RecordError(cmdContext(cmd), err)
	return err
}

func shutdownTracer() {
	if commandSpan != nil {
		commandSpan.End()
		commandSpan = nil
	}
	if tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush traces")
	}
	tracer = nil
}

// GetFormatter returns the output formatter (for use by subcommands)
func GetFormatter() *output.Formatter {
	if formatter == nil {
		format, _ := output.ParseFormat(outputFmt)
		formatter = output.NewFormatter(format, noHeaders, quiet)
	}
	return formatter
}

// GetConfig returns the loaded build configuration
func GetConfig() *config.Config {
	return appConfig
}

// IsDebug returns true if debug mode is enabled
func IsDebug() bool {
	return debug
}
