package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/fluxpack/cli/analysis"
	"github.com/fluxbase-eu/fluxpack/cli/output"
	"github.com/fluxbase-eu/fluxpack/internal/bundler"
	"github.com/fluxbase-eu/fluxpack/internal/config"
)

var (
	buildDir         string
	buildFile        string
	buildFormat      string
	buildMinify      bool
	buildConcurrency int
	buildMetafile    string
	buildAnalyze     bool
	buildVerbose     bool
)

var buildCmd = &cobra.Command{
	Use:   "build [entry]",
	Short: "Bundle an entry module into a single file",
	Long: `Follow the relative imports of the entry module and write one bundle.

The entry defaults to the 'entry' setting of the configuration. Nothing is
written when any module cannot be read, parsed or transformed.

Examples:
  fluxpack build
  fluxpack build ./src/index.js -d ./public -f app.js
  fluxpack build ./src/index.js --format cjs --minify
  fluxpack build ./src/index.js --metafile ./dist/meta.json --analyze`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: requireConfig,
	RunE:    runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildDir, "dir", "d", "", "Output directory (default from config)")
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", "", "Output filename (default from config)")
	buildCmd.Flags().StringVar(&buildFormat, "format", "", "Bundle format: iife, cjs")
	buildCmd.Flags().BoolVar(&buildMinify, "minify", false, "Minify the bundle")
	buildCmd.Flags().IntVarP(&buildConcurrency, "concurrency", "j", 0, "Modules extracted in parallel")
	buildCmd.Flags().StringVar(&buildMetafile, "metafile", "", "Write a build metafile to this path")
	buildCmd.Flags().BoolVar(&buildAnalyze, "analyze", false, "Print a size breakdown of the bundle")
	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "List every module in the analysis")
}

// BuildSummary is the machine readable result of a build
type BuildSummary struct {
	BuildID    string `json:"build_id" yaml:"build_id"`
	Entry      string `json:"entry" yaml:"entry"`
	Output     string `json:"output" yaml:"output"`
	Format     string `json:"format" yaml:"format"`
	Modules    int    `json:"modules" yaml:"modules"`
	Bytes      int    `json:"bytes" yaml:"bytes"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
	Metafile   string `json:"metafile,omitempty" yaml:"metafile,omitempty"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := buildConfig(cmd, GetConfig())

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

	result, err := b.BuildBundle(ctx, entry, bundler.Destination{Directory: buildDir, Filename: buildFile})
	if err != nil {
		return failCommand(cmd, err)
	}

	summary := BuildSummary{
		BuildID:    result.BuildID,
		Entry:      result.Entry.String(),
		Output:     result.Object.Location,
		Format:     result.Format,
		Modules:    result.Graph.Len(),
		Bytes:      len(result.Code),
		DurationMs: result.Duration.Milliseconds(),
	}

	meta := analysis.BuildMetafile(result)
	report := analysis.Analyze(meta, summary.Output)
	if buildMetafile != "" {
		if err := analysis.WriteMetafile(afero.NewOsFs(), buildMetafile, meta); err != nil {
			return failCommand(cmd, err)
		}
		summary.Metafile = buildMetafile
	}

	formatter := GetFormatter()
	for _, warning := range report.Warnings {
		formatter.PrintWarning(warning)
	}
	if formatter.Format != output.FormatTable {
		return formatter.Print(summary)
	}

	formatter.PrintSuccess(fmt.Sprintf("Bundled %d modules into %s (%d bytes) in %s",
		summary.Modules, summary.Output, summary.Bytes, result.Duration.Round(time.Millisecond)))
	if summary.Metafile != "" {
		formatter.PrintInfo(fmt.Sprintf("Metafile written to %s", summary.Metafile))
	}
	if buildAnalyze && !quiet {
		analysis.DisplayAnalysis(formatter.Writer, report, buildVerbose)
	}

	return nil
}

// buildConfig applies the flags the user set on top of the loaded configuration
func buildConfig(cmd *cobra.Command, loaded *config.Config) *config.Config {
	cfg := *loaded
	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Output.Format = buildFormat
	}
	if flags.Changed("minify") {
		cfg.Output.Minify = buildMinify
	}
	if flags.Changed("concurrency") {
		cfg.Build.Concurrency = buildConcurrency
	}
	return &cfg
}

// bundleContext returns a context cancelled on interrupt
func bundleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
