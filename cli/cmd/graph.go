package cmd

import (
	"fmt"
	"maps"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/fluxpack/cli/output"
	"github.com/fluxbase-eu/fluxpack/internal/bundler"
	"github.com/fluxbase-eu/fluxpack/internal/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [entry]",
	Short: "Show the module graph of an entry",
	Long: `Discover every module reachable from the entry and list it with its id,
size and resolved dependencies. Ids are the ones the bundle uses.

Examples:
  fluxpack graph
  fluxpack graph ./src/index.js
  fluxpack graph ./src/index.js -o json
  fluxpack graph --paths`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: requireConfig,
	RunE:    runGraph,
}

var graphPaths bool

func init() {
	graphCmd.Flags().BoolVar(&graphPaths, "paths", false, "list only module paths, in id order")
}

// GraphModule is one module as listed by the graph command
type GraphModule struct {
	ID           int            `json:"id" yaml:"id"`
	Path         string         `json:"path" yaml:"path"`
	Size         int            `json:"size" yaml:"size"`
	Dependencies map[string]int `json:"dependencies" yaml:"dependencies"`
}

func runGraph(cmd *cobra.Command, args []string) error {
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

	modules := graphModules(result.Graph)

	formatter := GetFormatter()
	if graphPaths {
		paths := make([]string, len(modules))
		for i, m := range modules {
			paths[i] = m.Path
		}
		formatter.PrintList(paths)
		return nil
	}
	if formatter.Format != output.FormatTable {
		return formatter.Print(modules)
	}

	data := output.TableData{
		Headers: []string{"ID", "PATH", "SIZE", "DEPENDENCIES"},
		Rows:    make([][]string, 0, len(modules)),
	}
	for _, m := range modules {
		data.Rows = append(data.Rows, []string{
			fmt.Sprintf("%d", m.ID),
			m.Path,
			fmt.Sprintf("%d", m.Size),
			formatDependencies(result.Graph, m.ID),
		})
	}
	formatter.PrintTable(data)
	return nil
}

// graphModules lists the graph in id order with paths relative to the entry
func graphModules(g *graph.Graph) []GraphModule {
	entry := g.Entry()
	if entry == nil {
		return nil
	}
	base := entry.Path.Dir()

	modules := make([]GraphModule, 0, g.Len())
	for _, a := range g.Assets() {
		modules = append(modules, GraphModule{
			ID:           a.ID,
			Path:         a.Path.Rel(base),
			Size:         a.Size(),
			Dependencies: maps.Clone(a.SpecifierToID),
		})
	}
	return modules
}

// formatDependencies renders the dependencies of one module in source order
func formatDependencies(g *graph.Graph, id int) string {
	a, ok := g.Asset(id)
	if !ok || len(a.Dependencies) == 0 {
		return "-"
	}

	seen := make(map[string]bool, len(a.Dependencies))
	parts := make([]string, 0, len(a.Dependencies))
	for _, dep := range a.Dependencies {
		if seen[dep.Specifier] {
			continue
		}
		seen[dep.Specifier] = true
		parts = append(parts, fmt.Sprintf("%s->%d", dep.Specifier, a.SpecifierToID[dep.Specifier]))
	}
	return strings.Join(parts, ", ")
}
