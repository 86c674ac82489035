// Package asset extracts one module's metadata and rewritten body.
package asset

import (
	"context"
	"errors"

	"github.com/spf13/afero"

	"github.com/fluxbase-eu/fluxpack/internal/builderr"
	"github.com/fluxbase-eu/fluxpack/internal/parser"
	"github.com/fluxbase-eu/fluxpack/internal/resolver"
	"github.com/fluxbase-eu/fluxpack/internal/transform"
)

// Dependency is one import site paired with the file it resolves to
type Dependency struct {
	Specifier string                `json:"specifier" yaml:"specifier"`
	Path      resolver.AbsolutePath `json:"path" yaml:"path"`
	Line      int                   `json:"line,omitempty" yaml:"line,omitempty"`
	Column    int                   `json:"column,omitempty" yaml:"column,omitempty"`
}

// Asset is one discovered module
type Asset struct {
	ID            int                   `json:"id" yaml:"id"`
	Path          resolver.AbsolutePath `json:"path" yaml:"path"`
	RawSource     string                `json:"-" yaml:"-"`
	Dependencies  []Dependency          `json:"dependencies" yaml:"dependencies"`
	Body          string                `json:"-" yaml:"-"`
	SpecifierToID map[string]int        `json:"mapping" yaml:"mapping"`
}

// Size returns the byte length of the original source
func (a *Asset) Size() int {
	return len(a.RawSource)
}

// Extractor reads, parses, resolves and transforms single files
type Extractor struct {
	fs          afero.Fs
	parser      parser.Parser
	transformer transform.Transformer
}

// NewExtractor creates an extractor reading from fs
func NewExtractor(fs afero.Fs, p parser.Parser, t transform.Transformer) *Extractor {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Extractor{fs: fs, parser: p, transformer: t}
}

// Extract builds the Asset for path. The returned asset has no id and an
// empty mapping; both belong to the graph builder.
func (e *Extractor) Extract(ctx context.Context, path resolver.AbsolutePath) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := afero.ReadFile(e.fs, path.OS())
	if err != nil {
		return nil, builderr.UnreadableFile(path.String(), err)
	}

	module, err := e.parser.Parse(path.String(), src)
	if err != nil {
		return nil, err
	}

	var deps []Dependency
	for site := range module.Imports() {
		target, err := resolver.Resolve(path, site.Specifier)
		if err != nil {
			var be *builderr.Error
			if errors.As(err, &be) {
				be.Line, be.Column = site.Line, site.Column
			}
			return nil, err
		}
		deps = append(deps, Dependency{
			Specifier: site.Specifier,
			Path:      target,
			Line:      site.Line,
			Column:    site.Column,
		})
	}

	body, err := e.transformer.Transform(ctx, module)
	if err != nil {
		return nil, err
	}

	return &Asset{
		Path:          path,
		RawSource:     string(src),
		Dependencies:  deps,
		Body:          body,
		SpecifierToID: make(map[string]int, len(deps)),
	}, nil
}
