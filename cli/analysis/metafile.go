// Package analysis describes what went into a bundle and how large each part is.
package analysis

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/fluxbase-eu/fluxpack/internal/bundler"
)

// Metafile mirrors the esbuild metafile JSON structure, so existing bundle
// visualizers can read it.
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput represents an input file in the metafile
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"` // "cjs" or "esm"
}

// MetafileImport represents an import in the metafile
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// MetafileOutput represents an output file in the metafile
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	Exports    []string                `json:"exports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
}

// InputContrib represents the contribution of an input to an output
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// BuildMetafile describes result. Input paths are relative to the entry's
// directory; the contribution of each input is the size of its rewritten body.
func BuildMetafile(result *bundler.Result) *Metafile {
	meta := &Metafile{
		Inputs:  map[string]MetafileInput{},
		Outputs: map[string]MetafileOutput{},
	}
	if result == nil || result.Graph == nil || result.Graph.Len() == 0 {
		return meta
	}

	base := result.Entry.Dir()
	output := MetafileOutput{
		Bytes:   len(result.Code),
		Inputs:  map[string]InputContrib{},
		Imports: []MetafileImport{},
		Exports: []string{},
	}

	for _, a := range result.Graph.Assets() {
		rel := a.Path.Rel(base)
		imports := make([]MetafileImport, 0, len(a.Dependencies))
		for _, dep := range a.Dependencies {
			imports = append(imports, MetafileImport{
				Path:     dep.Path.Rel(base),
				Kind:     "import-statement",
				Original: dep.Specifier,
			})
		}
		meta.Inputs[rel] = MetafileInput{
			Bytes:   a.Size(),
			Imports: imports,
			Format:  "esm",
		}
		output.Inputs[rel] = InputContrib{BytesInOutput: len(a.Body)}
		if a.ID == 0 {
			output.EntryPoint = rel
		}
	}

	meta.Outputs[outputName(result)] = output
	return meta
}

func outputName(result *bundler.Result) string {
	if result.Object != nil && result.Object.Location != "" {
		return filepath.ToSlash(result.Object.Location)
	}
	return "<memory>"
}

// WriteMetafile writes meta as indented JSON to path on fs, creating the
// parent directory
func WriteMetafile(fs afero.Fs, path string, meta *Metafile) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metafile: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metafile directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metafile: %w", err)
	}
	return nil
}
