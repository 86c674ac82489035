// Package emitter renders a module graph into a single self-contained script.
package emitter

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxbase-eu/fluxpack/internal/graph"
	"github.com/fluxbase-eu/fluxpack/internal/observability"
	"github.com/fluxbase-eu/fluxpack/internal/transform"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Output formats
const (
	FormatIIFE = "iife"
	FormatCJS  = "cjs"
)

// Formats lists the supported output formats
var Formats = []string{FormatIIFE, FormatCJS}

// Record is one registry entry of the emitted bundle
type Record struct {
	ID      int            `json:"id"`
	Path    string         `json:"path"`
	Body    string         `json:"-"`
	Mapping map[string]int `json:"mapping"`
}

// Records shapes the graph into registry entries in id order. Paths are
// made relative to the entry's directory.
func Records(g *graph.Graph) []Record {
	assets := g.Assets()
	if len(assets) == 0 {
		return nil
	}
	base := assets[0].Path.Dir()

	records := make([]Record, len(assets))
	for i, a := range assets {
		mapping := maps.Clone(a.SpecifierToID)
		if mapping == nil {
			mapping = map[string]int{}
		}
		records[i] = Record{
			ID:      a.ID,
			Path:    a.Path.Rel(base),
			Body:    a.Body,
			Mapping: mapping,
		}
	}
	return records
}

// Renderer turns records into bundle text
type Renderer interface {
	Render(templateID string, records []Record) (string, error)
}

// TemplateRenderer renders the built-in loader templates
type TemplateRenderer struct {
	tmpl *template.Template
}

// NewTemplateRenderer parses the embedded templates
func NewTemplateRenderer() (*TemplateRenderer, error) {
	tmpl, err := template.New("bundle").
		Funcs(template.FuncMap{"json": toJSON, "comment": commentText}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse bundle templates: %w", err)
	}
	return &TemplateRenderer{tmpl: tmpl}, nil
}

// Render executes the template named templateID
func (r *TemplateRenderer) Render(templateID string, records []Record) (string, error) {
	if !IsFormat(templateID) {
		return "", fmt.Errorf("unknown bundle format %q", templateID)
	}

	var buf bytes.Buffer
	data := struct{ Records []Record }{Records: records}
	if err := r.tmpl.ExecuteTemplate(&buf, templateID, data); err != nil {
		return "", fmt.Errorf("failed to render %s bundle: %w", templateID, err)
	}
	return buf.String(), nil
}

// toJSON encodes a mapping; map keys come out sorted
func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// lineTerminators are the characters that end a JS line comment
var lineTerminators = strings.NewReplacer(
	"\r", " ",
	"\n", " ",
	"\u2028", " ",
	"\u2029", " ",
)

// commentText makes s safe inside a // comment
func commentText(s string) string {
	return lineTerminators.Replace(s)
}

// IsFormat reports whether name is a supported output format
func IsFormat(name string) bool {
	return slices.Contains(Formats, name)
}

// Emitter produces bundle text from a graph
type Emitter struct {
	renderer Renderer
	format   string
	minify   bool
}

// Option configures an Emitter
type Option func(*Emitter)

// WithFormat selects the output format
func WithFormat(format string) Option {
	return func(e *Emitter) {
		if format != "" {
			e.format = format
		}
	}
}

// WithMinify minifies the rendered bundle
func WithMinify(minify bool) Option {
	return func(e *Emitter) {
		e.minify = minify
	}
}

// WithRenderer replaces the built-in template renderer
func WithRenderer(r Renderer) Option {
	return func(e *Emitter) {
		e.renderer = r
	}
}

// New creates an emitter producing iife bundles unless configured otherwise
func New(opts ...Option) (*Emitter, error) {
	e := &Emitter{format: FormatIIFE}
	for _, opt := range opts {
		opt(e)
	}
	if !IsFormat(e.format) {
		return nil, fmt.Errorf("unknown bundle format %q", e.format)
	}
	if e.renderer == nil {
		r, err := NewTemplateRenderer()
		if err != nil {
			return nil, err
		}
		e.renderer = r
	}
	return e, nil
}

// Format returns the configured output format
func (e *Emitter) Format() string {
	return e.format
}

// Emit renders g. It does not touch the filesystem.
func (e *Emitter) Emit(ctx context.Context, g *graph.Graph) (code string, err error) {
	_, span := observability.StartStageSpan(ctx, "bundle.emit",
		attribute.String("bundle.format", e.format),
		attribute.Bool("bundle.minify", e.minify),
	)
	defer func() { observability.EndSpan(span, err) }()

	if g == nil || g.Len() == 0 {
		return "", fmt.Errorf("cannot emit an empty graph")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	code, err = e.renderer.Render(e.format, Records(g))
	if err != nil {
		return "", err
	}

	if e.minify {
		code, err = transform.Minify(code)
		if err != nil {
			return "", err
		}
	}

	span.SetAttributes(attribute.Int("bundle.bytes", len(code)))
	return code, nil
}
