// Package transform rewrites ES module source into CommonJS function bodies
// using esbuild.
package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/fluxbase-eu/fluxpack/internal/builderr"
	"github.com/fluxbase-eu/fluxpack/internal/parser"
)

// DefaultTarget is the language level emitted module bodies are lowered to
const DefaultTarget = "es2017"

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// Transformer turns a parsed module into a body run as (require, module, exports)
type Transformer interface {
	Transform(ctx context.Context, m *parser.Module) (string, error)
}

// ESBuild is a Transformer backed by the esbuild transform API
type ESBuild struct {
	target api.Target
}

// ParseTarget validates a target name such as "es2017" or "esnext"
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		name = DefaultTarget
	}
	target, ok := targets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown transform target: %s", name)
	}
	return target, nil
}

// New creates an esbuild-backed transformer for the named target
func New(target string) (*ESBuild, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	return &ESBuild{target: t}, nil
}

// Transform converts the module's import/export syntax to require calls and
// module.exports assignments. Import specifiers are kept verbatim so the
// module's mapping can translate them at runtime.
func (e *ESBuild) Transform(ctx context.Context, m *parser.Module) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	result := api.Transform(string(m.Source), api.TransformOptions{
		Loader:     api.LoaderJS,
		Format:     api.FormatCommonJS,
		Target:     e.target,
		Sourcefile: m.Path,
		LogLevel:   api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		return "", messageError(m.Path, result.Errors[0], builderr.Transform)
	}

	return string(result.Code), nil
}

// Minify compacts an emitted bundle. The bundle is a plain script, so top
// level names are left alone.
func Minify(code string) (string, error) {
	result := api.Transform(code, api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("failed to minify bundle: %s", result.Errors[0].Text)
	}
	return string(result.Code), nil
}

func messageError(path string, msg api.Message, build func(string, int, int, string) *builderr.Error) error {
	line, column := 0, 0
	if msg.Location != nil {
		line = msg.Location.Line
		// esbuild columns are 0-based
		column = msg.Location.Column + 1
	}
	return build(path, line, column, msg.Text)
}
