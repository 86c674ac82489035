package emitter

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/fluxpack/internal/asset"
	"github.com/fluxbase-eu/fluxpack/internal/graph"
	"github.com/fluxbase-eu/fluxpack/internal/parser"
	"github.com/fluxbase-eu/fluxpack/internal/resolver"
	"github.com/fluxbase-eu/fluxpack/internal/runtime"
	"github.com/fluxbase-eu/fluxpack/internal/transform"
)

func buildGraph(t *testing.T, entry string, files map[string]string) *graph.Graph {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
	tr, err := transform.New(transform.DefaultTarget)
	require.NoError(t, err)

	g, err := graph.NewBuilder(asset.NewExtractor(fsys, parser.New(), tr)).
		Build(context.Background(), resolver.AbsolutePath(entry))
	require.NoError(t, err)
	return g
}

func execute(t *testing.T, code string) (string, *runtime.ExecutionResult, error) {
	t.Helper()
	var stdout bytes.Buffer
	result, err := runtime.NewExecutor(runtime.WithOutput(&stdout), runtime.WithErrorOutput(&stdout)).
		Execute(context.Background(), "bundle.js", code)
	return stdout.String(), result, err
}

// =============================================================================
// Renderer Tests
// =============================================================================

func TestTemplateRenderer_Render(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	records := []Record{
		{ID: 0, Path: "index.js", Body: `console.log(require("./foo").value);`, Mapping: map[string]int{"./foo": 1}},
		{ID: 1, Path: "foo.js", Body: `exports.value = 42;`, Mapping: map[string]int{}},
	}

	t.Run("hand-built registry prints 42", func(t *testing.T) {
		code, err := r.Render(FormatIIFE, records)
		require.NoError(t, err)

		out, _, err := execute(t, code)
		require.NoError(t, err)
		assert.Equal(t, "42\n", out)
	})

	t.Run("mapping is embedded as json", func(t *testing.T) {
		code, err := r.Render(FormatIIFE, records)
		require.NoError(t, err)

		assert.Contains(t, code, `{"./foo":1}`)
		assert.Contains(t, code, "// 1: foo.js")
		assert.Less(t, strings.Index(code, "// 0: index.js"), strings.Index(code, "// 1: foo.js"))
	})

	t.Run("unknown specifier throws at runtime", func(t *testing.T) {
		code, err := r.Render(FormatIIFE, []Record{
			{ID: 0, Body: `require("./nope");`, Mapping: map[string]int{}},
		})
		require.NoError(t, err)

		_, _, err = execute(t, code)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Cannot find module './nope' from module 0")
	})

	t.Run("cjs assigns entry exports", func(t *testing.T) {
		code, err := r.Render(FormatCJS, []Record{
			{ID: 0, Body: `module.exports = { answer: require("./v").n * 2 };`, Mapping: map[string]int{"./v": 1}},
			{ID: 1, Body: `exports.n = 21;`, Mapping: map[string]int{}},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "module.exports = "))

		_, result, err := execute(t, code)
		require.NoError(t, err)
		exports, ok := result.Exports.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 42, exports["answer"])
	})

	t.Run("unknown format fails", func(t *testing.T) {
		_, err := r.Render("umd", records)
		assert.ErrorContains(t, err, `unknown bundle format "umd"`)
	})
}

// =============================================================================
// Emitter Tests
// =============================================================================

func TestEmitter_Emit(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip prints 42", func(t *testing.T) {
		g := buildGraph(t, "/src/index.js", map[string]string{
			"/src/index.js": "import { value } from \"./foo.js\";\nconsole.log(value);\n",
			"/src/foo.js":   "export const value = 42;\n",
		})

		e, err := New()
		require.NoError(t, err)
		code, err := e.Emit(ctx, g)
		require.NoError(t, err)

		out, _, err := execute(t, code)
		require.NoError(t, err)
		assert.Equal(t, "42\n", out)
	})

	t.Run("shared module runs once", func(t *testing.T) {
		g := buildGraph(t, "/src/index.js", map[string]string{
			"/src/index.js":  "import a from \"./a.js\";\nimport b from \"./lib/b.js\";\nconsole.log(a + b);\n",
			"/src/a.js":      "import c from \"./lib/c.js\";\nexport default c + 1;\n",
			"/src/lib/b.js":  "import c from \"./c.js\";\nexport default c + 1;\n",
			"/src/lib/c.js":  "console.log(\"c ran\");\nexport default 20;\n",
			"/src/unused.js": "console.log(\"unused ran\");\n",
		})

		e, err := New()
		require.NoError(t, err)
		code, err := e.Emit(ctx, g)
		require.NoError(t, err)

		out, _, err := execute(t, code)
		require.NoError(t, err)
		assert.Equal(t, "c ran\n42\n", out)
		assert.NotContains(t, code, "unused ran")
	})

	t.Run("cycle terminates at runtime", func(t *testing.T) {
		g := buildGraph(t, "/src/a.js", map[string]string{
			"/src/a.js": "import { b } from \"./b.js\";\nexport const a = \"A\";\nconsole.log(b());\n",
			"/src/b.js": "import { a } from \"./a.js\";\nexport function b() { return a; }\n",
		})
		require.Equal(t, 2, g.Len())

		e, err := New()
		require.NoError(t, err)
		code, err := e.Emit(ctx, g)
		require.NoError(t, err)

		out, _, err := execute(t, code)
		require.NoError(t, err)
		assert.Equal(t, "A\n", out)
	})

	t.Run("minified bundle behaves the same", func(t *testing.T) {
		g := buildGraph(t, "/src/index.js", map[string]string{
			"/src/index.js": "import { value } from \"./foo.js\";\nconsole.log(value);\n",
			"/src/foo.js":   "export const value = 42;\n",
		})

		plain, err := New()
		require.NoError(t, err)
		minified, err := New(WithMinify(true))
		require.NoError(t, err)

		plainCode, err := plain.Emit(ctx, g)
		require.NoError(t, err)
		minCode, err := minified.Emit(ctx, g)
		require.NoError(t, err)
		assert.Less(t, len(minCode), len(plainCode))

		out, _, err := execute(t, minCode)
		require.NoError(t, err)
		assert.Equal(t, "42\n", out)
	})

	t.Run("cjs bundle exposes entry exports", func(t *testing.T) {
		g := buildGraph(t, "/src/index.js", map[string]string{
			"/src/index.js": "import { value } from \"./foo.js\";\nexport const doubled = value * 2;\n",
			"/src/foo.js":   "export const value = 21;\n",
		})

		e, err := New(WithFormat(FormatCJS))
		require.NoError(t, err)
		assert.Equal(t, FormatCJS, e.Format())

		code, err := e.Emit(ctx, g)
		require.NoError(t, err)

		_, result, err := execute(t, code)
		require.NoError(t, err)
		exports, ok := result.Exports.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 42, exports["doubled"])
	})

	t.Run("line terminators in file names stay inside comments", func(t *testing.T) {
		for _, sep := range []string{"\u2028", "\u2029"} {
			name := "a" + sep + "b.js"
			g := buildGraph(t, "/p/index.js", map[string]string{
				"/p/index.js": "import { v } from \"./" + name + "\";\nconsole.log(v);\n",
				"/p/" + name:  "export const v = 9;\n",
			})

			e, err := New()
			require.NoError(t, err)
			code, err := e.Emit(ctx, g)
			require.NoError(t, err)

			out, _, err := execute(t, code)
			require.NoError(t, err, "separator %q", sep)
			assert.Equal(t, "9\n", out)
		}
	})

	t.Run("emission is deterministic", func(t *testing.T) {
		files := map[string]string{
			"/src/index.js": "import a from \"./a.js\";\nimport b from \"./b.js\";\nconsole.log(a, b);\n",
			"/src/a.js":     "export default 1;\n",
			"/src/b.js":     "export default 2;\n",
		}

		e, err := New()
		require.NoError(t, err)
		first, err := e.Emit(ctx, buildGraph(t, "/src/index.js", files))
		require.NoError(t, err)
		second, err := e.Emit(ctx, buildGraph(t, "/src/index.js", files))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("empty graph is rejected", func(t *testing.T) {
		e, err := New()
		require.NoError(t, err)

		_, err = e.Emit(ctx, &graph.Graph{})
		assert.Error(t, err)
	})

	t.Run("unknown format is rejected", func(t *testing.T) {
		_, err := New(WithFormat("umd"))
		assert.Error(t, err)
	})
}

func TestRecords(t *testing.T) {
	g := buildGraph(t, "/src/index.js", map[string]string{
		"/src/index.js":   "import x from \"./lib/x.js\";\nconsole.log(x);\n",
		"/src/lib/x.js":   "import y from \"../y.js\";\nexport default y;\n",
		"/src/y.js":       "export default 1;\n",
		"/elsewhere/z.js": "export default 0;\n",
	})

	records := Records(g)
	require.Len(t, records, 3)

	assert.Equal(t, "index.js", records[0].Path)
	assert.Equal(t, "lib/x.js", records[1].Path)
	assert.Equal(t, map[string]int{"../y.js": 2}, records[1].Mapping)
	assert.Equal(t, map[string]int{}, records[2].Mapping)

	assert.Equal(t, "a b.js", commentText("a\u2028b.js"))
	assert.Equal(t, "a  b.js", commentText("a\r\nb.js"))

	records[1].Mapping["../y.js"] = 99
	x, _ := g.Asset(1)
	assert.Equal(t, 2, x.SpecifierToID["../y.js"], "records must not alias graph mappings")
}

// =============================================================================
// Loader Model Tests
// =============================================================================

// goRegistry pairs each record's mapping with a Go body selected by path
func goRegistry(records []Record, bodies map[string]runtime.ModuleBody) runtime.Registry {
	registry := make(runtime.Registry, len(records))
	for _, r := range records {
		registry[r.ID] = runtime.Definition{Body: bodies[r.Path], Mapping: r.Mapping}
	}
	return registry
}

func TestLoaderModel_MatchesEmittedLoader(t *testing.T) {
	t.Run("evaluation order with a cycle", func(t *testing.T) {
		g := buildGraph(t, "/p/index.js", map[string]string{
			"/p/index.js": "import { a } from \"./a.js\";\nimport { b } from \"./b.js\";\nif (a && b) console.log(\"index\");\n",
			"/p/a.js":     "import { b } from \"./b.js\";\nconsole.log(\"a\");\nexport function a() { return b; }\n",
			"/p/b.js":     "import { a } from \"./a.js\";\nconsole.log(\"b\");\nexport function b() { return a; }\n",
		})
		records := Records(g)

		e, err := New()
		require.NoError(t, err)
		code, err := e.Emit(context.Background(), g)
		require.NoError(t, err)
		out, _, err := execute(t, code)
		require.NoError(t, err)

		var order []string
		runs := map[string]int{}
		body := func(name string, deps ...string) runtime.ModuleBody {
			return func(require runtime.RequireFunc, m *runtime.Module) {
				runs[name]++
				for _, dep := range deps {
					require(dep)
				}
				order = append(order, name)
				m.Set(name, true)
			}
		}
		loader := runtime.NewLoader(goRegistry(records, map[string]runtime.ModuleBody{
			"index.js": body("index", "./a.js", "./b.js"),
			"a.js":     body("a", "./b.js"),
			"b.js":     body("b", "./a.js"),
		}))
		_, err = loader.Run()
		require.NoError(t, err)

		assert.Equal(t, strings.Join(order, "\n")+"\n", out)
		assert.Equal(t, map[string]int{"index": 1, "a": 1, "b": 1}, runs)
		for _, r := range records {
			assert.True(t, loader.Loaded(r.ID), r.Path)
		}
	})

	t.Run("unmapped specifier fails with the same message", func(t *testing.T) {
		r, err := NewTemplateRenderer()
		require.NoError(t, err)
		records := []Record{{ID: 0, Path: "index.js", Body: `require("./gone");`, Mapping: map[string]int{}}}

		code, err := r.Render(FormatIIFE, records)
		require.NoError(t, err)
		_, _, jsErr := execute(t, code)
		require.Error(t, jsErr)

		_, goErr := runtime.NewLoader(goRegistry(records, map[string]runtime.ModuleBody{
			"index.js": func(require runtime.RequireFunc, _ *runtime.Module) { require("./gone") },
		})).Run()
		require.Error(t, goErr)

		assert.Equal(t, "Cannot find module './gone' from module 0", goErr.Error())
		assert.Contains(t, jsErr.Error(), goErr.Error())
	})
}
