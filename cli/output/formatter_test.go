package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestFormatter(format Format) (*Formatter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	f := NewFormatter(format, false, false)
	f.Writer = &out
	f.ErrWriter = &errOut
	return f, &out, &errOut
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatTable},
		{input: "table", want: FormatTable},
		{input: "JSON", want: FormatJSON},
		{input: "yml", want: FormatYAML},
		{input: "yaml", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid output format")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatter_Print(t *testing.T) {
	data := map[string]any{"modules": 3, "format": "iife"}

	t.Run("json", func(t *testing.T) {
		f, out, _ := newTestFormatter(FormatJSON)
		require.NoError(t, f.Print(data))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, "iife", decoded["format"])
		assert.EqualValues(t, 3, decoded["modules"])
	})

	t.Run("yaml", func(t *testing.T) {
		f, out, _ := newTestFormatter(FormatYAML)
		require.NoError(t, f.Print(data))

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, "iife", decoded["format"])
		assert.Equal(t, 3, decoded["modules"])
	})

	t.Run("quiet prints nothing", func(t *testing.T) {
		f, out, _ := newTestFormatter(FormatJSON)
		f.Quiet = true
		require.NoError(t, f.Print(data))
		assert.Empty(t, out.String())
	})
}

func TestFormatter_PrintTable(t *testing.T) {
	data := TableData{
		Headers: []string{"ID", "PATH"},
		Rows: [][]string{
			{"0", "index.js"},
			{"1", "foo.js"},
		},
	}

	t.Run("table with headers", func(t *testing.T) {
		f, out, _ := newTestFormatter(FormatTable)
		f.PrintTable(data)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "ID")
		assert.Contains(t, lines[0], "PATH")
		assert.Contains(t, lines[1], "index.js")
		assert.Contains(t, lines[2], "foo.js")
	})

	t.Run("no headers", func(t *testing.T) {
		f, out, _ := newTestFormatter(FormatTable)
		f.NoHeaders = true
		f.PrintTable(data)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.NotContains(t, out.String(), "PATH")
	})

	t.Run("json rows keyed by header", func(t *testing.T) {
		f, out, _ := newTestFormatter(FormatJSON)
		f.PrintTable(data)

		var rows []map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
		assert.Equal(t, []map[string]string{
			{"ID": "0", "PATH": "index.js"},
			{"ID": "1", "PATH": "foo.js"},
		}, rows)
	})
}

func TestFormatter_Messages(t *testing.T) {
	t.Run("errors and warnings go to the error writer", func(t *testing.T) {
		f, out, errOut := newTestFormatter(FormatTable)
		f.PrintError("boom")
		f.PrintWarning("careful")

		assert.Empty(t, out.String())
		assert.Equal(t, "Error: boom\nWarning: careful\n", errOut.String())
	})

	t.Run("quiet keeps errors", func(t *testing.T) {
		f, out, errOut := newTestFormatter(FormatTable)
		f.Quiet = true
		f.PrintSuccess("done")
		f.PrintWarning("careful")
		f.PrintError("boom")

		assert.Empty(t, out.String())
		assert.Equal(t, "Error: boom\n", errOut.String())
	})

	t.Run("key value", func(t *testing.T) {
		f, out, _ := newTestFormatter(FormatTable)
		f.PrintKeyValue("output.format", "cjs")
		assert.Equal(t, "output.format: cjs\n", out.String())
	})

	t.Run("list as json", func(t *testing.T) {
		f, out, _ := newTestFormatter(FormatJSON)
		f.PrintList([]string{"a.js", "b.js"})

		var items []string
		require.NoError(t, json.Unmarshal(out.Bytes(), &items))
		assert.Equal(t, []string{"a.js", "b.js"}, items)
	})
}
