// Package output formats command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format selects how command results are rendered
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

var formatNames = map[string]Format{
	"":      FormatTable,
	"table": FormatTable,
	"json":  FormatJSON,
	"yaml":  FormatYAML,
	"yml":   FormatYAML,
}

// ParseFormat parses the --output flag value
func ParseFormat(s string) (Format, error) {
	if format, ok := formatNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid output format: %s (valid: table, json, yaml)", s)
}

// Formatter writes results to Writer and diagnostics to ErrWriter
type Formatter struct {
	Format    Format
	NoHeaders bool
	Quiet     bool
	Writer    io.Writer
	ErrWriter io.Writer
}

// NewFormatter creates a formatter bound to stdout and stderr
func NewFormatter(format Format, noHeaders, quiet bool) *Formatter {
	return &Formatter{
		Format:    format,
		NoHeaders: noHeaders,
		Quiet:     quiet,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
	}
}

// Print encodes data in the configured format. Table mode has no generic
// layout and encodes as JSON.
func (f *Formatter) Print(data any) error {
	if f.Quiet {
		return nil
	}
	return f.encode(data)
}

func (f *Formatter) encode(data any) error {
	if f.Format == FormatYAML {
		encoder := yaml.NewEncoder(f.Writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			_ = encoder.Close()
			return err
		}
		return encoder.Close()
	}

	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// TableData holds rows of cells under column headers
type TableData struct {
	Headers []string
	Rows    [][]string
}

// Records keys every row by header. Cells without a header are dropped.
func (d TableData) Records() []map[string]string {
	records := make([]map[string]string, len(d.Rows))
	for i, row := range d.Rows {
		record := make(map[string]string, len(d.Headers))
		for j, cell := range row {
			if j < len(d.Headers) {
				record[d.Headers[j]] = cell
			}
		}
		records[i] = record
	}
	return records
}

// PrintTable renders data as a plain table, or as records in json and yaml
func (f *Formatter) PrintTable(data TableData) {
	if f.Quiet {
		return
	}
	if f.Format != FormatTable {
		_ = f.encode(data.Records())
		return
	}

	table := plainTable(f.Writer)
	if !f.NoHeaders && len(data.Headers) > 0 {
		table.SetHeader(data.Headers)
	}
	table.AppendBulk(data.Rows)
	table.Render()
}

// plainTable returns a borderless, left aligned, tab padded table
func plainTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

// PrintSuccess reports a completed operation
func (f *Formatter) PrintSuccess(message string) {
	f.note(f.Writer, "", message)
}

// PrintInfo prints an informational line
func (f *Formatter) PrintInfo(message string) {
	f.note(f.Writer, "", message)
}

// PrintWarning prints a warning to ErrWriter
func (f *Formatter) PrintWarning(message string) {
	f.note(f.ErrWriter, "Warning: ", message)
}

// PrintError prints an error to ErrWriter, also in quiet mode
func (f *Formatter) PrintError(message string) {
	_, _ = fmt.Fprintf(f.ErrWriter, "Error: %s\n", message)
}

func (f *Formatter) note(w io.Writer, prefix, message string) {
	if f.Quiet {
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", prefix, message)
}

// PrintKeyValue prints a single setting as "key: value" or as a one-key object
func (f *Formatter) PrintKeyValue(key, value string) {
	if f.Quiet {
		return
	}
	if f.Format != FormatTable {
		_ = f.encode(map[string]string{key: value})
		return
	}
	_, _ = fmt.Fprintf(f.Writer, "%s: %s\n", key, value)
}

// PrintList prints items one per line, or as an array in json and yaml
func (f *Formatter) PrintList(items []string) {
	if f.Quiet {
		return
	}
	if f.Format != FormatTable {
		_ = f.encode(items)
		return
	}
	for _, item := range items {
		_, _ = fmt.Fprintln(f.Writer, item)
	}
}
