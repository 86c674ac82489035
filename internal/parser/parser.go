// Package parser wraps the JavaScript parser used to read module sources and
// walk their import declarations.
package parser

import (
	"bytes"
	"errors"
	"iter"
	"strconv"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	"github.com/fluxbase-eu/fluxpack/internal/builderr"
)

// Module is a parsed source file
type Module struct {
	Path   string
	Source []byte
	AST    *js.AST
}

// ImportSite is one static import found in a module
type ImportSite struct {
	Specifier string
	Line      int
	Column    int
}

// Parser parses module source text
type Parser interface {
	Parse(path string, src []byte) (*Module, error)
}

// JSParser parses ECMAScript modules
type JSParser struct{}

// New returns a JSParser
func New() *JSParser {
	return &JSParser{}
}

// Parse parses src as an ES module. Syntax errors are returned as
// builderr.ErrParse carrying the line and column.
func (p *JSParser) Parse(path string, src []byte) (*Module, error) {
	ast, err := js.Parse(parse.NewInputBytes(src), js.Options{})
	if err != nil {
		var perr *parse.Error
		if errors.As(err, &perr) {
			return nil, builderr.Parse(path, perr.Line, perr.Column, perr.Message)
		}
		return nil, builderr.Parse(path, 0, 0, err.Error())
	}
	return &Module{Path: path, Source: src, AST: ast}, nil
}

// Imports returns the module's import sites in source order: static import
// declarations and export-from re-exports. The sequence is lazy and walks the
// top-level statement list once per iteration.
func (m *Module) Imports() iter.Seq[ImportSite] {
	return func(yield func(ImportSite) bool) {
		cursor := 0
		for _, stmt := range m.AST.BlockStmt.List {
			var literal []byte
			switch s := stmt.(type) {
			case *js.ImportStmt:
				literal = s.Module
			case *js.ExportStmt:
				literal = s.Module
			}
			if len(literal) < 2 {
				continue
			}

			site := ImportSite{Specifier: unquote(literal)}
			if offset := bytes.Index(m.Source[cursor:], literal); offset >= 0 {
				cursor += offset
				site.Line, site.Column, _ = parse.Position(bytes.NewReader(m.Source), cursor)
				cursor += len(literal)
			}
			if !yield(site) {
				return
			}
		}
	}
}

// unquote strips the quotes of a string literal token, decoding escapes when
// the literal is a valid Go-compatible string.
func unquote(literal []byte) string {
	if literal[0] == '"' {
		if s, err := strconv.Unquote(string(literal)); err == nil {
			return s
		}
	}
	return string(literal[1 : len(literal)-1])
}
