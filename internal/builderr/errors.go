// Package builderr defines the error taxonomy shared by every bundling stage.
package builderr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a bundling failure
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedSpecifier
	KindUnreadableFile
	KindParse
	KindTransform
	KindOutputWrite
	KindConfig
)

var kindNames = map[Kind]string{
	KindUnknown:              "Unknown",
	KindUnsupportedSpecifier: "UnsupportedSpecifier",
	KindUnreadableFile:       "UnreadableFile",
	KindParse:                "ParseError",
	KindTransform:            "TransformError",
	KindOutputWrite:          "OutputWriteError",
	KindConfig:               "ConfigError",
}

// String returns the taxonomy name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinel errors, one per kind. *Error values match them with errors.Is.
var (
	ErrUnsupportedSpecifier = errors.New("unsupported specifier")
	ErrUnreadableFile       = errors.New("unreadable file")
	ErrParse                = errors.New("parse error")
	ErrTransform            = errors.New("transform error")
	ErrOutputWrite          = errors.New("output write error")
	ErrConfig               = errors.New("configuration error")
)

var sentinels = map[Kind]error{
	KindUnsupportedSpecifier: ErrUnsupportedSpecifier,
	KindUnreadableFile:       ErrUnreadableFile,
	KindParse:                ErrParse,
	KindTransform:            ErrTransform,
	KindOutputWrite:          ErrOutputWrite,
	KindConfig:               ErrConfig,
}

// Error is a bundling failure tied to the file that caused it
type Error struct {
	Kind      Kind
	Path      string
	Specifier string
	Line      int
	Column    int
	Message   string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
	}
	if e.Specifier != "" {
		fmt.Fprintf(&b, ": import %q", e.Specifier)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && sentinel == target
}

// New creates an error of the given kind for path
func New(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// UnsupportedSpecifier reports a non-relative import found in path
func UnsupportedSpecifier(path, specifier string) *Error {
	return &Error{
		Kind:      KindUnsupportedSpecifier,
		Path:      path,
		Specifier: specifier,
		Message:   "only relative specifiers starting with ./ or ../ are supported",
	}
}

// UnreadableFile reports a source file that could not be read
func UnreadableFile(path string, err error) *Error {
	return &Error{Kind: KindUnreadableFile, Path: path, Err: err}
}

// Parse reports a syntax error at line:column of path
func Parse(path string, line, column int, message string) *Error {
	return &Error{Kind: KindParse, Path: path, Line: line, Column: column, Message: message}
}

// Transform reports a transformer rejection at line:column of path
func Transform(path string, line, column int, message string) *Error {
	return &Error{Kind: KindTransform, Path: path, Line: line, Column: column, Message: message}
}

// OutputWrite reports a failed write of the bundle to path
func OutputWrite(path string, err error) *Error {
	return &Error{Kind: KindOutputWrite, Path: path, Err: err}
}

// Config reports an invalid configuration value
func Config(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// PathOf returns the offending file of the first *Error in err's chain
func PathOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Path
	}
	return ""
}
