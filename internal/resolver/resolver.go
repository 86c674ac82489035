// Package resolver turns import specifiers into canonical file identities.
package resolver

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/fluxbase-eu/fluxpack/internal/builderr"
)

// AbsolutePath is a cleaned, absolute, forward-slash path. It is the
// identity used to deduplicate modules.
type AbsolutePath string

// String returns the path in its canonical slash form
func (p AbsolutePath) String() string {
	return string(p)
}

// OS returns the path with OS-specific separators, suitable for file I/O
func (p AbsolutePath) OS() string {
	return filepath.FromSlash(string(p))
}

// Dir returns the directory containing the path
func (p AbsolutePath) Dir() AbsolutePath {
	return AbsolutePath(path.Dir(string(p)))
}

// Base returns the last element of the path
func (p AbsolutePath) Base() string {
	return path.Base(string(p))
}

// Rel returns p relative to base in slash form, or p itself when it is not
// below base.
func (p AbsolutePath) Rel(base AbsolutePath) string {
	rel, err := filepath.Rel(base.OS(), p.OS())
	if err != nil || strings.HasPrefix(rel, "..") {
		return string(p)
	}
	return filepath.ToSlash(rel)
}

// IsRelative reports whether spec is a relative module reference
func IsRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// Canonicalize converts a user supplied path into an AbsolutePath. Relative
// paths are taken from the working directory.
func Canonicalize(p string) (AbsolutePath, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s: %w", p, err)
	}
	return AbsolutePath(filepath.ToSlash(filepath.Clean(abs))), nil
}

// Resolve joins spec onto the directory of containing. It never touches the
// filesystem; a missing target surfaces later as a read failure.
func Resolve(containing AbsolutePath, spec string) (AbsolutePath, error) {
	// Backslashes are normalized so Windows-authored specifiers resolve the same way.
	normalized := strings.ReplaceAll(spec, `\`, "/")
	if !IsRelative(normalized) {
		return "", builderr.UnsupportedSpecifier(string(containing), spec)
	}
	return AbsolutePath(path.Join(string(containing.Dir()), normalized)), nil
}
