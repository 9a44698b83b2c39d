// Package lang defines the per-language analyzer contract and the registry
// that dispatches source files to the analyzer owning their language.
package lang

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jward/flowdiff/internal/symbol"
)

// Analyzer turns source files of one language into symbols and later resolves
// their intra-language calls. BuildSymbolTable is called once per file and
// must be safe for concurrent use; ResolveCalls runs serially on the merged
// table after all per-file work has completed.
type Analyzer interface {
	// CanAnalyze reports whether this analyzer handles the file.
	CanAnalyze(path string) bool

	// BuildSymbolTable parses one file into a fresh table. A file that fails
	// to parse yields an empty table plus diagnostics, never an error that
	// aborts the run.
	BuildSymbolTable(ctx context.Context, path string) (*symbol.Table, []symbol.Diagnostic)

	// MergeSymbolTables combines per-file tables into one project-wide table.
	MergeSymbolTables(tables []*symbol.Table) (*symbol.Table, error)

	// ResolveCalls populates ResolvedCalls using only intra-language
	// information. Tokens it cannot resolve are left for the bridges.
	ResolveCalls(table *symbol.Table) []symbol.Diagnostic

	// Language returns the language tag this analyzer owns.
	Language() symbol.Language
}

// Registry holds the registered analyzers and dispatches files by extension.
type Registry struct {
	analyzers []Analyzer
	byLang    map[symbol.Language]Analyzer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byLang: make(map[symbol.Language]Analyzer)}
}

// Register adds an analyzer. Later registrations for the same language
// replace earlier ones.
func (r *Registry) Register(a Analyzer) {
	r.analyzers = append(r.analyzers, a)
	r.byLang[a.Language()] = a
}

// ForFile returns the analyzer that can handle path, or nil.
func (r *Registry) ForFile(path string) Analyzer {
	for _, a := range r.analyzers {
		if a.CanAnalyze(path) {
			return a
		}
	}
	return nil
}

// ForLanguage returns the analyzer registered for lang, or nil.
func (r *Registry) ForLanguage(lang symbol.Language) Analyzer {
	return r.byLang[lang]
}

// Languages returns the registered language tags in registration order.
func (r *Registry) Languages() []symbol.Language {
	out := make([]symbol.Language, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		out = append(out, a.Language())
	}
	return out
}

// RelPath returns path relative to root. Symbols and diagnostics record this
// form so output stays identical wherever the analyzed tree was materialized.
// Paths that cannot be made relative are returned unchanged.
func RelPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// PathToQualifiedName converts a source path under root to a dotted module
// name: src/api/handlers.py → src.api.handlers. Paths outside root are used
// as-is. The extension is dropped.
func PathToQualifiedName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
}
