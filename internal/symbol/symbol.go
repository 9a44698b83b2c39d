// Package symbol defines the universal callable-unit representation shared by
// every language analyzer: the Symbol, the per-language Table that owns it,
// and the Diagnostic records accumulated during a run.
package symbol

import (
	"fmt"
	"sort"
)

// Language tags the closed set of analyzed languages.
type Language string

const (
	Python Language = "python"
	Shell  Language = "shell"
)

// Raw call token prefixes emitted by the shell analyzer. Tokens carrying one
// of these prefixes are resolved by bridges (HTTP, PY) or by the shell
// analyzer's own intra-language pass (SH).
const (
	TokenHTTP   = "HTTP:" // HTTP:METHOD:/path
	TokenPython = "PY:"   // PY:pkg.module or PY:path/to/script.py
	TokenScript = "SH:"   // SH:path/to/script.sh
)

// Symbol is one callable unit: a function, a method, or a whole script.
// A Symbol is created once by its language's analyzer and owned exclusively
// by its Table; every other component refers to it by QualifiedName.
// ResolvedCalls is populated by the resolution passes and must not be
// mutated once tree building starts.
type Symbol struct {
	Name          string            `json:"name"`
	QualifiedName string            `json:"qualifiedName"`
	Language      Language          `json:"language"`
	FilePath      string            `json:"filePath"`
	LineNumber    int               `json:"lineNumber"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RawCalls      []string          `json:"rawCalls,omitempty"`
	ResolvedCalls []string          `json:"resolvedCalls,omitempty"`
	Documentation string            `json:"documentation,omitempty"`
	Parameters    []string          `json:"parameters,omitempty"`
	ReturnType    string            `json:"returnType,omitempty"`
}

// Metadata keys set by the analyzers. Values are "true" for boolean facts.
const (
	MetaHTTPMethod  = "http_method"
	MetaHTTPRoute   = "http_route"
	MetaCLI         = "cli"          // constructs an argument parser, reads argv, or carries a CLI-command decorator
	MetaMainGuard   = "main_guard"   // invoked inside an `if __name__ == "__main__"` block
	MetaClassMethod = "class_method" // defined inside a class body
	MetaProperty    = "property"     // carries a property-accessor decorator
	MetaDecorators  = "decorators"   // comma-separated decorator names
	MetaAsync       = "async"
	MetaScript      = "script" // the symbol represents a whole script file
)

// Meta reports whether the boolean metadata fact key is set on s.
func (s *Symbol) Meta(key string) bool {
	return s.Metadata[key] == "true"
}

// Table owns the qualified-name → Symbol mapping for one language within one
// analysis run. Qualified names are unique within a table; a collision on
// insert is a construction error.
type Table struct {
	Language Language
	symbols  map[string]*Symbol
}

// NewTable creates an empty table for the given language.
func NewTable(lang Language) *Table {
	return &Table{
		Language: lang,
		symbols:  make(map[string]*Symbol),
	}
}

// Add inserts a symbol. Returns an error if the qualified name is already
// present.
func (t *Table) Add(sym *Symbol) error {
	if _, exists := t.symbols[sym.QualifiedName]; exists {
		return fmt.Errorf("symbol table %s: duplicate qualified name %q", t.Language, sym.QualifiedName)
	}
	t.symbols[sym.QualifiedName] = sym
	return nil
}

// Lookup returns the symbol with the given qualified name, or nil.
func (t *Table) Lookup(qualifiedName string) *Symbol {
	return t.symbols[qualifiedName]
}

// Contains reports whether qualifiedName is present in the table.
func (t *Table) Contains(qualifiedName string) bool {
	_, ok := t.symbols[qualifiedName]
	return ok
}

// All returns every symbol in the table, ordered by qualified name so
// iteration is deterministic across runs.
func (t *Table) All() []*Symbol {
	out := make([]*Symbol, 0, len(t.symbols))
	for _, sym := range t.symbols {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}

// Len returns the number of symbols in the table.
func (t *Table) Len() int {
	return len(t.symbols)
}

// Merge copies every symbol from src into t. Duplicate qualified names are
// construction errors, same as Add.
func (t *Table) Merge(src *Table) error {
	for _, sym := range src.All() {
		if err := t.Add(sym); err != nil {
			return err
		}
	}
	return nil
}
