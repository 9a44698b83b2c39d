// Package python implements the structured-language analyzer: tree-sitter
// parsing of Python sources into symbols, plus intra-language call resolution
// with import tracking and direct-assignment type inference.
package python

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	tspython "github.com/smacker/go-tree-sitter/python"

	"github.com/jward/flowdiff/internal/lang"
	"github.com/jward/flowdiff/internal/symbol"
)

// moduleInfo holds per-module resolution inputs that are not part of any
// symbol's identity: the import map and the classes defined in the module.
type moduleInfo struct {
	imports map[string]string // local name -> qualified name
	classes map[string]*classInfo
}

// classInfo tracks one class for constructor and method resolution.
type classInfo struct {
	qualifiedName string
	methods       map[string]string // method name -> qualified name
}

// callContext holds per-symbol resolution inputs: direct-assignment bindings
// and function-local imports.
type callContext struct {
	bindings     map[string]string // variable name -> constructor name
	localImports map[string]string // local name -> qualified name
}

// Analyzer is the tree-sitter based Python analyzer. One instance serves one
// analysis run; BuildSymbolTable may be called concurrently for different
// files, the side tables below are guarded by mu.
type Analyzer struct {
	root string

	mu      sync.Mutex
	modules map[string]*moduleInfo
	calls   map[string]*callContext // qualified symbol name -> context
}

// New creates a Python analyzer rooted at the project directory. Qualified
// names are derived from paths relative to root.
func New(root string) *Analyzer {
	return &Analyzer{
		root:    root,
		modules: make(map[string]*moduleInfo),
		calls:   make(map[string]*callContext),
	}
}

// Language returns symbol.Python.
func (a *Analyzer) Language() symbol.Language { return symbol.Python }

// CanAnalyze reports whether path is a Python source file.
func (a *Analyzer) CanAnalyze(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".py")
}

// moduleName converts a file path to its dotted module name. Package
// __init__ files collapse to the package name itself.
func (a *Analyzer) moduleName(path string) string {
	name := lang.PathToQualifiedName(a.root, path)
	name = strings.TrimSuffix(name, ".__init__")
	return name
}

// BuildSymbolTable parses one Python file into a fresh table. Unreadable or
// unparsable files yield an empty table and a parse diagnostic; they never
// abort the run.
func (a *Analyzer) BuildSymbolTable(ctx context.Context, path string) (*symbol.Table, []symbol.Diagnostic) {
	table := symbol.NewTable(symbol.Python)
	module := a.moduleName(path)
	rel := lang.RelPath(a.root, path)

	src, err := os.ReadFile(path)
	if err != nil {
		return table, []symbol.Diagnostic{{
			Kind:   symbol.DiagParseError,
			Path:   rel,
			Detail: err.Error(),
		}}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tspython.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return table, []symbol.Diagnostic{{
			Kind:   symbol.DiagParseError,
			Path:   rel,
			Detail: "tree-sitter parse failed: " + err.Error(),
		}}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return table, []symbol.Diagnostic{{
			Kind:   symbol.DiagParseError,
			Path:   rel,
			Detail: "syntax errors in file, skipped",
		}}
	}

	ext := &extractor{
		src:    src,
		path:   rel,
		module: module,
		info: &moduleInfo{
			imports: make(map[string]string),
			classes: make(map[string]*classInfo),
		},
		contexts: make(map[string]*callContext),
	}
	diags := ext.extractModule(root, table)

	a.mu.Lock()
	a.modules[module] = ext.info
	for qname, cc := range ext.contexts {
		a.calls[qname] = cc
	}
	a.mu.Unlock()

	return table, diags
}

// MergeSymbolTables combines per-file tables into one project-wide table.
// Duplicate qualified names are construction errors.
func (a *Analyzer) MergeSymbolTables(tables []*symbol.Table) (*symbol.Table, error) {
	merged := symbol.NewTable(symbol.Python)
	for _, t := range tables {
		if t == nil || t.Language != symbol.Python {
			continue
		}
		if err := merged.Merge(t); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// ResolveCalls resolves every symbol's raw calls to qualified names using
// imports, local bindings, and class lookups. Tokens that resolve nowhere
// are dropped and reported as unresolved-call diagnostics.
func (a *Analyzer) ResolveCalls(table *symbol.Table) []symbol.Diagnostic {
	r := a.newResolver(table)
	var diags []symbol.Diagnostic

	for _, sym := range table.All() {
		resolved := make([]string, 0, len(sym.RawCalls))
		seen := make(map[string]bool, len(sym.RawCalls))
		for _, raw := range sym.RawCalls {
			target := r.resolve(raw, sym)
			if target == "" {
				diags = append(diags, symbol.Diagnostic{
					Kind:    symbol.DiagUnresolvedCall,
					Path:    sym.FilePath,
					Subject: raw,
					Detail:  "no matching symbol for call from " + sym.QualifiedName,
				})
				continue
			}
			if seen[target] {
				continue
			}
			seen[target] = true
			resolved = append(resolved, target)
		}
		sym.ResolvedCalls = resolved
	}
	return diags
}
