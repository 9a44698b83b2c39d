// Package shell implements the script-language analyzer. Shell scripts get
// no syntax tree; commands are pattern-extracted and each script becomes
// exactly one symbol representing the whole file as a callable unit.
package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jward/flowdiff/internal/lang"
	"github.com/jward/flowdiff/internal/symbol"
)

// Analyzer is the pattern-based shell analyzer.
type Analyzer struct {
	root string
}

// New creates a shell analyzer rooted at the project directory.
func New(root string) *Analyzer {
	return &Analyzer{root: root}
}

// Language returns symbol.Shell.
func (a *Analyzer) Language() symbol.Language { return symbol.Shell }

// CanAnalyze reports whether path is a shell script.
func (a *Analyzer) CanAnalyze(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sh")
}

// BuildSymbolTable reads one script and produces a single symbol whose raw
// calls are the extracted command tokens. Unreadable files are skipped with
// a diagnostic.
func (a *Analyzer) BuildSymbolTable(ctx context.Context, path string) (*symbol.Table, []symbol.Diagnostic) {
	table := symbol.NewTable(symbol.Shell)
	rel := lang.RelPath(a.root, path)

	if err := ctx.Err(); err != nil {
		return table, []symbol.Diagnostic{{
			Kind:   symbol.DiagParseError,
			Path:   rel,
			Detail: err.Error(),
		}}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return table, []symbol.Diagnostic{{
			Kind:   symbol.DiagParseError,
			Path:   rel,
			Detail: err.Error(),
		}}
	}

	sym := &symbol.Symbol{
		Name:          filepath.Base(path),
		QualifiedName: lang.PathToQualifiedName(a.root, path),
		Language:      symbol.Shell,
		FilePath:      rel,
		LineNumber:    1,
		Metadata:      map[string]string{symbol.MetaScript: "true"},
		RawCalls:      extractCommands(string(content)),
	}
	if err := table.Add(sym); err != nil {
		return table, []symbol.Diagnostic{{
			Kind:   symbol.DiagParseError,
			Path:   rel,
			Detail: err.Error(),
		}}
	}
	return table, nil
}

// MergeSymbolTables combines per-script tables into one.
func (a *Analyzer) MergeSymbolTables(tables []*symbol.Table) (*symbol.Table, error) {
	merged := symbol.NewTable(symbol.Shell)
	for _, t := range tables {
		if t == nil || t.Language != symbol.Shell {
			continue
		}
		if err := merged.Merge(t); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// ResolveCalls resolves only script-to-script tokens; HTTP and interpreter
// tokens stay raw for the cross-language bridges. Script tokens that point
// at files outside the table are dropped and reported as unresolved-call
// diagnostics.
func (a *Analyzer) ResolveCalls(table *symbol.Table) []symbol.Diagnostic {
	var diags []symbol.Diagnostic
	for _, sym := range table.All() {
		var resolved []string
		seen := map[string]bool{}
		for _, raw := range sym.RawCalls {
			target, ok := strings.CutPrefix(raw, symbol.TokenScript)
			if !ok {
				continue
			}
			qualified := scriptQualifiedName(target)
			if !table.Contains(qualified) {
				diags = append(diags, symbol.Diagnostic{
					Kind:    symbol.DiagUnresolvedCall,
					Path:    sym.FilePath,
					Subject: raw,
					Detail:  "no script symbol for call from " + sym.QualifiedName,
				})
				continue
			}
			if seen[qualified] {
				continue
			}
			seen[qualified] = true
			resolved = append(resolved, qualified)
		}
		sym.ResolvedCalls = append(sym.ResolvedCalls, resolved...)
	}
	return diags
}

// scriptQualifiedName converts a script path token into the dotted name a
// script symbol was registered under.
func scriptQualifiedName(path string) string {
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimSuffix(path, filepath.Ext(path))
	return strings.ReplaceAll(filepath.ToSlash(path), "/", ".")
}
