package flowdiff

import (
	"fmt"
	"sort"

	"github.com/jward/flowdiff/internal/calltree"
	"github.com/jward/flowdiff/internal/symbol"
)

// QueryBuilder provides graph queries over a completed analysis. The call
// graph adjacency is bulk-built once from resolved calls, then every query
// is a map lookup with no re-traversal of symbol tables.
type QueryBuilder struct {
	analysis *ProjectAnalysis
	forward  map[string][]string // caller -> callees
	reverse  map[string][]string // callee -> callers
	byFile   map[string][]*symbol.Symbol
}

// Query returns a QueryBuilder over the analysis.
func (p *ProjectAnalysis) Query() *QueryBuilder {
	q := &QueryBuilder{
		analysis: p,
		forward:  make(map[string][]string),
		reverse:  make(map[string][]string),
		byFile:   make(map[string][]*symbol.Symbol),
	}
	for _, sym := range p.Symbols() {
		q.forward[sym.QualifiedName] = append(q.forward[sym.QualifiedName], sym.ResolvedCalls...)
		for _, target := range sym.ResolvedCalls {
			q.reverse[target] = append(q.reverse[target], sym.QualifiedName)
		}
		q.byFile[sym.FilePath] = append(q.byFile[sym.FilePath], sym)
	}
	for _, callers := range q.reverse {
		sort.Strings(callers)
	}
	return q
}

// Callees returns the symbols a symbol calls, in resolved-call order.
func (q *QueryBuilder) Callees(qualifiedName string) ([]*symbol.Symbol, error) {
	if q.analysis.Lookup(qualifiedName) == nil {
		return nil, fmt.Errorf("flowdiff: unknown symbol %q", qualifiedName)
	}
	return q.lookupAll(q.forward[qualifiedName]), nil
}

// Callers returns the symbols that call a symbol, sorted by qualified name.
func (q *QueryBuilder) Callers(qualifiedName string) ([]*symbol.Symbol, error) {
	if q.analysis.Lookup(qualifiedName) == nil {
		return nil, fmt.Errorf("flowdiff: unknown symbol %q", qualifiedName)
	}
	return q.lookupAll(q.reverse[qualifiedName]), nil
}

// SymbolsByFile returns every symbol defined in a file, sorted by line.
func (q *QueryBuilder) SymbolsByFile(path string) []*symbol.Symbol {
	syms := append([]*symbol.Symbol(nil), q.byFile[path]...)
	sort.Slice(syms, func(i, j int) bool {
		return syms[i].LineNumber < syms[j].LineNumber
	})
	return syms
}

// Reachable returns the set of qualified names reachable from a symbol
// through resolved calls, via BFS over the bulk-built adjacency. The start
// symbol is not included unless it is reachable through a cycle.
func (q *QueryBuilder) Reachable(qualifiedName string) ([]string, error) {
	if q.analysis.Lookup(qualifiedName) == nil {
		return nil, fmt.Errorf("flowdiff: unknown symbol %q", qualifiedName)
	}

	seen := map[string]bool{}
	queue := append([]string(nil), q.forward[qualifiedName]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		queue = append(queue, q.forward[next]...)
	}

	out := make([]string, 0, len(seen))
	for qname := range seen {
		out = append(out, qname)
	}
	sort.Strings(out)
	return out, nil
}

// EntryPoints returns the entry-point symbols of the analysis in tree order.
func (q *QueryBuilder) EntryPoints() []*symbol.Symbol {
	return q.lookupAll(q.analysis.EntryPoints)
}

// Tree returns the call tree rooted at an entry point, or nil when the
// qualified name is not an entry point.
func (q *QueryBuilder) Tree(qualifiedName string) *calltree.Node {
	for _, tree := range q.analysis.Trees {
		if tree.QualifiedName == qualifiedName {
			return tree
		}
	}
	return nil
}

func (q *QueryBuilder) lookupAll(names []string) []*symbol.Symbol {
	syms := make([]*symbol.Symbol, 0, len(names))
	for _, qname := range names {
		if sym := q.analysis.Lookup(qname); sym != nil {
			syms = append(syms, sym)
		}
	}
	return syms
}
