// Package calltree classifies entry points and expands the resolved call
// graph into ordered, cycle-safe trees rooted at each entry point.
package calltree

import (
	"sort"
	"strings"

	"github.com/jward/flowdiff/internal/symbol"
)

// exactEntryNames are accepted as entry points on an exact match only;
// prefix or suffix variants never qualify.
var exactEntryNames = map[string]bool{
	"main":       true,
	"run":        true,
	"execute":    true,
	"start":      true,
	"init":       true,
	"initialize": true,
}

// fixtureNames are test-lifecycle functions recognized alongside test_*.
var fixtureNames = map[string]bool{
	"setUp":           true,
	"tearDown":        true,
	"setUpClass":      true,
	"tearDownClass":   true,
	"setup_method":    true,
	"teardown_method": true,
	"setup_class":     true,
	"teardown_class":  true,
	"setup_module":    true,
	"teardown_module": true,
}

// IsEntryPoint applies the classification rules to one symbol. The procedure
// is total: every symbol gets exactly one answer. The exclusion rule runs
// first so that private, dunder, class-method, and property symbols are
// never entry points no matter what the remaining rules would say.
func IsEntryPoint(sym *symbol.Symbol) bool {
	// Whole-script symbols are always entry points.
	if sym.Meta(symbol.MetaScript) {
		return true
	}

	if strings.HasPrefix(sym.Name, "_") ||
		sym.Meta(symbol.MetaClassMethod) ||
		sym.Meta(symbol.MetaProperty) {
		return false
	}

	if sym.Meta(symbol.MetaMainGuard) {
		return true
	}
	if sym.Meta(symbol.MetaCLI) {
		return true
	}
	if strings.HasPrefix(sym.Name, "test_") || fixtureNames[sym.Name] {
		return true
	}
	if exactEntryNames[sym.Name] {
		return true
	}

	// Skeptical default: an uncalled symbol with none of the facts above is
	// an orphan, not an entry point.
	return false
}

// EntryPoints returns every entry-point symbol across the given tables,
// sorted by qualified name for deterministic tree order.
func EntryPoints(tables map[symbol.Language]*symbol.Table) []*symbol.Symbol {
	var entries []*symbol.Symbol
	for _, table := range tables {
		if table == nil {
			continue
		}
		for _, sym := range table.All() {
			if IsEntryPoint(sym) {
				entries = append(entries, sym)
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].QualifiedName < entries[j].QualifiedName
	})
	return entries
}

// CallerCounts returns, for every qualified name, how many distinct symbols
// reference it in their resolved calls. Used as override-candidate context.
func CallerCounts(tables map[symbol.Language]*symbol.Table) map[string]int {
	counts := make(map[string]int)
	for _, table := range tables {
		if table == nil {
			continue
		}
		for _, sym := range table.All() {
			for _, target := range sym.ResolvedCalls {
				counts[target]++
			}
		}
	}
	return counts
}
