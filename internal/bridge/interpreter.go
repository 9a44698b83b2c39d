package bridge

import (
	"strings"

	"github.com/jward/flowdiff/internal/symbol"
)

// InterpreterBridge maps shell `python ...` invocations to Python symbols.
// A "PY:" token names either a dotted module (`python -m a.b`) or a script
// path (`python src/tool.py`); both normalize to a module name, and the
// invocation resolves to the functions that module runs when executed: its
// main-guard symbols, or a `main` function when no guard was recorded.
type InterpreterBridge struct{}

// NewInterpreterBridge creates the shell-to-Python interpreter bridge.
func NewInterpreterBridge() *InterpreterBridge { return &InterpreterBridge{} }

func (b *InterpreterBridge) Name() string            { return "interpreter-shell-to-python" }
func (b *InterpreterBridge) Source() symbol.Language { return symbol.Shell }
func (b *InterpreterBridge) Target() symbol.Language { return symbol.Python }
func (b *InterpreterBridge) TokenPrefix() string     { return symbol.TokenPython }

func (b *InterpreterBridge) Resolve(tables map[symbol.Language]*symbol.Table) (map[string][]string, error) {
	pyTable := tables[symbol.Python]
	shTable := tables[symbol.Shell]
	if pyTable == nil || shTable == nil {
		return nil, nil
	}

	refs := make(map[string][]string)
	for _, sym := range shTable.All() {
		for _, raw := range sym.RawCalls {
			target, ok := strings.CutPrefix(raw, symbol.TokenPython)
			if !ok {
				continue
			}
			module := moduleFromToken(target)
			if entries := moduleEntryFunctions(pyTable, module); len(entries) > 0 {
				refs[raw] = entries
			}
		}
	}
	return refs, nil
}

// moduleFromToken normalizes a PY token target to a dotted module name.
func moduleFromToken(target string) string {
	if strings.HasSuffix(target, ".py") {
		target = strings.TrimSuffix(target, ".py")
		target = strings.TrimPrefix(target, "./")
		return strings.ReplaceAll(target, "/", ".")
	}
	return target
}

// moduleEntryFunctions returns the symbols an interpreter run of module
// executes: every symbol in the module with a recorded main-guard call, or
// module.main as a fallback.
func moduleEntryFunctions(table *symbol.Table, module string) []string {
	prefix := module + "."
	var guarded []string
	for _, sym := range table.All() {
		if strings.HasPrefix(sym.QualifiedName, prefix) && sym.Meta(symbol.MetaMainGuard) {
			guarded = append(guarded, sym.QualifiedName)
		}
	}
	if len(guarded) > 0 {
		return guarded
	}
	if main := prefix + "main"; table.Contains(main) {
		return []string{main}
	}
	return nil
}
