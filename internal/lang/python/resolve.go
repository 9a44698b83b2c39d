package python

import (
	"strings"

	"github.com/jward/flowdiff/internal/symbol"
)

// resolver maps raw call names to qualified symbol names using the module
// and call contexts accumulated during extraction. Resolution runs after
// merge, single-threaded, so it reads the analyzer maps without locking.
type resolver struct {
	a     *Analyzer
	table *symbol.Table
}

func (a *Analyzer) newResolver(table *symbol.Table) *resolver {
	return &resolver{a: a, table: table}
}

// resolve returns the qualified name a raw call refers to, or "" when no
// strategy produces a symbol that exists in the table. Strategies run in a
// fixed order; the first hit wins.
func (r *resolver) resolve(raw string, sym *symbol.Symbol) string {
	module := r.a.moduleName(sym.FilePath)
	info := r.a.modules[module]
	cc := r.a.calls[sym.QualifiedName]

	head, rest := splitHead(raw)

	// Method call on self inside a class body.
	if head == "self" && rest != "" && sym.Meta(symbol.MetaClassMethod) {
		if dot := strings.LastIndexByte(sym.QualifiedName, '.'); dot > 0 {
			class := sym.QualifiedName[:dot]
			if target := r.try(class + "." + rest); target != "" {
				return target
			}
		}
	}

	// Direct-assignment type inference: x = Foo(); x.method().
	if cc != nil && rest != "" {
		if ctor, ok := cc.bindings[head]; ok {
			if class := r.className(ctor, module, info, cc); class != "" {
				if target := r.try(class + "." + rest); target != "" {
					return target
				}
			}
		}
	}

	// Imports local to the calling function shadow module-level ones.
	if cc != nil && cc.localImports != nil {
		if target := r.viaImports(cc.localImports, raw); target != "" {
			return target
		}
	}

	// Constructor call on a bare class name.
	if rest == "" {
		if class := r.className(raw, module, info, cc); class != "" {
			return r.constructor(class)
		}
	}

	// Module-level imports, longest dotted prefix first.
	if info != nil {
		if target := r.viaImports(info.imports, raw); target != "" {
			return target
		}
	}

	// Same-module call.
	if target := r.try(module + "." + raw); target != "" {
		return target
	}

	// Already fully qualified.
	if strings.ContainsRune(raw, '.') {
		if target := r.try(raw); target != "" {
			return target
		}
	}

	return ""
}

// viaImports tries every dotted prefix of raw against the import map, longest
// first, substituting the mapped qualified name for the matched prefix.
func (r *resolver) viaImports(imports map[string]string, raw string) string {
	segments := strings.Split(raw, ".")
	for k := len(segments); k >= 1; k-- {
		prefix := strings.Join(segments[:k], ".")
		mapped, ok := imports[prefix]
		if !ok {
			continue
		}
		candidate := mapped
		if k < len(segments) {
			candidate = mapped + "." + strings.Join(segments[k:], ".")
		}
		if target := r.try(candidate); target != "" {
			return target
		}
	}
	return ""
}

// className resolves a constructor name to the qualified name of a class
// symbol, checking same-module classes, then imports, then the table itself.
func (r *resolver) className(name, module string, info *moduleInfo, cc *callContext) string {
	if info != nil {
		if ci, ok := info.classes[name]; ok {
			return ci.qualifiedName
		}
	}

	var candidates []string
	if cc != nil && cc.localImports != nil {
		if mapped, ok := cc.localImports[name]; ok {
			candidates = append(candidates, mapped)
		}
	}
	if info != nil {
		if mapped, ok := info.imports[name]; ok {
			candidates = append(candidates, mapped)
		}
	}
	candidates = append(candidates, module+"."+name)
	if strings.ContainsRune(name, '.') {
		candidates = append(candidates, name)
	}

	for _, c := range candidates {
		if sym := r.table.Lookup(c); sym != nil && sym.Metadata["kind"] == "class" {
			return c
		}
	}
	return ""
}

// constructor maps a class to its __init__ when one is defined, otherwise to
// the class symbol itself.
func (r *resolver) constructor(class string) string {
	if init := class + ".__init__"; r.table.Contains(init) {
		return init
	}
	return class
}

// try returns candidate if it names a symbol, routing class hits through
// constructor resolution so that calls land on __init__ when present.
func (r *resolver) try(candidate string) string {
	sym := r.table.Lookup(candidate)
	if sym == nil {
		return ""
	}
	if sym.Metadata["kind"] == "class" {
		return r.constructor(candidate)
	}
	return candidate
}

// splitHead splits a dotted name into its first segment and the remainder.
func splitHead(raw string) (string, string) {
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		return raw[:idx], raw[idx+1:]
	}
	return raw, ""
}
