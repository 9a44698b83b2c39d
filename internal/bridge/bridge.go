// Package bridge resolves call tokens that cross language boundaries. Each
// Bridge declares the (source, target) language pair it handles and rewrites
// matching raw call tokens into qualified names from the target table.
package bridge

import (
	"sort"
	"strings"

	"github.com/jward/flowdiff/internal/symbol"
)

// Bridge maps raw call tokens from a source-language table to qualified
// names in a target-language table.
type Bridge interface {
	// Name identifies the bridge in logs and diagnostics.
	Name() string
	// Source is the language whose raw call tokens this bridge reads.
	Source() symbol.Language
	// Target is the language whose symbols this bridge resolves into.
	Target() symbol.Language
	// TokenPrefix is the raw-token prefix this bridge claims, e.g. "HTTP:".
	// Claimed tokens that resolve nowhere are reported as unresolved.
	TokenPrefix() string
	// Resolve returns a mapping from raw call tokens to the target qualified
	// names they reach. Tokens absent from the map stay unresolved.
	Resolve(tables map[symbol.Language]*symbol.Table) (map[string][]string, error)
}

// Resolver runs an ordered list of bridges after all intra-language
// resolution has finished. A failing bridge is skipped with a diagnostic;
// it never aborts the run.
type Resolver struct {
	bridges []Bridge
}

// NewResolver creates a resolver with the given bridges, applied in order.
func NewResolver(bridges ...Bridge) *Resolver {
	return &Resolver{bridges: bridges}
}

// Register appends a bridge to the resolution order.
func (r *Resolver) Register(b Bridge) {
	r.bridges = append(r.bridges, b)
}

// Apply runs every bridge over the merged tables and appends the resulting
// cross-language targets to each source symbol's resolved calls, preserving
// order and skipping duplicates. Claimed tokens that no bridge resolved are
// reported as unresolved-call diagnostics.
func (r *Resolver) Apply(tables map[symbol.Language]*symbol.Table) []symbol.Diagnostic {
	var diags []symbol.Diagnostic

	resolved := make(map[string][]string)
	prefixes := make([]string, 0, len(r.bridges))
	for _, b := range r.bridges {
		prefixes = append(prefixes, b.TokenPrefix())
		refs, err := b.Resolve(tables)
		if err != nil {
			diags = append(diags, symbol.Diagnostic{
				Kind:    symbol.DiagBridgeFailure,
				Subject: b.Name(),
				Detail:  err.Error(),
			})
			continue
		}
		for token, targets := range refs {
			resolved[token] = append(resolved[token], targets...)
		}
	}

	// Rewrite tokens per symbol in language order so appended targets and
	// diagnostics come out in a stable order.
	langs := make([]symbol.Language, 0, len(tables))
	for l := range tables {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })

	for _, l := range langs {
		for _, sym := range tables[l].All() {
			seen := make(map[string]bool, len(sym.ResolvedCalls))
			for _, existing := range sym.ResolvedCalls {
				seen[existing] = true
			}
			for _, raw := range sym.RawCalls {
				if !claimed(raw, prefixes) {
					continue
				}
				targets := resolved[raw]
				if len(targets) == 0 {
					if seen[raw] {
						continue
					}
					seen[raw] = true
					diags = append(diags, symbol.Diagnostic{
						Kind:    symbol.DiagUnresolvedCall,
						Path:    sym.FilePath,
						Subject: raw,
						Detail:  "no bridge target for call from " + sym.QualifiedName,
					})
					continue
				}
				for _, target := range targets {
					if seen[target] {
						continue
					}
					seen[target] = true
					sym.ResolvedCalls = append(sym.ResolvedCalls, target)
				}
			}
		}
	}
	return diags
}

// claimed reports whether any registered bridge owns the token's prefix.
func claimed(token string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(token, p) {
			return true
		}
	}
	return false
}
