package override

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"

	"github.com/jward/flowdiff/internal/symbol"
)

// DefaultScriptTimeout bounds one script evaluation. A script that exceeds
// it counts as a filter failure and triggers the rule-based fallback.
const DefaultScriptTimeout = 10 * time.Second

// ScriptFilter runs a Risor script over the candidate list. The script sees
// `project` (string) and `candidates` (list of maps) and must evaluate to a
// list of the qualified names to keep.
type ScriptFilter struct {
	source  string
	timeout time.Duration
}

// NewScriptFilter creates a filter from Risor source code.
func NewScriptFilter(source string) *ScriptFilter {
	return &ScriptFilter{source: source, timeout: DefaultScriptTimeout}
}

// LoadScriptFilter reads a filter script from disk.
func LoadScriptFilter(path string) (*ScriptFilter, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("override: load filter script: %w", err)
	}
	return NewScriptFilter(string(src)), nil
}

// WithTimeout sets the per-evaluation timeout.
func (f *ScriptFilter) WithTimeout(d time.Duration) *ScriptFilter {
	f.timeout = d
	return f
}

// FilterEntryPoints evaluates the script and returns the qualified names it
// kept.
func (f *ScriptFilter) FilterEntryPoints(ctx context.Context, project string, candidates []Candidate) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	items := make([]object.Object, len(candidates))
	for i, c := range candidates {
		items[i] = candidateObject(c)
	}

	result, err := risor.Eval(ctx, f.source,
		risor.WithGlobal("project", object.NewString(project)),
		risor.WithGlobal("candidates", object.NewList(items)),
	)
	if err != nil {
		return nil, fmt.Errorf("override: filter script: %w", err)
	}

	list, ok := result.(*object.List)
	if !ok {
		return nil, fmt.Errorf("override: filter script returned %s, want list", result.Type())
	}
	kept := make([]string, 0, len(list.Value()))
	for _, item := range list.Value() {
		str, ok := item.(*object.String)
		if !ok {
			return nil, fmt.Errorf("override: filter script returned list item of type %s, want string", item.Type())
		}
		kept = append(kept, str.Value())
	}
	return kept, nil
}

func candidateObject(c Candidate) object.Object {
	params := make([]object.Object, len(c.Parameters))
	for i, p := range c.Parameters {
		params[i] = object.NewString(p)
	}
	return object.NewMap(map[string]object.Object{
		"name":           object.NewString(c.Name),
		"qualified_name": object.NewString(c.QualifiedName),
		"file_path":      object.NewString(c.FilePath),
		"language":       object.NewString(c.Language),
		"parameters":     object.NewList(params),
		"uses_cli":       object.NewBool(c.UsesCLI),
		"in_main_guard":  object.NewBool(c.InMainGuard),
		"is_test":        object.NewBool(c.IsTest),
		"caller_count":   object.NewInt(int64(c.CallerCount)),
		"callee_count":   object.NewInt(int64(c.CalleeCount)),
	})
}

// ScriptExplainer runs a Risor script per symbol change. The script sees
// `before` and `after` maps (either may be nil) and must evaluate to a
// string.
type ScriptExplainer struct {
	source  string
	timeout time.Duration
}

// NewScriptExplainer creates an explainer from Risor source code.
func NewScriptExplainer(source string) *ScriptExplainer {
	return &ScriptExplainer{source: source, timeout: DefaultScriptTimeout}
}

// Explain evaluates the script for one before/after pair.
func (e *ScriptExplainer) Explain(ctx context.Context, before, after *symbol.Symbol) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := risor.Eval(ctx, e.source,
		risor.WithGlobal("before", symbolObject(before)),
		risor.WithGlobal("after", symbolObject(after)),
	)
	if err != nil {
		return "", fmt.Errorf("override: explain script: %w", err)
	}
	str, ok := result.(*object.String)
	if !ok {
		return "", fmt.Errorf("override: explain script returned %s, want string", result.Type())
	}
	return str.Value(), nil
}

func symbolObject(sym *symbol.Symbol) object.Object {
	if sym == nil {
		return object.Nil
	}
	meta := make(map[string]object.Object, len(sym.Metadata))
	for k, v := range sym.Metadata {
		meta[k] = object.NewString(v)
	}
	calls := make([]object.Object, len(sym.ResolvedCalls))
	for i, c := range sym.ResolvedCalls {
		calls[i] = object.NewString(c)
	}
	return object.NewMap(map[string]object.Object{
		"name":           object.NewString(sym.Name),
		"qualified_name": object.NewString(sym.QualifiedName),
		"language":       object.NewString(string(sym.Language)),
		"file_path":      object.NewString(sym.FilePath),
		"line_number":    object.NewInt(int64(sym.LineNumber)),
		"documentation":  object.NewString(sym.Documentation),
		"metadata":       object.NewMap(meta),
		"resolved_calls": object.NewList(calls),
	})
}
