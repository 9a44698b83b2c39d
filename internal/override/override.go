// Package override defines the optional external collaborators: an
// entry-point filter that trims the rule-based candidate list, and a diff
// explainer that produces free text for a symbol change. Both are strictly
// additive; the engine behaves identically when they are absent, time out,
// or fail.
package override

import (
	"context"

	"github.com/jward/flowdiff/internal/symbol"
)

// Candidate is the per-symbol context handed to an entry-point filter. It
// deliberately carries facts about the symbol, never its source text.
type Candidate struct {
	Name          string   `json:"name"`
	QualifiedName string   `json:"qualified_name"`
	FilePath      string   `json:"file_path"`
	Language      string   `json:"language"`
	Parameters    []string `json:"parameters"`
	UsesCLI       bool     `json:"uses_cli"`
	InMainGuard   bool     `json:"in_main_guard"`
	IsTest        bool     `json:"is_test"`
	CallerCount   int      `json:"caller_count"`
	CalleeCount   int      `json:"callee_count"`
}

// EntryPointFilter filters the rule-based entry-point candidates down to a
// subset. Returning an error (or timing out via ctx) makes the engine fall
// back to the unfiltered candidates.
type EntryPointFilter interface {
	FilterEntryPoints(ctx context.Context, project string, candidates []Candidate) ([]string, error)
}

// Explainer produces a free-text explanation for one symbol change. It is
// never consulted for classification.
type Explainer interface {
	Explain(ctx context.Context, before, after *symbol.Symbol) (string, error)
}
