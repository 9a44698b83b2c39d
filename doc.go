// Package flowdiff provides multi-language static call analysis and a
// git-backed symbol-level diff engine for projects mixing Python and shell
// scripts.
//
// # Pipeline
//
// Analysis runs in three phases:
//
//  1. Extract: every analyzable file is parsed by its language analyzer
//     (tree-sitter for Python, pattern extraction for shell), producing one
//     symbol table per file.
//  2. Resolve: per-file tables are merged per language, each analyzer
//     resolves calls using intra-language information (imports, local
//     bindings, class lookups), then cross-language bridges rewrite the
//     remaining raw tokens (curl calls to route handlers, interpreter
//     invocations to module entry functions).
//  3. Build: a deterministic rule-based classifier selects entry points and
//     the tree builder expands each one into a cycle-safe call tree.
//
// # Usage
//
// Analyze a project:
//
//	e, err := flowdiff.New("path/to/project")
//	if err != nil { ... }
//
//	analysis, err := e.AnalyzeProject(ctx)
//
// Diff two git references (the sentinel "working" means the uncommitted
// working tree):
//
//	d, err := flowdiff.NewDiffer(ctx, "path/to/project")
//	if err != nil { ... }
//
//	result, err := d.AnalyzeDiff(ctx, "HEAD~1", "working")
//
// A diff materializes each committed snapshot into its own temporary
// extraction, runs the full pipeline independently on each side, aligns
// symbols by qualified name, and annotates both call-tree forests with
// change markers. Per-file problems (unparsable files, unresolved calls)
// are recorded as diagnostics and never abort a run; reference and git
// failures abort only the requesting operation.
//
// # Entry-Point Override
//
// An optional Risor script can filter the rule-based entry-point candidates
// (see [WithEntryPointFilter]). The engine behaves identically when the
// script is absent, errors, or times out: it falls back to the rule-based
// list and records a diagnostic.
package flowdiff
