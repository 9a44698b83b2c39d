package flowdiff

import (
	"github.com/jward/flowdiff/internal/calltree"
	"github.com/jward/flowdiff/internal/override"
	"github.com/jward/flowdiff/internal/symbol"
	"github.com/jward/flowdiff/internal/vcs"
)

// Public type aliases for internal types exposed through the Engine and
// Differ APIs. These are Go type aliases (=), identical to the internal
// types at compile time, so external consumers never convert.

type Symbol = symbol.Symbol
type SymbolTable = symbol.Table
type Language = symbol.Language
type Diagnostic = symbol.Diagnostic
type Node = calltree.Node
type FileChange = vcs.FileChange
type Snapshot = vcs.Snapshot
type Candidate = override.Candidate
type EntryPointFilter = override.EntryPointFilter
type Explainer = override.Explainer

// Language tags and the working-tree sentinel, re-exported for callers.
const (
	Python          = symbol.Python
	Shell           = symbol.Shell
	WorkingSentinel = vcs.WorkingSentinel
)
