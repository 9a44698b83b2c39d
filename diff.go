package flowdiff

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/jward/flowdiff/internal/calltree"
	"github.com/jward/flowdiff/internal/symbol"
	"github.com/jward/flowdiff/internal/vcs"
)

// ChangeKind classifies one symbol between two snapshots.
type ChangeKind string

const (
	SymbolAdded     ChangeKind = "added"
	SymbolDeleted   ChangeKind = "deleted"
	SymbolModified  ChangeKind = "modified"
	SymbolUnchanged ChangeKind = "unchanged"
)

// SymbolChange is one symbol's before/after state. Exactly one of Before and
// After is nil for added and deleted symbols; both are set otherwise.
type SymbolChange struct {
	QualifiedName string         `json:"qualified_name"`
	Kind          ChangeKind     `json:"kind"`
	Before        *symbol.Symbol `json:"before,omitempty"`
	After         *symbol.Symbol `json:"after,omitempty"`
	Explanation   string         `json:"explanation,omitempty"`
}

// DiffSummary counts symbol changes by kind.
type DiffSummary struct {
	Added     int `json:"added"`
	Deleted   int `json:"deleted"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// DiffResult is the complete output of one diff request. It is not retained
// by the engine afterwards.
type DiffResult struct {
	BeforeRef         string                   `json:"before_ref"`
	AfterRef          string                   `json:"after_ref"`
	BeforeDescription string                   `json:"before_description"`
	AfterDescription  string                   `json:"after_description"`
	FileChanges       []vcs.FileChange         `json:"file_changes"`
	SymbolChanges     map[string]*SymbolChange `json:"symbol_changes"`
	BeforeTrees       []*calltree.Node         `json:"before_trees"`
	AfterTrees        []*calltree.Node         `json:"after_trees"`
	Summary           DiffSummary              `json:"summary"`
	Diagnostics       []symbol.Diagnostic      `json:"diagnostics,omitempty"`
}

// diffPhase names the states of the diff request state machine. A request
// advances through them in order; the first failing phase aborts the request
// with its name attached to the error.
type diffPhase string

const (
	phaseResolveRefs       diffPhase = "resolve-refs"
	phaseDetectFileChanges diffPhase = "detect-file-changes"
	phaseBuildBefore       diffPhase = "build-before-snapshot"
	phaseBuildAfter        diffPhase = "build-after-snapshot"
	phaseAlignSymbols      diffPhase = "align-symbols"
	phaseAnnotateTrees     diffPhase = "annotate-trees"
)

func phaseError(p diffPhase, err error) error {
	return fmt.Errorf("flowdiff: diff failed at %s: %w", p, err)
}

// snapshotProvider is the version-control surface the Differ needs. It is
// satisfied by vcs.Git.
type snapshotProvider interface {
	ResolveRef(ctx context.Context, ref string) (vcs.Snapshot, error)
	ListChangedFiles(ctx context.Context, before, after vcs.Snapshot) ([]vcs.FileChange, error)
	MaterializeSnapshot(ctx context.Context, snap vcs.Snapshot) (string, func(), error)
	Describe(ctx context.Context, snap vcs.Snapshot) string
}

// Differ runs symbol-level diffs between two git references of one project.
type Differ struct {
	root   string
	git    snapshotProvider
	logger *slog.Logger
	opts   []Option

	explainer Explainer
}

// NewDiffer creates a Differ for the repository containing root. It fails
// with vcs.NotARepositoryError before any snapshot work when root is not
// under version control. Engine options are applied to both per-snapshot
// pipeline runs.
func NewDiffer(ctx context.Context, root string, opts ...Option) (*Differ, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("flowdiff: resolve root: %w", err)
	}

	// Borrow the engine's option application to pick up logger and explainer.
	probe := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(probe)
	}

	git, err := vcs.Open(ctx, abs, probe.logger)
	if err != nil {
		return nil, err
	}
	return &Differ{
		root:      abs,
		git:       git,
		logger:    probe.logger,
		opts:      opts,
		explainer: probe.explainer,
	}, nil
}

// AnalyzeDiff resolves both references, detects changed files, runs the full
// analysis pipeline independently on each snapshot, aligns symbols by
// qualified name, and annotates both call-tree forests with change markers.
func (d *Differ) AnalyzeDiff(ctx context.Context, beforeRef, afterRef string) (*DiffResult, error) {
	// ResolveRefs
	before, err := d.git.ResolveRef(ctx, beforeRef)
	if err != nil {
		return nil, phaseError(phaseResolveRefs, err)
	}
	after, err := d.git.ResolveRef(ctx, afterRef)
	if err != nil {
		return nil, phaseError(phaseResolveRefs, err)
	}

	result := &DiffResult{
		BeforeRef:         beforeRef,
		AfterRef:          afterRef,
		BeforeDescription: d.git.Describe(ctx, before),
		AfterDescription:  d.git.Describe(ctx, after),
	}

	// DetectFileChanges
	result.FileChanges, err = d.git.ListChangedFiles(ctx, before, after)
	if err != nil {
		return nil, phaseError(phaseDetectFileChanges, err)
	}

	// BuildBeforeSnapshot / BuildAfterSnapshot. Each side gets its own
	// temporary extraction, released on every exit path.
	beforeAnalysis, release, err := d.analyzeSnapshot(ctx, before)
	if err != nil {
		return nil, phaseError(phaseBuildBefore, err)
	}
	defer release()

	afterAnalysis, release, err := d.analyzeSnapshot(ctx, after)
	if err != nil {
		return nil, phaseError(phaseBuildAfter, err)
	}
	defer release()

	result.Diagnostics = append(result.Diagnostics, beforeAnalysis.Diagnostics...)
	result.Diagnostics = append(result.Diagnostics, afterAnalysis.Diagnostics...)

	// AlignSymbols
	result.SymbolChanges = alignSymbols(beforeAnalysis, afterAnalysis)
	result.Summary = summarize(result.SymbolChanges)

	// AnnotateTrees
	result.BeforeTrees = annotate(beforeAnalysis.Trees, result.SymbolChanges)
	result.AfterTrees = annotate(afterAnalysis.Trees, result.SymbolChanges)

	d.explain(ctx, result)

	d.logger.Info("diff complete",
		"before", beforeRef,
		"after", afterRef,
		"added", result.Summary.Added,
		"deleted", result.Summary.Deleted,
		"modified", result.Summary.Modified)
	return result, nil
}

// analyzeSnapshot materializes one snapshot and runs the full pipeline on
// it. The returned release function removes the temporary extraction; for
// the working tree it is a no-op.
func (d *Differ) analyzeSnapshot(ctx context.Context, snap vcs.Snapshot) (*ProjectAnalysis, func(), error) {
	dir, release, err := d.git.MaterializeSnapshot(ctx, snap)
	if err != nil {
		return nil, nil, err
	}

	engine, err := New(dir, d.opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	analysis, err := engine.AnalyzeProject(ctx)
	if err != nil {
		release()
		return nil, nil, err
	}
	return analysis, release, nil
}

// alignSymbols classifies every qualified name present in either snapshot.
func alignSymbols(before, after *ProjectAnalysis) map[string]*SymbolChange {
	changes := make(map[string]*SymbolChange)

	for _, b := range before.Symbols() {
		change := &SymbolChange{QualifiedName: b.QualifiedName, Before: b}
		if a := after.Lookup(b.QualifiedName); a != nil {
			change.After = a
			if symbolsDiffer(b, a) {
				change.Kind = SymbolModified
			} else {
				change.Kind = SymbolUnchanged
			}
		} else {
			change.Kind = SymbolDeleted
		}
		changes[b.QualifiedName] = change
	}

	for _, a := range after.Symbols() {
		if before.Lookup(a.QualifiedName) == nil {
			changes[a.QualifiedName] = &SymbolChange{
				QualifiedName: a.QualifiedName,
				Kind:          SymbolAdded,
				After:         a,
			}
		}
	}
	return changes
}

// symbolsDiffer reports whether two versions of a symbol differ in
// definition line, signature, metadata, the set of resolved calls, or
// documentation. File paths are not compared: moving a definition to another
// file changes its module and therefore its qualified name, which already
// surfaces as a delete plus an add.
func symbolsDiffer(before, after *symbol.Symbol) bool {
	if before.LineNumber != after.LineNumber {
		return true
	}
	if before.Documentation != after.Documentation {
		return true
	}
	if before.ReturnType != after.ReturnType {
		return true
	}
	if len(before.Parameters) != len(after.Parameters) {
		return true
	}
	for i, p := range before.Parameters {
		if after.Parameters[i] != p {
			return true
		}
	}
	if len(before.Metadata) != len(after.Metadata) {
		return true
	}
	for k, v := range before.Metadata {
		if after.Metadata[k] != v {
			return true
		}
	}
	return !sameSet(before.ResolvedCalls, after.ResolvedCalls)
}

// sameSet compares two slices as sets; call order does not count as a
// modification.
func sameSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, s := range a {
		as[s] = true
	}
	bs := make(map[string]bool, len(b))
	for _, s := range b {
		bs[s] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if !bs[s] {
			return false
		}
	}
	return true
}

// annotate marks every node whose symbol changed. Before-trees carry marks
// for deleted and modified symbols, after-trees for added and modified ones;
// unchanged symbols are never marked.
func annotate(trees []*calltree.Node, changes map[string]*SymbolChange) []*calltree.Node {
	for _, tree := range trees {
		tree.Walk(func(n *calltree.Node) {
			if change, ok := changes[n.QualifiedName]; ok && change.Kind != SymbolUnchanged {
				n.HasChanges = true
			}
		})
	}
	return trees
}

func summarize(changes map[string]*SymbolChange) DiffSummary {
	var s DiffSummary
	for _, change := range changes {
		switch change.Kind {
		case SymbolAdded:
			s.Added++
		case SymbolDeleted:
			s.Deleted++
		case SymbolModified:
			s.Modified++
		case SymbolUnchanged:
			s.Unchanged++
		}
	}
	return s
}

// explain runs the optional explainer over every non-unchanged symbol
// change. Explainer failures are recorded and skipped; explanation is purely
// additive.
func (d *Differ) explain(ctx context.Context, result *DiffResult) {
	if d.explainer == nil {
		return
	}
	for _, qname := range sortedKeys(result.SymbolChanges) {
		change := result.SymbolChanges[qname]
		if change.Kind == SymbolUnchanged {
			continue
		}
		text, err := d.explainer.Explain(ctx, change.Before, change.After)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, symbol.Diagnostic{
				Kind:    symbol.DiagOverrideFailure,
				Subject: qname,
				Detail:  err.Error(),
			})
			continue
		}
		change.Explanation = text
	}
}

func sortedKeys(m map[string]*SymbolChange) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
