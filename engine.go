package flowdiff

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/flowdiff/internal/bridge"
	"github.com/jward/flowdiff/internal/calltree"
	"github.com/jward/flowdiff/internal/lang"
	"github.com/jward/flowdiff/internal/lang/python"
	"github.com/jward/flowdiff/internal/lang/shell"
	"github.com/jward/flowdiff/internal/override"
	"github.com/jward/flowdiff/internal/symbol"
)

// Engine orchestrates the analysis pipeline for one project root: file
// discovery, per-language extraction, intra-language resolution, cross-
// language bridging, entry-point classification, and tree building.
type Engine struct {
	root      string
	logger    *slog.Logger
	registry  *lang.Registry
	bridges   *bridge.Resolver
	languages map[symbol.Language]bool // nil means all languages
	maxDepth  int
	filter    override.EntryPointFilter
	explainer override.Explainer

	// useParallel enables the parallel extraction pipeline.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...symbol.Language) Option {
	return func(e *Engine) {
		e.languages = make(map[symbol.Language]bool, len(languages))
		for _, l := range languages {
			e.languages[l] = true
		}
	}
}

// WithParallel controls parallel extraction. When true (default), file
// analysis fans out across a worker pool and tables are merged serially
// afterwards. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithMaxDepth caps call-tree expansion depth. Zero selects the default.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEntryPointFilter installs the optional entry-point override. Filter
// failure or timeout falls back to the rule-based candidates.
func WithEntryPointFilter(f override.EntryPointFilter) Option {
	return func(e *Engine) {
		e.filter = f
	}
}

// WithExplainer installs the optional diff explainer. It is only consulted
// by the Differ and never affects classification.
func WithExplainer(x override.Explainer) Option {
	return func(e *Engine) {
		e.explainer = x
	}
}

// New creates an Engine for the project at root with the default analyzers
// (Python, shell) and bridges (HTTP, interpreter) registered.
func New(root string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("flowdiff: resolve root: %w", err)
	}

	e := &Engine{
		root:        abs,
		logger:      slog.Default(),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = lang.NewRegistry()
	if e.enabled(symbol.Python) {
		e.registry.Register(python.New(abs))
	}
	if e.enabled(symbol.Shell) {
		e.registry.Register(shell.New(abs))
	}

	e.bridges = bridge.NewResolver(
		bridge.NewHTTPBridge(),
		bridge.NewInterpreterBridge(),
	)
	return e, nil
}

func (e *Engine) enabled(l symbol.Language) bool {
	return e.languages == nil || e.languages[l]
}

// Root returns the project root the Engine analyzes.
func (e *Engine) Root() string { return e.root }

// ProjectAnalysis is the result of one full pipeline run.
type ProjectAnalysis struct {
	Root        string              `json:"root"`
	EntryPoints []string            `json:"entry_points"`
	Trees       []*calltree.Node    `json:"trees"`
	Diagnostics []symbol.Diagnostic `json:"diagnostics,omitempty"`

	// Tables holds the merged per-language symbol tables; consumers that
	// need symbols look them up here by qualified name.
	Tables map[symbol.Language]*symbol.Table `json:"-"`
}

// Symbols returns every symbol across all languages sorted by qualified
// name.
func (p *ProjectAnalysis) Symbols() []*symbol.Symbol {
	var all []*symbol.Symbol
	for _, table := range p.Tables {
		all = append(all, table.All()...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].QualifiedName < all[j].QualifiedName
	})
	return all
}

// Lookup finds a symbol by qualified name in any language table.
func (p *ProjectAnalysis) Lookup(qualifiedName string) *symbol.Symbol {
	for _, table := range p.Tables {
		if sym := table.Lookup(qualifiedName); sym != nil {
			return sym
		}
	}
	return nil
}

// AnalyzeProject runs the full pipeline: discover files, extract symbols,
// resolve calls within and across languages, classify entry points, and
// build one call tree per entry point.
func (e *Engine) AnalyzeProject(ctx context.Context) (*ProjectAnalysis, error) {
	paths, err := e.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("flowdiff: discover files: %w", err)
	}
	e.logger.Debug("discovered files", "root", e.root, "count", len(paths))

	analysis := &ProjectAnalysis{
		Root:   e.root,
		Tables: make(map[symbol.Language]*symbol.Table),
	}

	// Extraction: one table per file, fanned out when parallel mode is on.
	// All extraction completes and merges before any resolution starts.
	var fileTables []*symbol.Table
	var diags []symbol.Diagnostic
	if e.useParallel {
		fileTables, diags = e.analyzeFilesParallel(ctx, paths)
	} else {
		fileTables, diags = e.analyzeFilesSerial(ctx, paths)
	}
	analysis.Diagnostics = append(analysis.Diagnostics, diags...)

	for _, l := range e.registry.Languages() {
		merged, err := e.registry.ForLanguage(l).MergeSymbolTables(fileTables)
		if err != nil {
			return nil, fmt.Errorf("flowdiff: merge %s tables: %w", l, err)
		}
		analysis.Tables[l] = merged
	}

	// Intra-language resolution, then bridges over the full table set.
	for _, l := range e.registry.Languages() {
		rdiags := e.registry.ForLanguage(l).ResolveCalls(analysis.Tables[l])
		analysis.Diagnostics = append(analysis.Diagnostics, rdiags...)
	}
	analysis.Diagnostics = append(analysis.Diagnostics, e.bridges.Apply(analysis.Tables)...)

	// Classification, optional override, tree building.
	entries := calltree.EntryPoints(analysis.Tables)
	entries, fdiags := e.applyEntryPointFilter(ctx, entries, analysis.Tables)
	analysis.Diagnostics = append(analysis.Diagnostics, fdiags...)

	for _, entry := range entries {
		analysis.EntryPoints = append(analysis.EntryPoints, entry.QualifiedName)
	}
	analysis.Trees = calltree.NewBuilder(analysis.Tables, e.maxDepth).Build(entries)

	e.logger.Info("analysis complete",
		"root", e.root,
		"files", len(paths),
		"entry_points", len(entries),
		"diagnostics", len(analysis.Diagnostics))
	return analysis, nil
}

// analyzeFilesSerial extracts files one at a time on the calling goroutine.
func (e *Engine) analyzeFilesSerial(ctx context.Context, paths []string) ([]*symbol.Table, []symbol.Diagnostic) {
	var tables []*symbol.Table
	var diags []symbol.Diagnostic
	for _, path := range paths {
		analyzer := e.registry.ForFile(path)
		if analyzer == nil {
			continue
		}
		table, fileDiags := analyzer.BuildSymbolTable(ctx, path)
		tables = append(tables, table)
		diags = append(diags, fileDiags...)
	}
	return tables, diags
}

// applyEntryPointFilter runs the optional override over the rule-based
// candidates. Any failure keeps the unfiltered list; the filter can only
// narrow, never widen.
func (e *Engine) applyEntryPointFilter(ctx context.Context, entries []*symbol.Symbol, tables map[symbol.Language]*symbol.Table) ([]*symbol.Symbol, []symbol.Diagnostic) {
	if e.filter == nil || len(entries) == 0 {
		return entries, nil
	}

	callers := calltree.CallerCounts(tables)
	candidates := make([]override.Candidate, len(entries))
	for i, sym := range entries {
		candidates[i] = override.Candidate{
			Name:          sym.Name,
			QualifiedName: sym.QualifiedName,
			FilePath:      sym.FilePath,
			Language:      string(sym.Language),
			Parameters:    sym.Parameters,
			UsesCLI:       sym.Meta(symbol.MetaCLI),
			InMainGuard:   sym.Meta(symbol.MetaMainGuard),
			IsTest:        strings.HasPrefix(sym.Name, "test_"),
			CallerCount:   callers[sym.QualifiedName],
			CalleeCount:   len(sym.ResolvedCalls),
		}
	}

	kept, err := e.filter.FilterEntryPoints(ctx, filepath.Base(e.root), candidates)
	if err != nil {
		e.logger.Warn("entry-point filter failed, using rule-based candidates", "error", err)
		return entries, []symbol.Diagnostic{{
			Kind:   symbol.DiagOverrideFailure,
			Detail: err.Error(),
		}}
	}

	keep := make(map[string]bool, len(kept))
	for _, qname := range kept {
		keep[qname] = true
	}
	var filtered []*symbol.Symbol
	for _, sym := range entries {
		if keep[sym.QualifiedName] {
			filtered = append(filtered, sym)
		}
	}
	return filtered, nil
}

// skipDirs are directories excluded from the filesystem-walk fallback.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"venv":         true,
}

// discoverFiles lists analyzable files under the root. Inside a git
// repository it uses git ls-files to respect .gitignore; otherwise it falls
// back to a filesystem walk that skips hidden and dependency directories.
func (e *Engine) discoverFiles() ([]string, error) {
	paths, err := e.gitListFiles()
	if err != nil {
		return e.walkListFiles()
	}
	return paths, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files, filtered to analyzable extensions.
func (e *Engine) gitListFiles() ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = e.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		abs := filepath.Join(e.root, line)
		if e.registry.ForFile(abs) != nil {
			paths = append(paths, abs)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used when git is
// unavailable or the root is not a repository (snapshot extractions).
func (e *Engine) walkListFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") && path != e.root || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if e.registry.ForFile(path) != nil {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
