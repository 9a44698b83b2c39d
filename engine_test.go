package flowdiff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/flowdiff/internal/override"
	"github.com/jward/flowdiff/internal/symbol"
)

// fixtureProject is a small mixed Python/shell project exercising imports,
// classes, HTTP routes, and cross-language calls.
var fixtureProject = map[string]string{
	"app/util.py": `def helper():
    pass
`,
	"app/main.py": `from app.util import helper

def main():
    helper()

if __name__ == "__main__":
    main()
`,
	"api/server.py": `@app.post("/analyze")
def analyze(req):
    pass
`,
	"scripts/smoke.sh": `#!/bin/bash
curl -X POST http://localhost:8000/analyze
python -m app.main
`,
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func analyzeFixture(t *testing.T, opts ...Option) *ProjectAnalysis {
	t.Helper()
	root := writeProject(t, fixtureProject)
	engine, err := New(root, opts...)
	require.NoError(t, err)
	analysis, err := engine.AnalyzeProject(context.Background())
	require.NoError(t, err)
	return analysis
}

func TestAnalyzeProject_FindsEntryPointsAcrossLanguages(t *testing.T) {
	t.Parallel()
	analysis := analyzeFixture(t)

	assert.Equal(t, []string{"app.main.main", "scripts.smoke"}, analysis.EntryPoints)
	require.Len(t, analysis.Trees, 2)
}

func TestAnalyzeProject_ResolvesIntraLanguageCalls(t *testing.T) {
	t.Parallel()
	analysis := analyzeFixture(t)

	main := analysis.Lookup("app.main.main")
	require.NotNil(t, main)
	assert.Equal(t, []string{"app.util.helper"}, main.ResolvedCalls)
}

func TestAnalyzeProject_BridgesShellToPython(t *testing.T) {
	t.Parallel()
	analysis := analyzeFixture(t)

	smoke := analysis.Lookup("scripts.smoke")
	require.NotNil(t, smoke)
	// HTTP token resolved via the endpoint index, interpreter token via the
	// main-guard functions of app.main.
	assert.ElementsMatch(t,
		[]string{"api.server.analyze", "app.main.main"},
		smoke.ResolvedCalls)
}

func TestAnalyzeProject_FilePathsRelativeToRoot(t *testing.T) {
	t.Parallel()
	analysis := analyzeFixture(t)

	main := analysis.Lookup("app.main.main")
	require.NotNil(t, main)
	assert.Equal(t, filepath.FromSlash("app/main.py"), main.FilePath)

	smoke := analysis.Lookup("scripts.smoke")
	require.NotNil(t, smoke)
	assert.Equal(t, filepath.FromSlash("scripts/smoke.sh"), smoke.FilePath)
}

func TestAnalyzeProject_UnmatchedBridgeTokenRecordsDiagnostic(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"api/server.py": `@app.post("/analyze")
def analyze(req):
    pass
`,
		"scripts/check.sh": `#!/bin/bash
curl -X POST http://localhost:8000/analyze
curl http://localhost:8000/nope
`,
	})
	engine, err := New(root)
	require.NoError(t, err)
	analysis, err := engine.AnalyzeProject(context.Background())
	require.NoError(t, err)

	var unresolved []symbol.Diagnostic
	for _, d := range analysis.Diagnostics {
		if d.Kind == symbol.DiagUnresolvedCall {
			unresolved = append(unresolved, d)
		}
	}
	require.Len(t, unresolved, 1)
	assert.Equal(t, "HTTP:GET:/nope", unresolved[0].Subject)

	check := analysis.Lookup("scripts.check")
	require.NotNil(t, check)
	assert.Equal(t, []string{"api.server.analyze"}, check.ResolvedCalls)
}

func TestAnalyzeProject_SerialAndParallelAgree(t *testing.T) {
	t.Parallel()
	root := writeProject(t, fixtureProject)

	parallel, err := New(root)
	require.NoError(t, err)
	serial, err := New(root, WithParallel(false))
	require.NoError(t, err)

	pa, err := parallel.AnalyzeProject(context.Background())
	require.NoError(t, err)
	sa, err := serial.AnalyzeProject(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pa.EntryPoints, sa.EntryPoints)
	assert.Equal(t, len(pa.Symbols()), len(sa.Symbols()))
}

func TestAnalyzeProject_LanguageFilterExcludesOthers(t *testing.T) {
	t.Parallel()
	analysis := analyzeFixture(t, WithLanguages(symbol.Shell))

	assert.Nil(t, analysis.Lookup("app.main.main"))
	require.NotNil(t, analysis.Lookup("scripts.smoke"))
	assert.Equal(t, []string{"scripts.smoke"}, analysis.EntryPoints)
}

func TestAnalyzeProject_EntryPointFilterNarrowsCandidates(t *testing.T) {
	t.Parallel()
	filter := override.NewScriptFilter(`["app.main.main"]`)
	analysis := analyzeFixture(t, WithEntryPointFilter(filter))

	assert.Equal(t, []string{"app.main.main"}, analysis.EntryPoints)
}

type erroringFilter struct{}

func (erroringFilter) FilterEntryPoints(context.Context, string, []override.Candidate) ([]string, error) {
	return nil, errors.New("classifier unavailable")
}

func TestAnalyzeProject_FilterFailureFallsBackToRules(t *testing.T) {
	t.Parallel()
	analysis := analyzeFixture(t, WithEntryPointFilter(erroringFilter{}))

	// Same output as the unfiltered run, plus a recorded diagnostic.
	assert.Equal(t, []string{"app.main.main", "scripts.smoke"}, analysis.EntryPoints)

	found := false
	for _, d := range analysis.Diagnostics {
		if d.Kind == symbol.DiagOverrideFailure {
			found = true
		}
	}
	assert.True(t, found, "expected an override-failure diagnostic")
}

func TestAnalyzeProject_RepeatRunsAreDeterministic(t *testing.T) {
	t.Parallel()
	root := writeProject(t, fixtureProject)
	engine, err := New(root)
	require.NoError(t, err)

	first, err := engine.AnalyzeProject(context.Background())
	require.NoError(t, err)
	second, err := engine.AnalyzeProject(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.EntryPoints, second.EntryPoints)
	require.Equal(t, len(first.Trees), len(second.Trees))
	for i := range first.Trees {
		assert.Equal(t, first.Trees[i].QualifiedName, second.Trees[i].QualifiedName)
	}
}
