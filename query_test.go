package flowdiff

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/flowdiff/internal/symbol"
)

var queryProject = map[string]string{
	"pipeline.py": `def load():
    pass

def transform():
    load()

def run():
    transform()
    load()

if __name__ == "__main__":
    run()
`,
}

func queryFixture(t *testing.T) (*ProjectAnalysis, *QueryBuilder) {
	t.Helper()
	root := writeProject(t, queryProject)
	engine, err := New(root)
	require.NoError(t, err)
	analysis, err := engine.AnalyzeProject(context.Background())
	require.NoError(t, err)
	return analysis, analysis.Query()
}

func qualifiedNames(syms []*symbol.Symbol) []string {
	names := make([]string, len(syms))
	for i, sym := range syms {
		names[i] = sym.QualifiedName
	}
	return names
}

func TestQuery_CalleesFollowResolvedCallOrder(t *testing.T) {
	t.Parallel()
	_, q := queryFixture(t)

	callees, err := q.Callees("pipeline.run")
	require.NoError(t, err)
	assert.Equal(t, []string{"pipeline.transform", "pipeline.load"}, qualifiedNames(callees))
}

func TestQuery_CallersAreSorted(t *testing.T) {
	t.Parallel()
	_, q := queryFixture(t)

	callers, err := q.Callers("pipeline.load")
	require.NoError(t, err)
	assert.Equal(t, []string{"pipeline.run", "pipeline.transform"}, qualifiedNames(callers))
}

func TestQuery_UnknownSymbolIsAnError(t *testing.T) {
	t.Parallel()
	_, q := queryFixture(t)

	_, err := q.Callees("pipeline.missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.missing")

	_, err = q.Callers("pipeline.missing")
	require.Error(t, err)

	_, err = q.Reachable("pipeline.missing")
	require.Error(t, err)
}

func TestQuery_ReachableCoversTransitiveCalls(t *testing.T) {
	t.Parallel()
	_, q := queryFixture(t)

	reachable, err := q.Reachable("pipeline.run")
	require.NoError(t, err)
	assert.Equal(t, []string{"pipeline.load", "pipeline.transform"}, reachable)

	// A leaf reaches nothing, and the start symbol is never self-included
	// without a cycle.
	reachable, err = q.Reachable("pipeline.load")
	require.NoError(t, err)
	assert.Empty(t, reachable)
}

func TestQuery_SymbolsByFileSortedByLine(t *testing.T) {
	t.Parallel()
	analysis, q := queryFixture(t)

	run := analysis.Lookup("pipeline.run")
	require.NotNil(t, run)

	syms := q.SymbolsByFile(run.FilePath)
	assert.Equal(t, []string{"pipeline.load", "pipeline.transform", "pipeline.run"}, qualifiedNames(syms))
	assert.Equal(t, "pipeline.py", filepath.Base(run.FilePath))
}

func TestQuery_EntryPointsAndTrees(t *testing.T) {
	t.Parallel()
	_, q := queryFixture(t)

	entries := q.EntryPoints()
	require.Len(t, entries, 1)
	assert.Equal(t, "pipeline.run", entries[0].QualifiedName)

	tree := q.Tree("pipeline.run")
	require.NotNil(t, tree)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "pipeline.transform", tree.Children[0].QualifiedName)

	assert.Nil(t, q.Tree("pipeline.load"))
}
