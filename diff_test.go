package flowdiff

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/flowdiff/internal/vcs"
)

func initDiffRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
	} {
		runGit(t, root, args...)
	}
	return root
}

func runGit(t *testing.T, root string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func commitFiles(t *testing.T, root, message string, files map[string]string) string {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	runGit(t, root, "add", "-A")
	runGit(t, root, "commit", "-m", message)
	return runGit(t, root, "rev-parse", "HEAD")
}

const beforeApp = `def helper():
    pass

def retired():
    pass

def main():
    helper()

if __name__ == "__main__":
    main()
`

// Relative to beforeApp: helper gains a docstring, retired is gone, fresh is
// new, and main shifts down one line.
const afterApp = `def helper():
    "updated"
    pass

def fresh():
    pass

def main():
    helper()

if __name__ == "__main__":
    main()
`

const stableLib = `def constant():
    pass
`

func diffFixtureRepo(t *testing.T) (root, before, after string) {
	t.Helper()
	root = initDiffRepo(t)
	before = commitFiles(t, root, "initial", map[string]string{
		"app.py": beforeApp,
		"lib.py": stableLib,
	})
	after = commitFiles(t, root, "rework", map[string]string{
		"app.py": afterApp,
	})
	return root, before, after
}

func TestAnalyzeDiff_ClassifiesSymbolChanges(t *testing.T) {
	t.Parallel()
	root, before, after := diffFixtureRepo(t)

	differ, err := NewDiffer(context.Background(), root)
	require.NoError(t, err)
	result, err := differ.AnalyzeDiff(context.Background(), before, after)
	require.NoError(t, err)

	require.Contains(t, result.SymbolChanges, "app.fresh")
	assert.Equal(t, SymbolAdded, result.SymbolChanges["app.fresh"].Kind)
	assert.Nil(t, result.SymbolChanges["app.fresh"].Before)

	require.Contains(t, result.SymbolChanges, "app.retired")
	assert.Equal(t, SymbolDeleted, result.SymbolChanges["app.retired"].Kind)
	assert.Nil(t, result.SymbolChanges["app.retired"].After)

	// Docstring change on helper, line shift on main.
	assert.Equal(t, SymbolModified, result.SymbolChanges["app.helper"].Kind)
	assert.Equal(t, SymbolModified, result.SymbolChanges["app.main"].Kind)

	assert.Equal(t, SymbolUnchanged, result.SymbolChanges["lib.constant"].Kind)

	assert.Equal(t, DiffSummary{Added: 1, Deleted: 1, Modified: 2, Unchanged: 1}, result.Summary)
}

func TestAnalyzeDiff_ReportsFileChanges(t *testing.T) {
	t.Parallel()
	root, before, after := diffFixtureRepo(t)

	differ, err := NewDiffer(context.Background(), root)
	require.NoError(t, err)
	result, err := differ.AnalyzeDiff(context.Background(), before, after)
	require.NoError(t, err)

	require.Len(t, result.FileChanges, 1)
	assert.Equal(t, "app.py", result.FileChanges[0].Path)
	assert.Equal(t, vcs.Modified, result.FileChanges[0].Kind)
}

func TestAnalyzeDiff_AnnotatesTreesBySide(t *testing.T) {
	t.Parallel()
	root, before, after := diffFixtureRepo(t)

	differ, err := NewDiffer(context.Background(), root)
	require.NoError(t, err)
	result, err := differ.AnalyzeDiff(context.Background(), before, after)
	require.NoError(t, err)

	markedNames := func(forest []*Node) map[string]bool {
		out := make(map[string]bool)
		for _, tree := range forest {
			tree.Walk(func(n *Node) {
				if n.HasChanges {
					out[n.QualifiedName] = true
				}
			})
		}
		return out
	}

	beforeMarks := markedNames(result.BeforeTrees)
	afterMarks := markedNames(result.AfterTrees)

	// Modified symbols are marked on both sides.
	assert.True(t, beforeMarks["app.main"])
	assert.True(t, beforeMarks["app.helper"])
	assert.True(t, afterMarks["app.main"])
	assert.True(t, afterMarks["app.helper"])
}

func TestAnalyzeDiff_SwappingRefsMirrorsAddedAndDeleted(t *testing.T) {
	t.Parallel()
	root, before, after := diffFixtureRepo(t)

	differ, err := NewDiffer(context.Background(), root)
	require.NoError(t, err)

	forward, err := differ.AnalyzeDiff(context.Background(), before, after)
	require.NoError(t, err)
	reverse, err := differ.AnalyzeDiff(context.Background(), after, before)
	require.NoError(t, err)

	kindSet := func(r *DiffResult, kind ChangeKind) []string {
		var names []string
		for qname, change := range r.SymbolChanges {
			if change.Kind == kind {
				names = append(names, qname)
			}
		}
		return names
	}

	assert.ElementsMatch(t, kindSet(forward, SymbolAdded), kindSet(reverse, SymbolDeleted))
	assert.ElementsMatch(t, kindSet(forward, SymbolDeleted), kindSet(reverse, SymbolAdded))
	assert.ElementsMatch(t, kindSet(forward, SymbolModified), kindSet(reverse, SymbolModified))
}

func TestAnalyzeDiff_RepeatRunsProduceIdenticalJSON(t *testing.T) {
	t.Parallel()
	root, before, after := diffFixtureRepo(t)

	differ, err := NewDiffer(context.Background(), root)
	require.NoError(t, err)

	first, err := differ.AnalyzeDiff(context.Background(), before, after)
	require.NoError(t, err)
	second, err := differ.AnalyzeDiff(context.Background(), before, after)
	require.NoError(t, err)

	// Symbols record root-relative file paths, so the serialized result must
	// be byte-identical even though each run extracts into a fresh temp dir.
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestAnalyzeDiff_WorkingTreeAsAfterSide(t *testing.T) {
	t.Parallel()
	root, before, _ := diffFixtureRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.py"), []byte("def bonus():\n    pass\n"), 0o644))
	runGit(t, root, "add", "extra.py")

	differ, err := NewDiffer(context.Background(), root)
	require.NoError(t, err)
	result, err := differ.AnalyzeDiff(context.Background(), before, WorkingSentinel)
	require.NoError(t, err)

	require.Contains(t, result.SymbolChanges, "extra.bonus")
	assert.Equal(t, SymbolAdded, result.SymbolChanges["extra.bonus"].Kind)
	assert.Equal(t, "Working directory (uncommitted changes)", result.AfterDescription)
}

func TestNewDiffer_FailsOutsideRepository(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	_, err := NewDiffer(context.Background(), t.TempDir())
	var notRepo *vcs.NotARepositoryError
	require.ErrorAs(t, err, &notRepo)
}

func TestAnalyzeDiff_InvalidRefFailsAtResolvePhase(t *testing.T) {
	t.Parallel()
	root, _, _ := diffFixtureRepo(t)

	differ, err := NewDiffer(context.Background(), root)
	require.NoError(t, err)

	_, err = differ.AnalyzeDiff(context.Background(), "no-such-ref", WorkingSentinel)
	var invalid *vcs.InvalidRefError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "resolve-refs")
}
