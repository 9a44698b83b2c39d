package lang

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/flowdiff/internal/symbol"
)

// extAnalyzer is a stub analyzer claiming one extension.
type extAnalyzer struct {
	ext  string
	lang symbol.Language
}

func (a extAnalyzer) CanAnalyze(path string) bool { return strings.HasSuffix(path, a.ext) }
func (a extAnalyzer) Language() symbol.Language   { return a.lang }
func (a extAnalyzer) BuildSymbolTable(context.Context, string) (*symbol.Table, []symbol.Diagnostic) {
	return symbol.NewTable(a.lang), nil
}
func (a extAnalyzer) MergeSymbolTables([]*symbol.Table) (*symbol.Table, error) {
	return symbol.NewTable(a.lang), nil
}
func (a extAnalyzer) ResolveCalls(*symbol.Table) []symbol.Diagnostic { return nil }

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register(extAnalyzer{ext: ".py", lang: symbol.Python})
	r.Register(extAnalyzer{ext: ".sh", lang: symbol.Shell})
	return r
}

func TestRegistry_ForFileDispatchesByExtension(t *testing.T) {
	t.Parallel()
	r := testRegistry()

	require.NotNil(t, r.ForFile("app/main.py"))
	assert.Equal(t, symbol.Python, r.ForFile("app/main.py").Language())
	assert.Equal(t, symbol.Shell, r.ForFile("run.sh").Language())
	assert.Nil(t, r.ForFile("notes.txt"))
}

func TestRegistry_ForLanguageAndLanguages(t *testing.T) {
	t.Parallel()
	r := testRegistry()

	require.NotNil(t, r.ForLanguage(symbol.Shell))
	assert.Equal(t, symbol.Shell, r.ForLanguage(symbol.Shell).Language())
	assert.Nil(t, r.ForLanguage(symbol.Language("ruby")))

	assert.Equal(t, []symbol.Language{symbol.Python, symbol.Shell}, r.Languages())
}

func TestPathToQualifiedName_StripsRootAndExtension(t *testing.T) {
	t.Parallel()
	root := filepath.FromSlash("/proj")

	assert.Equal(t, "src.api.handlers",
		PathToQualifiedName(root, filepath.FromSlash("/proj/src/api/handlers.py")))
	assert.Equal(t, "run",
		PathToQualifiedName(root, filepath.FromSlash("/proj/run.sh")))
}

func TestRelPath_RelativeInsideRootOnly(t *testing.T) {
	t.Parallel()
	root := filepath.FromSlash("/proj")

	assert.Equal(t, filepath.FromSlash("src/app.py"),
		RelPath(root, filepath.FromSlash("/proj/src/app.py")))
	assert.Equal(t, filepath.FromSlash("/elsewhere/app.py"),
		RelPath(root, filepath.FromSlash("/elsewhere/app.py")))
}
