package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSymbol(qname string) *Symbol {
	return &Symbol{
		Name:          qname,
		QualifiedName: qname,
		Language:      Python,
		Metadata:      map[string]string{},
	}
}

func TestTable_AddRejectsDuplicateQualifiedName(t *testing.T) {
	t.Parallel()
	table := NewTable(Python)

	require.NoError(t, table.Add(newSymbol("app.main")))
	err := table.Add(newSymbol("app.main"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.main")
}

func TestTable_AllReturnsSymbolsSortedByQualifiedName(t *testing.T) {
	t.Parallel()
	table := NewTable(Python)

	require.NoError(t, table.Add(newSymbol("pkg.zeta")))
	require.NoError(t, table.Add(newSymbol("pkg.alpha")))
	require.NoError(t, table.Add(newSymbol("app.main")))

	all := table.All()
	require.Len(t, all, 3)
	assert.Equal(t, "app.main", all[0].QualifiedName)
	assert.Equal(t, "pkg.alpha", all[1].QualifiedName)
	assert.Equal(t, "pkg.zeta", all[2].QualifiedName)
}

func TestTable_MergePropagatesCollisionError(t *testing.T) {
	t.Parallel()
	a := NewTable(Python)
	b := NewTable(Python)
	require.NoError(t, a.Add(newSymbol("app.main")))
	require.NoError(t, b.Add(newSymbol("app.main")))

	assert.Error(t, a.Merge(b))
}

func TestTable_LookupReturnsNilForUnknownName(t *testing.T) {
	t.Parallel()
	table := NewTable(Shell)

	assert.Nil(t, table.Lookup("scripts.missing"))
	assert.False(t, table.Contains("scripts.missing"))
}

func TestSymbol_MetaChecksForTrueValue(t *testing.T) {
	t.Parallel()
	sym := newSymbol("app.main")
	sym.Metadata[MetaCLI] = "true"
	sym.Metadata[MetaAsync] = "false"

	assert.True(t, sym.Meta(MetaCLI))
	assert.False(t, sym.Meta(MetaAsync))
	assert.False(t, sym.Meta(MetaMainGuard))
}
