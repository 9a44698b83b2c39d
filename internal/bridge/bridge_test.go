package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/flowdiff/internal/symbol"
)

func tables(t *testing.T, python, shell []*symbol.Symbol) map[symbol.Language]*symbol.Table {
	t.Helper()
	py := symbol.NewTable(symbol.Python)
	for _, sym := range python {
		require.NoError(t, py.Add(sym))
	}
	sh := symbol.NewTable(symbol.Shell)
	for _, sym := range shell {
		require.NoError(t, sh.Add(sym))
	}
	return map[symbol.Language]*symbol.Table{
		symbol.Python: py,
		symbol.Shell:  sh,
	}
}

func pySymbol(qname string, meta map[string]string) *symbol.Symbol {
	if meta == nil {
		meta = map[string]string{}
	}
	return &symbol.Symbol{
		Name:          qname,
		QualifiedName: qname,
		Language:      symbol.Python,
		Metadata:      meta,
	}
}

func shSymbol(qname string, rawCalls ...string) *symbol.Symbol {
	return &symbol.Symbol{
		Name:          qname + ".sh",
		QualifiedName: qname,
		Language:      symbol.Shell,
		Metadata:      map[string]string{symbol.MetaScript: "true"},
		RawCalls:      rawCalls,
	}
}

func TestHTTPBridge_MapsTokenToRouteHandler(t *testing.T) {
	t.Parallel()
	tbls := tables(t,
		[]*symbol.Symbol{
			pySymbol("api.analyze", map[string]string{
				symbol.MetaHTTPMethod: "POST",
				symbol.MetaHTTPRoute:  "/analyze",
			}),
			pySymbol("api.other", nil),
		},
		[]*symbol.Symbol{
			shSymbol("scripts.call", "HTTP:POST:/analyze", "HTTP:GET:/missing"),
		},
	)

	refs, err := NewHTTPBridge().Resolve(tbls)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"HTTP:POST:/analyze": {"api.analyze"},
	}, refs)
}

func TestInterpreterBridge_ResolvesModuleToMainGuardFunctions(t *testing.T) {
	t.Parallel()
	tbls := tables(t,
		[]*symbol.Symbol{
			pySymbol("app.worker.launch", map[string]string{symbol.MetaMainGuard: "true"}),
			pySymbol("app.worker.helper", nil),
		},
		[]*symbol.Symbol{
			shSymbol("run", "PY:app.worker"),
		},
	)

	refs, err := NewInterpreterBridge().Resolve(tbls)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"PY:app.worker": {"app.worker.launch"},
	}, refs)
}

func TestInterpreterBridge_ScriptPathFallsBackToMain(t *testing.T) {
	t.Parallel()
	tbls := tables(t,
		[]*symbol.Symbol{
			pySymbol("tools.migrate.main", nil),
		},
		[]*symbol.Symbol{
			shSymbol("run", "PY:tools/migrate.py"),
		},
	)

	refs, err := NewInterpreterBridge().Resolve(tbls)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"PY:tools/migrate.py": {"tools.migrate.main"},
	}, refs)
}

type failingBridge struct{}

func (failingBridge) Name() string            { return "failing" }
func (failingBridge) Source() symbol.Language { return symbol.Shell }
func (failingBridge) Target() symbol.Language { return symbol.Python }
func (failingBridge) TokenPrefix() string     { return "GRPC:" }
func (failingBridge) Resolve(map[symbol.Language]*symbol.Table) (map[string][]string, error) {
	return nil, errors.New("endpoint index unavailable")
}

func TestResolver_FailingBridgeRecordsDiagnosticAndContinues(t *testing.T) {
	t.Parallel()
	tbls := tables(t,
		[]*symbol.Symbol{
			pySymbol("api.analyze", map[string]string{
				symbol.MetaHTTPMethod: "POST",
				symbol.MetaHTTPRoute:  "/analyze",
			}),
		},
		[]*symbol.Symbol{
			shSymbol("scripts.call", "HTTP:POST:/analyze"),
		},
	)

	resolver := NewResolver(failingBridge{}, NewHTTPBridge())
	diags := resolver.Apply(tbls)

	require.Len(t, diags, 1)
	assert.Equal(t, symbol.DiagBridgeFailure, diags[0].Kind)
	assert.Equal(t, "failing", diags[0].Subject)

	// The later bridge still ran and appended its targets.
	sym := tbls[symbol.Shell].Lookup("scripts.call")
	require.NotNil(t, sym)
	assert.Equal(t, []string{"api.analyze"}, sym.ResolvedCalls)
}

func TestResolver_ApplyDeduplicatesTargets(t *testing.T) {
	t.Parallel()
	tbls := tables(t,
		[]*symbol.Symbol{
			pySymbol("api.analyze", map[string]string{
				symbol.MetaHTTPMethod: "POST",
				symbol.MetaHTTPRoute:  "/analyze",
			}),
		},
		[]*symbol.Symbol{
			shSymbol("scripts.call", "HTTP:POST:/analyze", "HTTP:POST:/analyze"),
		},
	)

	diags := NewResolver(NewHTTPBridge()).Apply(tbls)
	require.Empty(t, diags)

	sym := tbls[symbol.Shell].Lookup("scripts.call")
	assert.Equal(t, []string{"api.analyze"}, sym.ResolvedCalls)
}

func TestResolver_UnmatchedTokenRecordsUnresolvedDiagnostic(t *testing.T) {
	t.Parallel()
	tbls := tables(t,
		[]*symbol.Symbol{
			pySymbol("api.analyze", map[string]string{
				symbol.MetaHTTPMethod: "POST",
				symbol.MetaHTTPRoute:  "/analyze",
			}),
		},
		[]*symbol.Symbol{
			shSymbol("scripts.call", "HTTP:GET:/missing", "PY:no.such.module"),
		},
	)

	diags := NewResolver(NewHTTPBridge(), NewInterpreterBridge()).Apply(tbls)

	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, symbol.DiagUnresolvedCall, d.Kind)
	}
	assert.Equal(t, "HTTP:GET:/missing", diags[0].Subject)
	assert.Equal(t, "PY:no.such.module", diags[1].Subject)

	sym := tbls[symbol.Shell].Lookup("scripts.call")
	assert.Empty(t, sym.ResolvedCalls)
}
