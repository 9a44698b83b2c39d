package bridge

import (
	"strings"

	"github.com/jward/flowdiff/internal/symbol"
)

// HTTPBridge maps shell curl tokens to Python route handlers. It builds an
// endpoint index from Python symbols carrying HTTP method/route metadata,
// then rewrites each matching "HTTP:METHOD:/path" token.
type HTTPBridge struct{}

// NewHTTPBridge creates the shell-to-Python HTTP bridge.
func NewHTTPBridge() *HTTPBridge { return &HTTPBridge{} }

func (b *HTTPBridge) Name() string            { return "http-shell-to-python" }
func (b *HTTPBridge) Source() symbol.Language { return symbol.Shell }
func (b *HTTPBridge) Target() symbol.Language { return symbol.Python }
func (b *HTTPBridge) TokenPrefix() string     { return symbol.TokenHTTP }

// Resolve matches every shell symbol's HTTP tokens against the endpoint
// index, keyed by the full raw token. Tokens with no matching endpoint are
// omitted; the resolver reports them as unresolved.
func (b *HTTPBridge) Resolve(tables map[symbol.Language]*symbol.Table) (map[string][]string, error) {
	pyTable := tables[symbol.Python]
	shTable := tables[symbol.Shell]
	if pyTable == nil || shTable == nil {
		return nil, nil
	}

	endpoints := endpointIndex(pyTable)
	if len(endpoints) == 0 {
		return nil, nil
	}

	refs := make(map[string][]string)
	for _, sym := range shTable.All() {
		for _, raw := range sym.RawCalls {
			token, ok := strings.CutPrefix(raw, symbol.TokenHTTP)
			if !ok {
				continue
			}
			// token is "METHOD:/path"
			if handler, ok := endpoints[token]; ok {
				refs[raw] = []string{handler}
			}
		}
	}
	return refs, nil
}

// endpointIndex maps "METHOD:/path" to the qualified name of the Python
// handler that declares it.
func endpointIndex(table *symbol.Table) map[string]string {
	index := make(map[string]string)
	for _, sym := range table.All() {
		method := sym.Metadata[symbol.MetaHTTPMethod]
		route := sym.Metadata[symbol.MetaHTTPRoute]
		if method != "" && route != "" {
			index[method+":"+route] = sym.QualifiedName
		}
	}
	return index
}
