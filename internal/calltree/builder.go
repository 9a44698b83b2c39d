package calltree

import (
	"github.com/jward/flowdiff/internal/symbol"
)

// DefaultMaxDepth caps tree expansion for pathological fan-out. Cycles are
// handled by the path-visited set, not by this cap.
const DefaultMaxDepth = 25

// Node is one node in a call tree. It references its symbol by qualified
// name; the symbol stays owned by its table. Children are ordered by the
// parent's resolved-call order. HasChanges is set only by the diff engine.
type Node struct {
	QualifiedName string         `json:"qualified_name"`
	Symbol        *symbol.Symbol `json:"symbol"`
	Depth         int            `json:"depth"`
	HasChanges    bool           `json:"has_changes"`
	Children      []*Node        `json:"children,omitempty"`
}

// Walk visits n and its descendants depth-first.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Builder expands resolved symbols into call trees.
type Builder struct {
	tables   map[symbol.Language]*symbol.Table
	maxDepth int
}

// NewBuilder creates a builder over the merged per-language tables. A
// maxDepth of zero or less selects DefaultMaxDepth.
func NewBuilder(tables map[symbol.Language]*symbol.Table, maxDepth int) *Builder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Builder{tables: tables, maxDepth: maxDepth}
}

// Build returns one tree per entry point, in the given order.
func (b *Builder) Build(entries []*symbol.Symbol) []*Node {
	trees := make([]*Node, 0, len(entries))
	for _, entry := range entries {
		onPath := map[string]bool{}
		trees = append(trees, b.expand(entry, 0, onPath))
	}
	return trees
}

// expand builds the subtree rooted at sym. onPath holds the qualified names
// on the current root-to-node path: a call target already on the path is a
// cycle, and that branch stops with a childless node instead of recursing.
func (b *Builder) expand(sym *symbol.Symbol, depth int, onPath map[string]bool) *Node {
	node := &Node{
		QualifiedName: sym.QualifiedName,
		Symbol:        sym,
		Depth:         depth,
	}
	if depth >= b.maxDepth {
		return node
	}

	onPath[sym.QualifiedName] = true
	for _, target := range sym.ResolvedCalls {
		if onPath[target] {
			if child := b.lookup(target); child != nil {
				node.Children = append(node.Children, &Node{
					QualifiedName: target,
					Symbol:        child,
					Depth:         depth + 1,
				})
			}
			continue
		}
		child := b.lookup(target)
		if child == nil {
			continue
		}
		node.Children = append(node.Children, b.expand(child, depth+1, onPath))
	}
	delete(onPath, sym.QualifiedName)

	return node
}

// lookup finds a qualified name in any language table.
func (b *Builder) lookup(qualifiedName string) *symbol.Symbol {
	for _, table := range b.tables {
		if table == nil {
			continue
		}
		if sym := table.Lookup(qualifiedName); sym != nil {
			return sym
		}
	}
	return nil
}
