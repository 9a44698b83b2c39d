package python

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/flowdiff/internal/symbol"
)

// extractor walks one parsed file and produces symbols plus the module's
// resolution inputs. It holds no locks; the analyzer commits its output
// under the mutex after extraction finishes.
type extractor struct {
	src      []byte
	path     string // root-relative, recorded on symbols and diagnostics
	module   string
	info     *moduleInfo
	contexts map[string]*callContext
}

// propertyDecoratorSuffixes mark accessor re-declarations of an existing
// property, e.g. @value.setter.
var propertyDecoratorSuffixes = []string{".setter", ".getter", ".deleter"}

// extractModule walks the module root, collecting imports, top-level
// functions and classes (with their methods), and __main__-guard facts.
func (e *extractor) extractModule(root *sitter.Node, table *symbol.Table) []symbol.Diagnostic {
	var diags []symbol.Diagnostic
	guardCalls := e.mainGuardCalls(root)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement":
			e.extractImport(child)
		case "import_from_statement":
			e.extractImportFrom(child)
		case "function_definition":
			e.addSymbol(table, e.extractFunction(child, nil, ""), &diags)
		case "class_definition":
			e.extractClass(child, nil, table, &diags)
		case "decorated_definition":
			decorators, def := e.splitDecorated(child)
			if def == nil {
				continue
			}
			switch def.Type() {
			case "function_definition":
				e.addSymbol(table, e.extractFunction(def, decorators, ""), &diags)
			case "class_definition":
				e.extractClass(def, decorators, table, &diags)
			}
		}
	}

	// Tag functions invoked inside the __main__ guard. Only top-level
	// functions by bare name; dotted calls never match a local definition.
	for _, sym := range table.All() {
		if guardCalls[sym.Name] && !sym.Meta(symbol.MetaClassMethod) {
			sym.Metadata[symbol.MetaMainGuard] = "true"
		}
	}
	return diags
}

func (e *extractor) addSymbol(table *symbol.Table, sym *symbol.Symbol, diags *[]symbol.Diagnostic) {
	if sym == nil {
		return
	}
	if err := table.Add(sym); err != nil {
		*diags = append(*diags, symbol.Diagnostic{
			Kind:   symbol.DiagParseError,
			Path:   e.path,
			Detail: err.Error(),
		})
	}
}

// splitDecorated separates a decorated_definition into its decorator texts
// and the wrapped definition node.
func (e *extractor) splitDecorated(node *sitter.Node) ([]string, *sitter.Node) {
	var decorators []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "decorator" {
			text := strings.TrimPrefix(strings.TrimSpace(child.Content(e.src)), "@")
			decorators = append(decorators, text)
		}
	}
	return decorators, node.ChildByFieldName("definition")
}

// extractFunction builds a Symbol for one function or method definition.
// className is empty for top-level functions.
func (e *extractor) extractFunction(node *sitter.Node, decorators []string, className string) *symbol.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(e.src)

	qualified := e.module + "." + name
	if className != "" {
		qualified = e.module + "." + className + "." + name
	}

	body := node.ChildByFieldName("body")
	rawCalls := e.extractCalls(body)

	sym := &symbol.Symbol{
		Name:          name,
		QualifiedName: qualified,
		Language:      symbol.Python,
		FilePath:      e.path,
		LineNumber:    int(node.StartPoint().Row) + 1,
		Metadata:      map[string]string{},
		RawCalls:      rawCalls,
		Documentation: e.docstring(body),
		Parameters:    e.extractParameters(node),
		ReturnType:    e.fieldText(node, "return_type"),
	}

	if className != "" {
		sym.Metadata[symbol.MetaClassMethod] = "true"
	}
	if e.hasKeywordChild(node, "async") {
		sym.Metadata[symbol.MetaAsync] = "true"
	}
	if len(decorators) > 0 {
		sym.Metadata[symbol.MetaDecorators] = strings.Join(decorators, ",")
	}
	if isPropertyAccessor(decorators) {
		sym.Metadata[symbol.MetaProperty] = "true"
	}
	if method, route, ok := httpDecorator(decorators); ok {
		sym.Metadata[symbol.MetaHTTPMethod] = method
		sym.Metadata[symbol.MetaHTTPRoute] = route
	}
	if e.usesCLIParsing(body, rawCalls, decorators) {
		sym.Metadata[symbol.MetaCLI] = "true"
	}

	e.contexts[qualified] = &callContext{
		bindings:     e.extractBindings(body),
		localImports: e.extractLocalImports(body),
	}
	return sym
}

// extractClass builds a class symbol plus one symbol per method, and records
// the class in the module info for constructor/method resolution.
func (e *extractor) extractClass(node *sitter.Node, decorators []string, table *symbol.Table, diags *[]symbol.Diagnostic) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	className := nameNode.Content(e.src)
	qualified := e.module + "." + className
	body := node.ChildByFieldName("body")

	classSym := &symbol.Symbol{
		Name:          className,
		QualifiedName: qualified,
		Language:      symbol.Python,
		FilePath:      e.path,
		LineNumber:    int(node.StartPoint().Row) + 1,
		Metadata:      map[string]string{"kind": "class"},
		Documentation: e.docstring(body),
	}
	if len(decorators) > 0 {
		classSym.Metadata[symbol.MetaDecorators] = strings.Join(decorators, ",")
	}
	e.addSymbol(table, classSym, diags)

	ci := &classInfo{
		qualifiedName: qualified,
		methods:       make(map[string]string),
	}

	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			var method *symbol.Symbol
			switch child.Type() {
			case "function_definition":
				method = e.extractFunction(child, nil, className)
			case "decorated_definition":
				decos, def := e.splitDecorated(child)
				if def != nil && def.Type() == "function_definition" {
					method = e.extractFunction(def, decos, className)
				}
			}
			if method != nil {
				ci.methods[method.Name] = method.QualifiedName
				e.addSymbol(table, method, diags)
			}
		}
	}

	e.info.classes[className] = ci
}

// extractImport handles `import a.b` and `import a.b as c`.
func (e *extractor) extractImport(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			name := child.Content(e.src)
			e.info.imports[name] = name
		case "aliased_import":
			name := e.fieldText(child, "name")
			alias := e.fieldText(child, "alias")
			if alias != "" && name != "" {
				e.info.imports[alias] = name
			}
		}
	}
}

// extractImportFrom handles `from m import x [as y]` including relative
// imports: each leading dot strips one trailing segment from the current
// module's dotted name before the imported path is appended.
func (e *extractor) extractImportFrom(node *sitter.Node) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}

	base := moduleNode.Content(e.src)
	if moduleNode.Type() == "relative_import" {
		base = e.resolveRelative(base)
	}

	collect := func(name, alias string) {
		local := alias
		if local == "" {
			local = name
		}
		qualified := name
		if base != "" {
			qualified = base + "." + name
		}
		e.info.imports[local] = qualified
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == moduleNode {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			collect(child.Content(e.src), "")
		case "aliased_import":
			collect(e.fieldText(child, "name"), e.fieldText(child, "alias"))
		}
	}
}

// resolveRelative turns a relative import prefix like ".." or "..pkg" into
// an absolute dotted module path anchored at the current module.
func (e *extractor) resolveRelative(text string) string {
	level := 0
	for level < len(text) && text[level] == '.' {
		level++
	}
	rest := text[level:]

	parts := strings.Split(e.module, ".")
	if level >= len(parts) {
		parts = nil
	} else {
		parts = parts[:len(parts)-level]
	}

	base := strings.Join(parts, ".")
	if rest == "" {
		return base
	}
	if base == "" {
		return rest
	}
	return base + "." + rest
}

// extractCalls returns every call expression's dotted name inside body, in
// source order. Nested definitions are included; their calls belong to the
// enclosing symbol's raw-call view.
func (e *extractor) extractCalls(body *sitter.Node) []string {
	var calls []string
	walk(body, func(n *sitter.Node) bool {
		if n.Type() == "call" {
			if name := e.callName(n.ChildByFieldName("function")); name != "" {
				calls = append(calls, name)
			}
		}
		return true
	})
	return calls
}

// callName flattens an identifier or attribute chain into a dotted name.
// Anything else (subscripts, lambdas, call results) yields "".
func (e *extractor) callName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier":
		return node.Content(e.src)
	case "attribute":
		obj := e.callName(node.ChildByFieldName("object"))
		attr := e.fieldText(node, "attribute")
		if obj != "" && attr != "" {
			return obj + "." + attr
		}
		return attr
	}
	return ""
}

// extractBindings collects direct-assignment type-inference facts:
// x = SomeCallable() records x -> SomeCallable.
func (e *extractor) extractBindings(body *sitter.Node) map[string]string {
	bindings := make(map[string]string)
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "assignment" {
			return true
		}
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if left == nil || right == nil || left.Type() != "identifier" || right.Type() != "call" {
			return true
		}
		if name := e.callName(right.ChildByFieldName("function")); name != "" {
			bindings[left.Content(e.src)] = name
		}
		return true
	})
	return bindings
}

// extractLocalImports collects import statements inside a function body,
// skipping nested definitions (those keep their own contexts).
func (e *extractor) extractLocalImports(body *sitter.Node) map[string]string {
	imports := make(map[string]string)
	saved := e.info
	e.info = &moduleInfo{imports: imports, classes: map[string]*classInfo{}}
	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_definition", "class_definition":
			return false
		case "import_statement":
			e.extractImport(n)
		case "import_from_statement":
			e.extractImportFrom(n)
		}
		return true
	})
	e.info = saved
	if len(imports) == 0 {
		return nil
	}
	return imports
}

// usesCLIParsing detects argument-parser construction, raw argv access, and
// CLI-framework command decorators.
func (e *extractor) usesCLIParsing(body *sitter.Node, calls []string, decorators []string) bool {
	for _, call := range calls {
		if strings.Contains(call, "ArgumentParser") ||
			strings.Contains(call, "parse_args") ||
			strings.Contains(call, "add_argument") {
			return true
		}
	}

	argv := false
	walk(body, func(n *sitter.Node) bool {
		if argv {
			return false
		}
		if n.Type() == "attribute" {
			obj := n.ChildByFieldName("object")
			if obj != nil && obj.Type() == "identifier" &&
				obj.Content(e.src) == "sys" && e.fieldText(n, "attribute") == "argv" {
				argv = true
				return false
			}
		}
		return true
	})
	if argv {
		return true
	}

	for _, d := range decorators {
		name := d
		if idx := strings.IndexByte(name, '('); idx >= 0 {
			name = name[:idx]
		}
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			name = name[idx+1:]
		}
		switch name {
		case "command", "group", "option", "argument":
			return true
		}
	}
	return false
}

// mainGuardCalls finds bare function names invoked inside module-level
// `if __name__ == "__main__":` blocks.
func (e *extractor) mainGuardCalls(root *sitter.Node) map[string]bool {
	calls := make(map[string]bool)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "if_statement" {
			continue
		}
		cond := child.ChildByFieldName("condition")
		if cond == nil || !isMainGuardCondition(cond.Content(e.src)) {
			continue
		}
		body := child.ChildByFieldName("consequence")
		walk(body, func(n *sitter.Node) bool {
			if n.Type() == "call" {
				fn := n.ChildByFieldName("function")
				if fn != nil && fn.Type() == "identifier" {
					calls[fn.Content(e.src)] = true
				}
			}
			return true
		})
	}
	return calls
}

// isMainGuardCondition matches `__name__ == "__main__"` in either operand
// order and with either quote style.
func isMainGuardCondition(text string) bool {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, text)
	return strings.Contains(compact, `__name__=="__main__"`) ||
		strings.Contains(compact, `__name__=='__main__'`) ||
		strings.Contains(compact, `"__main__"==__name__`) ||
		strings.Contains(compact, `'__main__'==__name__`)
}

// extractParameters returns parameter names in declaration order, skipping
// the bare * and / separators.
func (e *extractor) extractParameters(node *sitter.Node) []string {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			out = append(out, p.Content(e.src))
		case "typed_parameter":
			// First named child is the identifier; the type follows.
			if p.NamedChildCount() > 0 && p.NamedChild(0).Type() == "identifier" {
				out = append(out, p.NamedChild(0).Content(e.src))
			}
		case "default_parameter", "typed_default_parameter":
			if name := e.fieldText(p, "name"); name != "" {
				out = append(out, name)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, p.Content(e.src))
		}
	}
	return out
}

// docstring returns the function or class docstring: a leading string
// expression in the body, quotes stripped.
func (e *extractor) docstring(body *sitter.Node) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return trimStringLiteral(str.Content(e.src))
}

// trimStringLiteral strips string prefixes and quote delimiters from a
// Python string literal.
func trimStringLiteral(text string) string {
	text = strings.TrimLeft(text, "rRbBfFuU")
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			return strings.TrimSpace(text[len(q) : len(text)-len(q)])
		}
	}
	return strings.TrimSpace(text)
}

// fieldText returns the text of a named field child, or "".
func (e *extractor) fieldText(node *sitter.Node, field string) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(e.src)
}

// hasKeywordChild reports whether node has an anonymous child token with the
// given text (used for the async keyword).
func (e *extractor) hasKeywordChild(node *sitter.Node, keyword string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.IsNamed() && child.Content(e.src) == keyword {
			return true
		}
	}
	return false
}

// isPropertyAccessor reports whether any decorator marks a property getter,
// setter, or deleter.
func isPropertyAccessor(decorators []string) bool {
	for _, d := range decorators {
		if d == "property" || d == "cached_property" || d == "functools.cached_property" {
			return true
		}
		for _, suffix := range propertyDecoratorSuffixes {
			if strings.HasSuffix(d, suffix) {
				return true
			}
		}
	}
	return false
}

// httpDecorator extracts (method, route) from FastAPI and Flask route
// decorators: @app.post("/p") and @app.route("/p", methods=["POST"]).
func httpDecorator(decorators []string) (string, string, bool) {
	for _, d := range decorators {
		idx := strings.IndexByte(d, '(')
		if idx < 0 {
			continue
		}
		name := d[:idx]
		args := strings.TrimSuffix(d[idx+1:], ")")

		verb := name
		if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
			verb = name[dot+1:]
		}

		switch verb {
		case "get", "post", "put", "delete", "patch":
			if route := firstStringArg(args); route != "" {
				return strings.ToUpper(verb), route, true
			}
		case "route":
			route := firstStringArg(args)
			if route == "" {
				continue
			}
			method := "GET"
			if m := flaskMethodsArg(args); m != "" {
				method = m
			}
			return method, route, true
		}
	}
	return "", "", false
}

// firstStringArg returns the first quoted string in a decorator argument
// list, without quotes.
func firstStringArg(args string) string {
	for _, quote := range []byte{'"', '\''} {
		start := strings.IndexByte(args, quote)
		if start < 0 {
			continue
		}
		end := strings.IndexByte(args[start+1:], quote)
		if end < 0 {
			continue
		}
		return args[start+1 : start+1+end]
	}
	return ""
}

// flaskMethodsArg returns the first method in a methods=["..."] keyword
// argument, uppercased.
func flaskMethodsArg(args string) string {
	idx := strings.Index(args, "methods")
	if idx < 0 {
		return ""
	}
	rest := args[idx:]
	open := strings.IndexByte(rest, '[')
	if open < 0 {
		return ""
	}
	if m := firstStringArg(rest[open:]); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

// walk visits node and its descendants depth-first in source order. The
// visitor returns false to prune a subtree.
func walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i), visit)
	}
}
