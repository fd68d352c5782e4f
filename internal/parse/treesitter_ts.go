package parse

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/girder/internal/graph"
)

// tsExtractor extracts definitions, references, and imports from
// TypeScript and JavaScript files.
type tsExtractor struct{}

func (e *tsExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) ([]Definition, []Reference, []Import) {
	st := &tsState{filePath: filePath, endpoints: make(map[string][]graph.ExternalEndpoint)}

	cursor := root.Walk()
	defer cursor.Close()

	e.walk(cursor, source, st, "", "")

	for i := range st.defs {
		st.defs[i].Endpoints = append(st.defs[i].Endpoints, st.endpoints[st.defs[i].Name]...)
	}
	return st.defs, st.refs, st.imports
}

type tsState struct {
	filePath  string
	defs      []Definition
	refs      []Reference
	imports   []Import
	endpoints map[string][]graph.ExternalEndpoint
}

func (e *tsExtractor) walk(cursor *tree_sitter.TreeCursor, source []byte, st *tsState, enclosing, class string) {
	node := cursor.Node()
	childEnclosing, childClass := enclosing, class

	switch node.Kind() {
	case "function_declaration":
		if enclosing == "" {
			if def := e.extractFunction(node, source, st.filePath, ""); def != nil {
				st.defs = append(st.defs, *def)
				childEnclosing = def.Name
			}
		}

	case "method_definition":
		if def := e.extractFunction(node, source, st.filePath, class); def != nil {
			st.defs = append(st.defs, *def)
			childEnclosing = def.Name
		}

	case "class_declaration":
		if def := e.extractClass(node, source, st); def != nil {
			st.defs = append(st.defs, *def)
			childClass = def.Name
		}

	case "lexical_declaration", "variable_declaration":
		if enclosing == "" {
			if def := e.extractArrowBinding(node, source, st.filePath); def != nil {
				st.defs = append(st.defs, *def)
				childEnclosing = def.Name
			}
		}

	case "import_statement":
		if imp := e.extractImport(node, source, st.filePath, false); imp != nil {
			st.imports = append(st.imports, *imp)
		}

	case "export_statement":
		// `export ... from "./mod"` re-exports without a local binding.
		if node.ChildByFieldName("source") != nil {
			if imp := e.extractImport(node, source, st.filePath, true); imp != nil {
				st.imports = append(st.imports, *imp)
			}
		}

	case "call_expression":
		e.extractCall(node, source, st, enclosing)
	}

	if cursor.GotoFirstChild() {
		e.walk(cursor, source, st, childEnclosing, childClass)
		for cursor.GotoNextSibling() {
			e.walk(cursor, source, st, childEnclosing, childClass)
		}
		cursor.GotoParent()
	}
}

func (e *tsExtractor) extractFunction(node *tree_sitter.Node, source []byte, filePath, class string) *Definition {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}
	name := nameNode.Utf8Text(source)
	if strings.HasPrefix(name, "#") {
		return nil
	}

	public := class == "" && tsIsExported(node)
	if class != "" {
		public = !tsHasModifier(node, source, "private") && !tsHasModifier(node, source, "protected")
	}

	return &Definition{
		Name:             name,
		Kind:             DefFunction,
		Signature:        canonicalize(string(source[node.StartByte():body.StartByte()])),
		Body:             normalizeBody(body, source),
		Docstring:        tsDocComment(node, source),
		FilePath:         filePath,
		LineStart:        startLine(node),
		LineEnd:          endLine(node),
		IsPublic:         public,
		TypeHintsPresent: tsHasTypeHints(node),
		ParamCount:       countNamedChildren(node.ChildByFieldName("parameters")),
		Receiver:         class,
	}
}

// extractArrowBinding handles `const handler = (req) => {...}` at module
// scope, the dominant function style in Express-era codebases.
func (e *tsExtractor) extractArrowBinding(node *tree_sitter.Node, source []byte, filePath string) *Definition {
	decl := childOfKind(node, "variable_declarator")
	if decl == nil {
		return nil
	}
	nameNode := decl.ChildByFieldName("name")
	value := decl.ChildByFieldName("value")
	if nameNode == nil || value == nil || nameNode.Kind() != "identifier" {
		return nil
	}
	switch value.Kind() {
	case "arrow_function", "function_expression", "function":
	default:
		return nil
	}
	body := value.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	name := nameNode.Utf8Text(source)
	return &Definition{
		Name:             name,
		Kind:             DefFunction,
		Signature:        canonicalize(string(source[node.StartByte():body.StartByte()])),
		Body:             normalizeBody(body, source),
		Docstring:        tsDocComment(node, source),
		FilePath:         filePath,
		LineStart:        startLine(node),
		LineEnd:          endLine(node),
		IsPublic:         tsIsExported(node),
		TypeHintsPresent: tsHasTypeHints(value),
		ParamCount:       countNamedChildren(value.ChildByFieldName("parameters")),
	}
}

func (e *tsExtractor) extractClass(node *tree_sitter.Node, source []byte, st *tsState) *Definition {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}
	name := nameNode.Utf8Text(source)

	if heritage := childOfKind(node, "class_heritage"); heritage != nil {
		if extends := childOfKind(heritage, "extends_clause"); extends != nil {
			for i := uint(0); i < extends.NamedChildCount(); i++ {
				base := extends.NamedChild(i)
				if base == nil {
					continue
				}
				switch base.Kind() {
				case "identifier", "member_expression":
					st.refs = append(st.refs, Reference{
						Name:          tsLastSegment(base.Utf8Text(source)),
						Kind:          RefTypeRef,
						FilePath:      st.filePath,
						Line:          startLine(base),
						ArgCount:      -1,
						EnclosingFunc: name,
					})
				}
			}
		}
	}

	return &Definition{
		Name:             name,
		Kind:             DefClass,
		Signature:        canonicalize(string(source[node.StartByte():body.StartByte()])),
		Body:             normalizeBody(body, source),
		Docstring:        tsDocComment(node, source),
		FilePath:         st.filePath,
		LineStart:        startLine(node),
		LineEnd:          endLine(node),
		IsPublic:         tsIsExported(node),
		TypeHintsPresent: true,
	}
}

func (e *tsExtractor) extractImport(node *tree_sitter.Node, source []byte, filePath string, reExport bool) *Import {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return nil
	}
	specifier := trimQuotes(sourceNode.Utf8Text(source))
	if specifier == "" {
		return nil
	}

	imp := &Import{
		Source:     specifier,
		FilePath:   filePath,
		Line:       startLine(node),
		IsRelative: strings.HasPrefix(specifier, "."),
		IsReExport: reExport,
	}

	clause := childOfKind(node, "import_clause")
	if clause == nil {
		clause = childOfKind(node, "export_clause")
	}
	if clause != nil {
		e.collectImportNames(clause, source, imp)
		if ns := childOfKind(clause, "namespace_import"); ns != nil {
			imp.IsWildcard = true
			if ident := childOfKind(ns, "identifier"); ident != nil {
				imp.Alias = ident.Utf8Text(source)
			}
		}
	}
	// `export * from "./mod"` has no clause at all.
	if reExport && clause == nil {
		imp.IsWildcard = true
	}
	return imp
}

func (e *tsExtractor) collectImportNames(clause *tree_sitter.Node, source []byte, imp *Import) {
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier":
			// Default import binding.
			imp.Names = append(imp.Names, child.Utf8Text(source))
		case "named_imports":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec == nil || spec.Kind() != "import_specifier" {
					continue
				}
				if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
					imp.Names = append(imp.Names, nameNode.Utf8Text(source))
				}
			}
		case "export_specifier":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				imp.Names = append(imp.Names, nameNode.Utf8Text(source))
			}
		}
	}
}

func (e *tsExtractor) extractCall(node *tree_sitter.Node, source []byte, st *tsState, enclosing string) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}

	var name, receiver string
	switch fnNode.Kind() {
	case "identifier":
		name = fnNode.Utf8Text(source)
	case "member_expression":
		if prop := fnNode.ChildByFieldName("property"); prop != nil {
			name = prop.Utf8Text(source)
		}
		if obj := fnNode.ChildByFieldName("object"); obj != nil {
			receiver = obj.Utf8Text(source)
		}
	default:
		return
	}
	if name == "" {
		return
	}

	args := node.ChildByFieldName("arguments")
	st.refs = append(st.refs, Reference{
		Name:          name,
		Kind:          RefCall,
		FilePath:      st.filePath,
		Line:          startLine(node),
		ArgCount:      countNamedChildren(args),
		Receiver:      receiver,
		EnclosingFunc: enclosing,
	})

	if enclosing != "" {
		if ep := tsRouteEndpoint(name, args, source); ep != nil {
			st.endpoints[enclosing] = append(st.endpoints[enclosing], *ep)
		}
	}
}

// tsRouteEndpoint recognizes Express-style registrations like
// app.get("/users", handler).
func tsRouteEndpoint(method string, args *tree_sitter.Node, source []byte) *graph.ExternalEndpoint {
	var httpMethod string
	switch method {
	case "get", "post", "put", "delete", "patch", "head", "options":
		httpMethod = strings.ToUpper(method)
	case "use", "all":
		httpMethod = "ANY"
	default:
		return nil
	}
	if args == nil || args.NamedChildCount() < 2 {
		return nil
	}
	first := args.NamedChild(0)
	if first == nil || first.Kind() != "string" {
		return nil
	}
	path := trimQuotes(first.Utf8Text(source))
	if !strings.HasPrefix(path, "/") {
		return nil
	}
	return &graph.ExternalEndpoint{Kind: "http", Method: httpMethod, Path: path}
}

// tsIsExported reports whether the declaration sits under an export
// statement. Unexported module-level declarations are file-private.
func tsIsExported(node *tree_sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Kind() == "export_statement"
}

func tsHasModifier(node *tree_sitter.Node, source []byte, modifier string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == "accessibility_modifier" && child.Utf8Text(source) == modifier {
			return true
		}
	}
	return false
}

func tsHasTypeHints(node *tree_sitter.Node) bool {
	if node.ChildByFieldName("return_type") != nil {
		return true
	}
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return false
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p != nil && childOfKind(p, "type_annotation") != nil {
			return true
		}
	}
	return false
}

// tsDocComment returns the JSDoc block immediately above a declaration,
// stripped of comment markers. Export statements wrap declarations, so
// the comment may sit above the parent.
func tsDocComment(node *tree_sitter.Node, source []byte) string {
	target := node
	if parent := node.Parent(); parent != nil && parent.Kind() == "export_statement" {
		target = parent
	}
	prev := target.PrevSibling()
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	if int(prev.EndPosition().Row) < int(target.StartPosition().Row)-1 {
		return ""
	}
	text := prev.Utf8Text(source)
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func tsLastSegment(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
