package parse

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/girder/internal/graph"
)

// pyExtractor extracts definitions, references, and imports from Python
// files. Module-level and class-level definitions become nodes; functions
// nested inside other functions are folded into their enclosing scope.
type pyExtractor struct{}

func (e *pyExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) ([]Definition, []Reference, []Import) {
	st := &pyState{filePath: filePath}

	cursor := root.Walk()
	defer cursor.Close()

	e.walk(cursor, source, st, "", "")
	return st.defs, st.refs, st.imports
}

type pyState struct {
	filePath string
	defs     []Definition
	refs     []Reference
	imports  []Import
}

func (e *pyExtractor) walk(cursor *tree_sitter.TreeCursor, source []byte, st *pyState, enclosing, class string) {
	node := cursor.Node()
	childEnclosing, childClass := enclosing, class

	switch node.Kind() {
	case "function_definition":
		if enclosing == "" {
			if def := e.extractFunction(node, source, st.filePath, class); def != nil {
				st.defs = append(st.defs, *def)
				childEnclosing = def.Name
			}
		}

	case "class_definition":
		if def := e.extractClass(node, source, st, class); def != nil {
			st.defs = append(st.defs, *def)
			childClass = def.Name
		}

	case "import_statement":
		st.imports = append(st.imports, e.extractImport(node, source, st.filePath)...)

	case "import_from_statement":
		if imp := e.extractFromImport(node, source, st.filePath); imp != nil {
			st.imports = append(st.imports, *imp)
		}

	case "call":
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

func (e *pyExtractor) extractFunction(node *tree_sitter.Node, source []byte, filePath, class string) *Definition {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}
	name := nameNode.Utf8Text(source)
	params := node.ChildByFieldName("parameters")

	paramCount := 0
	hints := node.ChildByFieldName("return_type") != nil
	if params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			p := params.NamedChild(i)
			if p == nil {
				continue
			}
			text := p.Utf8Text(source)
			if class != "" && i == 0 && (text == "self" || text == "cls") {
				continue
			}
			paramCount++
			switch p.Kind() {
			case "typed_parameter", "typed_default_parameter":
				hints = true
			}
		}
	}

	return &Definition{
		Name:             name,
		Kind:             DefFunction,
		Signature:        canonicalize(string(source[node.StartByte():body.StartByte()])),
		Body:             normalizeBody(body, source),
		Docstring:        pyDocstring(body, source),
		FilePath:         filePath,
		LineStart:        startLine(node),
		LineEnd:          endLine(node),
		IsPublic:         isPyExported(name) && (class == "" || isPyExported(class)),
		TypeHintsPresent: hints,
		ParamCount:       paramCount,
		Receiver:         class,
		Endpoints:        pyDecoratorEndpoints(node, source),
	}
}

func (e *pyExtractor) extractClass(node *tree_sitter.Node, source []byte, st *pyState, outer string) *Definition {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}
	name := nameNode.Utf8Text(source)

	// Superclasses become type references for inheritance edges.
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			base := supers.NamedChild(i)
			if base == nil {
				continue
			}
			switch base.Kind() {
			case "identifier", "attribute":
				st.refs = append(st.refs, Reference{
					Name:          pyLastSegment(base.Utf8Text(source)),
					Kind:          RefTypeRef,
					FilePath:      st.filePath,
					Line:          startLine(base),
					ArgCount:      -1,
					EnclosingFunc: name,
				})
			}
		}
	}

	return &Definition{
		Name:             name,
		Kind:             DefClass,
		Signature:        canonicalize(string(source[node.StartByte():body.StartByte()])),
		Body:             normalizeBody(body, source),
		Docstring:        pyDocstring(body, source),
		FilePath:         st.filePath,
		LineStart:        startLine(node),
		LineEnd:          endLine(node),
		IsPublic:         isPyExported(name) && (outer == "" || isPyExported(outer)),
		TypeHintsPresent: true,
	}
}

func (e *pyExtractor) extractImport(node *tree_sitter.Node, source []byte, filePath string) []Import {
	var imports []Import
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			imports = append(imports, Import{
				Source:   child.Utf8Text(source),
				FilePath: filePath,
				Line:     startLine(node),
			})
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			imp := Import{
				Source:   nameNode.Utf8Text(source),
				FilePath: filePath,
				Line:     startLine(node),
			}
			if aliasNode != nil {
				imp.Alias = aliasNode.Utf8Text(source)
			}
			imports = append(imports, imp)
		}
	}
	return imports
}

func (e *pyExtractor) extractFromImport(node *tree_sitter.Node, source []byte, filePath string) *Import {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil
	}
	module := moduleNode.Utf8Text(source)
	if module == "" {
		return nil
	}

	imp := &Import{
		Source:     module,
		FilePath:   filePath,
		Line:       startLine(node),
		IsRelative: strings.HasPrefix(module, "."),
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.StartByte() == moduleNode.StartByte() {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			imp.Names = append(imp.Names, child.Utf8Text(source))
		case "aliased_import":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				imp.Names = append(imp.Names, nameNode.Utf8Text(source))
			}
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				imp.Alias = aliasNode.Utf8Text(source)
			}
		case "wildcard_import":
			imp.IsWildcard = true
			imp.Names = nil
		}
	}
	return imp
}

func (e *pyExtractor) extractCall(node *tree_sitter.Node, source []byte, st *pyState, enclosing string) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}

	var name, receiver string
	switch fnNode.Kind() {
	case "identifier":
		name = fnNode.Utf8Text(source)
	case "attribute":
		if attr := fnNode.ChildByFieldName("attribute"); attr != nil {
			name = attr.Utf8Text(source)
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

	st.refs = append(st.refs, Reference{
		Name:          name,
		Kind:          RefCall,
		FilePath:      st.filePath,
		Line:          startLine(node),
		ArgCount:      countNamedChildren(node.ChildByFieldName("arguments")),
		Receiver:      receiver,
		EnclosingFunc: enclosing,
	})
}

// pyDecoratorEndpoints recognizes route decorators on the function, e.g.
// @app.get("/users") or @router.route("/users", methods=["POST"]).
func pyDecoratorEndpoints(node *tree_sitter.Node, source []byte) []graph.ExternalEndpoint {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}
	var endpoints []graph.ExternalEndpoint
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		dec := parent.NamedChild(i)
		if dec == nil || dec.Kind() != "decorator" {
			continue
		}
		call := childOfKind(dec, "call")
		if call == nil {
			continue
		}
		fnNode := call.ChildByFieldName("function")
		if fnNode == nil || fnNode.Kind() != "attribute" {
			continue
		}
		attr := fnNode.ChildByFieldName("attribute")
		if attr == nil {
			continue
		}
		var method string
		switch attr.Utf8Text(source) {
		case "get", "post", "put", "delete", "patch", "head", "options":
			method = strings.ToUpper(attr.Utf8Text(source))
		case "route", "websocket":
			method = "ANY"
		default:
			continue
		}
		args := call.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			continue
		}
		first := args.NamedChild(0)
		if first == nil || first.Kind() != "string" {
			continue
		}
		path := trimQuotes(first.Utf8Text(source))
		if strings.HasPrefix(path, "/") {
			endpoints = append(endpoints, graph.ExternalEndpoint{Kind: "http", Method: method, Path: path})
		}
	}
	return endpoints
}

// pyDocstring returns the leading string literal of a block, if any.
func pyDocstring(body *tree_sitter.Node, source []byte) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	str := childOfKind(first, "string")
	if str == nil {
		return ""
	}
	return strings.TrimSpace(trimQuotes(str.Utf8Text(source)))
}

func pyLastSegment(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// isPyExported returns true if the name does not start with an underscore.
func isPyExported(name string) bool {
	return !strings.HasPrefix(name, "_")
}
