package parse

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/girder/internal/graph"
)

// goExtractor extracts definitions, references, and imports from Go files.
type goExtractor struct{}

func (e *goExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) ([]Definition, []Reference, []Import) {
	st := &goState{filePath: filePath, endpoints: make(map[string][]graph.ExternalEndpoint)}

	cursor := root.Walk()
	defer cursor.Close()

	e.walk(cursor, source, st, "")

	for i := range st.defs {
		st.defs[i].Endpoints = st.endpoints[st.defs[i].Name]
	}
	return st.defs, st.refs, st.imports
}

type goState struct {
	filePath  string
	defs      []Definition
	refs      []Reference
	imports   []Import
	endpoints map[string][]graph.ExternalEndpoint
}

func (e *goExtractor) walk(cursor *tree_sitter.TreeCursor, source []byte, st *goState, enclosing string) {
	node := cursor.Node()
	childEnclosing := enclosing

	switch node.Kind() {
	case "function_declaration", "method_declaration":
		if def := e.extractFunction(node, source, st.filePath); def != nil {
			st.defs = append(st.defs, *def)
			childEnclosing = def.Name
		}

	case "type_declaration":
		st.defs = append(st.defs, e.extractTypeDeclaration(node, source, st.filePath)...)

	case "import_spec":
		if imp := e.extractImport(node, source, st.filePath); imp != nil {
			st.imports = append(st.imports, *imp)
		}

	case "call_expression":
		e.extractCall(node, source, st, enclosing)
	}

	if cursor.GotoFirstChild() {
		e.walk(cursor, source, st, childEnclosing)
		for cursor.GotoNextSibling() {
			e.walk(cursor, source, st, childEnclosing)
		}
		cursor.GotoParent()
	}
}

func (e *goExtractor) extractFunction(node *tree_sitter.Node, source []byte, filePath string) *Definition {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Utf8Text(source)
	body := node.ChildByFieldName("body")

	// Signature is everything before the body.
	sigEnd := node.EndByte()
	if body != nil {
		sigEnd = body.StartByte()
	}
	signature := canonicalize(string(source[node.StartByte():sigEnd]))

	var receiver string
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		receiver = goReceiverType(recv, source)
	}

	return &Definition{
		Name:             name,
		Kind:             DefFunction,
		Signature:        signature,
		Body:             normalizeBody(body, source),
		Docstring:        goDocComment(node, source),
		FilePath:         filePath,
		LineStart:        startLine(node),
		LineEnd:          endLine(node),
		IsPublic:         isGoExported(name),
		TypeHintsPresent: true,
		ParamCount:       countNamedChildren(node.ChildByFieldName("parameters")),
		Receiver:         receiver,
	}
}

func (e *goExtractor) extractTypeDeclaration(node *tree_sitter.Node, source []byte, filePath string) []Definition {
	var defs []Definition
	for i := uint(0); i < node.ChildCount(); i++ {
		spec := node.Child(i)
		if spec == nil || spec.Kind() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		// Only named struct and interface types become class nodes;
		// aliases and basic-type wrappers do not.
		switch typeNode.Kind() {
		case "struct_type", "interface_type":
		default:
			continue
		}
		name := nameNode.Utf8Text(source)
		defs = append(defs, Definition{
			Name:             name,
			Kind:             DefClass,
			Signature:        canonicalize("type " + name + " " + typeNode.Kind()),
			Body:             normalizeBody(typeNode, source),
			Docstring:        goDocComment(node, source),
			FilePath:         filePath,
			LineStart:        startLine(spec),
			LineEnd:          endLine(spec),
			IsPublic:         isGoExported(name),
			TypeHintsPresent: true,
		})
	}
	return defs
}

func (e *goExtractor) extractImport(node *tree_sitter.Node, source []byte, filePath string) *Import {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		pathNode = childOfKind(node, "interpreted_string_literal")
	}
	if pathNode == nil {
		return nil
	}
	importPath := strings.Trim(pathNode.Utf8Text(source), "\"")
	if importPath == "" {
		return nil
	}

	var alias string
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		alias = nameNode.Utf8Text(source)
	}
	return &Import{
		Source:     importPath,
		Alias:      alias,
		FilePath:   filePath,
		Line:       startLine(node),
		IsWildcard: alias == ".",
	}
}

func (e *goExtractor) extractCall(node *tree_sitter.Node, source []byte, st *goState, enclosing string) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}

	var name, receiver string
	switch fnNode.Kind() {
	case "identifier":
		name = fnNode.Utf8Text(source)
	case "selector_expression":
		if field := fnNode.ChildByFieldName("field"); field != nil {
			name = field.Utf8Text(source)
		}
		if operand := fnNode.ChildByFieldName("operand"); operand != nil {
			receiver = operand.Utf8Text(source)
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
		if ep := goRouteEndpoint(name, args, source); ep != nil {
			st.endpoints[enclosing] = append(st.endpoints[enclosing], *ep)
		}
	}
}

// goRouteEndpoint recognizes mux/router registration calls whose first
// argument is a path literal, e.g. r.Get("/users", h).
func goRouteEndpoint(method string, args *tree_sitter.Node, source []byte) *graph.ExternalEndpoint {
	var httpMethod string
	switch method {
	case "Get", "Post", "Put", "Delete", "Patch", "Head", "Options":
		httpMethod = strings.ToUpper(method)
	case "Handle", "HandleFunc":
		httpMethod = "ANY"
	default:
		return nil
	}
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	first := args.NamedChild(0)
	if first == nil || first.Kind() != "interpreted_string_literal" {
		return nil
	}
	path := strings.Trim(first.Utf8Text(source), "\"")
	if !strings.HasPrefix(path, "/") {
		return nil
	}
	return &graph.ExternalEndpoint{Kind: "http", Method: httpMethod, Path: path}
}

// goDocComment gathers the contiguous comment block immediately above a
// declaration.
func goDocComment(node *tree_sitter.Node, source []byte) string {
	var lines []string
	expect := int(node.StartPosition().Row)
	for prev := node.PrevSibling(); prev != nil && prev.Kind() == "comment"; prev = prev.PrevSibling() {
		if int(prev.EndPosition().Row) != expect-1 {
			break
		}
		expect = int(prev.StartPosition().Row)
		text := strings.TrimSpace(strings.TrimPrefix(prev.Utf8Text(source), "//"))
		lines = append([]string{text}, lines...)
	}
	return strings.Join(lines, "\n")
}

func goReceiverType(recv *tree_sitter.Node, source []byte) string {
	for i := uint(0); i < recv.NamedChildCount(); i++ {
		child := recv.NamedChild(i)
		if child == nil {
			continue
		}
		if typeNode := child.ChildByFieldName("type"); typeNode != nil {
			return strings.TrimPrefix(typeNode.Utf8Text(source), "*")
		}
	}
	return ""
}

// isGoExported returns true if the first rune of name is an uppercase letter.
func isGoExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
