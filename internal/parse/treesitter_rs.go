package parse

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/girder/internal/graph"
)

// rsExtractor extracts definitions, references, and imports from Rust
// files. Functions inside impl blocks carry the impl target as receiver.
type rsExtractor struct{}

func (e *rsExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) ([]Definition, []Reference, []Import) {
	st := &rsState{filePath: filePath}

	cursor := root.Walk()
	defer cursor.Close()

	e.walk(cursor, source, st, "", "")
	return st.defs, st.refs, st.imports
}

type rsState struct {
	filePath string
	defs     []Definition
	refs     []Reference
	imports  []Import
}

func (e *rsExtractor) walk(cursor *tree_sitter.TreeCursor, source []byte, st *rsState, enclosing, implType string) {
	node := cursor.Node()
	childEnclosing, childImpl := enclosing, implType

	switch node.Kind() {
	case "function_item":
		if enclosing == "" {
			if def := e.extractFunction(node, source, st.filePath, implType); def != nil {
				st.defs = append(st.defs, *def)
				childEnclosing = def.Name
			}
		}

	case "struct_item", "enum_item", "trait_item":
		if def := e.extractType(node, source, st.filePath); def != nil {
			st.defs = append(st.defs, *def)
		}

	case "impl_item":
		if typeNode := node.ChildByFieldName("type"); typeNode != nil {
			childImpl = typeNode.Utf8Text(source)
		}
		// `impl Trait for Type` also records the trait as a type use.
		if traitNode := node.ChildByFieldName("trait"); traitNode != nil {
			st.refs = append(st.refs, Reference{
				Name:     rsLastSegment(traitNode.Utf8Text(source)),
				Kind:     RefTypeRef,
				FilePath: st.filePath,
				Line:     startLine(traitNode),
				ArgCount: -1,
			})
		}

	case "use_declaration":
		st.imports = append(st.imports, e.extractUse(node, source, st.filePath)...)

	case "call_expression":
		e.extractCall(node, source, st, enclosing)
	}

	if cursor.GotoFirstChild() {
		e.walk(cursor, source, st, childEnclosing, childImpl)
		for cursor.GotoNextSibling() {
			e.walk(cursor, source, st, childEnclosing, childImpl)
		}
		cursor.GotoParent()
	}
}

func (e *rsExtractor) extractFunction(node *tree_sitter.Node, source []byte, filePath, implType string) *Definition {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}
	name := nameNode.Utf8Text(source)

	paramCount := 0
	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			p := params.NamedChild(i)
			if p == nil || p.Kind() == "self_parameter" {
				continue
			}
			paramCount++
		}
	}

	return &Definition{
		Name:             name,
		Kind:             DefFunction,
		Signature:        canonicalize(string(source[node.StartByte():body.StartByte()])),
		Body:             normalizeBody(body, source),
		Docstring:        rsDocComment(node, source),
		FilePath:         filePath,
		LineStart:        startLine(node),
		LineEnd:          endLine(node),
		IsPublic:         rsIsPublic(node, source),
		TypeHintsPresent: true,
		ParamCount:       paramCount,
		Receiver:         implType,
		Endpoints:        rsAttributeEndpoints(node, source),
	}
}

func (e *rsExtractor) extractType(node *tree_sitter.Node, source []byte, filePath string) *Definition {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Utf8Text(source)
	return &Definition{
		Name:             name,
		Kind:             DefClass,
		Signature:        canonicalize(strings.TrimSuffix(node.Kind(), "_item") + " " + name),
		Body:             normalizeBody(node, source),
		Docstring:        rsDocComment(node, source),
		FilePath:         filePath,
		LineStart:        startLine(node),
		LineEnd:          endLine(node),
		IsPublic:         rsIsPublic(node, source),
		TypeHintsPresent: true,
	}
}

// extractUse flattens a use declaration into one import per leaf path.
// `use crate::db::{open, Pool};` yields two imports with source crate::db.
func (e *rsExtractor) extractUse(node *tree_sitter.Node, source []byte, filePath string) []Import {
	arg := node.ChildByFieldName("argument")
	if arg == nil {
		return nil
	}
	var imports []Import
	e.flattenUse(arg, source, filePath, startLine(node), "", &imports)
	return imports
}

func (e *rsExtractor) flattenUse(node *tree_sitter.Node, source []byte, filePath string, line int, prefix string, out *[]Import) {
	switch node.Kind() {
	case "identifier", "scoped_identifier", "crate", "super", "self":
		full := rsJoinPath(prefix, node.Utf8Text(source))
		*out = append(*out, Import{
			Source:     rsPathPrefix(full),
			Names:      []string{rsLastSegment(full)},
			FilePath:   filePath,
			Line:       line,
			IsRelative: rsIsRelativePath(full),
		})

	case "use_as_clause":
		pathNode := node.ChildByFieldName("path")
		aliasNode := node.ChildByFieldName("alias")
		if pathNode == nil {
			return
		}
		full := rsJoinPath(prefix, pathNode.Utf8Text(source))
		imp := Import{
			Source:     rsPathPrefix(full),
			Names:      []string{rsLastSegment(full)},
			FilePath:   filePath,
			Line:       line,
			IsRelative: rsIsRelativePath(full),
		}
		if aliasNode != nil {
			imp.Alias = aliasNode.Utf8Text(source)
		}
		*out = append(*out, imp)

	case "use_wildcard":
		base := prefix
		if path := node.NamedChild(0); path != nil {
			base = rsJoinPath(prefix, path.Utf8Text(source))
		}
		*out = append(*out, Import{
			Source:     base,
			FilePath:   filePath,
			Line:       line,
			IsRelative: rsIsRelativePath(base),
			IsWildcard: true,
		})

	case "scoped_use_list":
		base := prefix
		if pathNode := node.ChildByFieldName("path"); pathNode != nil {
			base = rsJoinPath(prefix, pathNode.Utf8Text(source))
		}
		if list := node.ChildByFieldName("list"); list != nil {
			for i := uint(0); i < list.NamedChildCount(); i++ {
				if child := list.NamedChild(i); child != nil {
					e.flattenUse(child, source, filePath, line, base, out)
				}
			}
		}

	case "use_list":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if child := node.NamedChild(i); child != nil {
				e.flattenUse(child, source, filePath, line, prefix, out)
			}
		}
	}
}

func (e *rsExtractor) extractCall(node *tree_sitter.Node, source []byte, st *rsState, enclosing string) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}

	var name, receiver string
	switch fnNode.Kind() {
	case "identifier":
		name = fnNode.Utf8Text(source)
	case "field_expression":
		if field := fnNode.ChildByFieldName("field"); field != nil {
			name = field.Utf8Text(source)
		}
		if value := fnNode.ChildByFieldName("value"); value != nil {
			receiver = value.Utf8Text(source)
		}
	case "scoped_identifier":
		if nameNode := fnNode.ChildByFieldName("name"); nameNode != nil {
			name = nameNode.Utf8Text(source)
		}
		if pathNode := fnNode.ChildByFieldName("path"); pathNode != nil {
			receiver = pathNode.Utf8Text(source)
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

// rsAttributeEndpoints recognizes route attributes above a function,
// e.g. #[get("/users")].
func rsAttributeEndpoints(node *tree_sitter.Node, source []byte) []graph.ExternalEndpoint {
	var endpoints []graph.ExternalEndpoint
	for prev := node.PrevSibling(); prev != nil && prev.Kind() == "attribute_item"; prev = prev.PrevSibling() {
		attr := childOfKind(prev, "attribute")
		if attr == nil {
			continue
		}
		ident := childOfKind(attr, "identifier")
		if ident == nil {
			continue
		}
		var method string
		switch ident.Utf8Text(source) {
		case "get", "post", "put", "delete", "patch", "head", "options":
			method = strings.ToUpper(ident.Utf8Text(source))
		case "route":
			method = "ANY"
		default:
			continue
		}
		argsNode := childOfKind(attr, "token_tree")
		if argsNode == nil {
			continue
		}
		str := childOfKind(argsNode, "string_literal")
		if str == nil {
			continue
		}
		path := trimQuotes(str.Utf8Text(source))
		if strings.HasPrefix(path, "/") {
			endpoints = append(endpoints, graph.ExternalEndpoint{Kind: "http", Method: method, Path: path})
		}
	}
	return endpoints
}

// rsDocComment gathers contiguous /// lines above an item.
func rsDocComment(node *tree_sitter.Node, source []byte) string {
	var lines []string
	expect := int(node.StartPosition().Row)
	for prev := node.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		kind := prev.Kind()
		if kind == "attribute_item" {
			expect = int(prev.StartPosition().Row)
			continue
		}
		if kind != "line_comment" && kind != "doc_comment" {
			break
		}
		if int(prev.EndPosition().Row) != expect-1 {
			break
		}
		text := prev.Utf8Text(source)
		if !strings.HasPrefix(text, "///") {
			break
		}
		expect = int(prev.StartPosition().Row)
		lines = append([]string{strings.TrimSpace(strings.TrimPrefix(text, "///"))}, lines...)
	}
	return strings.Join(lines, "\n")
}

func rsIsPublic(node *tree_sitter.Node, source []byte) bool {
	vis := childOfKind(node, "visibility_modifier")
	if vis == nil {
		return false
	}
	text := vis.Utf8Text(source)
	// pub(crate) and pub(super) stay private to the crate.
	return text == "pub"
}

func rsJoinPath(prefix, rest string) string {
	if prefix == "" {
		return rest
	}
	return prefix + "::" + rest
}

func rsPathPrefix(path string) string {
	if idx := strings.LastIndex(path, "::"); idx >= 0 {
		return path[:idx]
	}
	return path
}

func rsLastSegment(path string) string {
	if idx := strings.LastIndex(path, "::"); idx >= 0 {
		return path[idx+2:]
	}
	return path
}

func rsIsRelativePath(path string) bool {
	return strings.HasPrefix(path, "crate") || strings.HasPrefix(path, "super") || strings.HasPrefix(path, "self")
}
