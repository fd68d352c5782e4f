package parse

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// normalizeBody flattens a syntax subtree into its leaf tokens joined by
// single spaces, skipping comments. Two bodies that differ only in
// formatting or comments normalize to the same string.
func normalizeBody(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	var tokens []string
	collectTokens(node, source, &tokens)
	return strings.Join(tokens, " ")
}

func collectTokens(node *tree_sitter.Node, source []byte, tokens *[]string) {
	kind := node.Kind()
	if isCommentKind(kind) {
		return
	}
	if node.ChildCount() == 0 {
		text := node.Utf8Text(source)
		if text != "" {
			*tokens = append(*tokens, text)
		}
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			collectTokens(child, source, tokens)
		}
	}
}

func isCommentKind(kind string) bool {
	switch kind {
	case "comment", "line_comment", "block_comment", "doc_comment":
		return true
	}
	return false
}

// canonicalize strips whitespace runs down to single spaces and removes
// spaces around punctuation, producing a stable one-line signature.
func canonicalize(text string) string {
	fields := strings.Fields(text)
	joined := strings.Join(fields, " ")
	for _, p := range []string{"( ", " (", " )", " ,", " :", ": ", " ;"} {
		replacement := strings.TrimSpace(p)
		joined = strings.ReplaceAll(joined, p, replacement)
	}
	return joined
}

// startLine and endLine convert tree-sitter rows to 1-based lines.
func startLine(node *tree_sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

func endLine(node *tree_sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// countNamedChildren returns the number of named children, used for
// call-site argument counts.
func countNamedChildren(node *tree_sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.NamedChildCount())
}

// childOfKind returns the first direct child with the given kind.
func childOfKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

// trimQuotes removes matching string delimiters from a literal.
func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, "'''", `"`, "'", "`"} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
