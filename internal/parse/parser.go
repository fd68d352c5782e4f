// Package parse turns source text into definitions, call sites, and import
// statements using tree-sitter, one pattern set per supported language.
package parse

import (
	"context"

	"github.com/dusk-indust/girder/internal/graph"
)

// DefKind classifies an extracted definition.
type DefKind string

const (
	DefFunction DefKind = "function"
	DefClass    DefKind = "class"
)

// Definition is a function or class extracted from one file.
type Definition struct {
	Name      string
	Kind      DefKind
	// Signature is the canonical declaration: name plus parameter and
	// return types where known, whitespace and comments stripped.
	Signature string
	// Body is the structurally normalized body text. Reformatting alone
	// never changes it.
	Body             string
	Docstring        string
	FilePath         string
	LineStart        int
	LineEnd          int
	IsPublic         bool
	TypeHintsPresent bool
	// ParamCount is the declared parameter count, used by arity checks.
	ParamCount int
	// Receiver is the method receiver type, empty for free functions.
	Receiver  string
	Endpoints []graph.ExternalEndpoint
}

// Hash returns the definition's content address.
func (d Definition) Hash() string {
	return graph.ComputeHash(d.Signature, d.Body, d.Docstring)
}

// RefKind is the flavour of a reference occurrence.
type RefKind string

const (
	RefCall    RefKind = "call"
	RefImport  RefKind = "import"
	RefTypeRef RefKind = "type_ref"
)

// Reference is a usage of a symbol within a file.
type Reference struct {
	Name     string
	Kind     RefKind
	FilePath string
	Line     int
	// ArgCount is the argument count at a call site, -1 when unknown.
	ArgCount int
	// Receiver is the receiver expression of a method call ("self",
	// "pkg", "obj"), empty for plain calls.
	Receiver string
	// EnclosingFunc names the definition containing this reference,
	// empty at module scope.
	EnclosingFunc string
}

// Import is one import statement.
type Import struct {
	// Source is the module specifier as written ("./auth", "crate::db",
	// "os.path", "github.com/x/y").
	Source string
	// Names are the identifiers brought into scope; empty for wildcard
	// or namespace imports.
	Names []string
	// Alias is the local binding name when the import is renamed.
	Alias      string
	FilePath   string
	Line       int
	IsRelative bool
	// IsWildcard marks star imports, which flag downstream references
	// as ambiguous.
	IsWildcard bool
	// IsReExport marks `export ... from` statements, followed when
	// resolving through barrel files.
	IsReExport bool
}

// Result is the full parse output for one file.
type Result struct {
	FilePath    string
	Language    Language
	ContentHash uint64
	Definitions []Definition
	References  []Reference
	Imports     []Import
}

// Parser extracts structural facts from source files.
type Parser interface {
	// Parse extracts all structural information from one file. A syntax
	// failure is local: the error is returned and the caller skips the
	// file without failing the batch.
	Parse(ctx context.Context, path string, source []byte) (*Result, error)

	// SupportedLanguages returns the languages this parser handles.
	SupportedLanguages() []Language

	// Close releases parser resources.
	Close() error
}
