package graph

import "errors"

// --- Enums ---

// NodeKind classifies nodes in the structural graph.
type NodeKind string

const (
	NodeKindModule   NodeKind = "module"
	NodeKindClass    NodeKind = "class"
	NodeKindFunction NodeKind = "function"
)

// EdgeKind classifies relationships between graph nodes.
type EdgeKind string

const (
	EdgeKindCalls    EdgeKind = "calls"
	EdgeKindImports  EdgeKind = "imports"
	EdgeKindInherits EdgeKind = "inherits"
	EdgeKindContains EdgeKind = "contains"
)

// Direction controls edge traversal direction.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionBoth     Direction = "both"
)

// MaxPreviousHashes bounds the rename-tracking history kept per node.
const MaxPreviousHashes = 3

// --- Models ---

// GraphNode represents a function, class, or module in the structural graph.
type GraphNode struct {
	ID                uint64             `json:"id"`
	Hash              string             `json:"hash"`
	Kind              NodeKind           `json:"kind"`
	Name              string             `json:"name"`
	Signature         string             `json:"signature"`
	FilePath          string             `json:"filePath"`
	LineStart         int                `json:"lineStart"`
	LineEnd           int                `json:"lineEnd"`
	Docstring         string             `json:"docstring,omitempty"`
	IsPublic          bool               `json:"isPublic"`
	TypeHintsPresent  bool               `json:"typeHintsPresent"`
	HasDocstring      bool               `json:"hasDocstring"`
	// ParamCount is the declared parameter count, used by arity checks.
	ParamCount        int                `json:"paramCount"`
	ExternalEndpoints []ExternalEndpoint `json:"externalEndpoints,omitempty"`
	// PreviousHashes holds up to MaxPreviousHashes prior content hashes,
	// newest first.
	PreviousHashes []string `json:"previousHashes,omitempty"`
	ModuleID       uint64   `json:"moduleId"`
}

// ExternalEndpoint is an HTTP/gRPC/GraphQL surface associated with a function.
type ExternalEndpoint struct {
	Kind      string `json:"kind"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Direction string `json:"direction"`
}

// GraphEdge is a directed relationship between two nodes. Line is the site
// of the reference, not the definition.
type GraphEdge struct {
	ID       uint64   `json:"id"`
	SourceID uint64   `json:"sourceId"`
	TargetID uint64   `json:"targetId"`
	Kind     EdgeKind `json:"kind"`
	FilePath string   `json:"filePath"`
	Line     int      `json:"line"`
	// Confidence is the resolution confidence in [0,1]. Edges below 0.80
	// (dynamic dispatch, ambiguous resolution) produce WARNINGs instead of
	// ERRORs in enforcement.
	Confidence float64 `json:"confidence"`
	Tier       string  `json:"tier,omitempty"`
}

// ModuleProfile summarizes a module's responsibility for placement scoring.
type ModuleProfile struct {
	ModuleID                uint64   `json:"moduleId"`
	Path                    string   `json:"path"`
	FunctionCount           int      `json:"functionCount"`
	ClassCount              int      `json:"classCount"`
	FunctionNamePrefixes    []string `json:"functionNamePrefixes"`
	PrimaryTypes            []string `json:"primaryTypes"`
	ImportSources           []string `json:"importSources"`
	ExportTargets           []string `json:"exportTargets"`
	ResponsibilityKeywords  []string `json:"responsibilityKeywords"`
	ExternalEndpointCount   int      `json:"externalEndpointCount"`
}

// --- Change lists ---

// ChangeOp describes what an incremental update does to a node or edge.
type ChangeOp string

const (
	ChangeAdd    ChangeOp = "add"
	ChangeUpdate ChangeOp = "update"
	ChangeRemove ChangeOp = "remove"
)

// NodeChange is one element of the typed change list an incremental update
// produces for the enforcement engine.
type NodeChange struct {
	Op   ChangeOp
	Node GraphNode // populated for add/update
	ID   uint64    // populated for remove
	// OldHash is the hash being replaced on update, empty otherwise.
	OldHash string
	// ModuleHash names the containing module by hash when the module is
	// created in the same batch and has no id yet. Apply resolves it.
	ModuleHash string
}

// EdgeChange is the edge counterpart of NodeChange. An added edge may
// address its endpoints by hash instead of id when they are created in
// the same batch; Apply resolves hashes after the node changes land.
type EdgeChange struct {
	Op   ChangeOp
	Edge GraphEdge
	ID   uint64

	SourceHash string
	TargetHash string
}

// --- Errors ---

var (
	// ErrNodeNotFound is returned when a hash or id resolves to nothing.
	ErrNodeNotFound = errors.New("graph: node not found")
	// ErrDuplicateHash is returned when a write would leave two distinct
	// nodes sharing one hash even after disambiguation.
	ErrDuplicateHash = errors.New("graph: duplicate hash")
	// ErrStoreCorrupt marks underlying-store corruption. Fatal to the
	// triggering operation; the caller must trigger a full rebuild.
	ErrStoreCorrupt = errors.New("graph: store corrupt")
)

// Stats summarizes a committed graph.
type Stats struct {
	Nodes     int `json:"nodes"`
	Edges     int `json:"edges"`
	Modules   int `json:"modules"`
	Functions int `json:"functions"`
	Classes   int `json:"classes"`
}
