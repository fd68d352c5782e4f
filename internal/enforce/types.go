// Package enforce consumes graph change lists and emits architectural
// violations: broken callers, missing annotations, bad placement, and
// the session policies (circuit breaker, batch deferral, suppression)
// that shape how those violations surface.
package enforce

import (
	"github.com/dusk-indust/girder/internal/graph"
)

// Severity levels, strongest first.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Violation codes.
const (
	CodeBrokenCaller     = "E001"
	CodeMissingTypeHints = "E002"
	CodeMissingDocstring = "E003"
	CodeFunctionRemoved  = "E004"
	CodeArityMismatch    = "E005"
	CodePlacement        = "W001"
	CodeDuplicateName    = "W002"
	CodeSuppressed       = "S001"
)

var categories = map[string]string{
	CodeBrokenCaller:     "broken_caller",
	CodeMissingTypeHints: "missing_type_hints",
	CodeMissingDocstring: "missing_docstring",
	CodeFunctionRemoved:  "function_removed",
	CodeArityMismatch:    "arity_mismatch",
	CodePlacement:        "placement",
	CodeDuplicateName:    "duplicate_name",
	CodeSuppressed:       "suppressed",
}

// CallerRef identifies one affected call site.
type CallerRef struct {
	Hash string `json:"hash,omitempty"`
	Name string `json:"name,omitempty"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// ExistingRef points at the prior holder of a duplicated name.
type ExistingRef struct {
	Hash string `json:"hash"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// Violation is one enforcement finding.
type Violation struct {
	Code           string      `json:"code"`
	Category       string      `json:"category"`
	Severity       Severity    `json:"severity"`
	Message        string      `json:"message"`
	File           string      `json:"file,omitempty"`
	Line           int         `json:"line,omitempty"`
	Hash           string      `json:"hash,omitempty"`
	Confidence     float64     `json:"confidence,omitempty"`
	ResolutionTier string      `json:"resolution_tier,omitempty"`
	FixHint        string      `json:"fix_hint,omitempty"`
	Suppressed     bool        `json:"suppressed"`
	SuppressReason string      `json:"suppress_reason,omitempty"`
	// OriginalCode keeps the code a suppressed finding fired as, so
	// tooling never has to parse it back out of the message.
	OriginalCode string `json:"original_code,omitempty"`
	Affected       []CallerRef `json:"affected,omitempty"`
	// SuggestedModules lists up to three better-scoring homes for W001.
	SuggestedModules []string     `json:"suggested_modules,omitempty"`
	Existing         *ExistingRef `json:"existing,omitempty"`
}

// CallSite is one resolved reference from a changed file, carried into
// enforcement for arity and confidence checks.
type CallSite struct {
	CallerHash string
	TargetHash string
	File       string
	Line       int
	ArgCount   int
	Confidence float64
	Tier       string
}

// ChangeSet is the pipeline's hand-off to enforcement: the typed node
// and edge changes of one compile plus the resolved call sites of the
// changed files. Checks run against the store in its pre-commit state.
type ChangeSet struct {
	Files        []string
	Nodes        []graph.NodeChange
	Edges        []graph.EdgeChange
	Calls        []CallSite
	TypeRefs     []CallSite
	SkippedFiles []SkippedFile
	// FullRebuild marks a map() pass: every node is pre-existing, so
	// quality findings report at the configured reduced severity.
	FullRebuild bool
}

// SkippedFile records a file dropped from a batch by a local parse
// failure.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ChangeCounts summarizes committed graph changes.
type ChangeCounts struct {
	NodesUpdated  int `json:"nodesUpdated"`
	EdgesUpdated  int `json:"edgesUpdated"`
	HashesChanged int `json:"hashesChanged"`
}

// CompileResult is the structured answer to one compile invocation.
// Counts are always persisted but only populated in the payload when
// verbose output is on or any violation exists.
type CompileResult struct {
	Status        string        `json:"status"`
	FilesAnalyzed int           `json:"filesAnalyzed"`
	Errors        []Violation   `json:"errors,omitempty"`
	Warnings      []Violation   `json:"warnings,omitempty"`
	Info          []Violation   `json:"info,omitempty"`
	Counts        *ChangeCounts `json:"counts,omitempty"`
	Skipped       []SkippedFile `json:"skipped,omitempty"`
}

// DiscoverResult describes a node's neighborhood.
type DiscoverResult struct {
	Target        *graph.GraphNode     `json:"target"`
	Upstream      []DiscoverNeighbor   `json:"upstream"`
	Downstream    []DiscoverNeighbor   `json:"downstream"`
	ModuleContext *graph.ModuleProfile `json:"moduleContext,omitempty"`
}

// DiscoverNeighbor is one hop in a discover traversal.
type DiscoverNeighbor struct {
	Node       *graph.GraphNode `json:"node"`
	EdgeKind   graph.EdgeKind   `json:"edgeKind"`
	Line       int              `json:"line"`
	Confidence float64          `json:"confidence"`
	Depth      int              `json:"depth"`
}

// ExplainResult accounts for how a violation's edge was resolved.
type ExplainResult struct {
	Code            string   `json:"code"`
	Hash            string   `json:"hash"`
	Confidence      float64  `json:"confidence"`
	ResolutionTier  string   `json:"resolutionTier"`
	ResolutionChain []string `json:"resolutionChain"`
	Summary         string   `json:"summary"`
}

// WhereResult locates a node, or reports the hash stale.
type WhereResult struct {
	Stale     bool   `json:"stale"`
	File      string `json:"file,omitempty"`
	LineStart int    `json:"lineStart,omitempty"`
	LineEnd   int    `json:"lineEnd,omitempty"`
	// CurrentHash is set when the queried hash appears in a node's
	// history, pointing callers at the replacement.
	CurrentHash string `json:"currentHash,omitempty"`
}

// MapResult summarizes a full rebuild.
type MapResult struct {
	FilesAnalyzed int           `json:"filesAnalyzed"`
	NodesTotal    int           `json:"nodesTotal"`
	EdgesTotal    int           `json:"edgesTotal"`
	ModulesTotal  int           `json:"modulesTotal"`
	NodesAdded    int           `json:"nodesAdded"`
	NodesRemoved  int           `json:"nodesRemoved"`
	NodesChanged  int           `json:"nodesChanged"`
	Hotspots      []Hotspot     `json:"hotspots,omitempty"`
	Coverage      *Coverage     `json:"coverage,omitempty"`
	Warnings      []Violation   `json:"warnings,omitempty"`
	Skipped       []SkippedFile `json:"skipped,omitempty"`
}

// Hotspot is a high-fan-in or high-fan-out function.
type Hotspot struct {
	Hash   string `json:"hash"`
	Name   string `json:"name"`
	File   string `json:"file"`
	FanIn  int    `json:"fanIn"`
	FanOut int    `json:"fanOut"`
}

// Coverage reports annotation ratios across the graph.
type Coverage struct {
	TypeHintRatio  float64 `json:"typeHintRatio"`
	DocstringRatio float64 `json:"docstringRatio"`
}

func category(code string) string {
	return categories[code]
}
