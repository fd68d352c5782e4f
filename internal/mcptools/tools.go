package mcptools

import "github.com/dusk-indust/girder/internal/enforce"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// CompileInput is the input for the girder_compile MCP tool.
type CompileInput struct {
	Paths          []string `json:"paths" jsonschema:"files to compile into the graph, relative to the project root"`
	Verbose        bool     `json:"verbose,omitempty" jsonschema:"include node/edge change counts even on clean results"`
	SuppressCode   string   `json:"suppressCode,omitempty" jsonschema:"violation code to suppress for this invocation only (e.g. E003)"`
	SuppressReason string   `json:"suppressReason,omitempty" jsonschema:"reason recorded with the one-shot suppression"`
}

// CompileOutput is the result of the girder_compile MCP tool.
type CompileOutput struct {
	Result enforce.CompileResult `json:"result"`
}

// MapInput is the input for the girder_map MCP tool.
type MapInput struct {
	Verbose bool `json:"verbose,omitempty" jsonschema:"include full per-module detail in the summary"`
}

// MapOutput is the result of the girder_map MCP tool.
type MapOutput struct {
	Result enforce.MapResult `json:"result"`
}

// DiscoverInput is the input for the girder_discover MCP tool.
type DiscoverInput struct {
	Query string `json:"query" jsonschema:"node hash or function/class name to inspect"`
	Depth int    `json:"depth,omitempty" jsonschema:"traversal depth for upstream/downstream neighbors (default: 1)"`
}

// DiscoverOutput is the result of the girder_discover MCP tool.
type DiscoverOutput struct {
	Result enforce.DiscoverResult `json:"result"`
}

// ExplainInput is the input for the girder_explain MCP tool.
type ExplainInput struct {
	Code string `json:"code" jsonschema:"violation code to explain (e.g. E001)"`
	Hash string `json:"hash" jsonschema:"hash of the node the violation was reported against"`
}

// ExplainOutput is the result of the girder_explain MCP tool.
type ExplainOutput struct {
	Result enforce.ExplainResult `json:"result"`
}

// WhereInput is the input for the girder_where MCP tool.
type WhereInput struct {
	Hash string `json:"hash" jsonschema:"node hash to locate; stale hashes resolve through rename history"`
}

// WhereOutput is the result of the girder_where MCP tool.
type WhereOutput struct {
	Result enforce.WhereResult `json:"result"`
}
