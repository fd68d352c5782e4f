package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/girder/internal/pipeline"
)

// GirderService exposes the analysis pipeline to MCP tool handlers. The
// pipeline serializes writes internally, so concurrent tool calls are safe:
// compile and map queue behind one writer, reads go straight to the store.
type GirderService struct {
	pipeline *pipeline.Pipeline
}

// NewGirderService creates a GirderService over an initialized pipeline.
func NewGirderService(p *pipeline.Pipeline) *GirderService {
	return &GirderService{pipeline: p}
}

// Compile incrementally updates the graph from the given files and returns
// the enforcement result.
func (s *GirderService) Compile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompileInput,
) (*mcp.CallToolResult, CompileOutput, error) {
	if len(input.Paths) == 0 {
		return nil, CompileOutput{}, fmt.Errorf("paths is required")
	}
	if input.SuppressCode != "" {
		s.pipeline.Engine().SuppressOnce(input.SuppressCode, input.SuppressReason)
	}

	result, err := s.pipeline.Compile(ctx, input.Paths, input.Verbose)
	if err != nil {
		return nil, CompileOutput{}, fmt.Errorf("compile: %w", err)
	}
	return nil, CompileOutput{Result: *result}, nil
}

// Map rebuilds the whole graph from the project root and returns the
// summary report.
func (s *GirderService) Map(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MapInput,
) (*mcp.CallToolResult, MapOutput, error) {
	result, err := s.pipeline.MapAll(ctx, input.Verbose)
	if err != nil {
		return nil, MapOutput{}, fmt.Errorf("map: %w", err)
	}
	return nil, MapOutput{Result: *result}, nil
}

// Discover returns a node with its upstream and downstream neighborhood.
func (s *GirderService) Discover(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DiscoverInput,
) (*mcp.CallToolResult, DiscoverOutput, error) {
	if input.Query == "" {
		return nil, DiscoverOutput{}, fmt.Errorf("query is required")
	}

	result, err := s.pipeline.Engine().Discover(ctx, input.Query, input.Depth)
	if err != nil {
		return nil, DiscoverOutput{}, fmt.Errorf("discover: %w", err)
	}
	return nil, DiscoverOutput{Result: *result}, nil
}

// Explain replays the resolution evidence behind a reported violation.
func (s *GirderService) Explain(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExplainInput,
) (*mcp.CallToolResult, ExplainOutput, error) {
	if input.Code == "" || input.Hash == "" {
		return nil, ExplainOutput{}, fmt.Errorf("code and hash are required")
	}

	result, err := s.pipeline.Engine().Explain(ctx, input.Code, input.Hash)
	if err != nil {
		return nil, ExplainOutput{}, fmt.Errorf("explain: %w", err)
	}
	return nil, ExplainOutput{Result: *result}, nil
}

// Where locates a node by hash, following rename history for stale hashes.
func (s *GirderService) Where(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input WhereInput,
) (*mcp.CallToolResult, WhereOutput, error) {
	if input.Hash == "" {
		return nil, WhereOutput{}, fmt.Errorf("hash is required")
	}

	result, err := s.pipeline.Engine().Where(ctx, input.Hash)
	if err != nil {
		return nil, WhereOutput{}, fmt.Errorf("where: %w", err)
	}
	return nil, WhereOutput{Result: *result}, nil
}
