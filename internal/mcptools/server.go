package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewGirderMCPServer creates an MCP server with all 5 graph tools registered.
func NewGirderMCPServer(svc *GirderService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "girder",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "girder_compile",
		Description: "Incrementally compile changed files into the structural graph and enforce architectural contracts. Returns errors, warnings, and info findings with fix hints.",
	}, svc.Compile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "girder_map",
		Description: "Rebuild the structural graph for the whole project from scratch. Returns totals, hotspots, and annotation coverage.",
	}, svc.Map)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "girder_discover",
		Description: "Look up a function or class by hash or name and return its callers, callees, and module context.",
	}, svc.Discover)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "girder_explain",
		Description: "Explain why a violation was reported: the resolution chain, confidence, and tier behind the evidence.",
	}, svc.Explain)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "girder_where",
		Description: "Locate a node by content hash. Stale hashes resolve through rename history to the current version.",
	}, svc.Where)

	return server
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunMCPServerHTTP starts an HTTP server exposing the graph MCP tools.
func RunMCPServerHTTP(ctx context.Context, svc *GirderService, addr string) error {
	server := NewGirderMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
