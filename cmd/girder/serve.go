package main

import (
	"context"

	"github.com/dusk-indust/girder/internal/mcptools"
)

// runServe exposes the pipeline as an MCP server over stdio or HTTP.
func runServe(ctx context.Context, flags cliFlags) error {
	p, cleanup, err := openPipeline(ctx, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := mcptools.NewGirderService(p)
	if flags.HTTPAddr != "" {
		return mcptools.RunMCPServerHTTP(ctx, svc, flags.HTTPAddr)
	}
	return mcptools.RunMCPServerStdio(ctx, mcptools.NewGirderMCPServer(svc))
}
