package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/girder/internal/export"
	"github.com/dusk-indust/girder/internal/graph"
)

func runExport(ctx context.Context, flags cliFlags) error {
	store, err := openExistingStore(flags)
	if err != nil {
		return err
	}
	defer store.Close()

	data, err := export.ExportGraph(ctx, store)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return printJSON(data)
}

func runDiagram(ctx context.Context, flags cliFlags) error {
	store, err := openExistingStore(flags)
	if err != nil {
		return err
	}
	defer store.Close()

	mermaid, err := export.GenerateMermaid(ctx, store)
	if err != nil {
		return err
	}
	fmt.Print(mermaid)
	return nil
}

// openExistingStore opens the graph database without building a pipeline.
// Export commands read the committed graph as-is.
func openExistingStore(flags cliFlags) (graph.Store, error) {
	root, err := filepath.Abs(flags.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	return openStore(flags, root)
}
