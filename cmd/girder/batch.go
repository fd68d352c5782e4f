package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/girder/internal/config"
	"github.com/dusk-indust/girder/internal/enforce"
	"github.com/dusk-indust/girder/internal/status"
)

// loadBatchMarker returns the open marker, or the expired one when the
// inactivity window has lapsed. At most one of the two is non-nil.
func loadBatchMarker(flags cliFlags) (open, expired *status.BatchMarker, err error) {
	root, err := filepath.Abs(flags.ProjectRoot)
	if err != nil {
		return nil, nil, err
	}
	m, err := status.LoadMarker(root)
	if err != nil || m == nil {
		return nil, nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, err
	}
	if m.Expired(cfg.BatchWindow()) {
		return nil, m, nil
	}
	return m, nil, nil
}

func runBatch(ctx context.Context, flags cliFlags, args []string) error {
	if len(args) != 1 || (args[0] != "start" && args[0] != "end") {
		return fmt.Errorf("usage: girder batch start|end")
	}

	root, err := filepath.Abs(flags.ProjectRoot)
	if err != nil {
		return err
	}

	if args[0] == "start" {
		if _, err := status.StartBatch(root); err != nil {
			return err
		}
		return printJSON(map[string]string{"status": "batch_open"})
	}

	m, err := status.LoadMarker(root)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no open batch")
	}

	p, cleanup, err := openPipeline(ctx, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.Recheck(ctx, m.Files, m.Known, flags.Verbose)
	if err != nil {
		return fmt.Errorf("batch end: %w", err)
	}
	if err := m.Remove(); err != nil {
		return err
	}
	return printJSON(result)
}

func runStatus(ctx context.Context, flags cliFlags) error {
	root, err := filepath.Abs(flags.ProjectRoot)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	store, err := openStore(flags, root)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := status.Collect(ctx, root, store, cfg.BatchWindow())
	if err != nil {
		return err
	}
	return printJSON(st)
}

// mergeResults folds src's findings into dst and recomputes the status.
func mergeResults(dst, src *enforce.CompileResult) {
	dst.Errors = append(dst.Errors, src.Errors...)
	dst.Warnings = append(dst.Warnings, src.Warnings...)
	dst.Info = append(dst.Info, src.Info...)
	switch {
	case len(dst.Errors) > 0:
		dst.Status = "errors"
	case len(dst.Warnings) > 0:
		dst.Status = "warnings"
	default:
		dst.Status = "ok"
	}
}
