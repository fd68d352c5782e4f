package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/girder/internal/enforce"
)

func runCompile(ctx context.Context, flags cliFlags, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: girder compile <files...>")
	}

	p, cleanup, err := openPipeline(ctx, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	open, expired, err := loadBatchMarker(flags)
	if err != nil {
		return err
	}
	var flushed *enforce.CompileResult
	if expired != nil {
		// the window lapsed between invocations; its deferred
		// findings surface with this compile
		flushed, err = p.Recheck(ctx, expired.Files, expired.Known, flags.Verbose)
		if err != nil {
			return err
		}
		if err := expired.Remove(); err != nil {
			return err
		}
	}
	var baseline map[string][]string
	if open != nil {
		p.Engine().OpenBatch()
		// captured before the compile commits, so symbols added inside
		// the window still count as additions at the flush
		baseline, err = p.FileSymbols(ctx, args)
		if err != nil {
			return err
		}
	}

	result, err := p.Compile(ctx, args, flags.Verbose)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	if open != nil {
		if err := open.Record(args, baseline); err != nil {
			return err
		}
	}
	if flushed != nil {
		mergeResults(result, flushed)
	}
	return printJSON(result)
}

func runMap(ctx context.Context, flags cliFlags) error {
	p, cleanup, err := openPipeline(ctx, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.MapAll(ctx, flags.Verbose)
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	return printJSON(result)
}
