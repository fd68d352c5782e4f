package main

import (
	"context"
	"fmt"
	"strconv"
)

func runDiscover(ctx context.Context, flags cliFlags, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: girder discover <hash-or-name> [depth]")
	}
	depth := 1
	if len(args) > 1 {
		d, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("depth must be an integer: %q", args[1])
		}
		depth = d
	}

	p, cleanup, err := openPipeline(ctx, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.Engine().Discover(ctx, args[0], depth)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	return printJSON(result)
}

func runExplain(ctx context.Context, flags cliFlags, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: girder explain <code> <hash>")
	}

	p, cleanup, err := openPipeline(ctx, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.Engine().Explain(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}
	return printJSON(result)
}

func runWhere(ctx context.Context, flags cliFlags, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: girder where <hash>")
	}

	p, cleanup, err := openPipeline(ctx, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.Engine().Where(ctx, args[0])
	if err != nil {
		return fmt.Errorf("where: %w", err)
	}
	return printJSON(result)
}
