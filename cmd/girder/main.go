package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dusk-indust/girder/internal/config"
	"github.com/dusk-indust/girder/internal/graph"
	"github.com/dusk-indust/girder/internal/pipeline"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ProjectRoot string
	DBPath      string
	Verbose     bool
	ServeMCP    bool
	HTTPAddr    string
	Version     bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("girder", flag.ContinueOnError)
	fs.StringVar(&flags.ProjectRoot, "project-root", ".", "path to the target project")
	fs.StringVar(&flags.DBPath, "db", "", "graph database path (default: <project-root>/.girder/graph.db)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "include change counts on clean results and debug logging")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server on stdio")
	fs.StringVar(&flags.HTTPAddr, "http", "", "serve MCP over HTTP on this address instead of stdio")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: girder [flags] <command> [args]")
		fmt.Fprintln(fs.Output(), "\ncommands:")
		fmt.Fprintln(fs.Output(), "  init                  write girder.yml and register the MCP server")
		fmt.Fprintln(fs.Output(), "  compile <files...>    incrementally compile files into the graph")
		fmt.Fprintln(fs.Output(), "  map                   rebuild the whole graph and print the summary")
		fmt.Fprintln(fs.Output(), "  discover <query>      show a node with its callers and callees")
		fmt.Fprintln(fs.Output(), "  explain <code> <hash> explain the evidence behind a violation")
		fmt.Fprintln(fs.Output(), "  where <hash>          locate a node by hash")
		fmt.Fprintln(fs.Output(), "  batch start|end       open or close a quality-deferral window")
		fmt.Fprintln(fs.Output(), "  status                show graph and batch state")
		fmt.Fprintln(fs.Output(), "  export                print the graph as JSON")
		fmt.Fprintln(fs.Output(), "  diagram               print the module graph as Mermaid")
		fmt.Fprintln(fs.Output(), "\nflags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.ServeMCP || flags.HTTPAddr != "" {
		return runServe(ctx, flags)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return fmt.Errorf("a command is required")
	}
	cmd, cmdArgs := rest[0], rest[1:]

	switch cmd {
	case "init":
		initFS := flag.NewFlagSet("init", flag.ContinueOnError)
		force := initFS.Bool("force", false, "overwrite existing files")
		if err := initFS.Parse(cmdArgs); err != nil {
			return err
		}
		return runInit(flags.ProjectRoot, *force)
	case "compile":
		return runCompile(ctx, flags, cmdArgs)
	case "map":
		return runMap(ctx, flags)
	case "discover":
		return runDiscover(ctx, flags, cmdArgs)
	case "explain":
		return runExplain(ctx, flags, cmdArgs)
	case "where":
		return runWhere(ctx, flags, cmdArgs)
	case "batch":
		return runBatch(ctx, flags, cmdArgs)
	case "status":
		return runStatus(ctx, flags)
	case "export":
		return runExport(ctx, flags)
	case "diagram":
		return runDiagram(ctx, flags)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// openPipeline loads project config, opens the persistent graph store,
// and builds the analysis pipeline. The caller must invoke the returned
// cleanup function.
func openPipeline(ctx context.Context, flags cliFlags) (*pipeline.Pipeline, func(), error) {
	root, err := filepath.Abs(flags.ProjectRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving project root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, fmt.Errorf("loading girder.yml: %w", err)
	}

	store, err := openStore(flags, root)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelWarn
	if flags.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	p, err := pipeline.New(ctx, root, store, cfg, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		p.Close()
		store.Close()
	}
	return p, cleanup, nil
}

func openStore(flags cliFlags, root string) (graph.Store, error) {
	dbPath := flags.DBPath
	if dbPath == "" {
		dir := filepath.Join(root, ".girder")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		dbPath = filepath.Join(dir, "graph.db")
	}
	return graph.OpenSQLite(dbPath)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = os.Stdout.Write(append(out, '\n'))
	return err
}
