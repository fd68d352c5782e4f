// Package pipeline coordinates the parse, resolve, enforce, and commit
// steps behind every girder operation. It is the single writer: compile
// and map invocations serialize, and a change either commits whole or
// leaves the graph untouched.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/girder/internal/config"
	"github.com/dusk-indust/girder/internal/enforce"
	"github.com/dusk-indust/girder/internal/graph"
	"github.com/dusk-indust/girder/internal/parse"
	"github.com/dusk-indust/girder/internal/resolve"
)

type Pipeline struct {
	root     string
	cfg      *config.Config
	store    graph.Store
	parser   *parse.TreeSitterParser
	resolver *resolve.Resolver
	engine   *enforce.Engine
	log      *slog.Logger
	workers  int

	// mu serializes writers. Reads against the store go through the
	// last-committed state and do not take it.
	mu      sync.Mutex
	results map[string]*parse.Result
}

// New parses the workspace under root and wires the resolver and the
// enforcement engine over it. The store is not modified; call MapAll to
// build the graph.
func New(ctx context.Context, root string, store graph.Store, cfg *config.Config, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		root:    root,
		cfg:     cfg,
		store:   store,
		parser:  parse.NewTreeSitterParser(),
		log:     log,
		workers: runtime.NumCPU(),
		results: make(map[string]*parse.Result),
	}

	files, err := p.discover()
	if err != nil {
		return nil, err
	}
	parsed, skipped, err := p.parseFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		log.Warn("skipping unparseable file", "path", s.Path, "reason", s.Reason)
	}
	for _, res := range parsed {
		p.results[res.FilePath] = res
	}

	var opts []resolve.Option
	if rc, ok := store.(resolutionCacheStore); ok {
		opts = append(opts, resolve.WithPersistentCache(storeResolutionCache{rc}))
	}
	if oracle := newLanguageOracle(root, cfg.Tier3, log); oracle != nil {
		opts = append(opts, resolve.WithOracle(oracle, cfg.Tier3Timeout()))
	}
	p.resolver = resolve.NewResolver(root, parsed, opts...)
	p.engine = enforce.NewEngine(store, cfg, log)
	return p, nil
}

// Engine exposes the enforcement engine for discover, explain, where,
// and batch operations.
func (p *Pipeline) Engine() *enforce.Engine { return p.engine }

func (p *Pipeline) Close() error {
	return errors.Join(p.parser.Close(), p.resolver.Close())
}

// --- Incremental compile ---

// Compile re-analyzes the given files, evaluates violations against the
// graph as it stood before the change, and then commits the change.
// Paths may be absolute or root-relative; missing files are treated as
// deletions.
func (p *Pipeline) Compile(ctx context.Context, paths []string, verbose bool) (*enforce.CompileResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cs := &enforce.ChangeSet{}
	parsed := make(map[string]*parse.Result)
	var removed []string

	for _, raw := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel := p.relPath(raw)
		source, err := os.ReadFile(filepath.Join(p.root, rel))
		if errors.Is(err, fs.ErrNotExist) {
			removed = append(removed, rel)
			cs.Files = append(cs.Files, rel)
			continue
		}
		if err != nil {
			return nil, err
		}
		res, err := p.parser.ParseChanged(ctx, rel, source)
		if err != nil {
			// a syntax error is local to the file
			cs.SkippedFiles = append(cs.SkippedFiles, enforce.SkippedFile{Path: rel, Reason: err.Error()})
			continue
		}
		parsed[rel] = res
		p.results[rel] = res
		p.resolver.UpdateFile(res)
		cs.Files = append(cs.Files, rel)
	}
	for _, rel := range removed {
		p.resolver.RemoveFile(rel)
		delete(p.results, rel)
	}

	if err := p.collectNodeChanges(ctx, cs, parsed, removed); err != nil {
		return nil, err
	}
	if err := p.collectCallSites(ctx, cs, parsed); err != nil {
		return nil, err
	}

	result, err := p.engine.Evaluate(ctx, cs, verbose)
	if err != nil {
		return nil, err
	}

	if err := p.commit(ctx, cs, parsed); err != nil {
		return nil, err
	}
	return result, nil
}

// Recheck re-runs enforcement over already-committed files without
// touching the graph. Closing a batch uses it to surface the quality
// findings that compiles deferred while the window was open. known
// holds each file's symbol baseline from when it entered the batch;
// committed symbols absent from it re-evaluate as additions, so
// addition-only checks still fire at the flush. A nil baseline treats
// everything as an update.
func (p *Pipeline) Recheck(ctx context.Context, paths []string, known map[string][]string, verbose bool) (*enforce.CompileResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cs := &enforce.ChangeSet{}
	parsed := make(map[string]*parse.Result)
	for _, raw := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel := p.relPath(raw)
		res, ok := p.results[rel]
		if !ok {
			continue
		}
		parsed[rel] = res
		nodes, err := p.store.GetNodesInFile(ctx, rel)
		if err != nil {
			return nil, err
		}
		baseline := known[rel]
		for _, n := range nodes {
			if n.Kind == graph.NodeKindModule {
				continue
			}
			op := graph.ChangeUpdate
			if known != nil && !slices.Contains(baseline, symbolKey(n.Kind, n.Name)) {
				op = graph.ChangeAdd
			}
			cs.Nodes = append(cs.Nodes, graph.NodeChange{Op: op, Node: n})
		}
		cs.Files = append(cs.Files, rel)
	}
	if err := p.collectCallSites(ctx, cs, parsed); err != nil {
		return nil, err
	}
	return p.engine.Evaluate(ctx, cs, verbose)
}

// FileSymbols reports each file's committed symbols as kind:name keys.
// Batch tracking records them when a file first enters the window.
func (p *Pipeline) FileSymbols(ctx context.Context, paths []string) (map[string][]string, error) {
	out := make(map[string][]string, len(paths))
	for _, raw := range paths {
		rel := p.relPath(raw)
		nodes, err := p.store.GetNodesInFile(ctx, rel)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(nodes))
		for _, n := range nodes {
			if n.Kind == graph.NodeKindModule {
				continue
			}
			keys = append(keys, symbolKey(n.Kind, n.Name))
		}
		out[rel] = keys
	}
	return out, nil
}

func symbolKey(kind graph.NodeKind, name string) string {
	return string(kind) + ":" + name
}

func (p *Pipeline) collectNodeChanges(ctx context.Context, cs *enforce.ChangeSet, parsed map[string]*parse.Result, removed []string) error {
	for _, rel := range sortedKeys(parsed) {
		res := parsed[rel]
		prior, err := p.store.GetNodesInFile(ctx, rel)
		if err != nil {
			return err
		}
		var module *graph.GraphNode
		for i := range prior {
			if prior[i].Kind == graph.NodeKindModule {
				module = &prior[i]
				break
			}
		}
		var moduleHash string
		if module == nil {
			// First sight of the file. The module node lands in the same
			// commit batch, so definitions reference it by hash.
			mod := moduleNode(rel)
			moduleHash = mod.Hash
			cs.Nodes = append(cs.Nodes, graph.NodeChange{Op: graph.ChangeAdd, Node: mod})
		}
		next := make([]graph.GraphNode, 0, len(res.Definitions))
		for _, d := range res.Definitions {
			node := definitionNode(d)
			if module != nil {
				node.ModuleID = module.ID
			}
			next = append(next, node)
		}
		diff := graph.DiffFileNodes(withoutModules(prior), next)
		changes := diff.Changes()
		for i := range changes {
			if moduleHash != "" && changes[i].Op != graph.ChangeRemove {
				changes[i].ModuleHash = moduleHash
			}
		}
		cs.Nodes = append(cs.Nodes, changes...)
	}
	for _, rel := range removed {
		prior, err := p.store.GetNodesInFile(ctx, rel)
		if err != nil {
			return err
		}
		for _, n := range prior {
			cs.Nodes = append(cs.Nodes, graph.NodeChange{Op: graph.ChangeRemove, ID: n.ID})
		}
	}
	return nil
}

func (p *Pipeline) collectCallSites(ctx context.Context, cs *enforce.ChangeSet, parsed map[string]*parse.Result) error {
	for _, rel := range sortedKeys(parsed) {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := parsed[rel]
		refs := p.resolver.ResolveFile(ctx, res)
		sites, resolved := callSites(res, refs, func(file, name string) string {
			return p.lookupHash(ctx, file, name)
		})
		calls, typeRefs := splitSites(sites, resolved)
		cs.Calls = append(cs.Calls, calls...)
		cs.TypeRefs = append(cs.TypeRefs, typeRefs...)
		for i, rr := range resolved {
			p.engine.RecordResolution(sites[i].TargetHash,
				chainStrings(rr.Resolution.Chain), rr.Resolution.Confidence, string(rr.Resolution.Tier))
		}
	}
	return nil
}

// commit lands the whole change in one store batch, then refreshes the
// derived module profiles. Profiles are recomputable from the graph, so
// they stay outside the atomic write.
func (p *Pipeline) commit(ctx context.Context, cs *enforce.ChangeSet, parsed map[string]*parse.Result) error {
	edges, err := p.collectEdgeChanges(ctx, cs, parsed)
	if err != nil {
		return err
	}
	if len(cs.Nodes) > 0 || len(edges) > 0 {
		if err := p.store.Apply(ctx, cs.Nodes, edges); err != nil {
			return err
		}
	}
	for _, rel := range sortedKeys(parsed) {
		if err := p.refreshProfile(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

// collectEdgeChanges assembles the edge half of the commit batch: each
// changed file's stale outgoing edges go, and the current parse's
// contains, call, and import edges come back. Additions address their
// endpoints by hash so they can bind to nodes created in the same
// batch.
func (p *Pipeline) collectEdgeChanges(ctx context.Context, cs *enforce.ChangeSet, parsed map[string]*parse.Result) ([]graph.EdgeChange, error) {
	removedNodes := make(map[uint64]bool)
	removedHashes := make(map[string]bool)
	addedHashes := make(map[string]bool)
	newModules := make(map[string]string)
	for _, c := range cs.Nodes {
		switch c.Op {
		case graph.ChangeRemove:
			removedNodes[c.ID] = true
			if n, err := p.store.GetNodeByID(ctx, c.ID); err == nil {
				removedHashes[n.Hash] = true
			}
		case graph.ChangeAdd:
			if c.Node.Kind == graph.NodeKindModule {
				newModules[c.Node.FilePath] = c.Node.Hash
			} else {
				addedHashes[c.Node.Hash] = true
			}
		}
	}

	var changes []graph.EdgeChange
	for _, rel := range sortedKeys(parsed) {
		res := parsed[rel]
		committed, err := p.store.GetNodesInFile(ctx, rel)
		if err != nil {
			return nil, err
		}
		var moduleHash string
		for _, n := range committed {
			if removedNodes[n.ID] {
				continue // the node removal cascades its edges
			}
			edges, err := p.store.GetEdges(ctx, n.ID, graph.DirectionOutgoing)
			if err != nil {
				return nil, err
			}
			if n.Kind == graph.NodeKindModule {
				moduleHash = n.Hash
				for _, e := range edges {
					// contains edges track node ids, which updates keep
					if e.Kind != graph.EdgeKindContains {
						changes = append(changes, graph.EdgeChange{Op: graph.ChangeRemove, ID: e.ID})
					}
				}
				continue
			}
			for _, e := range edges {
				changes = append(changes, graph.EdgeChange{Op: graph.ChangeRemove, ID: e.ID})
			}
		}
		if moduleHash == "" {
			moduleHash = newModules[rel]
		}
		if moduleHash == "" {
			continue
		}

		defHashes := make(map[string]string, len(res.Definitions))
		for _, d := range res.Definitions {
			defHashes[d.Name] = d.Hash()
		}
		for _, d := range res.Definitions {
			if !addedHashes[defHashes[d.Name]] {
				continue
			}
			changes = append(changes, graph.EdgeChange{
				Op:         graph.ChangeAdd,
				SourceHash: moduleHash,
				TargetHash: defHashes[d.Name],
				Edge: graph.GraphEdge{
					Kind:     graph.EdgeKindContains,
					FilePath: rel,
					Line:     d.LineStart,
				},
			})
		}

		refs := p.resolver.ResolveFile(ctx, res)
		for _, rr := range refs {
			if rr.Resolution.Outcome != resolve.Resolved {
				continue
			}
			source := moduleHash
			if h, ok := defHashes[rr.Ref.EnclosingFunc]; ok {
				source = h
			}
			target := p.lookupHash(ctx, rr.Resolution.Target.FilePath, rr.Resolution.Target.Name)
			if target == "" || removedHashes[target] {
				continue
			}
			changes = append(changes, graph.EdgeChange{
				Op:         graph.ChangeAdd,
				SourceHash: source,
				TargetHash: target,
				Edge: graph.GraphEdge{
					Kind:       edgeKindFor(rr.Ref.Kind),
					FilePath:   rel,
					Line:       rr.Ref.Line,
					Confidence: rr.Resolution.Confidence,
					Tier:       string(rr.Resolution.Tier),
				},
			})
		}
		for _, imp := range res.Imports {
			targetFile, ok := p.resolver.ResolveImport(res.Language, imp)
			if !ok {
				continue
			}
			targetHash := newModules[targetFile]
			if targetHash == "" {
				mod, err := p.fileModule(ctx, targetFile)
				if err != nil {
					continue
				}
				targetHash = mod.Hash
			}
			changes = append(changes, graph.EdgeChange{
				Op:         graph.ChangeAdd,
				SourceHash: moduleHash,
				TargetHash: targetHash,
				Edge: graph.GraphEdge{
					Kind:       graph.EdgeKindImports,
					FilePath:   rel,
					Line:       imp.Line,
					Confidence: 1,
				},
			})
		}
	}
	return changes, nil
}

func (p *Pipeline) refreshProfile(ctx context.Context, rel string) error {
	nodes, err := p.store.GetNodesInFile(ctx, rel)
	if err != nil {
		return err
	}
	var module *graph.GraphNode
	for i := range nodes {
		if nodes[i].Kind == graph.NodeKindModule {
			module = &nodes[i]
			break
		}
	}
	if module == nil {
		return nil
	}
	inFile := make(map[uint64]bool, len(nodes))
	for _, n := range nodes {
		inFile[n.ID] = true
	}
	seen := make(map[uint64]bool)
	var edges []graph.GraphEdge
	for _, n := range nodes {
		for _, dir := range []graph.Direction{graph.DirectionOutgoing, graph.DirectionIncoming} {
			got, err := p.store.GetEdges(ctx, n.ID, dir)
			if err != nil {
				return err
			}
			for _, e := range got {
				if seen[e.ID] {
					continue
				}
				seen[e.ID] = true
				edges = append(edges, e)
				for _, endpoint := range []uint64{e.SourceID, e.TargetID} {
					if !inFile[endpoint] {
						if other, err := p.store.GetNodeByID(ctx, endpoint); err == nil {
							nodes = append(nodes, *other)
							inFile[endpoint] = true
						}
					}
				}
			}
		}
	}
	profile := graph.DeriveProfile(*module, nodes, edges)
	return p.store.SetModuleProfile(ctx, profile)
}

// --- Full rebuild ---

// MapAll rescans the whole workspace, rebuilds the graph atomically,
// and reports totals, hotspots, coverage, and pre-existing quality
// findings. Cancellation between files aborts before the swap.
func (p *Pipeline) MapAll(ctx context.Context, verbose bool) (*enforce.MapResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	files, err := p.discover()
	if err != nil {
		return nil, err
	}
	parsed, skipped, err := p.parseFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	fresh := make(map[string]bool, len(parsed))
	for _, res := range parsed {
		fresh[res.FilePath] = true
	}
	for path := range p.results {
		if !fresh[path] {
			p.resolver.RemoveFile(path)
			delete(p.results, path)
		}
	}
	for _, res := range parsed {
		p.results[res.FilePath] = res
		p.resolver.UpdateFile(res)
	}

	nodes, edges, cs, err := p.buildGraph(ctx, parsed)
	if err != nil {
		return nil, err
	}
	cs.SkippedFiles = skipped

	prior, err := p.store.ReplaceAll(ctx, nodes, edges)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Kind == graph.NodeKindModule {
			if err := p.store.SetModuleProfile(ctx, graph.DeriveProfile(n, nodes, edges)); err != nil {
				return nil, err
			}
		}
	}

	evalResult, err := p.engine.Evaluate(ctx, cs, verbose)
	if err != nil {
		return nil, err
	}
	stats, err := p.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	counts := graph.DiffSnapshots(prior, &graph.Snapshot{Nodes: nodes, Edges: edges})

	return &enforce.MapResult{
		FilesAnalyzed: len(parsed),
		NodesTotal:    stats.Nodes,
		EdgesTotal:    stats.Edges,
		ModulesTotal:  stats.Modules,
		NodesAdded:    counts.NodesAdded,
		NodesRemoved:  counts.NodesRemoved,
		NodesChanged:  counts.NodesChanged,
		Hotspots:      enforce.ComputeHotspots(nodes, edges, 10),
		Coverage:      enforce.ComputeCoverage(nodes),
		Warnings:      evalResult.Warnings,
		Skipped:       skipped,
	}, nil
}

// buildGraph assigns IDs and assembles the full node and edge sets plus
// the change set the quality checks run over.
func (p *Pipeline) buildGraph(ctx context.Context, parsed []*parse.Result) ([]graph.GraphNode, []graph.GraphEdge, *enforce.ChangeSet, error) {
	var (
		nodes     []graph.GraphNode
		edges     []graph.GraphEdge
		nextID    = uint64(1)
		moduleIDs = make(map[string]uint64)
		defIDs    = make(map[string]map[string]uint64)
		defHashes = make(map[string]map[string]string)
	)
	cs := &enforce.ChangeSet{FullRebuild: true}

	for _, res := range parsed {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		cs.Files = append(cs.Files, res.FilePath)

		module := moduleNode(res.FilePath)
		module.ID = nextID
		nextID++
		moduleIDs[res.FilePath] = module.ID
		nodes = append(nodes, module)

		ids := make(map[string]uint64, len(res.Definitions))
		hashes := make(map[string]string, len(res.Definitions))
		for _, d := range res.Definitions {
			node := definitionNode(d)
			node.ID = nextID
			nextID++
			node.ModuleID = module.ID
			nodes = append(nodes, node)
			ids[d.Name] = node.ID
			hashes[d.Name] = node.Hash
			edges = append(edges, graph.GraphEdge{
				SourceID: module.ID,
				TargetID: node.ID,
				Kind:     graph.EdgeKindContains,
				FilePath: res.FilePath,
				Line:     node.LineStart,
			})
			cs.Nodes = append(cs.Nodes, graph.NodeChange{Op: graph.ChangeAdd, Node: node})
		}
		defIDs[res.FilePath] = ids
		defHashes[res.FilePath] = hashes
	}

	for _, res := range parsed {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		refs := p.resolver.ResolveFile(ctx, res)
		sites, resolved := callSites(res, refs, func(file, name string) string {
			return defHashes[file][name]
		})
		calls, typeRefs := splitSites(sites, resolved)
		cs.Calls = append(cs.Calls, calls...)
		cs.TypeRefs = append(cs.TypeRefs, typeRefs...)

		for _, rr := range resolved {
			source := moduleIDs[res.FilePath]
			if id, ok := defIDs[res.FilePath][rr.Ref.EnclosingFunc]; ok {
				source = id
			}
			target, ok := defIDs[rr.Resolution.Target.FilePath][rr.Resolution.Target.Name]
			if !ok {
				continue
			}
			edges = append(edges, graph.GraphEdge{
				SourceID:   source,
				TargetID:   target,
				Kind:       edgeKindFor(rr.Ref.Kind),
				FilePath:   res.FilePath,
				Line:       rr.Ref.Line,
				Confidence: rr.Resolution.Confidence,
				Tier:       string(rr.Resolution.Tier),
			})
		}
		for _, imp := range res.Imports {
			targetFile, ok := p.resolver.ResolveImport(res.Language, imp)
			if !ok {
				continue
			}
			targetID, ok := moduleIDs[targetFile]
			if !ok {
				continue
			}
			edges = append(edges, graph.GraphEdge{
				SourceID:   moduleIDs[res.FilePath],
				TargetID:   targetID,
				Kind:       graph.EdgeKindImports,
				FilePath:   res.FilePath,
				Line:       imp.Line,
				Confidence: 1,
			})
		}
	}
	return nodes, edges, cs, nil
}

// --- Shared plumbing ---

func (p *Pipeline) discover() ([]string, error) {
	abs, err := parse.DiscoverFiles(p.root)
	if err != nil {
		return nil, err
	}
	rel := make([]string, 0, len(abs))
	for _, path := range abs {
		rel = append(rel, p.relPath(path))
	}
	sort.Strings(rel)
	return rel, nil
}

func (p *Pipeline) parseFiles(ctx context.Context, files []string) ([]*parse.Result, []enforce.SkippedFile, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var mu sync.Mutex
	var out []*parse.Result
	var skipped []enforce.SkippedFile
	for _, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(filepath.Join(p.root, rel))
			if err != nil {
				return err
			}
			res, parseErr := p.parser.Parse(gctx, rel, source)
			mu.Lock()
			defer mu.Unlock()
			if parseErr != nil {
				skipped = append(skipped, enforce.SkippedFile{Path: rel, Reason: parseErr.Error()})
				return nil
			}
			out = append(out, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out, skipped, nil
}

// lookupHash finds the content hash of a symbol, preferring the current
// parse over the committed store.
func (p *Pipeline) lookupHash(ctx context.Context, file, name string) string {
	if res, ok := p.results[file]; ok {
		for _, d := range res.Definitions {
			if d.Name == name {
				return d.Hash()
			}
		}
	}
	nodes, err := p.store.GetNodesInFile(ctx, file)
	if err != nil {
		return ""
	}
	for _, n := range nodes {
		if n.Name == name && n.Kind != graph.NodeKindModule {
			return n.Hash
		}
	}
	return ""
}

func (p *Pipeline) fileModule(ctx context.Context, file string) (*graph.GraphNode, error) {
	nodes, err := p.store.GetNodesInFile(ctx, file)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if nodes[i].Kind == graph.NodeKindModule {
			return &nodes[i], nil
		}
	}
	return nil, graph.ErrNodeNotFound
}

// resolutionCacheStore is satisfied by stores that persist resolver
// output across runs. The in-memory store does not; the resolver then
// runs on its process-local cache alone.
type resolutionCacheStore interface {
	SaveResolutionCache(ctx context.Context, filePath string, contentHash uint64, payload []byte) error
	LoadResolutionCache(ctx context.Context, filePath string, contentHash uint64) ([]byte, bool, error)
}

// storeResolutionCache adapts a resolutionCacheStore to the resolver's
// persistence interface.
type storeResolutionCache struct {
	store resolutionCacheStore
}

func (c storeResolutionCache) Load(ctx context.Context, filePath string, contentHash uint64) ([]byte, bool, error) {
	return c.store.LoadResolutionCache(ctx, filePath, contentHash)
}

func (c storeResolutionCache) Save(ctx context.Context, filePath string, contentHash uint64, payload []byte) error {
	return c.store.SaveResolutionCache(ctx, filePath, contentHash, payload)
}

func (p *Pipeline) relPath(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func withoutModules(nodes []graph.GraphNode) []graph.GraphNode {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n.Kind != graph.NodeKindModule {
			out = append(out, n)
		}
	}
	return out
}

func sortedKeys(m map[string]*parse.Result) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
