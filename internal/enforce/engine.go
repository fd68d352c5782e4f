package enforce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dusk-indust/girder/internal/config"
	"github.com/dusk-indust/girder/internal/graph"
)

// ErrUnknownViolation is returned by Explain when no recorded finding
// matches the requested code and hash.
var ErrUnknownViolation = errors.New("enforce: no recorded violation for that code and hash")

type violationKey struct {
	code string
	hash string
}

type resolutionRecord struct {
	chain      []string
	confidence float64
	tier       string
}

// Engine runs the violation checks over a change set and carries the
// session state behind them: the circuit breaker, the batch window,
// suppression sources, and the resolution provenance that Explain
// reports. Checks always read the store in its pre-commit state.
type Engine struct {
	store      graph.Store
	cfg        *config.Config
	breaker    *Breaker
	batch      *Batch
	suppressor *Suppressor
	log        *slog.Logger

	resolutions map[string]resolutionRecord
	lastSeen    map[violationKey]Violation
}

func NewEngine(store graph.Store, cfg *config.Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	enf := cfg.Enforcement
	return &Engine{
		store:       store,
		cfg:         cfg,
		breaker:     NewBreaker(enf.CircuitBreaker.MaxRetries, enf.CircuitBreaker.AutoDowngrade),
		batch:       NewBatch(cfg.BatchWindow()),
		suppressor:  NewSuppressor(enf.Suppressions),
		log:         log,
		resolutions: make(map[string]resolutionRecord),
		lastSeen:    make(map[violationKey]Violation),
	}
}

// SuppressOnce silences a code for the next evaluation only.
func (e *Engine) SuppressOnce(code, reason string) {
	e.suppressor.AddOneShot(code, reason)
}

// RecordResolution stores how a caller's outgoing edge was resolved, so
// a later Explain can replay the chain.
func (e *Engine) RecordResolution(hash string, chain []string, confidence float64, tier string) {
	e.resolutions[hash] = resolutionRecord{chain: chain, confidence: confidence, tier: tier}
}

// OpenBatch starts a multi-file editing window. Quality findings queue
// until the window closes and their breaker counters freeze.
func (e *Engine) OpenBatch() {
	e.batch.Open()
	for code := range deferredCodes {
		e.breaker.Freeze(code)
	}
}

// CloseBatch ends the window and returns everything it deferred.
func (e *Engine) CloseBatch() []Violation {
	flushed := e.batch.Close()
	for code := range deferredCodes {
		e.breaker.Thaw(code)
	}
	return flushed
}

// Evaluate runs every enabled check against a change set and applies
// the session policies. Call it before committing the change so removal
// and caller checks can still see the prior edges.
func (e *Engine) Evaluate(ctx context.Context, cs *ChangeSet, verbose bool) (*CompileResult, error) {
	active, flushed := e.batch.Active()
	if !active && flushed != nil {
		// the window expired on its own
		for code := range deferredCodes {
			e.breaker.Thaw(code)
		}
	}
	if active {
		e.batch.Touch()
	}

	var all []Violation
	all = append(all, flushed...)
	all = append(all, e.runCheck(ctx, "broken_callers", cs, e.checkBrokenCallers)...)
	all = append(all, e.runCheck(ctx, "removals", cs, e.checkRemovals)...)
	all = append(all, e.runCheck(ctx, "arity", cs, e.checkArity)...)
	all = append(all, e.runCheckSync("type_hints", cs, e.checkTypeHints)...)
	all = append(all, e.runCheckSync("docstrings", cs, e.checkDocstrings)...)
	all = append(all, e.runCheck(ctx, "placement", cs, e.checkPlacement)...)
	all = append(all, e.runCheck(ctx, "duplicates", cs, e.checkDuplicateNames)...)

	changed := nodesByHash(cs)
	kept := all[:0]
	for i := range all {
		v := all[i]
		e.suppressor.Apply(&v, e.nodeFor(ctx, v.Hash, changed))
		if !v.Suppressed && active && e.batch.Defer(v) {
			continue
		}
		kept = append(kept, v)
	}
	e.suppressor.ClearOneShot()

	for _, nc := range cs.Nodes {
		if nc.Op == graph.ChangeUpdate && nc.OldHash != "" && nc.OldHash != nc.Node.Hash {
			e.breaker.Migrate(nc.OldHash, nc.Node.Hash)
		}
	}
	// One compile consumes at most one ladder step per pair, however
	// many sites report it.
	ticked := make(map[violationKey]int, len(kept))
	reported := make(map[violationKey]bool, len(kept))
	for i := range kept {
		if kept[i].Suppressed {
			continue
		}
		key := violationKey{code: kept[i].Code, hash: kept[i].Hash}
		n, seen := ticked[key]
		if !seen {
			n = e.breaker.Tick(key.code, key.hash)
			ticked[key] = n
		}
		e.breaker.Escalate(&kept[i], n)
		reported[key] = true
		e.lastSeen[key] = kept[i]
	}
	e.resolveCleared(cs, reported)

	result := e.assemble(cs, kept, verbose)
	return result, nil
}

// resolveCleared resets breaker counters for pairs that were failing
// and did not recur in this change.
func (e *Engine) resolveCleared(cs *ChangeSet, reported map[violationKey]bool) {
	for _, nc := range cs.Nodes {
		if nc.Op == graph.ChangeRemove {
			continue
		}
		hash := nc.Node.Hash
		for code := range categories {
			key := violationKey{code: code, hash: hash}
			if reported[key] {
				continue
			}
			if e.breaker.Count(code, hash) > 0 {
				e.breaker.Resolve(code, hash)
				delete(e.lastSeen, key)
			}
		}
	}
}

func (e *Engine) assemble(cs *ChangeSet, violations []Violation, verbose bool) *CompileResult {
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		return violations[i].Line < violations[j].Line
	})
	result := &CompileResult{
		Status:        "ok",
		FilesAnalyzed: len(cs.Files),
		Skipped:       cs.SkippedFiles,
	}
	for _, v := range violations {
		switch v.Severity {
		case SeverityError:
			result.Errors = append(result.Errors, v)
		case SeverityWarning:
			result.Warnings = append(result.Warnings, v)
		default:
			result.Info = append(result.Info, v)
		}
	}
	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}
	if verbose || result.Status != "ok" {
		result.Counts = changeCounts(cs)
	}
	return result
}

func changeCounts(cs *ChangeSet) *ChangeCounts {
	c := &ChangeCounts{
		NodesUpdated: len(cs.Nodes),
		EdgesUpdated: len(cs.Edges),
	}
	for _, nc := range cs.Nodes {
		if nc.Op == graph.ChangeUpdate && nc.OldHash != "" && nc.OldHash != nc.Node.Hash {
			c.HashesChanged++
		}
	}
	return c
}

// --- Queries ---

// Discover returns a node and its neighborhood out to depth hops in
// each direction. The query may be a hash or a function name.
func (e *Engine) Discover(ctx context.Context, query string, depth int) (*DiscoverResult, error) {
	if depth <= 0 {
		depth = 1
	}
	target, err := e.findTarget(ctx, query)
	if err != nil {
		return nil, err
	}
	upstream, err := e.neighborhood(ctx, target.ID, graph.DirectionIncoming, depth)
	if err != nil {
		return nil, err
	}
	downstream, err := e.neighborhood(ctx, target.ID, graph.DirectionOutgoing, depth)
	if err != nil {
		return nil, err
	}
	result := &DiscoverResult{Target: target, Upstream: upstream, Downstream: downstream}
	if target.ModuleID != 0 {
		if profile, err := e.store.GetModuleProfile(ctx, target.ModuleID); err == nil {
			result.ModuleContext = profile
		}
	}
	return result, nil
}

// Explain replays how a recorded violation's edge was resolved.
func (e *Engine) Explain(_ context.Context, code, hash string) (*ExplainResult, error) {
	v, ok := e.lastSeen[violationKey{code: code, hash: hash}]
	if !ok {
		return nil, fmt.Errorf("%s at %s: %w", code, hash, ErrUnknownViolation)
	}
	out := &ExplainResult{
		Code:           v.Code,
		Hash:           v.Hash,
		Confidence:     v.Confidence,
		ResolutionTier: v.ResolutionTier,
		Summary:        v.Message,
	}
	if rec, ok := e.resolutions[hash]; ok {
		out.ResolutionChain = rec.chain
		if out.ResolutionTier == "" {
			out.ResolutionTier = rec.tier
		}
		if out.Confidence == 0 {
			out.Confidence = rec.confidence
		}
	}
	return out, nil
}

// Where locates a node by hash. A hash found only in rename history is
// reported stale, with the current hash attached.
func (e *Engine) Where(ctx context.Context, hash string) (*WhereResult, error) {
	node, err := e.store.GetNode(ctx, hash)
	if err == nil {
		return &WhereResult{File: node.FilePath, LineStart: node.LineStart, LineEnd: node.LineEnd}, nil
	}
	if !errors.Is(err, graph.ErrNodeNotFound) {
		return nil, err
	}
	current, err := e.store.FindNodeByPreviousHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", hash, graph.ErrNodeNotFound)
	}
	return &WhereResult{
		Stale:       true,
		File:        current.FilePath,
		LineStart:   current.LineStart,
		LineEnd:     current.LineEnd,
		CurrentHash: current.Hash,
	}, nil
}

// --- Internals ---

func (e *Engine) findTarget(ctx context.Context, query string) (*graph.GraphNode, error) {
	if node, err := e.store.GetNode(ctx, query); err == nil {
		return node, nil
	}
	for _, kind := range []graph.NodeKind{graph.NodeKindFunction, graph.NodeKindClass} {
		nodes, err := e.store.FindNodesByName(ctx, query, kind, "")
		if err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			return &nodes[0], nil
		}
	}
	return nil, fmt.Errorf("discover %q: %w", query, graph.ErrNodeNotFound)
}

func (e *Engine) neighborhood(ctx context.Context, rootID uint64, dir graph.Direction, depth int) ([]DiscoverNeighbor, error) {
	type frame struct {
		id    uint64
		depth int
	}
	seen := map[uint64]bool{rootID: true}
	queue := []frame{{id: rootID, depth: 0}}
	var out []DiscoverNeighbor
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth == depth {
			continue
		}
		edges, err := e.store.GetEdges(ctx, cur.id, dir)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if edge.Kind == graph.EdgeKindContains {
				continue
			}
			otherID := edge.SourceID
			if dir == graph.DirectionOutgoing {
				otherID = edge.TargetID
			}
			if seen[otherID] {
				continue
			}
			seen[otherID] = true
			node, err := e.store.GetNodeByID(ctx, otherID)
			if err != nil {
				continue
			}
			out = append(out, DiscoverNeighbor{
				Node:       node,
				EdgeKind:   edge.Kind,
				Line:       edge.Line,
				Confidence: edge.Confidence,
				Depth:      cur.depth + 1,
			})
			queue = append(queue, frame{id: otherID, depth: cur.depth + 1})
		}
	}
	return out, nil
}

func (e *Engine) nodeFor(ctx context.Context, hash string, changed map[string]*graph.GraphNode) *graph.GraphNode {
	if hash == "" {
		return nil
	}
	if n, ok := changed[hash]; ok {
		return n
	}
	n, err := e.store.GetNode(ctx, hash)
	if err != nil {
		return nil
	}
	return n
}

func nodesByHash(cs *ChangeSet) map[string]*graph.GraphNode {
	out := make(map[string]*graph.GraphNode, len(cs.Nodes))
	for i, nc := range cs.Nodes {
		if nc.Op != graph.ChangeRemove {
			out[nc.Node.Hash] = &cs.Nodes[i].Node
		}
	}
	return out
}

// runCheck isolates one checker: a panic or error inside it is logged
// and the rest of the evaluation proceeds.
func (e *Engine) runCheck(ctx context.Context, name string, cs *ChangeSet, fn func(context.Context, *ChangeSet) ([]Violation, error)) (out []Violation) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("check panicked", "check", name, "panic", r)
			out = nil
		}
	}()
	out, err := fn(ctx, cs)
	if err != nil {
		e.log.Error("check failed", "check", name, "err", err)
		return nil
	}
	return out
}

func (e *Engine) runCheckSync(name string, cs *ChangeSet, fn func(*ChangeSet) []Violation) (out []Violation) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("check panicked", "check", name, "panic", r)
			out = nil
		}
	}()
	return fn(cs)
}
