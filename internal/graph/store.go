package graph

import (
	"context"
	"io"
)

// Store is the interface for the structural graph backend.
// Implementations: MemStore (in-memory snapshot), SQLiteStore (persistent).
//
// Writes for one logical operation (an incremental update or a full
// rebuild) are applied as one transaction: they either commit atomically
// or leave the prior graph state untouched. Reads may proceed against the
// last-committed snapshot without blocking writers.
type Store interface {
	io.Closer

	// Lookups.
	GetNode(ctx context.Context, hash string) (*GraphNode, error)
	GetNodeByID(ctx context.Context, id uint64) (*GraphNode, error)
	GetEdges(ctx context.Context, nodeID uint64, dir Direction) ([]GraphEdge, error)
	GetModuleProfile(ctx context.Context, moduleID uint64) (*ModuleProfile, error)
	GetNodesInFile(ctx context.Context, filePath string) ([]GraphNode, error)
	GetAllModules(ctx context.Context) ([]GraphNode, error)
	PreviousHashes(ctx context.Context, nodeID uint64) ([]string, error)

	// FindNodesByName returns nodes of the given kind and name outside
	// excludeFile. Used by duplicate-name detection.
	FindNodesByName(ctx context.Context, name string, kind NodeKind, excludeFile string) ([]GraphNode, error)

	// FindNodeByPreviousHash returns the node whose rename history
	// contains hash, letting stale-hash lookups point at the current
	// version. ErrNodeNotFound when no history matches.
	FindNodeByPreviousHash(ctx context.Context, hash string) (*GraphNode, error)

	// FindModulesByPrefix returns module profiles whose function name
	// prefixes contain prefix, excluding modules defined in excludeFile.
	FindModulesByPrefix(ctx context.Context, prefix, excludeFile string) ([]ModuleProfile, error)

	// Writes. Each call is one atomic batch.
	UpdateNodes(ctx context.Context, changes []NodeChange) error
	UpdateEdges(ctx context.Context, changes []EdgeChange) error

	// Apply commits node and edge changes as one batch: an incremental
	// compile's whole mutation either lands or the prior state stays.
	// Edge additions may address endpoints by hash, resolved after the
	// node changes; edge removals of already-cascaded edges are no-ops.
	Apply(ctx context.Context, nodes []NodeChange, edges []EdgeChange) error

	// SetModuleProfile records the derived profile for a module node.
	SetModuleProfile(ctx context.Context, profile ModuleProfile) error

	// ReplaceAll atomically swaps in a full-rebuild graph. The prior
	// snapshot is returned for diff reporting.
	ReplaceAll(ctx context.Context, nodes []GraphNode, edges []GraphEdge) (*Snapshot, error)

	Stats(ctx context.Context) (*Stats, error)

	// Snapshot returns a copy of the committed graph for export and
	// whole-graph reporting.
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Snapshot is a point-in-time copy of the graph, used to diff a full
// rebuild against its predecessor for reporting.
type Snapshot struct {
	Nodes []GraphNode
	Edges []GraphEdge
}
