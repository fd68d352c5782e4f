package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps guarded by a sync.RWMutex.
// Reads see the last-committed snapshot; each write call validates the
// whole batch before mutating anything, so a failed batch leaves the
// prior state intact.
type MemStore struct {
	mu sync.RWMutex

	nodes    map[uint64]GraphNode
	byHash   map[string]uint64
	byFile   map[string][]uint64
	edges    map[uint64]GraphEdge
	bySource map[uint64][]uint64
	byTarget map[uint64][]uint64
	profiles map[uint64]ModuleProfile

	nextNodeID uint64
	nextEdgeID uint64
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		nodes:      make(map[uint64]GraphNode),
		byHash:     make(map[string]uint64),
		byFile:     make(map[string][]uint64),
		edges:      make(map[uint64]GraphEdge),
		bySource:   make(map[uint64][]uint64),
		byTarget:   make(map[uint64][]uint64),
		profiles:   make(map[uint64]ModuleProfile),
		nextNodeID: 1,
		nextEdgeID: 1,
	}
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }

// GetNode looks up a node by content hash.
func (m *MemStore) GetNode(_ context.Context, hash string) (*GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("hash %s: %w", hash, ErrNodeNotFound)
	}
	n := m.nodes[id]
	return &n, nil
}

// GetNodeByID looks up a node by internal id.
func (m *MemStore) GetNodeByID(_ context.Context, id uint64) (*GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("id %d: %w", id, ErrNodeNotFound)
	}
	return &n, nil
}

// GetEdges returns edges touching nodeID in the given direction.
func (m *MemStore) GetEdges(_ context.Context, nodeID uint64, dir Direction) ([]GraphEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uint64
	switch dir {
	case DirectionOutgoing:
		ids = m.bySource[nodeID]
	case DirectionIncoming:
		ids = m.byTarget[nodeID]
	case DirectionBoth:
		ids = append(append([]uint64{}, m.bySource[nodeID]...), m.byTarget[nodeID]...)
	default:
		return nil, fmt.Errorf("unknown direction %q", dir)
	}

	out := make([]GraphEdge, 0, len(ids))
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue // self-edges appear in both indexes
		}
		seen[id] = true
		out = append(out, m.edges[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetModuleProfile returns the derived profile for a module node.
func (m *MemStore) GetModuleProfile(_ context.Context, moduleID uint64) (*ModuleProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[moduleID]
	if !ok {
		return nil, fmt.Errorf("module %d: %w", moduleID, ErrNodeNotFound)
	}
	return &p, nil
}

// GetNodesInFile returns all nodes defined in filePath, ordered by line.
func (m *MemStore) GetNodesInFile(_ context.Context, filePath string) ([]GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byFile[filePath]
	out := make([]GraphNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.nodes[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineStart < out[j].LineStart })
	return out, nil
}

// GetAllModules returns every module-kind node.
func (m *MemStore) GetAllModules(_ context.Context) ([]GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []GraphNode
	for _, n := range m.nodes {
		if n.Kind == NodeKindModule {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PreviousHashes returns the rename history for a node, newest first.
func (m *MemStore) PreviousHashes(_ context.Context, nodeID uint64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("id %d: %w", nodeID, ErrNodeNotFound)
	}
	return append([]string{}, n.PreviousHashes...), nil
}

// FindNodesByName returns nodes of the given kind and name outside excludeFile.
func (m *MemStore) FindNodesByName(_ context.Context, name string, kind NodeKind, excludeFile string) ([]GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []GraphNode
	for _, n := range m.nodes {
		if n.Name == name && n.Kind == kind && n.FilePath != excludeFile {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindNodeByPreviousHash returns the node whose rename history contains hash.
func (m *MemStore) FindNodeByPreviousHash(_ context.Context, hash string) (*GraphNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.nodes {
		for _, prev := range n.PreviousHashes {
			if prev == hash {
				out := n
				return &out, nil
			}
		}
	}
	return nil, fmt.Errorf("previous hash %s: %w", hash, ErrNodeNotFound)
}

// FindModulesByPrefix returns profiles whose function name prefixes contain
// prefix, excluding modules defined in excludeFile.
func (m *MemStore) FindModulesByPrefix(_ context.Context, prefix, excludeFile string) ([]ModuleProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ModuleProfile
	for id, p := range m.profiles {
		if n, ok := m.nodes[id]; ok && n.FilePath == excludeFile {
			continue
		}
		for _, pre := range p.FunctionNamePrefixes {
			if pre == prefix {
				out = append(out, p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

// UpdateNodes applies one atomic batch of node changes. Removing a node
// also removes its edges. Hash uniqueness is enforced at write time: a
// colliding insert is disambiguated with the node's file path and
// reported at INFO, never silently dropped.
func (m *MemStore) UpdateNodes(_ context.Context, changes []NodeChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyNodesLocked(changes)
}

func (m *MemStore) applyNodesLocked(changes []NodeChange) error {
	// Validate the batch before touching anything, resolving every final
	// hash up front by simulating the batch order. Collisions surface
	// here, so the apply loop below cannot fail halfway.
	finalHashes, err := m.resolveBatchHashesLocked(changes)
	if err != nil {
		return err
	}

	for i, c := range changes {
		switch c.Op {
		case ChangeAdd:
			node := c.Node
			if node.ID == 0 {
				node.ID = m.nextNodeID
				m.nextNodeID++
			} else if node.ID >= m.nextNodeID {
				m.nextNodeID = node.ID + 1
			}
			node.Hash = finalHashes[i]
			if c.ModuleHash != "" && node.ModuleID == 0 {
				node.ModuleID = m.byHash[c.ModuleHash]
			}
			m.insertNodeLocked(node)

		case ChangeUpdate:
			prev := m.nodes[c.Node.ID]
			node := c.Node
			if prev.Hash != node.Hash {
				node.PreviousHashes = pushPrevious(prev.Hash, prev.PreviousHashes)
			}
			node.Hash = finalHashes[i]
			if c.ModuleHash != "" && node.ModuleID == 0 {
				node.ModuleID = m.byHash[c.ModuleHash]
			}
			m.removeNodeLocked(prev.ID, false)
			m.insertNodeLocked(node)

		case ChangeRemove:
			m.removeNodeLocked(c.ID, true)
		}
	}
	return nil
}

// Apply commits node and edge changes as one batch. The changes run on
// a private copy that replaces the live indexes only when every entry
// lands, so a failure anywhere leaves the committed state untouched.
func (m *MemStore) Apply(_ context.Context, nodes []NodeChange, edges []EdgeChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cloneLocked()
	if err := next.applyNodesLocked(nodes); err != nil {
		return err
	}
	if err := next.applyEdgesLocked(edges); err != nil {
		return err
	}
	m.nodes, m.byHash, m.byFile = next.nodes, next.byHash, next.byFile
	m.edges, m.bySource, m.byTarget = next.edges, next.bySource, next.byTarget
	m.profiles = next.profiles
	m.nextNodeID, m.nextEdgeID = next.nextNodeID, next.nextEdgeID
	return nil
}

func (m *MemStore) applyEdgesLocked(changes []EdgeChange) error {
	for _, c := range changes {
		switch c.Op {
		case ChangeAdd:
			edge := c.Edge
			if edge.SourceID == 0 && c.SourceHash != "" {
				edge.SourceID = m.byHash[c.SourceHash]
			}
			if edge.TargetID == 0 && c.TargetHash != "" {
				edge.TargetID = m.byHash[c.TargetHash]
			}
			if _, ok := m.nodes[edge.SourceID]; !ok {
				return fmt.Errorf("edge source %d %q: %w", edge.SourceID, c.SourceHash, ErrNodeNotFound)
			}
			if _, ok := m.nodes[edge.TargetID]; !ok {
				return fmt.Errorf("edge target %d %q: %w", edge.TargetID, c.TargetHash, ErrNodeNotFound)
			}
			if edge.ID == 0 {
				edge.ID = m.nextEdgeID
				m.nextEdgeID++
			} else if edge.ID >= m.nextEdgeID {
				m.nextEdgeID = edge.ID + 1
			}
			m.edges[edge.ID] = edge
			m.bySource[edge.SourceID] = append(m.bySource[edge.SourceID], edge.ID)
			m.byTarget[edge.TargetID] = append(m.byTarget[edge.TargetID], edge.ID)

		case ChangeRemove:
			// no-op when a node removal in the same batch cascaded it
			m.removeEdgeLocked(c.ID)

		default:
			return fmt.Errorf("unknown edge change op %q", c.Op)
		}
	}
	return nil
}

func (m *MemStore) cloneLocked() *MemStore {
	next := &MemStore{
		nodes:      make(map[uint64]GraphNode, len(m.nodes)),
		byHash:     make(map[string]uint64, len(m.byHash)),
		byFile:     make(map[string][]uint64, len(m.byFile)),
		edges:      make(map[uint64]GraphEdge, len(m.edges)),
		bySource:   make(map[uint64][]uint64, len(m.bySource)),
		byTarget:   make(map[uint64][]uint64, len(m.byTarget)),
		profiles:   make(map[uint64]ModuleProfile, len(m.profiles)),
		nextNodeID: m.nextNodeID,
		nextEdgeID: m.nextEdgeID,
	}
	for id, n := range m.nodes {
		next.nodes[id] = n
	}
	for h, id := range m.byHash {
		next.byHash[h] = id
	}
	for f, ids := range m.byFile {
		next.byFile[f] = append([]uint64(nil), ids...)
	}
	for id, e := range m.edges {
		next.edges[id] = e
	}
	for id, ids := range m.bySource {
		next.bySource[id] = append([]uint64(nil), ids...)
	}
	for id, ids := range m.byTarget {
		next.byTarget[id] = append([]uint64(nil), ids...)
	}
	for id, p := range m.profiles {
		next.profiles[id] = p
	}
	return next
}

// resolveBatchHashesLocked validates a node batch and returns the final
// hash for each add or update, walking the changes in order so hashes
// freed or claimed by earlier entries are visible to later ones.
func (m *MemStore) resolveBatchHashesLocked(changes []NodeChange) ([]string, error) {
	type identity struct{ file, name string }
	claimed := make(map[string]identity)
	freed := make(map[string]bool)

	owner := func(hash string) (identity, bool) {
		if id, ok := claimed[hash]; ok {
			return id, true
		}
		if freed[hash] {
			return identity{}, false
		}
		if existingID, ok := m.byHash[hash]; ok {
			n := m.nodes[existingID]
			return identity{file: n.FilePath, name: n.Name}, true
		}
		return identity{}, false
	}
	choose := func(node GraphNode) (string, error) {
		holder, taken := owner(node.Hash)
		if !taken || (holder.file == node.FilePath && holder.name == node.Name) {
			return node.Hash, nil
		}
		disambiguated := DisambiguateHash(node.Hash, node.FilePath)
		if _, still := owner(disambiguated); still {
			return "", fmt.Errorf("hash %s persists after disambiguation: %w", node.Hash, ErrDuplicateHash)
		}
		slog.Info("hash collision disambiguated",
			"hash", node.Hash,
			"existing", holder.name,
			"incoming", node.Name,
			"file", node.FilePath,
			"disambiguated", disambiguated)
		return disambiguated, nil
	}

	moduleKnown := func(hash string) bool {
		if _, ok := claimed[hash]; ok {
			return true
		}
		if freed[hash] {
			return false
		}
		_, ok := m.byHash[hash]
		return ok
	}

	out := make([]string, len(changes))
	for i, c := range changes {
		if c.ModuleHash != "" && !moduleKnown(c.ModuleHash) {
			return nil, fmt.Errorf("%s %q: module hash %s: %w", c.Op, c.Node.Name, c.ModuleHash, ErrNodeNotFound)
		}
		switch c.Op {
		case ChangeAdd:
			if c.Node.Hash == "" || len(c.Node.Hash) != HashLen {
				return nil, fmt.Errorf("add %q: malformed hash %q", c.Node.Name, c.Node.Hash)
			}
			hash, err := choose(c.Node)
			if err != nil {
				return nil, err
			}
			out[i] = hash
			claimed[hash] = identity{file: c.Node.FilePath, name: c.Node.Name}
			delete(freed, hash)

		case ChangeUpdate:
			prev, ok := m.nodes[c.Node.ID]
			if !ok {
				return nil, fmt.Errorf("update id %d: %w", c.Node.ID, ErrNodeNotFound)
			}
			hash := c.Node.Hash
			if prev.Hash != c.Node.Hash {
				freed[prev.Hash] = true
				delete(claimed, prev.Hash)
				var err error
				hash, err = choose(c.Node)
				if err != nil {
					return nil, err
				}
			}
			out[i] = hash
			claimed[hash] = identity{file: c.Node.FilePath, name: c.Node.Name}
			delete(freed, hash)

		case ChangeRemove:
			n, ok := m.nodes[c.ID]
			if !ok {
				return nil, fmt.Errorf("remove id %d: %w", c.ID, ErrNodeNotFound)
			}
			freed[n.Hash] = true
			delete(claimed, n.Hash)

		default:
			return nil, fmt.Errorf("unknown node change op %q", c.Op)
		}
	}
	return out, nil
}

// UpdateEdges applies one atomic batch of edge changes.
func (m *MemStore) UpdateEdges(_ context.Context, changes []EdgeChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range changes {
		switch c.Op {
		case ChangeAdd:
			if _, ok := m.nodes[c.Edge.SourceID]; !ok {
				return fmt.Errorf("edge source %d: %w", c.Edge.SourceID, ErrNodeNotFound)
			}
			if _, ok := m.nodes[c.Edge.TargetID]; !ok {
				return fmt.Errorf("edge target %d: %w", c.Edge.TargetID, ErrNodeNotFound)
			}
		case ChangeRemove:
			if _, ok := m.edges[c.ID]; !ok {
				return fmt.Errorf("edge %d: %w", c.ID, ErrNodeNotFound)
			}
		default:
			return fmt.Errorf("unknown edge change op %q", c.Op)
		}
	}

	for _, c := range changes {
		switch c.Op {
		case ChangeAdd:
			edge := c.Edge
			if edge.ID == 0 {
				edge.ID = m.nextEdgeID
				m.nextEdgeID++
			} else if edge.ID >= m.nextEdgeID {
				m.nextEdgeID = edge.ID + 1
			}
			m.edges[edge.ID] = edge
			m.bySource[edge.SourceID] = append(m.bySource[edge.SourceID], edge.ID)
			m.byTarget[edge.TargetID] = append(m.byTarget[edge.TargetID], edge.ID)
		case ChangeRemove:
			m.removeEdgeLocked(c.ID)
		}
	}
	return nil
}

// ReplaceAll swaps in a full-rebuild graph atomically and returns the
// prior snapshot for diff reporting.
func (m *MemStore) ReplaceAll(_ context.Context, nodes []GraphNode, edges []GraphEdge) (*Snapshot, error) {
	next := NewMemStore()

	for _, n := range nodes {
		node := n
		if node.ID == 0 {
			node.ID = next.nextNodeID
			next.nextNodeID++
		} else if node.ID >= next.nextNodeID {
			next.nextNodeID = node.ID + 1
		}
		hash, err := next.uniqueHashLocked(node)
		if err != nil {
			return nil, err
		}
		node.Hash = hash
		next.insertNodeLocked(node)
	}
	for _, e := range edges {
		edge := e
		if edge.ID == 0 {
			edge.ID = next.nextEdgeID
			next.nextEdgeID++
		}
		if _, ok := next.nodes[edge.SourceID]; !ok {
			return nil, fmt.Errorf("rebuild edge source %d: %w", edge.SourceID, ErrNodeNotFound)
		}
		if _, ok := next.nodes[edge.TargetID]; !ok {
			return nil, fmt.Errorf("rebuild edge target %d: %w", edge.TargetID, ErrNodeNotFound)
		}
		next.edges[edge.ID] = edge
		next.bySource[edge.SourceID] = append(next.bySource[edge.SourceID], edge.ID)
		next.byTarget[edge.TargetID] = append(next.byTarget[edge.TargetID], edge.ID)
	}
	next.rebuildProfilesLocked()

	m.mu.Lock()
	prior := m.snapshotLocked()
	m.nodes, m.byHash, m.byFile = next.nodes, next.byHash, next.byFile
	m.edges, m.bySource, m.byTarget = next.edges, next.bySource, next.byTarget
	m.profiles = next.profiles
	m.nextNodeID, m.nextEdgeID = next.nextNodeID, next.nextEdgeID
	m.mu.Unlock()

	return prior, nil
}

// Stats reports committed graph counts.
func (m *MemStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &Stats{Nodes: len(m.nodes), Edges: len(m.edges)}
	for _, n := range m.nodes {
		switch n.Kind {
		case NodeKindModule:
			s.Modules++
		case NodeKindFunction:
			s.Functions++
		case NodeKindClass:
			s.Classes++
		}
	}
	return s, nil
}

// SetModuleProfile records the derived profile for a module. Called by the
// pipeline after committing node changes.
func (m *MemStore) SetModuleProfile(_ context.Context, p ModuleProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ModuleID] = p
	return nil
}

// --- internals (caller holds m.mu) ---

// uniqueHashLocked enforces the no-collision invariant. A hash already
// bound to a different logical entity (other file or name) is recomputed
// with a file-path disambiguator.
func (m *MemStore) uniqueHashLocked(node GraphNode) (string, error) {
	hash := node.Hash
	if existingID, ok := m.byHash[hash]; ok {
		existing := m.nodes[existingID]
		if existing.FilePath == node.FilePath && existing.Name == node.Name {
			return hash, nil // same logical entity
		}
		disambiguated := DisambiguateHash(hash, node.FilePath)
		slog.Info("hash collision disambiguated",
			"hash", hash,
			"existing", existing.Name,
			"incoming", node.Name,
			"file", node.FilePath,
			"disambiguated", disambiguated)
		if _, still := m.byHash[disambiguated]; still {
			return "", fmt.Errorf("hash %s persists after disambiguation: %w", hash, ErrDuplicateHash)
		}
		return disambiguated, nil
	}
	return hash, nil
}

func (m *MemStore) insertNodeLocked(node GraphNode) {
	m.nodes[node.ID] = node
	m.byHash[node.Hash] = node.ID
	m.byFile[node.FilePath] = append(m.byFile[node.FilePath], node.ID)
}

func (m *MemStore) removeNodeLocked(id uint64, dropEdges bool) {
	node, ok := m.nodes[id]
	if !ok {
		return
	}
	delete(m.nodes, id)
	delete(m.byHash, node.Hash)
	m.byFile[node.FilePath] = removeID(m.byFile[node.FilePath], id)
	if len(m.byFile[node.FilePath]) == 0 {
		delete(m.byFile, node.FilePath)
	}
	delete(m.profiles, id)
	if dropEdges {
		for _, eid := range append(append([]uint64{}, m.bySource[id]...), m.byTarget[id]...) {
			m.removeEdgeLocked(eid)
		}
	}
}

func (m *MemStore) removeEdgeLocked(id uint64) {
	edge, ok := m.edges[id]
	if !ok {
		return
	}
	delete(m.edges, id)
	m.bySource[edge.SourceID] = removeID(m.bySource[edge.SourceID], id)
	m.byTarget[edge.TargetID] = removeID(m.byTarget[edge.TargetID], id)
}

// Snapshot returns a sorted copy of the committed graph.
func (m *MemStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(), nil
}

func (m *MemStore) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Nodes: make([]GraphNode, 0, len(m.nodes)),
		Edges: make([]GraphEdge, 0, len(m.edges)),
	}
	for _, n := range m.nodes {
		snap.Nodes = append(snap.Nodes, n)
	}
	for _, e := range m.edges {
		snap.Edges = append(snap.Edges, e)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Edges, func(i, j int) bool { return snap.Edges[i].ID < snap.Edges[j].ID })
	return snap
}

func (m *MemStore) rebuildProfilesLocked() {
	for id, n := range m.nodes {
		if n.Kind != NodeKindModule {
			continue
		}
		m.profiles[id] = deriveProfile(n, m.nodes, m.edges)
	}
}

func pushPrevious(oldHash string, prior []string) []string {
	out := append([]string{oldHash}, prior...)
	if len(out) > MaxPreviousHashes {
		out = out[:MaxPreviousHashes]
	}
	return out
}

func removeID(ids []uint64, id uint64) []uint64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
