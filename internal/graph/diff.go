package graph

// FileDiff classifies the difference between a file's prior node set and
// its freshly parsed one. Identity within a file is (kind, name), which is
// stable across edits that move or reformat a definition.
type FileDiff struct {
	Added    []GraphNode
	Removed  []GraphNode
	Modified []ModifiedNode
}

// ModifiedNode pairs the stored node with its recomputed replacement when
// the content hash changed.
type ModifiedNode struct {
	Before GraphNode
	After  GraphNode
}

// DiffFileNodes diffs prior against next by within-file identity.
// Unchanged nodes (same identity, same hash) are omitted.
func DiffFileNodes(prior, next []GraphNode) FileDiff {
	type identity struct {
		kind NodeKind
		name string
	}
	priorByID := make(map[identity]GraphNode, len(prior))
	for _, n := range prior {
		priorByID[identity{n.Kind, n.Name}] = n
	}

	var diff FileDiff
	seen := make(map[identity]bool, len(next))
	for _, n := range next {
		id := identity{n.Kind, n.Name}
		seen[id] = true
		before, ok := priorByID[id]
		if !ok {
			diff.Added = append(diff.Added, n)
			continue
		}
		if before.Hash != n.Hash {
			diff.Modified = append(diff.Modified, ModifiedNode{Before: before, After: n})
		}
	}
	for _, n := range prior {
		if !seen[identity{n.Kind, n.Name}] {
			diff.Removed = append(diff.Removed, n)
		}
	}
	return diff
}

// Changes converts a FileDiff into the typed change list the store and the
// enforcement engine consume. Modified nodes keep their stored ID and
// module assignment so edges survive the update.
func (d FileDiff) Changes() []NodeChange {
	changes := make([]NodeChange, 0, len(d.Added)+len(d.Removed)+len(d.Modified))
	for _, n := range d.Added {
		changes = append(changes, NodeChange{Op: ChangeAdd, Node: n})
	}
	for _, m := range d.Modified {
		after := m.After
		after.ID = m.Before.ID
		after.ModuleID = m.Before.ModuleID
		changes = append(changes, NodeChange{Op: ChangeUpdate, Node: after, OldHash: m.Before.Hash})
	}
	for _, n := range d.Removed {
		changes = append(changes, NodeChange{Op: ChangeRemove, ID: n.ID})
	}
	return changes
}

// RebuildCounts summarizes a full rebuild against its prior snapshot.
// Reporting only; the swap itself is atomic and never partial.
type RebuildCounts struct {
	NodesAdded   int `json:"nodesAdded"`
	NodesRemoved int `json:"nodesRemoved"`
	NodesChanged int `json:"nodesChanged"`
	EdgesBefore  int `json:"edgesBefore"`
	EdgesAfter   int `json:"edgesAfter"`
}

// DiffSnapshots compares two full snapshots by (file, kind, name) identity.
func DiffSnapshots(prior, next *Snapshot) RebuildCounts {
	type identity struct {
		file string
		kind NodeKind
		name string
	}
	priorByID := make(map[identity]GraphNode, len(prior.Nodes))
	for _, n := range prior.Nodes {
		priorByID[identity{n.FilePath, n.Kind, n.Name}] = n
	}

	var counts RebuildCounts
	counts.EdgesBefore = len(prior.Edges)
	counts.EdgesAfter = len(next.Edges)
	seen := make(map[identity]bool, len(next.Nodes))
	for _, n := range next.Nodes {
		id := identity{n.FilePath, n.Kind, n.Name}
		seen[id] = true
		before, ok := priorByID[id]
		switch {
		case !ok:
			counts.NodesAdded++
		case before.Hash != n.Hash:
			counts.NodesChanged++
		}
	}
	for _, n := range prior.Nodes {
		if !seen[identity{n.FilePath, n.Kind, n.Name}] {
			counts.NodesRemoved++
		}
	}
	return counts
}
