package export

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dusk-indust/girder/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram of the module layer.
// Modules become subgraphs holding their functions and classes; imports
// edges become arrows between modules.
func GenerateMermaid(ctx context.Context, store graph.Store) (string, error) {
	snap, err := store.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[uint64]string)
	nextID := 0
	getID := func(id uint64) string {
		if mid, ok := nodeIDs[id]; ok {
			return mid
		}
		mid := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[id] = mid
		return mid
	}

	var modules []graph.GraphNode
	members := make(map[uint64][]graph.GraphNode)
	for _, n := range snap.Nodes {
		if n.Kind == graph.NodeKindModule {
			modules = append(modules, n)
		} else {
			members[n.ModuleID] = append(members[n.ModuleID], n)
		}
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, m := range modules {
		ms := members[m.ID]
		sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })

		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID(m.ID), shortPath(m.Name)))
		for _, member := range ms {
			label := member.Name
			if member.Kind == graph.NodeKindClass {
				label = "class " + label
			}
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(member.ID), label))
		}
		sb.WriteString("  end\n")
	}

	for _, e := range snap.Edges {
		if e.Kind != graph.EdgeKindImports {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", getID(e.SourceID), getID(e.TargetID)))
	}

	return sb.String(), nil
}

// shortPath returns the last 2 path segments for readability.
func shortPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
