package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dusk-indust/girder/internal/graph"
)

// GraphExport is the top-level JSON export structure.
type GraphExport struct {
	ExportedAt string            `json:"exportedAt"`
	Stats      graph.Stats       `json:"stats"`
	Modules    []ModuleExport    `json:"modules"`
	Edges      []graph.GraphEdge `json:"edges,omitempty"`
}

// ModuleExport groups a module node with its members and derived profile.
type ModuleExport struct {
	Path    string               `json:"path"`
	Profile *graph.ModuleProfile `json:"profile,omitempty"`
	Members []graph.GraphNode    `json:"members,omitempty"`
}

// ExportGraph builds a GraphExport from the committed store state.
func ExportGraph(ctx context.Context, store graph.Store) (*GraphExport, error) {
	snap, err := store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	byModule := make(map[uint64][]graph.GraphNode)
	var modules []graph.GraphNode
	for _, n := range snap.Nodes {
		if n.Kind == graph.NodeKindModule {
			modules = append(modules, n)
			continue
		}
		byModule[n.ModuleID] = append(byModule[n.ModuleID], n)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })

	out := &GraphExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Stats:      *stats,
		Edges:      snap.Edges,
	}
	for _, m := range modules {
		members := byModule[m.ID]
		sort.Slice(members, func(i, j int) bool {
			if members[i].LineStart != members[j].LineStart {
				return members[i].LineStart < members[j].LineStart
			}
			return members[i].Name < members[j].Name
		})
		me := ModuleExport{Path: m.Name, Members: members}
		if profile, err := store.GetModuleProfile(ctx, m.ID); err == nil {
			me.Profile = profile
		}
		out.Modules = append(out.Modules, me)
	}
	return out, nil
}
