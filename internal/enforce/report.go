package enforce

import (
	"path/filepath"
	"sort"

	"github.com/dusk-indust/girder/internal/graph"
)

// ComputeHotspots ranks functions by combined fan-in and fan-out over a
// full graph snapshot, keeping the top n.
func ComputeHotspots(nodes []graph.GraphNode, edges []graph.GraphEdge, n int) []Hotspot {
	if n <= 0 {
		n = 10
	}
	fanIn := make(map[uint64]int)
	fanOut := make(map[uint64]int)
	for _, e := range edges {
		if e.Kind != graph.EdgeKindCalls {
			continue
		}
		fanOut[e.SourceID]++
		fanIn[e.TargetID]++
	}
	var out []Hotspot
	for _, node := range nodes {
		if node.Kind != graph.NodeKindFunction {
			continue
		}
		in, outDeg := fanIn[node.ID], fanOut[node.ID]
		if in+outDeg == 0 {
			continue
		}
		out = append(out, Hotspot{
			Hash:   node.Hash,
			Name:   node.Name,
			File:   node.FilePath,
			FanIn:  in,
			FanOut: outDeg,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		di := out[i].FanIn + out[i].FanOut
		dj := out[j].FanIn + out[j].FanOut
		if di != dj {
			return di > dj
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ComputeCoverage reports how much of the graph carries annotations.
// Type-hint coverage counts only languages where hints are explicit.
func ComputeCoverage(nodes []graph.GraphNode) *Coverage {
	var hintable, hinted, public, documented int
	for _, node := range nodes {
		if node.Kind != graph.NodeKindFunction {
			continue
		}
		if annotatedExtensions[filepath.Ext(node.FilePath)] {
			hintable++
			if node.TypeHintsPresent {
				hinted++
			}
		}
		if node.IsPublic {
			public++
			if node.HasDocstring {
				documented++
			}
		}
	}
	c := &Coverage{TypeHintRatio: 1, DocstringRatio: 1}
	if hintable > 0 {
		c.TypeHintRatio = float64(hinted) / float64(hintable)
	}
	if public > 0 {
		c.DocstringRatio = float64(documented) / float64(public)
	}
	return c
}
