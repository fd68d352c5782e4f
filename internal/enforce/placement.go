package enforce

import (
	"context"
	"fmt"
	"sort"

	"github.com/dusk-indust/girder/internal/config"
	"github.com/dusk-indust/girder/internal/graph"
)

// placementScorer evaluates how well a function fits its module against
// the other modules it touches. The weights are configuration, not
// doctrine: they are a tuning surface and the defaults are starting
// points.
type placementScorer struct {
	store graph.Store
	cfg   config.PlacementConfig
}

type moduleScore struct {
	moduleID uint64
	path     string
	score    float64
}

// Score evaluates node placement and returns a W001 violation when
// another module outscores the current one by more than the configured
// margin. calls and typeRefs are the node's outgoing resolved
// references from this change.
func (p *placementScorer) Score(ctx context.Context, node *graph.GraphNode, calls, typeRefs []CallSite) (*Violation, error) {
	calleeModules, err := p.targetModules(ctx, calls)
	if err != nil {
		return nil, err
	}
	callerModules, err := p.callerModules(ctx, node)
	if err != nil {
		return nil, err
	}
	typeModules, err := p.targetModules(ctx, typeRefs)
	if err != nil {
		return nil, err
	}

	candidates := p.candidateModules(ctx, node, calleeModules, callerModules)
	if len(candidates) == 0 {
		return nil, nil
	}

	current := p.scoreModule(ctx, node.ModuleID, node, calleeModules, callerModules, typeModules)
	scored := make([]moduleScore, 0, len(candidates))
	for id, path := range candidates {
		if id == node.ModuleID {
			continue
		}
		s := p.scoreModule(ctx, id, node, calleeModules, callerModules, typeModules)
		s.path = path
		scored = append(scored, s)
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].path < scored[j].path
	})

	if len(scored) == 0 || scored[0].score <= current.score+p.cfg.Margin {
		return nil, nil
	}

	max := p.cfg.MaxAlternatives
	if max <= 0 {
		max = 3
	}
	if len(scored) > max {
		scored = scored[:max]
	}
	suggested := make([]string, 0, len(scored))
	for _, s := range scored {
		suggested = append(suggested, s.path)
	}
	return &Violation{
		Code:     CodePlacement,
		Category: category(CodePlacement),
		Severity: SeverityWarning,
		Message: fmt.Sprintf("%s interacts mostly with %s (affinity %.2f vs %.2f here)",
			node.Name, suggested[0], scored[0].score, current.score),
		File:             node.FilePath,
		Line:             node.LineStart,
		Hash:             node.Hash,
		FixHint:          fmt.Sprintf("consider moving %s to %s, or keep it and silence this finding with a suppression", node.Name, suggested[0]),
		SuggestedModules: suggested,
	}, nil
}

func (p *placementScorer) scoreModule(ctx context.Context, moduleID uint64, node *graph.GraphNode, callees, callers, typeRefs []uint64) moduleScore {
	s := moduleScore{moduleID: moduleID}
	s.score += p.cfg.CalleeWeight * fraction(callees, moduleID)
	s.score += p.cfg.CallerWeight * fraction(callers, moduleID)
	if prefix := graph.NamePrefix(node.Name); prefix != "" {
		if profile, err := p.store.GetModuleProfile(ctx, moduleID); err == nil && profile != nil {
			for _, mp := range profile.FunctionNamePrefixes {
				if mp == prefix {
					s.score += p.cfg.PrefixWeight
					break
				}
			}
		}
	}
	// Types pulled in from other modules count against a home.
	if len(typeRefs) > 0 {
		s.score -= p.cfg.ForeignTypeCost * (1 - fraction(typeRefs, moduleID))
	}
	return s
}

// candidateModules gathers every module the node exchanges calls with,
// plus modules whose profile claims the node's name prefix.
func (p *placementScorer) candidateModules(ctx context.Context, node *graph.GraphNode, groups ...[]uint64) map[uint64]string {
	out := make(map[uint64]string)
	for _, group := range groups {
		for _, id := range group {
			if id == 0 || id == node.ModuleID {
				continue
			}
			if _, ok := out[id]; ok {
				continue
			}
			if m, err := p.store.GetNodeByID(ctx, id); err == nil {
				out[id] = m.FilePath
			}
		}
	}
	if prefix := graph.NamePrefix(node.Name); prefix != "" {
		if profiles, err := p.store.FindModulesByPrefix(ctx, prefix, node.FilePath); err == nil {
			for _, profile := range profiles {
				if profile.ModuleID != node.ModuleID {
					out[profile.ModuleID] = profile.Path
				}
			}
		}
	}
	return out
}

func (p *placementScorer) targetModules(ctx context.Context, sites []CallSite) ([]uint64, error) {
	var out []uint64
	for _, c := range sites {
		if c.TargetHash == "" {
			continue
		}
		target, err := p.store.GetNode(ctx, c.TargetHash)
		if err != nil {
			continue // unresolved or external target
		}
		out = append(out, target.ModuleID)
	}
	return out, nil
}

func (p *placementScorer) callerModules(ctx context.Context, node *graph.GraphNode) ([]uint64, error) {
	if node.ID == 0 {
		return nil, nil
	}
	edges, err := p.store.GetEdges(ctx, node.ID, graph.DirectionIncoming)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, e := range edges {
		if e.Kind != graph.EdgeKindCalls {
			continue
		}
		caller, err := p.store.GetNodeByID(ctx, e.SourceID)
		if err != nil {
			continue
		}
		out = append(out, caller.ModuleID)
	}
	return out, nil
}

func fraction(ids []uint64, moduleID uint64) float64 {
	if len(ids) == 0 {
		return 0
	}
	n := 0
	for _, id := range ids {
		if id == moduleID {
			n++
		}
	}
	return float64(n) / float64(len(ids))
}
