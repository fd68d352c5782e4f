package enforce

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/girder/internal/graph"
)

// --- Quality checks ---

// annotatedExtensions are the file kinds where missing type hints mean
// the author left them off, rather than the language carrying types
// implicitly.
var annotatedExtensions = map[string]bool{
	".py":  true,
	".pyi": true,
	".ts":  true,
	".tsx": true,
}

// checkTypeHints flags functions without explicit annotations in
// languages that expect them (E002). Findings on nodes the current
// change did not touch surface at reduced severity.
func (e *Engine) checkTypeHints(cs *ChangeSet) []Violation {
	var out []Violation
	for _, nc := range cs.Nodes {
		if nc.Op == graph.ChangeRemove {
			continue
		}
		node := nc.Node
		if node.Kind != graph.NodeKindFunction || node.TypeHintsPresent {
			continue
		}
		if !annotatedExtensions[filepath.Ext(node.FilePath)] {
			continue
		}
		out = append(out, Violation{
			Code:     CodeMissingTypeHints,
			Category: category(CodeMissingTypeHints),
			Severity: e.qualitySeverity(cs, node.FilePath),
			Message:  fmt.Sprintf("%s has no type annotations", node.Name),
			File:     node.FilePath,
			Line:     node.LineStart,
			Hash:     node.Hash,
			FixHint:  fmt.Sprintf("annotate the parameters and return type of %s", node.Name),
		})
	}
	return out
}

// checkDocstrings flags public functions without documentation (E003).
func (e *Engine) checkDocstrings(cs *ChangeSet) []Violation {
	var out []Violation
	for _, nc := range cs.Nodes {
		if nc.Op == graph.ChangeRemove {
			continue
		}
		node := nc.Node
		if node.Kind != graph.NodeKindFunction || !node.IsPublic || node.HasDocstring {
			continue
		}
		out = append(out, Violation{
			Code:     CodeMissingDocstring,
			Category: category(CodeMissingDocstring),
			Severity: e.qualitySeverity(cs, node.FilePath),
			Message:  fmt.Sprintf("public function %s has no docstring", node.Name),
			File:     node.FilePath,
			Line:     node.LineStart,
			Hash:     node.Hash,
			FixHint:  fmt.Sprintf("document what %s does and what it returns", node.Name),
		})
	}
	return out
}

// checkDuplicateNames flags added functions whose name already exists
// elsewhere in the workspace (W002).
func (e *Engine) checkDuplicateNames(ctx context.Context, cs *ChangeSet) ([]Violation, error) {
	var out []Violation
	for _, nc := range cs.Nodes {
		if nc.Op != graph.ChangeAdd || nc.Node.Kind != graph.NodeKindFunction {
			continue
		}
		node := nc.Node
		if !e.cfg.ForPath(node.FilePath).DuplicateEnabled {
			continue
		}
		existing, err := e.store.FindNodesByName(ctx, node.Name, graph.NodeKindFunction, node.FilePath)
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			continue
		}
		first := existing[0]
		out = append(out, Violation{
			Code:     CodeDuplicateName,
			Category: category(CodeDuplicateName),
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%s already exists in %s:%d", node.Name, first.FilePath, first.LineStart),
			File:     node.FilePath,
			Line:     node.LineStart,
			Hash:     node.Hash,
			FixHint:  fmt.Sprintf("rename one of the definitions of %s, or consolidate them", node.Name),
			Existing: &ExistingRef{Hash: first.Hash, File: first.FilePath, Line: first.LineStart},
		})
	}
	return out, nil
}

// checkPlacement runs the affinity scorer on changed functions (W001).
func (e *Engine) checkPlacement(ctx context.Context, cs *ChangeSet) ([]Violation, error) {
	scorer := &placementScorer{store: e.store, cfg: e.cfg.Enforcement.Placement}
	callsBy := groupByCaller(cs.Calls)
	typesBy := groupByCaller(cs.TypeRefs)
	var out []Violation
	for i, nc := range cs.Nodes {
		if nc.Op == graph.ChangeRemove || nc.Node.Kind != graph.NodeKindFunction {
			continue
		}
		node := &cs.Nodes[i].Node
		if !e.cfg.ForPath(node.FilePath).PlacementEnabled {
			continue
		}
		v, err := scorer.Score(ctx, node, callsBy[node.Hash], typesBy[node.Hash])
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func groupByCaller(sites []CallSite) map[string][]CallSite {
	out := make(map[string][]CallSite)
	for _, s := range sites {
		out[s.CallerHash] = append(out[s.CallerHash], s)
	}
	return out
}

// qualitySeverity downgrades quality findings on pre-existing code when
// the configuration asks for it. A full rebuild touches everything, so
// nothing there counts as newly written.
func (e *Engine) qualitySeverity(cs *ChangeSet, file string) Severity {
	if cs.FullRebuild && e.cfg.ForPath(file).PreExistingAsWarning {
		return SeverityWarning
	}
	return SeverityError
}
