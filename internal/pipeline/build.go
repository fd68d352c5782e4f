package pipeline

import (
	"fmt"

	"github.com/dusk-indust/girder/internal/enforce"
	"github.com/dusk-indust/girder/internal/graph"
	"github.com/dusk-indust/girder/internal/parse"
	"github.com/dusk-indust/girder/internal/resolve"
)

// moduleNode is the per-file module vertex everything in the file hangs
// off through contains edges.
func moduleNode(path string) graph.GraphNode {
	sig := "module " + path
	return graph.GraphNode{
		Hash:      graph.ComputeHash(sig, path, ""),
		Kind:      graph.NodeKindModule,
		Name:      path,
		Signature: sig,
		FilePath:  path,
		LineStart: 1,
		LineEnd:   1,
	}
}

func definitionNode(d parse.Definition) graph.GraphNode {
	kind := graph.NodeKindFunction
	if d.Kind == parse.DefClass {
		kind = graph.NodeKindClass
	}
	return graph.GraphNode{
		Hash:              d.Hash(),
		Kind:              kind,
		Name:              d.Name,
		Signature:         d.Signature,
		FilePath:          d.FilePath,
		LineStart:         d.LineStart,
		LineEnd:           d.LineEnd,
		Docstring:         d.Docstring,
		IsPublic:          d.IsPublic,
		TypeHintsPresent:  d.TypeHintsPresent,
		HasDocstring:      d.Docstring != "",
		ParamCount:        d.ParamCount,
		ExternalEndpoints: d.Endpoints,
	}
}

func edgeKindFor(ref parse.RefKind) graph.EdgeKind {
	switch ref {
	case parse.RefTypeRef:
		return graph.EdgeKindInherits
	case parse.RefImport:
		return graph.EdgeKindImports
	default:
		return graph.EdgeKindCalls
	}
}

// defHashIndex maps definition names to content hashes for one file.
func defHashIndex(res *parse.Result) map[string]string {
	out := make(map[string]string, len(res.Definitions))
	for _, d := range res.Definitions {
		out[d.Name] = d.Hash()
	}
	return out
}

// chainStrings flattens a resolution chain for provenance reporting.
func chainStrings(steps []resolve.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, fmt.Sprintf("%s: %s", s.Tier, s.Note))
	}
	return out
}

// callSites pairs each resolved reference from one file with the caller
// and target content hashes. lookup maps a workspace file and symbol
// name to the target's hash; unresolved references are dropped here and
// surface only through edge confidence elsewhere.
func callSites(res *parse.Result, refs []resolve.ResolvedRef, lookup func(file, name string) string) ([]enforce.CallSite, []resolve.ResolvedRef) {
	hashes := defHashIndex(res)
	var sites []enforce.CallSite
	var resolved []resolve.ResolvedRef
	for _, rr := range refs {
		if rr.Resolution.Outcome != resolve.Resolved {
			continue
		}
		targetHash := lookup(rr.Resolution.Target.FilePath, rr.Resolution.Target.Name)
		if targetHash == "" {
			continue
		}
		sites = append(sites, enforce.CallSite{
			CallerHash: hashes[rr.Ref.EnclosingFunc],
			TargetHash: targetHash,
			File:       rr.Ref.FilePath,
			Line:       rr.Ref.Line,
			ArgCount:   rr.Ref.ArgCount,
			Confidence: rr.Resolution.Confidence,
			Tier:       string(rr.Resolution.Tier),
		})
		resolved = append(resolved, rr)
	}
	return sites, resolved
}

// splitSites separates call sites from type references.
func splitSites(sites []enforce.CallSite, refs []resolve.ResolvedRef) (calls, typeRefs []enforce.CallSite) {
	for i, rr := range refs {
		if rr.Ref.Kind == parse.RefTypeRef {
			typeRefs = append(typeRefs, sites[i])
		} else {
			calls = append(calls, sites[i])
		}
	}
	return calls, typeRefs
}
