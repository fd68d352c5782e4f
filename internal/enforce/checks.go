package enforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/girder/internal/graph"
)

// --- Structural checks ---

// checkBrokenCallers flags updated functions whose parameter list
// changed while callers still exist (E001). The caller set is read from
// the store in its pre-commit state, so every call edge recorded before
// this change is visible. Callers reached only through low-confidence
// edges downgrade the finding to a warning.
func (e *Engine) checkBrokenCallers(ctx context.Context, cs *ChangeSet) ([]Violation, error) {
	var out []Violation
	for _, nc := range cs.Nodes {
		if nc.Op != graph.ChangeUpdate || nc.OldHash == "" {
			continue
		}
		prior, err := e.store.GetNode(ctx, nc.OldHash)
		if err != nil {
			continue // brand-new under a recycled hash, nothing to break
		}
		if signatureParams(prior.Signature) == signatureParams(nc.Node.Signature) {
			continue
		}
		affected, maxConf, tier, err := e.incomingCallers(ctx, prior.ID, nil)
		if err != nil {
			return nil, err
		}
		if len(affected) == 0 {
			continue
		}
		sev := SeverityError
		if maxConf < e.cfg.ForPath(nc.Node.FilePath).LowConfidenceFloor {
			sev = SeverityWarning
		}
		out = append(out, Violation{
			Code:     CodeBrokenCaller,
			Category: category(CodeBrokenCaller),
			Severity: sev,
			Message: fmt.Sprintf("signature of %s changed from %s to %s with %d caller(s) still on the old shape",
				nc.Node.Name, prior.Signature, nc.Node.Signature, len(affected)),
			File:           nc.Node.FilePath,
			Line:           nc.Node.LineStart,
			Hash:           nc.Node.Hash,
			Confidence:     maxConf,
			ResolutionTier: tier,
			FixHint:        fmt.Sprintf("update every caller listed under affected to the new signature of %s", nc.Node.Name),
			Affected:       affected,
		})
	}
	return out, nil
}

// checkRemovals flags deleted functions that still have incoming call
// edges (E004). Callers removed in the same change are not live.
func (e *Engine) checkRemovals(ctx context.Context, cs *ChangeSet) ([]Violation, error) {
	removed := make(map[uint64]bool)
	for _, nc := range cs.Nodes {
		if nc.Op == graph.ChangeRemove {
			removed[nc.ID] = true
		}
	}
	var out []Violation
	for _, nc := range cs.Nodes {
		if nc.Op != graph.ChangeRemove {
			continue
		}
		prior, err := e.store.GetNodeByID(ctx, nc.ID)
		if err != nil {
			continue
		}
		affected, maxConf, tier, err := e.incomingCallers(ctx, prior.ID, removed)
		if err != nil {
			return nil, err
		}
		if len(affected) == 0 {
			continue
		}
		out = append(out, Violation{
			Code:     CodeFunctionRemoved,
			Category: category(CodeFunctionRemoved),
			Severity: SeverityError,
			Message: fmt.Sprintf("%s was removed but %d caller(s) still reference it",
				prior.Name, len(affected)),
			File:           prior.FilePath,
			Line:           prior.LineStart,
			Hash:           prior.Hash,
			Confidence:     maxConf,
			ResolutionTier: tier,
			FixHint:        fmt.Sprintf("remove or redirect the remaining calls to %s before deleting it", prior.Name),
			Affected:       affected,
		})
	}
	return out, nil
}

// checkArity compares call-site argument counts against target
// parameter counts (E005). Only over-supply is flagged: optional and
// default parameters make an exact lower bound unknowable from
// structure alone.
func (e *Engine) checkArity(ctx context.Context, cs *ChangeSet) ([]Violation, error) {
	changed := make(map[string]*graph.GraphNode, len(cs.Nodes))
	for i, nc := range cs.Nodes {
		if nc.Op == graph.ChangeAdd || nc.Op == graph.ChangeUpdate {
			changed[nc.Node.Hash] = &cs.Nodes[i].Node
		}
	}
	var out []Violation
	for _, call := range cs.Calls {
		if call.ArgCount < 0 || call.TargetHash == "" {
			continue
		}
		target := changed[call.TargetHash]
		if target == nil {
			var err error
			target, err = e.store.GetNode(ctx, call.TargetHash)
			if err != nil {
				continue
			}
		}
		if call.ArgCount <= target.ParamCount {
			continue
		}
		out = append(out, Violation{
			Code:     CodeArityMismatch,
			Category: category(CodeArityMismatch),
			Severity: SeverityError,
			Message: fmt.Sprintf("call passes %d argument(s) but %s declares %d parameter(s)",
				call.ArgCount, target.Name, target.ParamCount),
			File:           call.File,
			Line:           call.Line,
			Hash:           target.Hash,
			Confidence:     call.Confidence,
			ResolutionTier: call.Tier,
			FixHint:        fmt.Sprintf("match the call at %s:%d to the declaration of %s", call.File, call.Line, target.Name),
		})
	}
	return out, nil
}

// incomingCallers collects the call edges into a node as caller refs,
// with the strongest edge confidence and its tier. Edges from sources
// in skip are ignored.
func (e *Engine) incomingCallers(ctx context.Context, nodeID uint64, skip map[uint64]bool) ([]CallerRef, float64, string, error) {
	edges, err := e.store.GetEdges(ctx, nodeID, graph.DirectionIncoming)
	if err != nil {
		return nil, 0, "", err
	}
	var refs []CallerRef
	var maxConf float64
	var tier string
	for _, edge := range edges {
		if edge.Kind != graph.EdgeKindCalls || skip[edge.SourceID] {
			continue
		}
		ref := CallerRef{File: edge.FilePath, Line: edge.Line}
		if caller, err := e.store.GetNodeByID(ctx, edge.SourceID); err == nil {
			ref.Hash = caller.Hash
			ref.Name = caller.Name
		}
		refs = append(refs, ref)
		if edge.Confidence > maxConf {
			maxConf = edge.Confidence
			tier = edge.Tier
		}
	}
	return refs, maxConf, tier, nil
}

// signatureParams isolates the parameter section of a canonical
// signature so renames outside the parentheses do not count as breaking
// changes.
func signatureParams(sig string) string {
	open := strings.Index(sig, "(")
	if open < 0 {
		return sig
	}
	depth := 0
	for i := open; i < len(sig); i++ {
		switch sig[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sig[open : i+1]
			}
		}
	}
	return sig[open:]
}
