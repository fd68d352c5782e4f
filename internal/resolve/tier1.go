package resolve

import (
	"github.com/dusk-indust/girder/internal/parse"
)

// tier1 is universal resolution: same-file and same-directory name
// matching plus import following. It is identical for every language;
// only the baseline confidence differs.
func (r *Resolver) tier1(ref parse.Reference, file *FileContext, lang parse.Language) Resolution {
	baseline := tier1Baseline[lang]

	// Qualified references follow the import binding of the qualifier.
	if ref.Receiver != "" {
		if res, done := r.tier1Qualified(ref, file, baseline); done {
			return res
		}
	}

	// Same-file definition.
	if key, ok := r.index.DefinitionIn(file.Path, ref.Name); ok {
		return Resolution{
			Outcome:    Resolved,
			Target:     key,
			Confidence: baseline,
			Tier:       TierImports,
			Chain:      []Step{{Tier: TierImports, Note: "defined in same file"}},
		}
	}

	// Explicitly imported name.
	for _, imp := range file.Imports {
		if !containsName(imp.Names, ref.Name) {
			continue
		}
		if target, ok := r.paths.Resolve(file.Language, imp, file.Path); ok {
			if key, found := r.followExports(target, ref.Name, 0); found {
				return Resolution{
					Outcome:    Resolved,
					Target:     key,
					Confidence: baseline,
					Tier:       TierImports,
					Chain:      []Step{{Tier: TierImports, Note: "imported from " + imp.Source}},
				}
			}
		}
		// Imported from outside the workspace.
		return Resolution{
			Outcome:    Unresolved,
			Confidence: 0,
			Tier:       TierImports,
			Chain:      []Step{{Tier: TierImports, Note: "external import " + imp.Source}},
		}
	}

	// Same-directory sibling.
	for _, key := range r.index.Lookup(ref.Name) {
		if sameDir(key.FilePath, file.Path) {
			return Resolution{
				Outcome:    Resolved,
				Target:     key,
				Confidence: baseline,
				Tier:       TierImports,
				Chain:      []Step{{Tier: TierImports, Note: "defined in same directory"}},
			}
		}
	}

	// Wildcard imports make any same-name definition a candidate.
	candidates := r.index.Lookup(ref.Name)
	if hasWildcard(file.Imports) && len(candidates) > 0 {
		return Resolution{
			Outcome:    Ambiguous,
			Candidates: candidates,
			Confidence: 0,
			Tier:       TierImports,
			Chain:      []Step{{Tier: TierImports, Note: "name reachable through wildcard import"}},
		}
	}

	if len(candidates) > 0 {
		return Resolution{
			Outcome:    Ambiguous,
			Candidates: candidates,
			Confidence: 0,
			Tier:       TierImports,
			Chain:      []Step{{Tier: TierImports, Note: "same-name definitions without import path"}},
		}
	}

	return Resolution{
		Outcome:    Unresolved,
		Confidence: 0,
		Tier:       TierImports,
		Chain:      []Step{{Tier: TierImports, Note: "no definition in workspace"}},
	}
}

// tier1Qualified resolves receiver-qualified references when the
// receiver is an import binding (pkg.Fn, module.fn, ns.fn). The second
// return is false when the receiver is not an import binding, leaving
// the reference for the plain path.
func (r *Resolver) tier1Qualified(ref parse.Reference, file *FileContext, baseline float64) (Resolution, bool) {
	for _, imp := range file.Imports {
		if importBinding(imp) != ref.Receiver {
			continue
		}
		if target, ok := r.paths.Resolve(file.Language, imp, file.Path); ok {
			if key, found := r.followExports(target, ref.Name, 0); found {
				return Resolution{
					Outcome:    Resolved,
					Target:     key,
					Confidence: baseline,
					Tier:       TierImports,
					Chain:      []Step{{Tier: TierImports, Note: "qualifier " + ref.Receiver + " imports " + imp.Source}},
				}, true
			}
		}
		return Resolution{
			Outcome:    Unresolved,
			Confidence: 0,
			Tier:       TierImports,
			Chain:      []Step{{Tier: TierImports, Note: "qualifier " + ref.Receiver + " is external"}},
		}, true
	}

	// Method call on a receiver the parser could not type: ambiguous
	// when any method candidates exist.
	var candidates []SymbolKey
	for _, key := range r.index.Lookup(ref.Name) {
		candidates = append(candidates, key)
	}
	if len(candidates) > 0 {
		return Resolution{
			Outcome:    Ambiguous,
			Candidates: candidates,
			Confidence: 0,
			Tier:       TierImports,
			Chain:      []Step{{Tier: TierImports, Note: "call through unresolved receiver " + ref.Receiver}},
		}, true
	}
	return Resolution{}, false
}

// followExports finds name in target, chasing re-export statements up
// to a small depth so barrel files resolve to the defining file.
func (r *Resolver) followExports(target, name string, depth int) (SymbolKey, bool) {
	if key, ok := r.index.DefinitionIn(target, name); ok {
		return key, true
	}
	if depth >= 4 {
		return SymbolKey{}, false
	}
	for _, imp := range r.index.importsByFile[target] {
		if !imp.IsReExport {
			continue
		}
		if !imp.IsWildcard && !containsName(imp.Names, name) {
			continue
		}
		if next, ok := r.paths.Resolve(r.index.langByFile[target], imp, target); ok {
			if key, found := r.followExports(next, name, depth+1); found {
				return key, true
			}
		}
	}
	return SymbolKey{}, false
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func hasWildcard(imports []parse.Import) bool {
	for _, imp := range imports {
		if imp.IsWildcard {
			return true
		}
	}
	return false
}
