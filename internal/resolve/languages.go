package resolve

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dusk-indust/girder/internal/parse"
)

// The tier-2 enhancers apply language idioms to references universal
// resolution left ambiguous or unresolved. Each may raise confidence,
// never lower it.

// --- Go ---

// goResolver tracks the exported-identifier convention: an exported
// name with a single workspace definition is taken even without a
// matching import, as dot imports and generated wiring hide paths.
type goResolver struct{}

func (g *goResolver) Language() parse.Language { return parse.LangGo }

func (g *goResolver) Enhance(ref parse.Reference, file *FileContext, prior Resolution) Resolution {
	if prior.Outcome != Ambiguous || len(prior.Candidates) != 1 {
		return prior
	}
	r, _ := utf8.DecodeRuneInString(ref.Name)
	if !unicode.IsUpper(r) {
		return prior
	}
	return Resolution{
		Outcome:    Resolved,
		Target:     prior.Candidates[0],
		Confidence: tier1Baseline[parse.LangGo],
		Tier:       TierIdioms,
		Chain:      []Step{{Tier: TierIdioms, Note: "single exported candidate"}},
	}
}

// --- Python ---

// pyResolver resolves self/cls method calls against classes defined in
// the same file and narrows star-import candidates to modules the file
// actually star-imports.
type pyResolver struct {
	index *Index
	paths *PathResolver
}

func (p *pyResolver) Language() parse.Language { return parse.LangPython }

func (p *pyResolver) Enhance(ref parse.Reference, file *FileContext, prior Resolution) Resolution {
	baseline := tier1Baseline[parse.LangPython]

	if ref.Receiver == "self" || ref.Receiver == "cls" {
		for _, def := range file.Defs {
			if def.Kind != parse.DefClass {
				continue
			}
			if key, ok := p.index.MethodOn(def.Name, ref.Name); ok {
				return Resolution{
					Outcome:    Resolved,
					Target:     key,
					Confidence: baseline + 0.05,
					Tier:       TierIdioms,
					Chain:      []Step{{Tier: TierIdioms, Note: "method on class " + def.Name}},
				}
			}
		}
	}

	if prior.Outcome == Ambiguous {
		if key, ok := narrowByWildcard(p.index, p.paths, file, ref.Name); ok {
			return Resolution{
				Outcome:    Resolved,
				Target:     key,
				Confidence: baseline,
				Tier:       TierIdioms,
				Chain:      []Step{{Tier: TierIdioms, Note: "star import narrowed to " + key.FilePath}},
			}
		}
	}
	return prior
}

// --- TypeScript ---

// tsResolver narrows namespace and star imports and follows default
// exports named after their file.
type tsResolver struct {
	index *Index
	paths *PathResolver
}

func (t *tsResolver) Language() parse.Language { return parse.LangTypeScript }

func (t *tsResolver) Enhance(ref parse.Reference, file *FileContext, prior Resolution) Resolution {
	if prior.Outcome == Resolved {
		return prior
	}
	baseline := tier1Baseline[parse.LangTypeScript]

	if prior.Outcome == Ambiguous {
		if key, ok := narrowByWildcard(t.index, t.paths, file, ref.Name); ok {
			return Resolution{
				Outcome:    Resolved,
				Target:     key,
				Confidence: baseline,
				Tier:       TierIdioms,
				Chain:      []Step{{Tier: TierIdioms, Note: "namespace import narrowed to " + key.FilePath}},
			}
		}
	}

	// Default import: the local binding can differ from the exported
	// name, so match against the imported file's basename.
	for _, imp := range file.Imports {
		if !containsName(imp.Names, ref.Name) {
			continue
		}
		target, ok := t.paths.Resolve(parse.LangTypeScript, imp, file.Path)
		if !ok {
			continue
		}
		base := strings.TrimSuffix(strings.TrimSuffix(baseName(target), ".tsx"), ".ts")
		for _, def := range t.index.defsByFile[target] {
			if strings.EqualFold(def.Name, base) || strings.EqualFold(def.Name, ref.Name) {
				return Resolution{
					Outcome:    Resolved,
					Target:     SymbolKey{Name: def.Name, FilePath: target, Kind: def.Kind},
					Confidence: baseline,
					Tier:       TierIdioms,
					Chain:      []Step{{Tier: TierIdioms, Note: "default export of " + target}},
				}
			}
		}
	}
	return prior
}

// --- Rust ---

// rsResolver parses path-qualified calls (crate::db::open) and filters
// ambiguous candidates by visibility.
type rsResolver struct {
	index *Index
	paths *PathResolver
}

func (r *rsResolver) Language() parse.Language { return parse.LangRust }

func (r *rsResolver) Enhance(ref parse.Reference, file *FileContext, prior Resolution) Resolution {
	if prior.Outcome == Resolved {
		return prior
	}
	baseline := tier1Baseline[parse.LangRust]

	// Path-qualified call: the receiver is a module path.
	if strings.Contains(ref.Receiver, "::") || strings.HasPrefix(ref.Receiver, "crate") {
		imp := parse.Import{Source: ref.Receiver}
		if target, ok := r.paths.Resolve(parse.LangRust, imp, file.Path); ok {
			if key, found := r.index.DefinitionIn(target, ref.Name); found {
				return Resolution{
					Outcome:    Resolved,
					Target:     key,
					Confidence: baseline,
					Tier:       TierIdioms,
					Chain:      []Step{{Tier: TierIdioms, Note: "module path " + ref.Receiver}},
				}
			}
		}
	}

	// Visibility narrowing: a module-private item is only callable from
	// its own file, so cross-file candidates must be public.
	if prior.Outcome == Ambiguous {
		var visible []SymbolKey
		for _, key := range prior.Candidates {
			for _, def := range r.index.defsByFile[key.FilePath] {
				if def.Name == key.Name && (def.IsPublic || key.FilePath == file.Path) {
					visible = append(visible, key)
					break
				}
			}
		}
		if len(visible) == 1 {
			return Resolution{
				Outcome:    Resolved,
				Target:     visible[0],
				Confidence: baseline,
				Tier:       TierIdioms,
				Chain:      []Step{{Tier: TierIdioms, Note: "single visible candidate"}},
			}
		}
		if len(visible) > 0 && len(visible) < len(prior.Candidates) {
			prior.Candidates = visible
			prior.Chain = append(prior.Chain, Step{Tier: TierIdioms, Note: "candidates narrowed by visibility"})
		}
	}
	return prior
}

// --- Shared ---

// narrowByWildcard resolves name through the file's star imports when
// exactly one of them leads to a defining file.
func narrowByWildcard(index *Index, paths *PathResolver, file *FileContext, name string) (SymbolKey, bool) {
	var found SymbolKey
	matches := 0
	for _, imp := range file.Imports {
		if !imp.IsWildcard {
			continue
		}
		target, ok := paths.Resolve(file.Language, imp, file.Path)
		if !ok {
			continue
		}
		if key, defined := index.DefinitionIn(target, name); defined {
			found = key
			matches++
		}
	}
	return found, matches == 1
}

func baseName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
