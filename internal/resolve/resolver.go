// Package resolve turns raw parser references into graph edges using a
// layered scheme: universal import following first, language idioms
// second, an optional external oracle last. Confidence only ever moves
// up through the tiers.
package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dusk-indust/girder/internal/parse"
)

// Outcome classifies a resolution attempt.
type Outcome string

const (
	Resolved   Outcome = "resolved"
	Ambiguous  Outcome = "ambiguous"
	Unresolved Outcome = "unresolved"
)

// Tier names appear on edges and in explain output.
const (
	TierImports Tier = "tier1_imports"
	TierIdioms  Tier = "tier2_idioms"
	TierOracle  Tier = "tier3_oracle"
)

type Tier string

// SymbolKey locates one definition in the workspace.
type SymbolKey struct {
	Name     string
	FilePath string
	Kind     parse.DefKind
}

// Step records one tier's contribution for explain output.
type Step struct {
	Tier Tier
	Note string
}

// Resolution is the outcome of resolving one reference.
type Resolution struct {
	Outcome    Outcome
	Target     SymbolKey
	Candidates []SymbolKey
	Confidence float64
	Tier       Tier
	Chain      []Step
}

// ResolvedRef pairs a reference with its resolution.
type ResolvedRef struct {
	Ref        parse.Reference
	Resolution Resolution
}

// tier1Baseline is the confidence assigned by universal import
// following. Dynamic scoping keeps Python lower.
var tier1Baseline = map[parse.Language]float64{
	parse.LangGo:         0.90,
	parse.LangTypeScript: 0.90,
	parse.LangRust:       0.90,
	parse.LangPython:     0.80,
}

// LanguageResolver enhances references that universal resolution left
// ambiguous or unresolved. Implementations must never return a lower
// confidence than the prior result; the resolver enforces it.
type LanguageResolver interface {
	Language() parse.Language
	Enhance(ref parse.Reference, file *FileContext, prior Resolution) Resolution
}

// PersistentCache carries resolved references across runs, keyed by
// file path and content hash. Entries for a stale content hash report
// a miss.
type PersistentCache interface {
	Load(ctx context.Context, filePath string, contentHash uint64) ([]byte, bool, error)
	Save(ctx context.Context, filePath string, contentHash uint64, payload []byte) error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOracle enables the external fallback for ambiguous references.
func WithOracle(o Oracle, timeout time.Duration) Option {
	return func(r *Resolver) {
		r.oracle = o
		r.oracleTimeout = timeout
	}
}

// WithPersistentCache backs the in-memory resolution cache with a store
// that survives restarts. Cache trouble is logged and resolution
// recomputes; it never fails a resolve.
func WithPersistentCache(pc PersistentCache) Option {
	return func(r *Resolver) {
		r.persistent = pc
	}
}

// Resolver resolves references for a whole workspace parse.
type Resolver struct {
	index         *Index
	paths         *PathResolver
	langs         map[parse.Language]LanguageResolver
	cache         *Cache
	persistent    PersistentCache
	oracle        Oracle
	oracleTimeout time.Duration
	log           *slog.Logger
}

// NewResolver builds a Resolver over one workspace parse. Results are
// indexed up front; path metadata (go.mod, package.json workspaces) is
// scanned from repoRoot.
func NewResolver(repoRoot string, results []*parse.Result, opts ...Option) *Resolver {
	index := NewIndex(results)
	paths := NewPathResolver(repoRoot, index.Files())

	r := &Resolver{
		index: index,
		paths: paths,
		langs: map[parse.Language]LanguageResolver{
			parse.LangGo:         &goResolver{},
			parse.LangPython:     &pyResolver{index: index, paths: paths},
			parse.LangTypeScript: &tsResolver{index: index, paths: paths},
			parse.LangRust:       &rsResolver{index: index, paths: paths},
		},
		cache:         NewCache(),
		oracleTimeout: 2 * time.Second,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveImport maps an import statement to a workspace file. External
// packages report false.
func (r *Resolver) ResolveImport(lang parse.Language, imp parse.Import) (string, bool) {
	return r.paths.Resolve(lang, imp, imp.FilePath)
}

// UpdateFile re-indexes one changed file and drops its cached
// resolutions. Other files keep their cache; a later ResolveFile call
// on them recomputes only if their content hash moved.
func (r *Resolver) UpdateFile(res *parse.Result) {
	r.index.AddFile(res)
	r.cache.Invalidate(res.FilePath)
}

// RemoveFile drops a deleted file from the index and cache.
func (r *Resolver) RemoveFile(path string) {
	r.index.RemoveFile(path)
	r.cache.Invalidate(path)
}

// ResolveFile resolves every reference in one parsed file. Results are
// cached by content hash, in memory and through the persistent layer
// when one is configured, and recomputed only when the file changes.
func (r *Resolver) ResolveFile(ctx context.Context, res *parse.Result) []ResolvedRef {
	if cached, ok := r.cache.Get(res.FilePath, res.ContentHash); ok {
		return cached
	}
	if out, ok := r.loadPersistent(ctx, res); ok {
		r.cache.Put(res.FilePath, res.ContentHash, out)
		return out
	}

	file := r.index.FileContext(res.FilePath)
	out := make([]ResolvedRef, 0, len(res.References))
	for _, ref := range res.References {
		out = append(out, ResolvedRef{Ref: ref, Resolution: r.resolve(ctx, ref, file, res.Language)})
	}

	r.cache.Put(res.FilePath, res.ContentHash, out)
	r.savePersistent(ctx, res, out)
	return out
}

func (r *Resolver) loadPersistent(ctx context.Context, res *parse.Result) ([]ResolvedRef, bool) {
	if r.persistent == nil {
		return nil, false
	}
	payload, ok, err := r.persistent.Load(ctx, res.FilePath, res.ContentHash)
	if err != nil {
		r.log.Debug("resolution cache load failed, recomputing",
			"file", res.FilePath, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var out []ResolvedRef
	if err := json.Unmarshal(payload, &out); err != nil {
		r.log.Debug("resolution cache entry unreadable, recomputing",
			"file", res.FilePath, "err", err)
		return nil, false
	}
	return out, true
}

func (r *Resolver) savePersistent(ctx context.Context, res *parse.Result, out []ResolvedRef) {
	if r.persistent == nil {
		return
	}
	payload, err := json.Marshal(out)
	if err != nil {
		r.log.Debug("resolution cache encode failed", "file", res.FilePath, "err", err)
		return
	}
	if err := r.persistent.Save(ctx, res.FilePath, res.ContentHash, payload); err != nil {
		r.log.Debug("resolution cache save failed", "file", res.FilePath, "err", err)
	}
}

// Resolve runs the tier pipeline for a single reference.
func (r *Resolver) Resolve(ctx context.Context, ref parse.Reference, lang parse.Language) Resolution {
	return r.resolve(ctx, ref, r.index.FileContext(ref.FilePath), lang)
}

func (r *Resolver) resolve(ctx context.Context, ref parse.Reference, file *FileContext, lang parse.Language) Resolution {
	res := r.tier1(ref, file, lang)

	if res.Outcome != Resolved {
		if enhancer, ok := r.langs[lang]; ok {
			enhanced := enhancer.Enhance(ref, file, res)
			if enhanced.Tier == TierIdioms {
				// A fresh tier-2 result may refine but never weaken.
				if enhanced.Confidence >= res.Confidence || res.Outcome != Resolved {
					enhanced.Chain = append(res.Chain, enhanced.Chain...)
					res = enhanced
				}
			} else {
				res = enhanced
			}
		}
	}

	if res.Outcome == Ambiguous && r.oracle != nil {
		res = r.tier3(ctx, ref, res)
	}
	return res
}

// tier3 consults the oracle under a deadline. Timeout or failure keeps
// the prior result with unchanged confidence.
func (r *Resolver) tier3(ctx context.Context, ref parse.Reference, prior Resolution) Resolution {
	ctx, cancel := context.WithTimeout(ctx, r.oracleTimeout)
	defer cancel()

	key, confidence, err := r.oracle.Locate(ctx, ref)
	if err != nil {
		r.log.Debug("oracle lookup failed, keeping prior result",
			"ref", ref.Name, "file", ref.FilePath, "err", err)
		prior.Chain = append(prior.Chain, Step{Tier: TierOracle, Note: "oracle unavailable: " + err.Error()})
		return prior
	}

	if confidence < 0.95 {
		confidence = 0.95
	} else if confidence > 0.99 {
		confidence = 0.99
	}
	return Resolution{
		Outcome:    Resolved,
		Target:     key,
		Confidence: confidence,
		Tier:       TierOracle,
		Chain:      append(prior.Chain, Step{Tier: TierOracle, Note: "oracle located " + key.FilePath}),
	}
}

// Close releases the oracle, if any.
func (r *Resolver) Close() error {
	if r.oracle != nil {
		return r.oracle.Close()
	}
	return nil
}
