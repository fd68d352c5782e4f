package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/girder/internal/parse"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func def(name string, kind parse.DefKind) parse.Definition {
	return parse.Definition{Name: name, Kind: kind, IsPublic: true}
}

func result(path string, lang parse.Language, defs []parse.Definition, refs []parse.Reference, imports []parse.Import) *parse.Result {
	for i := range defs {
		defs[i].FilePath = path
	}
	return &parse.Result{
		FilePath:    path,
		Language:    lang,
		ContentHash: uint64(len(path)) + 1,
		Definitions: defs,
		References:  refs,
		Imports:     imports,
	}
}

// ---------------------------------------------------------------------------
// Tier 1
// ---------------------------------------------------------------------------

func TestTier1_SameFile(t *testing.T) {
	results := []*parse.Result{
		result("auth/login.py", parse.LangPython,
			[]parse.Definition{def("login", parse.DefFunction), def("issue_token", parse.DefFunction)},
			nil, nil),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "issue_token", Kind: parse.RefCall, FilePath: "auth/login.py",
	}, parse.LangPython)

	assert.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, "auth/login.py", res.Target.FilePath)
	assert.InDelta(t, 0.80, res.Confidence, 1e-9, "dynamic scoping keeps the Python baseline lower")
	assert.Equal(t, TierImports, res.Tier)
}

func TestTier1_RelativeImport(t *testing.T) {
	results := []*parse.Result{
		result("app/auth.py", parse.LangPython,
			[]parse.Definition{def("login", parse.DefFunction)}, nil, nil),
		result("app/views.py", parse.LangPython, nil, nil,
			[]parse.Import{{Source: ".auth", Names: []string{"login"}, FilePath: "app/views.py", IsRelative: true}}),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "login", Kind: parse.RefCall, FilePath: "app/views.py",
	}, parse.LangPython)

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, "app/auth.py", res.Target.FilePath)
	require.NotEmpty(t, res.Chain)
	assert.Contains(t, res.Chain[0].Note, ".auth")
}

func TestTier1_QualifiedReceiver(t *testing.T) {
	results := []*parse.Result{
		result("src/db.ts", parse.LangTypeScript,
			[]parse.Definition{def("load", parse.DefFunction)}, nil, nil),
		result("src/user.ts", parse.LangTypeScript, nil, nil,
			[]parse.Import{{Source: "./db", FilePath: "src/user.ts", IsRelative: true, IsWildcard: true, Alias: "db"}}),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "load", Receiver: "db", Kind: parse.RefCall, FilePath: "src/user.ts",
	}, parse.LangTypeScript)

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, "src/db.ts", res.Target.FilePath)
	assert.InDelta(t, 0.90, res.Confidence, 1e-9)
}

func TestTier1_ExternalImportStaysUnresolved(t *testing.T) {
	results := []*parse.Result{
		result("main.py", parse.LangPython, nil, nil,
			[]parse.Import{{Source: "requests", Names: []string{"get"}, FilePath: "main.py"}}),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "get", Kind: parse.RefCall, FilePath: "main.py",
	}, parse.LangPython)

	assert.Equal(t, Unresolved, res.Outcome)
	assert.Zero(t, res.Confidence)
}

func TestTier1_WildcardImportIsAmbiguous(t *testing.T) {
	results := []*parse.Result{
		result("pkg/a.py", parse.LangPython,
			[]parse.Definition{def("helper", parse.DefFunction)}, nil, nil),
		result("other/b.py", parse.LangPython,
			[]parse.Definition{def("helper", parse.DefFunction)}, nil, nil),
		result("far/main.py", parse.LangPython, nil, nil,
			[]parse.Import{{Source: "legacy", FilePath: "far/main.py", IsWildcard: true}}),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "helper", Kind: parse.RefCall, FilePath: "far/main.py",
	}, parse.LangPython)

	assert.Equal(t, Ambiguous, res.Outcome)
	assert.Len(t, res.Candidates, 2)
}

func TestTier1_BarrelReExport(t *testing.T) {
	results := []*parse.Result{
		result("src/auth/session.ts", parse.LangTypeScript,
			[]parse.Definition{def("Session", parse.DefClass)}, nil, nil),
		result("src/auth/index.ts", parse.LangTypeScript, nil, nil,
			[]parse.Import{{Source: "./session", Names: []string{"Session"}, FilePath: "src/auth/index.ts", IsRelative: true, IsReExport: true}}),
		result("src/app.ts", parse.LangTypeScript, nil, nil,
			[]parse.Import{{Source: "./auth", Names: []string{"Session"}, FilePath: "src/app.ts", IsRelative: true}}),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "Session", Kind: parse.RefCall, FilePath: "src/app.ts",
	}, parse.LangTypeScript)

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, "src/auth/session.ts", res.Target.FilePath,
		"barrel files must resolve through to the defining file")
}

// ---------------------------------------------------------------------------
// Tier 2
// ---------------------------------------------------------------------------

func TestTier2_GoSingleExportedCandidate(t *testing.T) {
	results := []*parse.Result{
		result("internal/store/store.go", parse.LangGo,
			[]parse.Definition{def("OpenStore", parse.DefFunction)}, nil, nil),
		result("cmd/main.go", parse.LangGo, nil, nil, nil),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "OpenStore", Kind: parse.RefCall, FilePath: "cmd/main.go",
	}, parse.LangGo)

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, TierIdioms, res.Tier)
	assert.Equal(t, "internal/store/store.go", res.Target.FilePath)
}

func TestTier2_PythonSelfMethod(t *testing.T) {
	sessionDefs := []parse.Definition{
		def("Session", parse.DefClass),
		{Name: "refresh", Kind: parse.DefFunction, Receiver: "Session", IsPublic: true},
		{Name: "extend", Kind: parse.DefFunction, Receiver: "Session", IsPublic: true},
	}
	results := []*parse.Result{
		result("app/session.py", parse.LangPython, sessionDefs, nil, nil),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "extend", Receiver: "self", Kind: parse.RefCall, FilePath: "app/session.py",
	}, parse.LangPython)

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, TierIdioms, res.Tier)
	assert.Greater(t, res.Confidence, 0.80, "self-method resolution is more precise than the baseline")
}

func TestTier2_RustVisibilityNarrowing(t *testing.T) {
	pub := def("open", parse.DefFunction)
	private := parse.Definition{Name: "open", Kind: parse.DefFunction, IsPublic: false}
	results := []*parse.Result{
		result("src/db.rs", parse.LangRust, []parse.Definition{pub}, nil, nil),
		result("src/legacy.rs", parse.LangRust, []parse.Definition{private}, nil, nil),
		result("other/main.rs", parse.LangRust, nil, nil,
			[]parse.Import{{Source: "crate::util", FilePath: "other/main.rs", IsRelative: true, IsWildcard: true}}),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "open", Kind: parse.RefCall, FilePath: "other/main.rs",
	}, parse.LangRust)

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, "src/db.rs", res.Target.FilePath, "module-private candidates are not visible cross-file")
}

func TestTier2_NeverLowersTier1(t *testing.T) {
	results := []*parse.Result{
		result("a/x.go", parse.LangGo,
			[]parse.Definition{def("Run", parse.DefFunction)}, nil, nil),
	}
	r := NewResolver(t.TempDir(), results)

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "Run", Kind: parse.RefCall, FilePath: "a/x.go",
	}, parse.LangGo)

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, TierImports, res.Tier, "a tier-1 hit is final")
	assert.InDelta(t, 0.90, res.Confidence, 1e-9)
}

// ---------------------------------------------------------------------------
// Tier 3
// ---------------------------------------------------------------------------

func TestTier3_OracleResolvesAmbiguous(t *testing.T) {
	results := []*parse.Result{
		result("pkg/a.py", parse.LangPython,
			[]parse.Definition{def("helper", parse.DefFunction)}, nil, nil),
		result("other/b.py", parse.LangPython,
			[]parse.Definition{def("helper", parse.DefFunction)}, nil, nil),
		result("far/main.py", parse.LangPython, nil, nil, nil),
	}
	oracle := NewIndexOracle()
	oracle.Record("", SymbolKey{Name: "helper", FilePath: "pkg/a.py", Kind: parse.DefFunction})
	r := NewResolver(t.TempDir(), results, WithOracle(oracle, time.Second))

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "helper", Kind: parse.RefCall, FilePath: "far/main.py",
	}, parse.LangPython)

	require.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, TierOracle, res.Tier)
	assert.Equal(t, "pkg/a.py", res.Target.FilePath)
	assert.GreaterOrEqual(t, res.Confidence, 0.95)
	assert.LessOrEqual(t, res.Confidence, 0.99)
}

type stallingOracle struct{}

func (stallingOracle) Locate(ctx context.Context, _ parse.Reference) (SymbolKey, float64, error) {
	<-ctx.Done()
	return SymbolKey{}, 0, ctx.Err()
}

func (stallingOracle) Close() error { return nil }

func TestTier3_TimeoutKeepsPriorResult(t *testing.T) {
	results := []*parse.Result{
		result("pkg/a.py", parse.LangPython,
			[]parse.Definition{def("helper", parse.DefFunction)}, nil, nil),
		result("other/b.py", parse.LangPython,
			[]parse.Definition{def("helper", parse.DefFunction)}, nil, nil),
		result("far/main.py", parse.LangPython, nil, nil, nil),
	}
	r := NewResolver(t.TempDir(), results, WithOracle(stallingOracle{}, 10*time.Millisecond))

	res := r.Resolve(context.Background(), parse.Reference{
		Name: "helper", Kind: parse.RefCall, FilePath: "far/main.py",
	}, parse.LangPython)

	assert.Equal(t, Ambiguous, res.Outcome, "timeout keeps the tier-1/2 result")
	assert.Zero(t, res.Confidence, "confidence must not be inflated on oracle timeout")
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

func TestResolveFile_CachesByContentHash(t *testing.T) {
	fileA := result("a.py", parse.LangPython,
		[]parse.Definition{def("fn", parse.DefFunction)},
		[]parse.Reference{{Name: "fn", Kind: parse.RefCall, FilePath: "a.py"}},
		nil)
	r := NewResolver(t.TempDir(), []*parse.Result{fileA})

	first := r.ResolveFile(context.Background(), fileA)
	require.Len(t, first, 1)
	assert.Equal(t, 1, r.cache.Len())

	// Same hash hits the cache.
	again := r.ResolveFile(context.Background(), fileA)
	assert.Equal(t, first, again)

	// A content change misses.
	changed := *fileA
	changed.ContentHash = fileA.ContentHash + 1
	_, ok := r.cache.Get(changed.FilePath, changed.ContentHash)
	assert.False(t, ok)
}

type fakePersistentCache struct {
	hashes   map[string]uint64
	payloads map[string][]byte
	loads    int
	saves    int
}

func newFakePersistentCache() *fakePersistentCache {
	return &fakePersistentCache{hashes: make(map[string]uint64), payloads: make(map[string][]byte)}
}

func (c *fakePersistentCache) Load(_ context.Context, filePath string, contentHash uint64) ([]byte, bool, error) {
	c.loads++
	if c.hashes[filePath] != contentHash {
		return nil, false, nil
	}
	return c.payloads[filePath], true, nil
}

func (c *fakePersistentCache) Save(_ context.Context, filePath string, contentHash uint64, payload []byte) error {
	c.saves++
	c.hashes[filePath] = contentHash
	c.payloads[filePath] = payload
	return nil
}

func TestResolveFile_PersistentCacheSurvivesRestart(t *testing.T) {
	pc := newFakePersistentCache()
	fileA := result("a.py", parse.LangPython,
		[]parse.Definition{def("fn", parse.DefFunction)},
		[]parse.Reference{{Name: "fn", Kind: parse.RefCall, FilePath: "a.py"}},
		nil)

	r := NewResolver(t.TempDir(), []*parse.Result{fileA}, WithPersistentCache(pc))
	first := r.ResolveFile(context.Background(), fileA)
	require.Len(t, first, 1)
	require.Equal(t, Resolved, first[0].Resolution.Outcome)
	assert.Equal(t, 1, pc.saves)

	// A fresh resolver with an empty index stands in for a restart. The
	// resolutions come back from the persistent layer, not from tier 1.
	restarted := NewResolver(t.TempDir(), nil, WithPersistentCache(pc))
	second := restarted.ResolveFile(context.Background(), fileA)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Resolution.Target, second[0].Resolution.Target)
	assert.Equal(t, first[0].Resolution.Confidence, second[0].Resolution.Confidence)
	assert.Equal(t, 1, pc.saves, "a persistent hit must not re-save")

	// A content change misses and recomputes.
	changed := *fileA
	changed.ContentHash = fileA.ContentHash + 1
	_ = r.ResolveFile(context.Background(), &changed)
	assert.Equal(t, 2, pc.saves)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			c.Put("f.go", uint64(i), nil)
		}
	}()
	for i := 0; i < 500; i++ {
		c.Get("f.go", uint64(i))
	}
	<-done
}

// ---------------------------------------------------------------------------
// Index maintenance
// ---------------------------------------------------------------------------

func TestIndex_RemoveFile(t *testing.T) {
	a := result("a.go", parse.LangGo, []parse.Definition{def("Shared", parse.DefFunction)}, nil, nil)
	b := result("b.go", parse.LangGo, []parse.Definition{def("Shared", parse.DefFunction)}, nil, nil)
	idx := NewIndex([]*parse.Result{a, b})

	require.Len(t, idx.Lookup("Shared"), 2)
	idx.RemoveFile("a.go")
	keys := idx.Lookup("Shared")
	require.Len(t, keys, 1)
	assert.Equal(t, "b.go", keys[0].FilePath)
	assert.NotContains(t, idx.Files(), "a.go")
}

func TestImportBinding(t *testing.T) {
	tests := []struct {
		imp  parse.Import
		want string
	}{
		{parse.Import{Source: "net/url", Alias: "urls"}, "urls"},
		{parse.Import{Source: "net/url"}, "url"},
		{parse.Import{Source: "os.path"}, "path"},
		{parse.Import{Source: "crate::db"}, "db"},
		{parse.Import{Source: "fmt"}, "fmt"},
	}
	for _, tt := range tests {
		if got := importBinding(tt.imp); got != tt.want {
			t.Errorf("importBinding(%q alias %q) = %q, want %q", tt.imp.Source, tt.imp.Alias, got, tt.want)
		}
	}
}
