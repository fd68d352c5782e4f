package mcptools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/girder/internal/config"
	"github.com/dusk-indust/girder/internal/enforce"
	"github.com/dusk-indust/girder/internal/graph"
	"github.com/dusk-indust/girder/internal/pipeline"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const toolAuthSource = `def login(username: str, password: str) -> bool:
    """Check credentials."""
    return True
`

const toolViewsSource = `from auth import login


def handle_login(request: dict) -> bool:
    """Handle the login form."""
    return login("u", "p")
`

// newTestService builds a service over a small two-file Python workspace
// with the full graph already mapped.
func newTestService(t *testing.T) (context.Context, string, *GirderService) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.py"), []byte(toolAuthSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "views.py"), []byte(toolViewsSource), 0o644))

	ctx := context.Background()
	store := graph.NewMemStore()
	p, err := pipeline.New(ctx, root, store, config.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Close()
		store.Close()
	})

	svc := NewGirderService(p)
	_, out, err := svc.Map(ctx, nil, MapInput{})
	require.NoError(t, err)
	require.Equal(t, 2, out.Result.FilesAnalyzed)
	return ctx, root, svc
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCompile_RequiresPaths(t *testing.T) {
	ctx, _, svc := newTestService(t)

	_, _, err := svc.Compile(ctx, nil, CompileInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paths is required")
}

func TestCompile_ReportsBrokenCaller(t *testing.T) {
	ctx, root, svc := newTestService(t)

	changed := `def login(username: str, password: str, otp: str) -> bool:
    """Check credentials."""
    return True
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.py"), []byte(changed), 0o644))

	_, out, err := svc.Compile(ctx, nil, CompileInput{Paths: []string{"auth.py"}})
	require.NoError(t, err)
	require.Len(t, out.Result.Errors, 1)
	assert.Equal(t, enforce.CodeBrokenCaller, out.Result.Errors[0].Code)
}

func TestCompile_OneShotSuppression(t *testing.T) {
	ctx, root, svc := newTestService(t)

	// Public function without a docstring triggers E003 unless suppressed.
	bare := `def logout(session: dict) -> None:
    session.clear()
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "session.py"), []byte(bare), 0o644))

	_, out, err := svc.Compile(ctx, nil, CompileInput{
		Paths:          []string{"session.py"},
		SuppressCode:   enforce.CodeMissingDocstring,
		SuppressReason: "generated stub",
	})
	require.NoError(t, err)
	assert.Empty(t, out.Result.Errors)
	assert.Empty(t, out.Result.Warnings)
	require.Len(t, out.Result.Info, 1)
	assert.Equal(t, enforce.CodeSuppressed, out.Result.Info[0].Code)
	assert.True(t, out.Result.Info[0].Suppressed)
}

func TestDiscover_FindsByName(t *testing.T) {
	ctx, _, svc := newTestService(t)

	_, out, err := svc.Discover(ctx, nil, DiscoverInput{Query: "login"})
	require.NoError(t, err)
	assert.Equal(t, "login", out.Result.Target.Name)
	require.Len(t, out.Result.Upstream, 1)
	assert.Equal(t, "handle_login", out.Result.Upstream[0].Node.Name)
}

func TestDiscover_RequiresQuery(t *testing.T) {
	ctx, _, svc := newTestService(t)

	_, _, err := svc.Discover(ctx, nil, DiscoverInput{})
	require.Error(t, err)
}

func TestWhere_ResolvesHash(t *testing.T) {
	ctx, _, svc := newTestService(t)

	_, out, err := svc.Discover(ctx, nil, DiscoverInput{Query: "login"})
	require.NoError(t, err)

	_, where, err := svc.Where(ctx, nil, WhereInput{Hash: out.Result.Target.Hash})
	require.NoError(t, err)
	assert.False(t, where.Result.Stale)
	assert.Equal(t, "auth.py", where.Result.File)
}

func TestExplain_UnknownViolation(t *testing.T) {
	ctx, _, svc := newTestService(t)

	_, _, err := svc.Explain(ctx, nil, ExplainInput{Code: "E001", Hash: "aaaaaaaaaaa"})
	require.Error(t, err)
}
