package pipeline

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
)

const authSource = `def login(username: str, password: str) -> bool:
    """Check credentials."""
    return _check(username, password)


def _check(username: str, password: str) -> bool:
    return True
`

const viewsSource = `from auth import login


def render_form() -> str:
    """Render the login form."""
    return "<form/>"


def handle_login(request: dict) -> bool:
    """Handle the login form."""
    render_form()
    return login("u", "p")
`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.py"), []byte(authSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "views.py"), []byte(viewsSource), 0o644))
	return root
}

func newPipeline(t *testing.T, root string) (context.Context, *graph.MemStore, *Pipeline) {
	t.Helper()
	ctx := context.Background()
	store := graph.NewMemStore()
	p, err := New(ctx, root, store, config.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Close()
		store.Close()
	})
	return ctx, store, p
}

func TestMapAll_BuildsWholeGraph(t *testing.T) {
	root := writeWorkspace(t)
	ctx, store, p := newPipeline(t, root)

	result, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesAnalyzed)
	assert.Equal(t, 6, result.NodesTotal, "two modules plus four functions")
	assert.Equal(t, 2, result.ModulesTotal)
	// three contains, three calls, one module import, one contains for
	// each function
	assert.Equal(t, 8, result.EdgesTotal)
	assert.Equal(t, 6, result.NodesAdded)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Skipped)
	require.NotNil(t, result.Coverage)
	assert.InDelta(t, 1.0, result.Coverage.TypeHintRatio, 1e-9)
	assert.InDelta(t, 1.0, result.Coverage.DocstringRatio, 1e-9)
	assert.NotEmpty(t, result.Hotspots)

	// The cross-file call edge carries tier-1 provenance.
	nodes, err := store.GetNodesInFile(ctx, "auth.py")
	require.NoError(t, err)
	var login *graph.GraphNode
	for i := range nodes {
		if nodes[i].Name == "login" {
			login = &nodes[i]
		}
	}
	require.NotNil(t, login)
	edges, err := store.GetEdges(ctx, login.ID, graph.DirectionIncoming)
	require.NoError(t, err)
	var call *graph.GraphEdge
	for i := range edges {
		if edges[i].Kind == graph.EdgeKindCalls {
			call = &edges[i]
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, "views.py", call.FilePath)
	assert.Equal(t, "tier1_imports", call.Tier)
	assert.InDelta(t, 0.80, call.Confidence, 1e-9)
}

func TestMapAll_IsIdempotent(t *testing.T) {
	root := writeWorkspace(t)
	ctx, _, p := newPipeline(t, root)

	first, err := p.MapAll(ctx, false)
	require.NoError(t, err)
	second, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, first.NodesTotal, second.NodesTotal)
	assert.Equal(t, first.EdgesTotal, second.EdgesTotal)
	assert.Zero(t, second.NodesAdded)
	assert.Zero(t, second.NodesChanged)
	assert.Zero(t, second.NodesRemoved)
}

func TestMapAll_SyntaxErrorIsLocal(t *testing.T) {
	root := writeWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.py"), []byte("def broken(:\n"), 0o644))
	ctx, _, p := newPipeline(t, root)

	result, err := p.MapAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "broken.py", result.Skipped[0].Path)
	assert.Equal(t, 6, result.NodesTotal, "the healthy files still map")
}

func TestCompile_SignatureChangeBreaksCaller(t *testing.T) {
	root := writeWorkspace(t)
	ctx, _, p := newPipeline(t, root)
	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	changed := `def login(username: str, password: str, otp: str) -> bool:
    """Check credentials."""
    return _check(username, password)


def _check(username: str, password: str) -> bool:
    return True
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.py"), []byte(changed), 0o644))

	result, err := p.Compile(ctx, []string{"auth.py"}, false)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)

	v := result.Errors[0]
	assert.Equal(t, enforce.CodeBrokenCaller, v.Code)
	assert.Equal(t, enforce.SeverityError, v.Severity)
	require.Len(t, v.Affected, 1)
	assert.Equal(t, "handle_login", v.Affected[0].Name)
	assert.Equal(t, "views.py", v.Affected[0].File)
	require.NotNil(t, result.Counts)
	assert.Equal(t, 1, result.Counts.HashesChanged)

	// The change still committed: the caller can now be fixed.
	fixed := `from auth import login


def render_form() -> str:
    """Render the login form."""
    return "<form/>"


def handle_login(request: dict) -> bool:
    """Handle the login form."""
    render_form()
    return login("u", "p", "123456")
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "views.py"), []byte(fixed), 0o644))
	followup, err := p.Compile(ctx, []string{"views.py"}, false)
	require.NoError(t, err)
	assert.Equal(t, "ok", followup.Status)
	assert.Empty(t, followup.Errors)
}

func TestCompile_NewFileLandsModuleAndEdgesTogether(t *testing.T) {
	root := writeWorkspace(t)
	ctx, store, p := newPipeline(t, root)
	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	billing := `def charge(amount: int) -> bool:
    """Charge the amount."""
    return True
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "billing.py"), []byte(billing), 0o644))
	result, err := p.Compile(ctx, []string{"billing.py"}, false)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	nodes, err := store.GetNodesInFile(ctx, "billing.py")
	require.NoError(t, err)
	var module, charge *graph.GraphNode
	for i := range nodes {
		if nodes[i].Kind == graph.NodeKindModule {
			module = &nodes[i]
		} else {
			charge = &nodes[i]
		}
	}
	require.NotNil(t, module)
	require.NotNil(t, charge)
	assert.Equal(t, module.ID, charge.ModuleID, "definition binds to the module created in the same compile")

	edges, err := store.GetEdges(ctx, module.ID, graph.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.EdgeKindContains, edges[0].Kind)
	assert.Equal(t, charge.ID, edges[0].TargetID)
}

func TestCompile_ReformatIsClean(t *testing.T) {
	root := writeWorkspace(t)
	ctx, _, p := newPipeline(t, root)
	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	reformatted := `def login(username: str,
          password: str) -> bool:
    """Check credentials."""
    return _check(username,
                  password)


def _check(username: str, password: str) -> bool:
    return True
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.py"), []byte(reformatted), 0o644))

	result, err := p.Compile(ctx, []string{"auth.py"}, false)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Empty(t, result.Errors)
	assert.Nil(t, result.Counts, "no hash movement on pure reformatting")
}

func TestCompile_DeletedFileFlagsLiveCallers(t *testing.T) {
	root := writeWorkspace(t)
	ctx, _, p := newPipeline(t, root)
	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "auth.py")))
	result, err := p.Compile(ctx, []string{"auth.py"}, false)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1, "only the function with surviving callers fires")
	v := result.Errors[0]
	assert.Equal(t, enforce.CodeFunctionRemoved, v.Code)
	assert.Contains(t, v.Message, "login")
	require.Len(t, v.Affected, 1)
	assert.Equal(t, "handle_login", v.Affected[0].Name)
}

func TestCompile_ArityMismatchAtCallSite(t *testing.T) {
	root := writeWorkspace(t)
	ctx, _, p := newPipeline(t, root)
	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	overSupplied := `from auth import login


def render_form() -> str:
    """Render the login form."""
    return "<form/>"


def handle_login(request: dict) -> bool:
    """Handle the login form."""
    render_form()
    return login("u", "p", "extra")
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "views.py"), []byte(overSupplied), 0o644))

	result, err := p.Compile(ctx, []string{"views.py"}, false)
	require.NoError(t, err)

	v := result.Errors[0]
	assert.Equal(t, enforce.CodeArityMismatch, v.Code)
	assert.Equal(t, "views.py", v.File)
	assert.Contains(t, v.Message, "3 argument(s)")
}

func TestCompile_SyntaxErrorSkipsFile(t *testing.T) {
	root := writeWorkspace(t)
	ctx, _, p := newPipeline(t, root)
	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.py"), []byte("def login(:\n"), 0o644))
	result, err := p.Compile(ctx, []string{"auth.py"}, false)
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "auth.py", result.Skipped[0].Path)
	assert.Empty(t, result.Errors, "a syntax error never cascades into graph errors")
}

func TestRecheck_SurfacesInWindowAdditionsAtFlush(t *testing.T) {
	root := writeWorkspace(t)
	ctx, store, p := newPipeline(t, root)
	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	// The baseline is captured when the file enters the window.
	baseline, err := p.FileSymbols(ctx, []string{"views.py"})
	require.NoError(t, err)

	p.Engine().OpenBatch()
	withDuplicate := viewsSource + `

def login(who: str) -> bool:
    """Shadows the auth entry point."""
    return True
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "views.py"), []byte(withDuplicate), 0o644))
	mid, err := p.Compile(ctx, []string{"views.py"}, false)
	require.NoError(t, err)
	for _, v := range mid.Warnings {
		assert.NotEqual(t, enforce.CodeDuplicateName, v.Code, "deferred while the window is open")
	}

	// The flush happens in a later invocation: a fresh pipeline over the
	// same store, with only the recorded baseline to classify against.
	p2, err := New(ctx, root, store, config.Default(), nil)
	require.NoError(t, err)
	defer p2.Close()
	flush, err := p2.Recheck(ctx, []string{"views.py"}, baseline, false)
	require.NoError(t, err)

	var dup *enforce.Violation
	for i := range flush.Warnings {
		if flush.Warnings[i].Code == enforce.CodeDuplicateName {
			dup = &flush.Warnings[i]
		}
	}
	require.NotNil(t, dup, "the symbol added inside the window fires at the flush")
	assert.Contains(t, dup.Message, "login")
}

func TestMapAll_HonorsCancellation(t *testing.T) {
	root := writeWorkspace(t)
	ctx, store, p := newPipeline(t, root)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := p.MapAll(canceled, false)
	require.Error(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Nodes, "a canceled rebuild never half-commits")
}

func TestWhere_TracksHashAcrossEdit(t *testing.T) {
	root := writeWorkspace(t)
	ctx, store, p := newPipeline(t, root)
	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	nodes, err := store.GetNodesInFile(ctx, "auth.py")
	require.NoError(t, err)
	var oldHash string
	for _, n := range nodes {
		if n.Name == "login" {
			oldHash = n.Hash
		}
	}
	require.NotEmpty(t, oldHash)

	changed := `def login(username: str, password: str, otp: str) -> bool:
    """Check credentials."""
    return _check(username, password)


def _check(username: str, password: str) -> bool:
    return True
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.py"), []byte(changed), 0o644))
	_, err = p.Compile(ctx, []string{"auth.py"}, false)
	require.NoError(t, err)

	where, err := p.Engine().Where(ctx, oldHash)
	require.NoError(t, err)
	assert.True(t, where.Stale)
	assert.NotEmpty(t, where.CurrentHash)
	assert.Equal(t, "auth.py", where.File)
}
