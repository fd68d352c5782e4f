//go:build e2e

package e2e

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/girder/internal/export"
)

var update = flag.Bool("update", false, "update golden files")

func goldenPath(name string) string {
	return filepath.Join("..", "..", "testdata", "golden", name)
}

// TestGolden_Diagram maps the fixture project and compares the Mermaid
// module diagram against the golden file. Node IDs are assigned in
// sorted file and name order, so the output is deterministic.
func TestGolden_Diagram(t *testing.T) {
	root := copyFixture(t)
	dbPath := filepath.Join(t.TempDir(), "graph.db")
	ctx, store, p := openWorkspace(t, root, dbPath)

	_, err := p.MapAll(ctx, false)
	require.NoError(t, err)

	diagram, err := export.GenerateMermaid(ctx, store)
	require.NoError(t, err)

	path := goldenPath("diagram.mmd")
	if *update {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(diagram), 0o644))
	}

	golden, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Skipf("golden file %s missing; run with -update to create it", path)
	}
	require.NoError(t, err)
	assert.Equal(t, string(golden), diagram)
}
