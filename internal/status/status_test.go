package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/girder/internal/graph"
)

func TestBatchMarker_Lifecycle(t *testing.T) {
	root := t.TempDir()

	m, err := LoadMarker(root)
	require.NoError(t, err)
	assert.Nil(t, m, "no marker before a batch starts")

	m, err = StartBatch(root)
	require.NoError(t, err)
	require.NoError(t, m.Record([]string{"a.py", "b.py"}, map[string][]string{
		"a.py": {"function:login"},
		"b.py": {},
	}))
	require.NoError(t, m.Record([]string{"b.py", "c.py"}, map[string][]string{
		"b.py": {"function:late_arrival"},
		"c.py": {"function:render"},
	}))

	loaded, err := LoadMarker(root)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, loaded.Files)
	assert.Equal(t, []string{"function:login"}, loaded.Known["a.py"])
	assert.Empty(t, loaded.Known["b.py"], "the first-compile baseline sticks")
	assert.Equal(t, []string{"function:render"}, loaded.Known["c.py"])
	assert.False(t, loaded.Expired(time.Minute))
	assert.True(t, loaded.Expired(0))

	require.NoError(t, loaded.Remove())
	m, err = LoadMarker(root)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCollect_EmptyProject(t *testing.T) {
	root := t.TempDir()
	store := graph.NewMemStore()
	defer store.Close()

	st, err := Collect(context.Background(), root, store, time.Minute)
	require.NoError(t, err)
	assert.False(t, st.GraphPresent)
	assert.Nil(t, st.Stats)
	assert.Nil(t, st.Batch)
}

func TestCollect_WithGraphAndBatch(t *testing.T) {
	root := t.TempDir()
	store := graph.NewMemStore()
	defer store.Close()

	ctx := context.Background()
	nodes := []graph.GraphNode{
		{ID: 1, Hash: "modmain0001", Kind: graph.NodeKindModule, Name: "main.py", Signature: "module main.py", FilePath: "main.py", LineStart: 1, LineEnd: 1},
		{ID: 2, Hash: "fnmain00001", Kind: graph.NodeKindFunction, Name: "main", Signature: "def main()", FilePath: "main.py", LineStart: 1, LineEnd: 2, ModuleID: 1},
	}
	edges := []graph.GraphEdge{
		{ID: 1, SourceID: 1, TargetID: 2, Kind: graph.EdgeKindContains, FilePath: "main.py", Confidence: 1.0},
	}
	_, err := store.ReplaceAll(ctx, nodes, edges)
	require.NoError(t, err)

	m, err := StartBatch(root)
	require.NoError(t, err)
	require.NoError(t, m.Record([]string{"main.py"}, nil))

	st, err := Collect(ctx, root, store, time.Minute)
	require.NoError(t, err)
	assert.True(t, st.GraphPresent)
	require.NotNil(t, st.Stats)
	assert.Equal(t, 2, st.Stats.Nodes)
	require.NotNil(t, st.Batch)
	assert.True(t, st.Batch.Open)
	assert.Equal(t, 1, st.Batch.Files)
}
