// Package status reports a project's graph and batch-session state and
// owns the on-disk batch marker that carries an open window across CLI
// invocations.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dusk-indust/girder/internal/graph"
)

// BatchMarker persists an open batch window under .girder/batch.json.
type BatchMarker struct {
	path string

	OpenedAt  time.Time `json:"openedAt"`
	LastTouch time.Time `json:"lastTouch"`
	Files     []string  `json:"files,omitempty"`

	// Known records the symbols each file had when it first entered the
	// batch, so the closing recheck can tell additions from updates.
	Known map[string][]string `json:"known,omitempty"`
}

func markerPath(root string) string {
	return filepath.Join(root, ".girder", "batch.json")
}

// LoadMarker reads the batch marker under root. A missing file returns
// nil without error: no batch has been started.
func LoadMarker(root string) (*BatchMarker, error) {
	path := markerPath(root)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m := &BatchMarker{path: path}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// StartBatch writes a fresh marker under root, replacing any prior one.
func StartBatch(root string) (*BatchMarker, error) {
	now := time.Now()
	m := &BatchMarker{path: markerPath(root), OpenedAt: now, LastTouch: now}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Expired reports whether the inactivity window has lapsed.
func (m *BatchMarker) Expired(window time.Duration) bool {
	return time.Since(m.LastTouch) > window
}

// Record adds compiled files to the marker and refreshes the window.
// Symbol baselines stick to a file's first appearance: later compiles
// of the same file must not absorb mid-batch additions.
func (m *BatchMarker) Record(files []string, known map[string][]string) error {
	for _, f := range files {
		if !slices.Contains(m.Files, f) {
			m.Files = append(m.Files, f)
		}
	}
	for f, syms := range known {
		if m.Known == nil {
			m.Known = make(map[string][]string)
		}
		if _, seen := m.Known[f]; !seen {
			m.Known[f] = syms
		}
	}
	m.LastTouch = time.Now()
	return m.save()
}

func (m *BatchMarker) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, append(out, '\n'), 0o644)
}

// Remove deletes the marker. Removing an absent marker is not an error.
func (m *BatchMarker) Remove() error {
	err := os.Remove(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ProjectStatus summarizes the committed graph and any open batch.
type ProjectStatus struct {
	GraphPresent bool         `json:"graphPresent"`
	Stats        *graph.Stats `json:"stats,omitempty"`
	Batch        *BatchStatus `json:"batch,omitempty"`
}

// BatchStatus is the marker summary surfaced by the status command.
type BatchStatus struct {
	Open      bool      `json:"open"`
	OpenedAt  time.Time `json:"openedAt"`
	LastTouch time.Time `json:"lastTouch"`
	Files     int       `json:"files"`
}

// Collect gathers store statistics and batch state for root. The window
// decides whether a marker still counts as open.
func Collect(ctx context.Context, root string, store graph.Store, window time.Duration) (*ProjectStatus, error) {
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := &ProjectStatus{GraphPresent: stats.Nodes > 0}
	if out.GraphPresent {
		out.Stats = stats
	}

	marker, err := LoadMarker(root)
	if err != nil {
		return nil, err
	}
	if marker != nil {
		out.Batch = &BatchStatus{
			Open:      !marker.Expired(window),
			OpenedAt:  marker.OpenedAt,
			LastTouch: marker.LastTouch,
			Files:     len(marker.Files),
		}
	}
	return out, nil
}
