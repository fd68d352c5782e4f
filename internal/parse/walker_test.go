package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "api/handler.py", "x = 1\n")
	writeFile(t, root, "web/app.ts", "const x = 1;\n")
	writeFile(t, root, "notes.txt", "not source\n")
	writeFile(t, root, "node_modules/pkg/index.ts", "const y = 2;\n")
	writeFile(t, root, ".hidden/secret.go", "package secret\n")

	paths, err := DiscoverFiles(root)
	require.NoError(t, err)

	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	require.ElementsMatch(t, []string{"main.go", "api/handler.py", "web/app.ts"}, rels)
}

func TestDiscoverFiles_HonorsIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "generated/\n")
	writeFile(t, root, ".girderignore", "legacy.py\n")
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "legacy.py", "x = 1\n")
	writeFile(t, root, "generated/gen.go", "package gen\n")

	paths, err := DiscoverFiles(root)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, "main.go", filepath.Base(paths[0]))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"a/b/main.go", LangGo, true},
		{"script.py", LangPython, true},
		{"types.pyi", LangPython, true},
		{"lib.rs", LangRust, true},
		{"app.ts", LangTypeScript, true},
		{"app.tsx", LangTypeScript, true},
		{"legacy.js", LangTypeScript, true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectLanguage(tt.path)
		if ok != tt.ok || got != tt.want {
			t.Errorf("DetectLanguage(%q) = (%q, %v), want (%q, %v)", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}
