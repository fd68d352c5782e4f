package parse

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// skipDirs are directory names never worth descending into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
}

// DiscoverFiles walks root and returns every supported source file,
// honoring .gitignore and .girderignore patterns at the root.
func DiscoverFiles(root string) ([]string, error) {
	matchers := loadIgnoreFiles(root)

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			for _, m := range matchers {
				if m.MatchesPath(rel + "/") {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if _, ok := DetectLanguage(path); !ok {
			return nil
		}
		for _, m := range matchers {
			if m.MatchesPath(rel) {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

func loadIgnoreFiles(root string) []*ignore.GitIgnore {
	var matchers []*ignore.GitIgnore
	for _, name := range []string{".gitignore", ".girderignore"} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if m, err := ignore.CompileIgnoreFile(path); err == nil {
			matchers = append(matchers, m)
		}
	}
	return matchers
}
