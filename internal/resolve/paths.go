package resolve

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dusk-indust/girder/internal/parse"
)

// PathResolver rewrites import specifiers into workspace-relative file
// paths matching indexed files. It is built once per resolution pass
// with the known file set and any workspace metadata found at the root
// (package.json workspaces, go.mod module path).
type PathResolver struct {
	root     string
	fileSet  map[string]bool
	dirIndex map[string][]string
	packages map[string]*npmPackage
	goModule string
}

// npmPackage holds metadata about one npm workspace package.
type npmPackage struct {
	dir     string            // workspace-relative directory
	main    string            // default export target
	exports map[string]string // "./sub" -> resolved file
}

// NewPathResolver scans root for workspace metadata and indexes the
// known files for extension probing.
func NewPathResolver(root string, knownFiles []string) *PathResolver {
	p := &PathResolver{
		root:     root,
		fileSet:  make(map[string]bool, len(knownFiles)),
		dirIndex: make(map[string][]string),
		packages: make(map[string]*npmPackage),
	}
	for _, f := range knownFiles {
		p.fileSet[f] = true
		dir := filepath.Dir(f)
		p.dirIndex[dir] = append(p.dirIndex[dir], f)
	}
	p.scanNpmWorkspaces()
	p.scanGoModule()
	return p
}

// Resolve maps one import to a workspace file. False means the import
// points outside the workspace (stdlib, external package, or unknown).
func (p *PathResolver) Resolve(lang parse.Language, imp parse.Import, fromFile string) (string, bool) {
	switch lang {
	case parse.LangGo:
		return p.resolveGo(imp.Source)
	case parse.LangPython:
		return p.resolvePython(imp.Source, fromFile)
	case parse.LangTypeScript:
		return p.resolveTS(imp.Source, fromFile)
	case parse.LangRust:
		return p.resolveRust(imp.Source, fromFile)
	}
	return "", false
}

// --- Go ---

func (p *PathResolver) resolveGo(importPath string) (string, bool) {
	if p.goModule == "" || !strings.HasPrefix(importPath, p.goModule) {
		return "", false
	}
	relDir := strings.TrimPrefix(strings.TrimPrefix(importPath, p.goModule), "/")
	if relDir == "" {
		relDir = "."
	}

	files := append([]string(nil), p.dirIndex[relDir]...)
	sort.Strings(files)
	for _, f := range files {
		if strings.HasSuffix(f, ".go") && !strings.HasSuffix(f, "_test.go") {
			return f, true
		}
	}
	return "", false
}

// --- Python ---

func (p *PathResolver) resolvePython(importPath, fromFile string) (string, bool) {
	if !strings.HasPrefix(importPath, ".") {
		// Absolute imports may still target the workspace root package.
		rel := strings.ReplaceAll(importPath, ".", "/")
		return p.probe(rel, []string{".py", "/__init__.py"})
	}

	dots := 0
	for _, c := range importPath {
		if c != '.' {
			break
		}
		dots++
	}
	baseDir := filepath.Dir(fromFile)
	for i := 1; i < dots; i++ {
		baseDir = filepath.Dir(baseDir)
	}

	modulePart := importPath[dots:]
	if modulePart == "" {
		return p.probe(filepath.Join(baseDir, "__init__"), []string{".py"})
	}
	rel := strings.ReplaceAll(modulePart, ".", "/")
	return p.probe(filepath.Join(baseDir, rel), []string{".py", "/__init__.py"})
}

// --- TypeScript ---

var tsProbeExtensions = []string{".ts", ".tsx", ".js", ".jsx", "/index.ts", "/index.tsx", "/index.js"}

func (p *PathResolver) resolveTS(importPath, fromFile string) (string, bool) {
	if strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		base := filepath.Clean(filepath.Join(filepath.Dir(fromFile), importPath))
		return p.probe(base, tsProbeExtensions)
	}
	return p.resolveNpmPackage(importPath)
}

func (p *PathResolver) resolveNpmPackage(importPath string) (string, bool) {
	if pkg, ok := p.packages[importPath]; ok {
		if pkg.main != "" {
			return pkg.main, true
		}
		return "", false
	}

	// Split "pkg/sub/path" (or "@scope/pkg/sub") into package + subpath.
	name, subpath, ok := splitNpmSpecifier(importPath)
	if !ok {
		return "", false
	}
	pkg, ok := p.packages[name]
	if !ok {
		return "", false
	}
	if target, ok := pkg.exports["./"+subpath]; ok {
		return target, true
	}
	return p.probe(filepath.Join(pkg.dir, subpath), tsProbeExtensions)
}

func splitNpmSpecifier(importPath string) (name, subpath string, ok bool) {
	rest := importPath
	prefixLen := 0
	if strings.HasPrefix(importPath, "@") {
		slash := strings.Index(importPath, "/")
		if slash < 0 {
			return "", "", false
		}
		prefixLen = slash + 1
		rest = importPath[prefixLen:]
	}
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return "", "", false
	}
	return importPath[:prefixLen+slash], rest[slash+1:], true
}

// --- Rust ---

func (p *PathResolver) resolveRust(importPath, fromFile string) (string, bool) {
	rel := func(path string) string { return strings.ReplaceAll(path, "::", "/") }

	switch {
	case importPath == "crate" || strings.HasPrefix(importPath, "crate::"):
		modulePath := strings.TrimPrefix(strings.TrimPrefix(importPath, "crate"), "::")
		if modulePath == "" {
			return p.probe(filepath.Join(crateRoot(fromFile), "lib"), []string{".rs"})
		}
		candidates := []string{filepath.Join("src", rel(modulePath)), rel(modulePath)}
		if root := crateRoot(fromFile); root != "" {
			candidates = append(candidates, filepath.Join(root, rel(modulePath)))
		}
		for _, base := range candidates {
			if resolved, ok := p.probe(base, []string{".rs", "/mod.rs"}); ok {
				return resolved, true
			}
		}
		return "", false

	case strings.HasPrefix(importPath, "self::"):
		base := filepath.Join(filepath.Dir(fromFile), rel(strings.TrimPrefix(importPath, "self::")))
		return p.probe(base, []string{".rs", "/mod.rs"})

	case strings.HasPrefix(importPath, "super::"):
		base := filepath.Join(filepath.Dir(filepath.Dir(fromFile)), rel(strings.TrimPrefix(importPath, "super::")))
		return p.probe(base, []string{".rs", "/mod.rs"})
	}
	return "", false
}

// crateRoot walks up from a file to the nearest src directory.
func crateRoot(filePath string) string {
	dir := filepath.Dir(filePath)
	for dir != "." && dir != "/" && dir != "" {
		if filepath.Base(dir) == "src" {
			return dir
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

// --- Shared ---

// probe checks base (plus candidate extensions) against the known file
// set. No filesystem I/O.
func (p *PathResolver) probe(base string, extensions []string) (string, bool) {
	if p.fileSet[base] {
		return base, true
	}
	for _, ext := range extensions {
		if candidate := base + ext; p.fileSet[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// --- Workspace metadata scanning ---

type packageJSON struct {
	Name       string          `json:"name"`
	Main       string          `json:"main"`
	Workspaces json.RawMessage `json:"workspaces"`
	Exports    json.RawMessage `json:"exports"`
}

func (p *PathResolver) scanNpmWorkspaces() {
	data, err := os.ReadFile(filepath.Join(p.root, "package.json"))
	if err != nil {
		return
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return
	}

	patterns := workspacePatterns(pkg.Workspaces)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(p.root, pattern))
		if err != nil {
			continue
		}
		for _, dir := range matches {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				p.loadNpmPackage(dir)
			}
		}
	}
}

// workspacePatterns reads the workspaces field, which is either an
// array of globs or an object with a packages key.
func workspacePatterns(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

func (p *PathResolver) loadNpmPackage(absDir string) {
	data, err := os.ReadFile(filepath.Join(absDir, "package.json"))
	if err != nil {
		return
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" {
		return
	}
	relDir, err := filepath.Rel(p.root, absDir)
	if err != nil {
		return
	}

	entry := &npmPackage{dir: relDir, exports: make(map[string]string)}
	p.loadExports(entry, pkg.Exports)

	if entry.main == "" && pkg.Main != "" {
		if resolved, ok := p.probe(filepath.Clean(filepath.Join(relDir, pkg.Main)), tsProbeExtensions); ok {
			entry.main = resolved
		}
	}
	if entry.main == "" {
		for _, try := range []string{filepath.Join(relDir, "src", "index"), filepath.Join(relDir, "index")} {
			if resolved, ok := p.probe(try, tsProbeExtensions); ok {
				entry.main = resolved
				break
			}
		}
	}
	p.packages[pkg.Name] = entry
}

func (p *PathResolver) loadExports(entry *npmPackage, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if resolved, ok := p.probe(filepath.Clean(filepath.Join(entry.dir, str)), tsProbeExtensions); ok {
			entry.main = resolved
		}
		return
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return
	}
	for key, val := range obj {
		target := exportTarget(val)
		if target == "" {
			continue
		}
		resolved, ok := p.probe(filepath.Clean(filepath.Join(entry.dir, target)), tsProbeExtensions)
		if !ok {
			continue
		}
		if key == "." {
			entry.main = resolved
		} else {
			entry.exports[key] = resolved
		}
	}
}

// exportTarget extracts a path from an export value, which may be a
// string or a conditional object keyed by import/default/require.
func exportTarget(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"import", "default", "require"} {
		if v, ok := obj[key]; ok {
			return exportTarget(v)
		}
	}
	return ""
}

func (p *PathResolver) scanGoModule() {
	f, err := os.Open(filepath.Join(p.root, "go.mod"))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") {
			p.goModule = strings.TrimSpace(strings.TrimPrefix(line, "module"))
			return
		}
	}
}
