package resolve

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/dusk-indust/girder/internal/parse"
)

// Index is the workspace-wide symbol table built from parser output.
type Index struct {
	defsByFile    map[string][]parse.Definition
	defsByName    map[string][]SymbolKey
	importsByFile map[string][]parse.Import
	langByFile    map[string]parse.Language
	files         []string
}

// FileContext bundles everything resolution needs about one file.
type FileContext struct {
	Path     string
	Language parse.Language
	Defs     []parse.Definition
	Imports  []parse.Import
	index    *Index
}

// NewIndex builds the symbol table from a set of parse results.
func NewIndex(results []*parse.Result) *Index {
	idx := &Index{
		defsByFile:    make(map[string][]parse.Definition, len(results)),
		defsByName:    make(map[string][]SymbolKey),
		importsByFile: make(map[string][]parse.Import, len(results)),
		langByFile:    make(map[string]parse.Language, len(results)),
	}
	for _, res := range results {
		idx.AddFile(res)
	}
	return idx
}

// AddFile indexes one parsed file, replacing any prior entry for the
// same path.
func (idx *Index) AddFile(res *parse.Result) {
	if _, seen := idx.defsByFile[res.FilePath]; seen {
		idx.RemoveFile(res.FilePath)
	}
	idx.defsByFile[res.FilePath] = res.Definitions
	idx.importsByFile[res.FilePath] = res.Imports
	idx.langByFile[res.FilePath] = res.Language
	idx.files = append(idx.files, res.FilePath)
	for _, def := range res.Definitions {
		key := SymbolKey{Name: def.Name, FilePath: res.FilePath, Kind: def.Kind}
		idx.defsByName[def.Name] = append(idx.defsByName[def.Name], key)
	}
}

// RemoveFile drops a file and its symbols from the index.
func (idx *Index) RemoveFile(path string) {
	for _, def := range idx.defsByFile[path] {
		keys := idx.defsByName[def.Name]
		kept := keys[:0]
		for _, k := range keys {
			if k.FilePath != path {
				kept = append(kept, k)
			}
		}
		if len(kept) == 0 {
			delete(idx.defsByName, def.Name)
		} else {
			idx.defsByName[def.Name] = kept
		}
	}
	delete(idx.defsByFile, path)
	delete(idx.importsByFile, path)
	delete(idx.langByFile, path)
	for i, f := range idx.files {
		if f == path {
			idx.files = append(idx.files[:i], idx.files[i+1:]...)
			break
		}
	}
}

// Files returns every indexed file path, sorted.
func (idx *Index) Files() []string {
	out := make([]string, len(idx.files))
	copy(out, idx.files)
	sort.Strings(out)
	return out
}

// FileContext returns the resolution context for one file.
func (idx *Index) FileContext(path string) *FileContext {
	return &FileContext{
		Path:     path,
		Language: idx.langByFile[path],
		Defs:     idx.defsByFile[path],
		Imports:  idx.importsByFile[path],
		index:    idx,
	}
}

// Lookup returns every definition with the given name, across files.
func (idx *Index) Lookup(name string) []SymbolKey {
	return idx.defsByName[name]
}

// DefinitionIn reports whether file defines name, returning its key.
func (idx *Index) DefinitionIn(file, name string) (SymbolKey, bool) {
	for _, def := range idx.defsByFile[file] {
		if def.Name == name {
			return SymbolKey{Name: name, FilePath: file, Kind: def.Kind}, true
		}
	}
	return SymbolKey{}, false
}

// MethodOn returns the definition of name whose receiver is recv.
func (idx *Index) MethodOn(recv, name string) (SymbolKey, bool) {
	for _, key := range idx.defsByName[name] {
		for _, def := range idx.defsByFile[key.FilePath] {
			if def.Name == name && def.Receiver == recv {
				return key, true
			}
		}
	}
	return SymbolKey{}, false
}

// importBinding is the local name an import is referred to by:
// the alias when renamed, otherwise the last path segment.
func importBinding(imp parse.Import) string {
	if imp.Alias != "" {
		return imp.Alias
	}
	source := imp.Source
	for _, sep := range []string{"/", "::"} {
		if idx := strings.LastIndex(source, sep); idx >= 0 {
			source = source[idx+len(sep):]
		}
	}
	if idx := strings.LastIndex(source, "."); idx >= 0 {
		source = source[idx+1:]
	}
	return source
}

// sameDir reports whether two files sit in the same directory, the
// "same module" notion shared by all four languages.
func sameDir(a, b string) bool {
	return filepath.Dir(a) == filepath.Dir(b)
}
