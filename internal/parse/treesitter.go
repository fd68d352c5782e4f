package parse

import (
	"context"
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/dusk-indust/girder/internal/graph"
)

// extractor walks a parsed syntax tree and produces structural facts.
// One implementation per language, registered in NewTreeSitterParser.
type extractor interface {
	Extract(root *tree_sitter.Node, source []byte, filePath string) ([]Definition, []Reference, []Import)
}

// Edit describes a byte-range replacement in a previously parsed file,
// used for incremental re-parsing.
type Edit struct {
	StartByte      uint
	OldEndByte     uint
	NewEndByte     uint
	StartPosition  tree_sitter.Point
	OldEndPosition tree_sitter.Point
	NewEndPosition tree_sitter.Point
}

// TreeSitterParser implements Parser with one grammar and extractor per
// language. Full-file parses create a fresh tree-sitter parser per call,
// so they are safe to run in parallel across files. Cached trees for
// incremental re-parsing are guarded by a mutex.
type TreeSitterParser struct {
	languages  map[Language]*tree_sitter.Language
	extractors map[Language]extractor

	mu    sync.Mutex
	trees map[string]*cachedTree
}

type cachedTree struct {
	tree   *tree_sitter.Tree
	source []byte
	lang   Language
}

// NewTreeSitterParser creates a parser with Go, Python, Rust, and
// TypeScript grammars registered.
func NewTreeSitterParser() *TreeSitterParser {
	return &TreeSitterParser{
		languages: map[Language]*tree_sitter.Language{
			LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
			LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		},
		extractors: map[Language]extractor{
			LangGo:         &goExtractor{},
			LangPython:     &pyExtractor{},
			LangRust:       &rsExtractor{},
			LangTypeScript: &tsExtractor{},
		},
		trees: make(map[string]*cachedTree),
	}
}

// Parse extracts definitions, references, and imports from one file.
func (p *TreeSitterParser) Parse(_ context.Context, path string, source []byte) (*Result, error) {
	lang, ok := DetectLanguage(path)
	if !ok {
		return nil, fmt.Errorf("unsupported file: %s", path)
	}
	tree, err := p.parseTree(path, source, lang, nil)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if prior, ok := p.trees[path]; ok {
		prior.tree.Close()
	}
	p.trees[path] = &cachedTree{tree: tree, source: source, lang: lang}
	p.mu.Unlock()

	return p.extract(tree, source, path, lang)
}

// Reparse applies an edit to a previously parsed file and re-parses
// incrementally, reusing the unchanged portions of the old tree. Falls
// back to a full parse when the file has no cached tree. The cached
// tree is held under the lock from edit through swap; a failed
// re-parse drops it, since a tree that already carries the edit cannot
// serve a later incremental pass.
func (p *TreeSitterParser) Reparse(ctx context.Context, path string, newSource []byte, edit Edit) (*Result, error) {
	p.mu.Lock()
	cached, ok := p.trees[path]
	if !ok {
		p.mu.Unlock()
		return p.Parse(ctx, path, newSource)
	}

	cached.tree.Edit(&tree_sitter.InputEdit{
		StartByte:      edit.StartByte,
		OldEndByte:     edit.OldEndByte,
		NewEndByte:     edit.NewEndByte,
		StartPosition:  edit.StartPosition,
		OldEndPosition: edit.OldEndPosition,
		NewEndPosition: edit.NewEndPosition,
	})

	tree, err := p.parseTree(path, newSource, cached.lang, cached.tree)
	if err != nil {
		delete(p.trees, path)
		cached.tree.Close()
		p.mu.Unlock()
		return nil, err
	}
	cached.tree.Close()
	p.trees[path] = &cachedTree{tree: tree, source: newSource, lang: cached.lang}
	lang := cached.lang
	p.mu.Unlock()

	return p.extract(tree, newSource, path, lang)
}

// ParseChanged re-parses a file whose content moved, deriving the edit
// from the cached source so tree-sitter can reuse unchanged subtrees.
// Files without a cached tree get a full parse.
func (p *TreeSitterParser) ParseChanged(ctx context.Context, path string, newSource []byte) (*Result, error) {
	p.mu.Lock()
	cached, ok := p.trees[path]
	var oldSource []byte
	if ok {
		oldSource = cached.source
	}
	p.mu.Unlock()
	if !ok {
		return p.Parse(ctx, path, newSource)
	}
	return p.Reparse(ctx, path, newSource, computeEdit(oldSource, newSource))
}

// computeEdit reduces the difference between two sources to one
// replaced byte range via their common prefix and suffix.
func computeEdit(oldSource, newSource []byte) Edit {
	prefix := 0
	for prefix < len(oldSource) && prefix < len(newSource) && oldSource[prefix] == newSource[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldSource)-prefix && suffix < len(newSource)-prefix &&
		oldSource[len(oldSource)-1-suffix] == newSource[len(newSource)-1-suffix] {
		suffix++
	}
	oldEnd := len(oldSource) - suffix
	newEnd := len(newSource) - suffix
	return Edit{
		StartByte:      uint(prefix),
		OldEndByte:     uint(oldEnd),
		NewEndByte:     uint(newEnd),
		StartPosition:  pointAt(oldSource, prefix),
		OldEndPosition: pointAt(oldSource, oldEnd),
		NewEndPosition: pointAt(newSource, newEnd),
	}
}

// pointAt converts a byte offset into a tree-sitter row/column point.
func pointAt(source []byte, offset int) tree_sitter.Point {
	var row, lineStart int
	for i := 0; i < offset && i < len(source); i++ {
		if source[i] == '\n' {
			row++
			lineStart = i + 1
		}
	}
	return tree_sitter.Point{Row: uint(row), Column: uint(offset - lineStart)}
}

func (p *TreeSitterParser) parseTree(path string, source []byte, lang Language, old *tree_sitter.Tree) (*tree_sitter.Tree, error) {
	tsLang, ok := p.languages[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, old)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	root := tree.RootNode()
	if root.HasError() {
		tree.Close()
		return nil, fmt.Errorf("syntax error in %s", path)
	}
	return tree, nil
}

func (p *TreeSitterParser) extract(tree *tree_sitter.Tree, source []byte, path string, lang Language) (*Result, error) {
	ext, ok := p.extractors[lang]
	if !ok {
		return nil, fmt.Errorf("no extractor for language: %s", lang)
	}
	defs, refs, imports := ext.Extract(tree.RootNode(), source, path)
	return &Result{
		FilePath:    path,
		Language:    lang,
		ContentHash: graph.ContentHash64(source),
		Definitions: defs,
		References:  refs,
		Imports:     imports,
	}, nil
}

// SupportedLanguages returns the languages this parser can handle.
func (p *TreeSitterParser) SupportedLanguages() []Language {
	langs := make([]Language, 0, len(p.languages))
	for l := range p.languages {
		langs = append(langs, l)
	}
	return langs
}

// Close releases all cached trees.
func (p *TreeSitterParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.trees {
		c.tree.Close()
	}
	p.trees = make(map[string]*cachedTree)
	return nil
}
