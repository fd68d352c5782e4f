package parse

import (
	"path/filepath"
	"strings"
)

// Language identifies a supported programming language.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangTypeScript Language = "typescript"
)

// Languages lists every language with full support.
var Languages = []Language{LangGo, LangPython, LangRust, LangTypeScript}

// DetectLanguage maps a file path to its language by extension. The second
// return is false for unsupported files.
func DetectLanguage(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LangGo, true
	case ".py", ".pyi":
		return LangPython, true
	case ".rs":
		return LangRust, true
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return LangTypeScript, true
	default:
		return "", false
	}
}
