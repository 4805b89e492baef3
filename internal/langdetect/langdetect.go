// Package langdetect maps file extensions to a language name, used by the
// indexer to label each chunk's language, which the store writes to the
// language column. The chunker's splitting does not depend on it. It is deliberately a flat lookup table, not a structural
// parser; spec non-goals keep semantic code structure out of scope.
package langdetect

import (
	"path/filepath"
	"strings"
)

// extensionToLanguage mirrors the original project's language-detection
// test table, including its documented ambiguity: ".h" defaults to "cpp"
// even though plenty of ".h" files are plain C.
var extensionToLanguage = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "cpp",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".html":  "html",
	".css":   "css",
	".lua":   "lua",
	".pl":    "perl",
	".r":     "r",
}

// Detect returns the language associated with path's extension, or "" when
// the extension is unknown.
func Detect(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return extensionToLanguage[ext]
}
