// Package format renders ranked ChunkRecords to an output sink. Three
// formatters ship by name — terse (the spec's normative default), verbose,
// and mcp (JSON Lines) — registered in a name -> Formatter map.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/gitctx/gitctx/pkg/models"
)

// Formatter renders search results to w.
type Formatter interface {
	Format(w io.Writer, results []models.ChunkRecord) error
}

// Registry maps a --format flag value to its Formatter.
var Registry = map[string]Formatter{
	"terse":   TerseFormatter{},
	"verbose": VerboseFormatter{},
	"mcp":     MCPFormatter{},
}

// Get looks up a formatter by name, defaulting to terse for an empty name.
func Get(name string) (Formatter, error) {
	if name == "" {
		name = "terse"
	}
	f, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (want terse, verbose, or mcp)", name)
	}
	return f, nil
}

// legacyTerminal reports whether stdout is a terminal that cannot render
// the Unicode HEAD marker, mirroring the original CLI's Rich
// console.legacy_windows check: a real terminal that isn't a modern
// ANSI-capable one. go-isatty's CygwinTerminal check covers the same
// legacy-Windows-console case Rich's legacy_windows flag targets.
func legacyTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsCygwinTerminal(f.Fd()) && !isatty.IsTerminal(f.Fd())
}

func headMarker(w io.Writer, isHead bool) string {
	legacy := legacyTerminal(w)
	switch {
	case isHead && legacy:
		return " [HEAD]"
	case isHead:
		return " ●"
	case legacy:
		return "        "
	default:
		return "   "
	}
}

// firstLineTruncated returns the first line of msg, cropped to n runes.
func firstLineTruncated(msg string, n int) string {
	line := msg
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		line = msg[:i]
	}
	r := []rune(line)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
