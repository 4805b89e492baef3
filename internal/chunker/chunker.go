// Package chunker splits blob content into token-bounded CodeChunks. It
// prefers to break at top-level declaration boundaries, then blank-line
// paragraphs, then newlines, tracking line offsets through every split. It
// does not split by character windows: a single segment longer than the
// token budget is truncated to the budget, and the rest of that segment is
// not chunked.
package chunker

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/gitctx/gitctx/pkg/models"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// topLevelDecl matches a line that looks like the start of a top-level
// declaration in one of the languages gitctx chunks by structure. It is a
// light heuristic, not a parser.
var topLevelDecl = regexp.MustCompile(`^(func |type |class |def |public |private |protected |fn |impl )`)

// Chunker splits blob content into CodeChunks no larger than MaxTokens.
// Overlap is the number of tokens repeated between consecutive chunks;
// ChunkFile caps it at 10% of MaxTokens without changing the field.
type Chunker struct {
	MaxTokens int
	Overlap   int
}

// New returns a Chunker with the given token budget and no overlap.
func New(maxTokens int) *Chunker {
	return &Chunker{MaxTokens: maxTokens}
}

// CountTokens returns the cl100k_base token count for text.
func CountTokens(text string) int {
	e, err := encoding()
	if err != nil {
		// Fall back to a conservative estimate rather than fail the whole
		// pipeline on a tokenizer load error.
		return len(text) / 4
	}
	return len(e.Encode(text, nil, nil))
}

// ChunkFile splits content into CodeChunks. Binary content (content that is
// not valid UTF-8) yields zero chunks. Empty content yields zero chunks.
func (c *Chunker) ChunkFile(blobSHA string, content []byte, language string) ([]models.CodeChunk, error) {
	if len(content) == 0 {
		return nil, nil
	}
	if !utf8.Valid(content) {
		return nil, nil
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	overlap := c.Overlap
	if overlap > maxTokens/10 {
		overlap = maxTokens / 10
	}

	e, err := encoding()
	if err != nil {
		return nil, err
	}

	text := string(content)
	segments := splitIntoSegments(text, language)

	var chunks []models.CodeChunk
	cur := strings.Builder{}
	curTokens := 0
	curStartLine := 1
	line := 1

	flush := func(endLine int) {
		if cur.Len() == 0 {
			return
		}
		chunks = append(chunks, models.CodeChunk{
			BlobSHA:    blobSHA,
			ChunkIndex: len(chunks),
			Content:    cur.String(),
			StartLine:  curStartLine,
			EndLine:    endLine,
			Language:   language,
			TokenCount: curTokens,
		})
		cur.Reset()
		curTokens = 0
	}

	for _, seg := range segments {
		segLines := strings.Count(seg, "\n")
		segTokens := len(e.Encode(seg, nil, nil))

		if curTokens > 0 && curTokens+segTokens > maxTokens {
			flush(line - 1)
			curStartLine = line
			if overlap > 0 && len(chunks) > 0 && overlap+segTokens <= maxTokens {
				tail := tokenTail(e, chunks[len(chunks)-1].Content, overlap)
				cur.WriteString(tail)
				curTokens = len(e.Encode(tail, nil, nil))
				curStartLine = line - strings.Count(tail, "\n")
			}
		}

		if segTokens > maxTokens {
			// Oversize single segment: truncate at the nearest token
			// boundary rather than emit an unbounded chunk.
			truncated := truncateToTokens(e, seg, maxTokens)
			flush(line - 1)
			chunks = append(chunks, models.CodeChunk{
				BlobSHA:    blobSHA,
				ChunkIndex: len(chunks),
				Content:    truncated,
				StartLine:  line,
				EndLine:    line + strings.Count(truncated, "\n"),
				Language:   language,
				TokenCount: len(e.Encode(truncated, nil, nil)),
			})
			curStartLine = line + segLines
			line += segLines
			continue
		}

		cur.WriteString(seg)
		curTokens += segTokens
		line += segLines
	}
	if strings.HasSuffix(text, "\n") {
		flush(line - 1)
	} else {
		flush(line) // the last line has no newline, so segLines did not count it
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks, nil
}

// splitIntoSegments breaks text into pieces along the preferred boundary
// hierarchy: top-level declarations first, falling back to blank-line
// paragraphs, then newlines, then the whole text as one segment.
func splitIntoSegments(text, language string) []string {
	lines := strings.SplitAfter(text, "\n")

	var segments []string
	var cur strings.Builder
	for _, l := range lines {
		trimmed := strings.TrimRight(l, "\n")
		if topLevelDecl.MatchString(trimmed) && cur.Len() > 0 {
			segments = append(segments, cur.String())
			cur.Reset()
		}
		cur.WriteString(l)
	}
	if cur.Len() > 0 {
		segments = append(segments, cur.String())
	}
	if len(segments) > 1 {
		return segments
	}

	// No declaration boundaries found; fall back to blank-line paragraphs.
	paras := strings.SplitAfter(text, "\n\n")
	if len(paras) > 1 {
		return paras
	}

	// Fall back to individual lines.
	if len(lines) > 1 {
		return lines
	}

	return []string{text}
}

func tokenTail(e *tiktoken.Tiktoken, text string, overlapTokens int) string {
	toks := e.Encode(text, nil, nil)
	if len(toks) <= overlapTokens {
		return text
	}
	return e.Decode(toks[len(toks)-overlapTokens:])
}

func truncateToTokens(e *tiktoken.Tiktoken, text string, maxTokens int) string {
	toks := e.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return e.Decode(toks[:maxTokens])
}
