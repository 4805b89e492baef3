package format

import (
	"encoding/json"
	"io"

	"github.com/gitctx/gitctx/pkg/models"
)

// MCPFormatter prints one JSON object per line (JSON Lines), each holding a
// ChunkRecord's chunk and location fields plus its distance (the row id and
// vector are not included), for machine consumption by an MCP-style
// client. This is the payload spec.md's `--format mcp` flag names but does
// not define.
type MCPFormatter struct{}

type mcpRecord struct {
	BlobSHA       string  `json:"blob_sha"`
	ChunkIndex    int     `json:"chunk_index"`
	Content       string  `json:"content"`
	StartLine     int     `json:"start_line"`
	EndLine       int     `json:"end_line"`
	Language      string  `json:"language"`
	Model         string  `json:"model"`
	Distance      float64 `json:"_distance"`
	FilePath      string  `json:"file_path"`
	CommitSHA     string  `json:"commit_sha"`
	AuthorName    string  `json:"author_name"`
	AuthorEmail   string  `json:"author_email"`
	CommitDate    int64   `json:"commit_date"`
	CommitMessage string  `json:"commit_message"`
	IsHead        bool    `json:"is_head"`
	IsMerge       bool    `json:"is_merge"`
}

func (MCPFormatter) Format(w io.Writer, results []models.ChunkRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		rec := mcpRecord{
			BlobSHA:       r.BlobSHA,
			ChunkIndex:    r.ChunkIndex,
			Content:       r.Content,
			StartLine:     r.StartLine,
			EndLine:       r.EndLine,
			Language:      r.Language,
			Model:         r.Model,
			Distance:      r.Distance,
			FilePath:      r.Location.FilePath,
			CommitSHA:     r.Location.CommitSHA,
			AuthorName:    r.Location.AuthorName,
			AuthorEmail:   r.Location.AuthorEmail,
			CommitDate:    r.Location.CommitDate,
			CommitMessage: r.Location.CommitMessage,
			IsHead:        r.Location.IsHead,
			IsMerge:       r.Location.IsMerge,
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
