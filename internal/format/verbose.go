package format

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gitctx/gitctx/pkg/models"
)

// VerboseFormatter prints one block per hit with full commit provenance and
// a content snippet. It is a SPEC_FULL.md addition: spec.md only normatively
// defines the terse format, leaving verbose/mcp as supplementary sinks.
type VerboseFormatter struct{}

func (VerboseFormatter) Format(w io.Writer, results []models.ChunkRecord) error {
	for i, r := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		headTag := ""
		if r.Location.IsHead {
			headTag = " [HEAD]"
		}
		date := time.Unix(r.Location.CommitDate, 0).UTC().Format("2006-01-02 15:04:05 MST")
		msg := strings.SplitN(r.Location.CommitMessage, "\n", 2)[0]

		if _, err := fmt.Fprintf(w, "%s:%d-%d (score %.4f)%s\n", r.Location.FilePath, r.StartLine, r.EndLine, r.Distance, headTag); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  commit %s\n", r.Location.CommitSHA); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  author %s <%s>\n", r.Location.AuthorName, r.Location.AuthorEmail); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  date   %s\n", date); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  msg    %s\n", msg); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, "  ---"); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, r.Content); err != nil {
			return err
		}
	}
	return nil
}
