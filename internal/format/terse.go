package format

import (
	"fmt"
	"io"
	"time"

	"github.com/gitctx/gitctx/pkg/models"
)

// TerseFormatter prints one line per hit, the spec's normative default:
//
//	{file_path}:{start_line}:{score:.2f} {head_marker} {sha[:7]} ({YYYY-MM-DD}, {author}) "{msg_first_line[:50]}"
type TerseFormatter struct{}

func (TerseFormatter) Format(w io.Writer, results []models.ChunkRecord) error {
	for _, r := range results {
		marker := headMarker(w, r.Location.IsHead)
		sha := r.Location.CommitSHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		date := time.Unix(r.Location.CommitDate, 0).UTC().Format("2006-01-02")
		msg := firstLineTruncated(r.Location.CommitMessage, 50)

		if _, err := fmt.Fprintf(w, "%s:%d:%.2f%s %s (%s, %s) %q\n",
			r.Location.FilePath, r.StartLine, r.Distance, marker, sha, date, r.Location.AuthorName, msg,
		); err != nil {
			return err
		}
	}
	return nil
}
