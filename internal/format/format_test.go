package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gitctx/gitctx/pkg/models"
)

func sampleRecord() models.ChunkRecord {
	return models.ChunkRecord{
		BlobSHA:    "abc123",
		ChunkIndex: 0,
		Content:    "func foo() {}",
		StartLine:  1,
		EndLine:    1,
		Language:   "go",
		Model:      "text-embedding-3-small",
		Distance:   0.0821,
		Location: models.BlobLocation{
			CommitSHA:     "f9e8d7c6b5a4f3e2d1c0b9a8f7e6d5c4b3a2f1e0",
			FilePath:      "src/auth.go",
			AuthorName:    "Alice",
			AuthorEmail:   "alice@example.com",
			CommitDate:    1696204800,
			CommitMessage: "Add OAuth support\n\nLonger body here.",
			IsHead:        true,
		},
	}
}

func TestGet_DefaultsToTerse(t *testing.T) {
	f, err := Get("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.(TerseFormatter); !ok {
		t.Fatalf("expected TerseFormatter, got %T", f)
	}
}

func TestGet_UnknownFormat(t *testing.T) {
	if _, err := Get("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestTerseFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (TerseFormatter{}).Format(&buf, []models.ChunkRecord{sampleRecord()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := buf.String()
	if !strings.HasPrefix(line, "src/auth.go:1:0.08") {
		t.Errorf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "f9e8d7c") {
		t.Errorf("expected short sha, got %q", line)
	}
	if !strings.Contains(line, "2023-10-02") {
		t.Errorf("expected formatted date, got %q", line)
	}
	if !strings.Contains(line, `"Add OAuth support"`) {
		t.Errorf("expected truncated first line of message, got %q", line)
	}
}

func TestTerseFormatter_HeadMarker(t *testing.T) {
	head := sampleRecord()
	notHead := sampleRecord()
	notHead.Location.IsHead = false

	var buf bytes.Buffer
	if err := (TerseFormatter{}).Format(&buf, []models.ChunkRecord{head, notHead}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "●") {
		t.Errorf("expected HEAD bullet marker, got %q", lines[0])
	}
	if strings.Contains(lines[1], "●") {
		t.Errorf("expected no HEAD marker on historic hit, got %q", lines[1])
	}
}

func TestTerseFormatter_MessageTruncatedTo50(t *testing.T) {
	r := sampleRecord()
	r.Location.CommitMessage = strings.Repeat("x", 80)
	var buf bytes.Buffer
	if err := (TerseFormatter{}).Format(&buf, []models.ChunkRecord{r}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), strings.Repeat("x", 60)) {
		t.Errorf("expected message truncated to 50 chars, got %q", buf.String())
	}
}

func TestVerboseFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (VerboseFormatter{}).Format(&buf, []models.ChunkRecord{sampleRecord()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"src/auth.go:1-1", "f9e8d7c6b5a4f3e2d1c0b9a8f7e6d5c4b3a2f1e0", "alice@example.com", "func foo() {}"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestMCPFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (MCPFormatter{}).Format(&buf, []models.ChunkRecord{sampleRecord()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 JSON line, got %d", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec["file_path"] != "src/auth.go" {
		t.Errorf("expected file_path src/auth.go, got %v", rec["file_path"])
	}
	if _, ok := rec["_distance"]; !ok {
		t.Errorf("expected _distance field in JSON output")
	}
}
