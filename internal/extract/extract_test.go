package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func TestExtractText_PlainText(t *testing.T) {
	dir := t.TempDir()
	content := "First sentence. Second sentence.\n"

	for _, name := range []string{"doc.txt", "notes.md", "readme.markdown"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		got, err := New().ExtractText(path)
		if err != nil {
			t.Fatalf("ExtractText(%s): %v", name, err)
		}
		if got != content {
			t.Errorf("ExtractText(%s) = %q, want %q", name, got, content)
		}
	}
}

func TestExtractText_MissingFile(t *testing.T) {
	_, err := New().ExtractText(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("error = %v, want ErrExtraction", err)
	}
}

func TestExtractText_UnsupportedType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := New().ExtractText(path)
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("error = %v, want ErrExtraction", err)
	}
	var extErr *domain.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatal("error should carry ExtractionError detail")
	}
	if extErr.Path != path {
		t.Errorf("error path = %q, want %q", extErr.Path, path)
	}
}
