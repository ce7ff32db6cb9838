// Package extract turns source files into plain text for chunking.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Processor extracts raw text from supported file types.
// Failures surface as domain.ExtractionError and are never retried here.
type Processor struct{}

// New creates a document processor.
func New() *Processor { return &Processor{} }

// ExtractText reads the file at path and returns its plain-text content.
// Supported: .txt, .md, .markdown (read as UTF-8) and .pdf.
func (p *Processor) ExtractText(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", domain.NewExtractionError(path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", domain.NewExtractionError(path, err)
		}
		return string(data), nil
	case ".pdf":
		return extractPDF(path)
	default:
		return "", domain.NewExtractionError(path, fmt.Errorf("unsupported file type %q", ext))
	}
}

func extractPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", domain.NewExtractionError(path, fmt.Errorf("open pdf: %w", err))
	}
	defer f.Close()

	r, err := rdr.GetPlainText()
	if err != nil {
		return "", domain.NewExtractionError(path, fmt.Errorf("read pdf text: %w", err))
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", domain.NewExtractionError(path, fmt.Errorf("read pdf text: %w", err))
	}
	return buf.String(), nil
}
