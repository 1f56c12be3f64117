package pdfpage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

// Extractor reads local knowledge-base files page by page. PDF pagination is
// preserved so chunk provenance can carry a page number; plain-text formats
// are treated as a single unpaginated page.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]domain.SourcePage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		return extractPlain(path)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages",
			fmt.Errorf("unsupported file format: %s", filepath.Ext(path)))
	}
}

func extractPDF(path string) ([]domain.SourcePage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages := make([]domain.SourcePage, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, domain.SourcePage{Number: i, Text: text})
	}
	return pages, nil
}

func extractPlain(path string) ([]domain.SourcePage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	return []domain.SourcePage{{Number: 0, Text: text}}, nil
}
