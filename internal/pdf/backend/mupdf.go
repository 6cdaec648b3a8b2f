//go:build cgo

package backend

import (
	"context"
	"fmt"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// MuPDF extracts text page by page through the MuPDF library
type MuPDF struct {
	logger *zap.Logger
}

func newMuPDF(logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MuPDF{logger: logger}, nil
}

// Method returns MethodMuPDF
func (m *MuPDF) Method() Method {
	return MethodMuPDF
}

// Library returns the display name used in error messages
func (m *MuPDF) Library() string {
	return LibraryMuPDF
}

// Extract opens the document and concatenates every page in reading order,
// separating pages with a blank line.
func (m *MuPDF) Extract(ctx context.Context, path string) (text string, err error) {
	defer recoverAsError(&err, MethodMuPDF, LibraryMuPDF)

	doc, err := fitz.New(path)
	if err != nil {
		return "", m.fail("open", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	m.logger.Debug("document opened", zap.String("method", string(MethodMuPDF)), zap.Int("pages", pages))

	var builder strings.Builder
	for n := 0; n < pages; n++ {
		if err := ctx.Err(); err != nil {
			return "", m.fail("extract", err)
		}

		pageText, err := m.page(doc, n)
		if err != nil {
			return "", m.fail(fmt.Sprintf("page %d", n+1), err)
		}

		builder.WriteString(pageText)
		builder.WriteString("\n\n")
		m.logger.Debug("page processed",
			zap.String("method", string(MethodMuPDF)),
			zap.Int("page", n+1),
			zap.Int("chars", len([]rune(pageText))))
	}

	return strings.TrimSpace(builder.String()), nil
}

// page prefers the positioned HTML rendition so fragments can be sorted; plain
// text is used when the markup carries no positioned lines.
func (m *MuPDF) page(doc *fitz.Document, n int) (string, error) {
	markup, err := doc.HTML(n, false)
	if err == nil {
		if text := ReadingOrder(markup); text != "" {
			return text, nil
		}
	} else {
		m.logger.Debug("html rendition failed, using plain text", zap.Int("page", n+1), zap.Error(err))
	}
	return doc.Text(n)
}

func (m *MuPDF) fail(op string, err error) error {
	return &BackendError{Method: MethodMuPDF, Library: LibraryMuPDF, Op: op, Err: err}
}
