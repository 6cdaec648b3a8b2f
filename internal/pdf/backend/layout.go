package backend

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// LayoutParams tunes glyph grouping. Margins are relative to glyph or line size.
type LayoutParams struct {
	// CharMargin is the largest gap, relative to glyph size, between glyphs of one line
	CharMargin float64
	// LineMargin is the largest gap, relative to line height, between lines of one box
	LineMargin float64
	// WordMargin is the smallest gap, relative to glyph size, that separates words
	WordMargin float64
	// BoxesFlow weighs horizontal (-1) against vertical (+1) position when ordering boxes
	BoxesFlow float64
	// DetectVertical enables grouping of vertically stacked glyphs
	DetectVertical bool
}

// DefaultLayoutParams returns the permissive settings used for Arabic documents
func DefaultLayoutParams() LayoutParams {
	return LayoutParams{
		CharMargin:     1.0,
		LineMargin:     0.5,
		WordMargin:     0.1,
		BoxesFlow:      0.5,
		DetectVertical: true,
	}
}

// Layout rebuilds text from glyph positions reported by ledongthuc/pdf
type Layout struct {
	params LayoutParams
	logger *zap.Logger
}

// NewLayout creates a layout backend
func NewLayout(params LayoutParams, logger *zap.Logger) *Layout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Layout{params: params, logger: logger}
}

// Method returns MethodLayout
func (l *Layout) Method() Method {
	return MethodLayout
}

// Library returns the display name used in error messages
func (l *Layout) Library() string {
	return LibraryLayout
}

// Extract opens the file and runs ExtractDocument over it
func (l *Layout) Extract(_ context.Context, path string) (text string, err error) {
	defer recoverAsError(&err, MethodLayout, LibraryLayout)

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", &BackendError{Method: MethodLayout, Library: LibraryLayout, Op: "open", Err: err}
	}
	defer f.Close()

	return l.ExtractDocument(reader), nil
}

// ExtractDocument arranges the glyphs of the whole document in one pass.
// Pages are separated by a form feed.
func (l *Layout) ExtractDocument(reader *pdf.Reader) string {
	pages := make([]string, 0, reader.NumPage())
	for n := 1; n <= reader.NumPage(); n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}

		glyphs := glyphsFromContent(page.Content().Text)
		text := Arrange(glyphs, l.params)
		pages = append(pages, text)

		l.logger.Debug("page processed",
			zap.String("method", string(MethodLayout)),
			zap.Int("page", n),
			zap.Int("glyphs", len(glyphs)),
			zap.Int("chars", len([]rune(text))))
	}
	return strings.TrimSpace(strings.Join(pages, "\n\f"))
}

func glyphsFromContent(texts []pdf.Text) []Glyph {
	glyphs := make([]Glyph, 0, len(texts))
	for _, t := range texts {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}
	return glyphs
}
