// Package pdftest writes small, well-formed PDF files for tests. Text is set in
// Courier with WinAnsi encoding, so only Latin-1 characters render; anything
// else is drawn as '?'. Courier is monospaced, which keeps the declared widths
// identical to the glyphs MuPDF substitutes for the standard font.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Line is one run of text drawn at a baseline origin
type Line struct {
	X, Y float64
	Size float64
	Text string
}

// Page is the content of a single US Letter page
type Page struct {
	Lines  []Line
	Images int
}

// Text returns a page with one 12pt line per string, starting near the top margin
func Text(lines ...string) Page {
	var p Page
	for i, s := range lines {
		p.Lines = append(p.Lines, Line{X: 72, Y: 720 - float64(i)*18, Size: 12, Text: s})
	}
	return p
}

// Bytes renders the pages as a complete PDF with a valid cross-reference table
func Bytes(pages ...Page) []byte {
	if len(pages) == 0 {
		pages = []Page{{}}
	}

	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("") // patched once the page tree exists
	tree := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding " +
		"/FirstChar 32 /LastChar 255 /Widths [" + widths() + "] >>")

	var kids []string
	for _, p := range pages {
		var xobjects []string
		var content strings.Builder
		for i := 0; i < p.Images; i++ {
			img := add(stream("/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8", "\x80"))
			name := fmt.Sprintf("Im%d", i+1)
			xobjects = append(xobjects, fmt.Sprintf("/%s %d 0 R", name, img))
			fmt.Fprintf(&content, "q 100 0 0 100 72 %d cm /%s Do Q\n", 100+i*110, name)
		}
		for _, l := range p.Lines {
			size := l.Size
			if size <= 0 {
				size = 12
			}
			fmt.Fprintf(&content, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", size, l.X, l.Y, escape(l.Text))
		}

		contents := add(stream("", content.String()))
		resources := fmt.Sprintf("/Font << /F1 %d 0 R >>", font)
		if len(xobjects) > 0 {
			resources += " /XObject << " + strings.Join(xobjects, " ") + " >>"
		}
		page := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << %s >> /Contents %d 0 R >>",
			tree, resources, contents))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}

	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree)
	objects[tree-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)

	return buf.Bytes()
}

// Write stores a generated PDF under dir and returns its path
func Write(t testing.TB, dir, name string, pages ...Page) string {
	t.Helper()
	return WriteRaw(t, dir, name, Bytes(pages...))
}

// WriteRaw stores arbitrary bytes, e.g. a file that only pretends to be a PDF
func WriteRaw(t testing.TB, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func stream(dict, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", strings.TrimSpace(dict), len(data), data)
}

// GlyphWidth is the advance of every Courier glyph in text space units
const GlyphWidth = 600

func widths() string {
	w := make([]string, 0, 224)
	for c := 32; c <= 255; c++ {
		w = append(w, fmt.Sprint(GlyphWidth))
	}
	return strings.Join(w, " ")
}

// escape writes s as the body of a PDF literal string in WinAnsi bytes
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '(' || r == ')':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x80:
			b.WriteRune(r)
		case r >= 0xA0 && r <= 0xFF:
			fmt.Fprintf(&b, "\\%03o", r)
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
