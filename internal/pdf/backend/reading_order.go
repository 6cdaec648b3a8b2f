package backend

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/a3tai/pdf-rtl-extract/internal/script"
)

// positionedLine is one <p> of MuPDF's structured-text HTML
type positionedLine struct {
	top    float64
	left   float64
	height float64
	text   string
}

// ReadingOrder turns MuPDF page HTML into plain text sorted top to bottom.
// Fragments sharing a row are ordered left to right, or right to left when the
// row is Arabic-dominant. Returns "" when the markup has no positioned lines.
func ReadingOrder(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	lines := collectLines(doc)
	if len(lines) == 0 {
		return ""
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].top < lines[j].top
	})

	var rows [][]positionedLine
	for _, line := range lines {
		if n := len(rows); n > 0 && sameRow(rows[n-1][0], line) {
			rows[n-1] = append(rows[n-1], line)
			continue
		}
		rows = append(rows, []positionedLine{line})
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, joinRow(row))
	}
	return strings.Join(out, "\n")
}

func sameRow(first, line positionedLine) bool {
	tolerance := first.height / 2
	if tolerance <= 0 {
		tolerance = 1
	}
	return line.top-first.top <= tolerance
}

func joinRow(row []positionedLine) string {
	var all strings.Builder
	for _, l := range row {
		all.WriteString(l.text)
	}
	rtl := script.Ratio(strings.Join(strings.Fields(all.String()), "")) >= 0.5

	sort.SliceStable(row, func(i, j int) bool {
		if rtl {
			return row[i].left > row[j].left
		}
		return row[i].left < row[j].left
	})

	parts := make([]string, 0, len(row))
	for _, l := range row {
		parts = append(parts, l.text)
	}
	return strings.Join(parts, " ")
}

func collectLines(root *html.Node) []positionedLine {
	var (
		lines []positionedLine
		last  positionedLine
		walk  func(*html.Node)
	)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			line := last
			line.text = strings.TrimSpace(nodeText(n))
			if top, left, height, ok := parsePosition(attr(n, "style")); ok {
				line.top, line.left, line.height = top, left, height
			}
			if line.text != "" {
				lines = append(lines, line)
				last = line
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return lines
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// parsePosition reads top, left and line-height (in pt) from an inline style
func parsePosition(style string) (top, left, height float64, ok bool) {
	var haveTop, haveLeft bool
	for _, decl := range strings.Split(style, ";") {
		key, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "pt"), 64)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(key) {
		case "top":
			top, haveTop = v, true
		case "left":
			left, haveLeft = v, true
		case "line-height":
			height = v
		}
	}
	return top, left, height, haveTop && haveLeft
}
