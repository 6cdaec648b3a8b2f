package backend

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/a3tai/pdf-rtl-extract/internal/script"
)

const (
	// minimum vertical overlap, relative to the smaller glyph, for two glyphs to share a line
	lineOverlap = 0.5
	// used when a glyph carries no font size
	defaultGlyphSize = 10.0
)

// Glyph is one positioned character: baseline origin, advance width and font size
type Glyph struct {
	X, Y float64
	W    float64
	Size float64
	S    string
}

type rect struct {
	x0, y0, x1, y1 float64
}

func (r rect) width() float64  { return r.x1 - r.x0 }
func (r rect) height() float64 { return r.y1 - r.y0 }

func (r rect) union(o rect) rect {
	return rect{
		x0: math.Min(r.x0, o.x0),
		y0: math.Min(r.y0, o.y0),
		x1: math.Max(r.x1, o.x1),
		y1: math.Max(r.y1, o.y1),
	}
}

func hOverlap(a, b rect) float64 { return math.Min(a.x1, b.x1) - math.Max(a.x0, b.x0) }
func vOverlap(a, b rect) float64 { return math.Min(a.y1, b.y1) - math.Max(a.y0, b.y0) }
func hDistance(a, b rect) float64 { return math.Max(0, -hOverlap(a, b)) }
func vDistance(a, b rect) float64 { return math.Max(0, -vOverlap(a, b)) }

func (g Glyph) bounds() rect {
	size := g.Size
	if size <= 0 {
		size = defaultGlyphSize
	}
	w := g.W
	if w <= 0 {
		w = size / 2
	}
	return rect{x0: g.X, y0: g.Y - 0.2*size, x1: g.X + w, y1: g.Y + 0.8*size}
}

type lineKind int

const (
	lineSingle lineKind = iota
	lineHorizontal
	lineVertical
)

type textLine struct {
	glyphs []Glyph
	bounds rect
	kind   lineKind
}

func (l *textLine) add(g Glyph) {
	l.glyphs = append(l.glyphs, g)
	l.bounds = l.bounds.union(g.bounds())
}

func (l *textLine) vertical() bool { return l.kind == lineVertical }

// Arrange rebuilds reading-order text from glyphs in content-stream order.
func Arrange(glyphs []Glyph, p LayoutParams) string {
	lines := groupLines(glyphs, p)
	if len(lines) == 0 {
		return ""
	}

	var all strings.Builder
	for _, l := range lines {
		for _, g := range l.glyphs {
			all.WriteString(g.S)
		}
	}
	pageRTL := script.IsRightToLeftDominant(all.String(), script.DefaultThreshold)

	boxes := groupBoxes(lines, p)
	flow := p.BoxesFlow
	key := func(b textBox) float64 {
		x := b.bounds.x0
		if pageRTL {
			x = -b.bounds.x1
		}
		return (1-flow)*x - (1+flow)*(b.bounds.y0+b.bounds.y1)
	}
	sort.SliceStable(boxes, func(i, j int) bool {
		return key(boxes[i]) < key(boxes[j])
	})

	out := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if text := b.text(p); text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n\n")
}

// groupLines chains neighbouring glyphs into horizontal or vertical lines
func groupLines(glyphs []Glyph, p LayoutParams) []*textLine {
	var (
		lines []*textLine
		cur   *textLine
	)

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		gb := g.bounds()

		if cur != nil {
			lb := cur.glyphs[len(cur.glyphs)-1].bounds()
			halign := vOverlap(lb, gb) > math.Min(lb.height(), gb.height())*lineOverlap &&
				hDistance(lb, gb) < math.Max(lb.width(), gb.width())*p.CharMargin
			valign := p.DetectVertical &&
				hOverlap(lb, gb) > math.Min(lb.width(), gb.width())*lineOverlap &&
				vDistance(lb, gb) < math.Max(lb.height(), gb.height())*p.CharMargin

			switch {
			case cur.kind == lineHorizontal && halign,
				cur.kind == lineVertical && valign:
				cur.add(g)
				continue
			case cur.kind == lineSingle && halign:
				cur.kind = lineHorizontal
				cur.add(g)
				continue
			case cur.kind == lineSingle && valign:
				cur.kind = lineVertical
				cur.add(g)
				continue
			}
		}

		cur = &textLine{glyphs: []Glyph{g}, bounds: gb}
		lines = append(lines, cur)
	}

	return lines
}

type textBox struct {
	lines  []*textLine
	bounds rect
}

// groupBoxes merges lines that sit within LineMargin of each other and overlap
// along the other axis.
func groupBoxes(lines []*textLine, p LayoutParams) []textBox {
	parent := make([]int, len(lines))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			if sameBox(lines[i], lines[j], p) {
				parent[find(j)] = find(i)
			}
		}
	}

	index := make(map[int]int)
	var boxes []textBox
	for i, l := range lines {
		root := find(i)
		at, ok := index[root]
		if !ok {
			at = len(boxes)
			index[root] = at
			boxes = append(boxes, textBox{bounds: l.bounds})
		}
		boxes[at].lines = append(boxes[at].lines, l)
		boxes[at].bounds = boxes[at].bounds.union(l.bounds)
	}
	return boxes
}

func sameBox(a, b *textLine, p LayoutParams) bool {
	if a.vertical() != b.vertical() {
		return false
	}
	if a.vertical() {
		margin := p.LineMargin * math.Max(a.bounds.width(), b.bounds.width())
		return hDistance(a.bounds, b.bounds) <= margin && vOverlap(a.bounds, b.bounds) > 0
	}
	margin := p.LineMargin * math.Max(a.bounds.height(), b.bounds.height())
	return vDistance(a.bounds, b.bounds) <= margin && hOverlap(a.bounds, b.bounds) > 0
}

func (b textBox) text(p LayoutParams) string {
	rtl := false
	var all strings.Builder
	for _, l := range b.lines {
		for _, g := range l.glyphs {
			all.WriteString(g.S)
		}
	}
	rtl = isRTLRun(all.String())

	lines := make([]*textLine, len(b.lines))
	copy(lines, b.lines)
	sort.SliceStable(lines, func(i, j int) bool {
		li, lj := lines[i].bounds, lines[j].bounds
		if lines[i].vertical() {
			return li.x1 > lj.x1
		}
		if math.Abs(li.y1-lj.y1) > lineOverlap*math.Min(li.height(), lj.height()) {
			return li.y1 > lj.y1
		}
		if rtl {
			return li.x1 > lj.x1
		}
		return li.x0 < lj.x0
	})

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if text := l.text(p); text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n")
}

func (l *textLine) text(p LayoutParams) string {
	glyphs := make([]Glyph, len(l.glyphs))
	copy(glyphs, l.glyphs)

	var (
		gap  func(a, b rect) float64
		size func(r rect) float64
	)

	if l.vertical() {
		sort.SliceStable(glyphs, func(i, j int) bool {
			return glyphs[i].bounds().y1 > glyphs[j].bounds().y1
		})
		gap, size = vDistance, rect.width
	} else {
		var s strings.Builder
		for _, g := range glyphs {
			s.WriteString(g.S)
		}
		if isRTLRun(s.String()) {
			sort.SliceStable(glyphs, func(i, j int) bool {
				return glyphs[i].bounds().x1 > glyphs[j].bounds().x1
			})
			reverseLeftToRightRuns(glyphs)
		} else {
			sort.SliceStable(glyphs, func(i, j int) bool {
				return glyphs[i].X < glyphs[j].X
			})
		}
		gap, size = hDistance, rect.height
	}

	var b strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev, cur := glyphs[i-1].bounds(), g.bounds()
			if gap(prev, cur) > p.WordMargin*math.Max(size(prev), size(cur)) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return b.String()
}

// isRTLRun reports whether Arabic letters make up at least half the letters of s
func isRTLRun(s string) bool {
	arabic, letters := 0, 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(script.Arabic, r) {
			arabic++
		}
	}
	return arabic > 0 && arabic*2 >= letters
}

func leftToRight(g Glyph) bool {
	for _, r := range g.S {
		return unicode.IsDigit(r) || (unicode.IsLetter(r) && !unicode.Is(script.Arabic, r))
	}
	return false
}

func neutral(g Glyph) bool {
	for _, r := range g.S {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}
	return true
}

// reverseLeftToRightRuns restores the visual order of numbers and Latin words
// embedded in a line that was sorted right to left.
func reverseLeftToRightRuns(glyphs []Glyph) {
	for i := 0; i < len(glyphs); i++ {
		if !leftToRight(glyphs[i]) {
			continue
		}
		end := i
		for j := i + 1; j < len(glyphs); j++ {
			if leftToRight(glyphs[j]) {
				end = j
				continue
			}
			if !neutral(glyphs[j]) {
				break
			}
		}
		for lo, hi := i, end; lo < hi; lo, hi = lo+1, hi-1 {
			glyphs[lo], glyphs[hi] = glyphs[hi], glyphs[lo]
		}
		i = end
	}
}
