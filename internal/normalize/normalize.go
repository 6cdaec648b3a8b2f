// Package normalize repairs bidirectional text artifacts in extracted Arabic text.
package normalize

import (
	"regexp"
	"strings"

	"github.com/a3tai/pdf-rtl-extract/internal/script"
)

const (
	// RLM is the right-to-left mark.
	RLM = "\u200F"
	// LRM is the left-to-right mark.
	LRM = "\u200E"
)

var (
	// spaces immediately before : . ، ؟
	spaceBeforePunct = regexp.MustCompile(` +([:.،؟])`)

	spaceAfterPunct = strings.NewReplacer(
		".", ". ",
		"،", "، ",
		":", ": ",
		"؟", "؟ ",
	)

	compactDrop = strings.NewReplacer(
		"•", "",
		"?", "",
		"\uFFFD", "",
	)
)

// RightToLeft applies the full RTL repair: a leading RLM for the text, an RLM
// on every non-empty line, LRM removal, Arabic punctuation spacing and space
// collapsing. Applying it to its own output returns the output unchanged.
func RightToLeft(text string) string {
	if text == "" {
		return text
	}
	if !strings.HasPrefix(text, RLM) {
		text = RLM + text
	}
	text = MarkLines(text)
	text = FixPunctuation(text)
	return CollapseSpaces(text)
}

// MarkLines prefixes every non-empty line lacking one with an RLM and strips
// all LRM characters.
func MarkLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" && !strings.HasPrefix(line, RLM) {
			line = RLM + line
		}
		lines[i] = strings.ReplaceAll(line, LRM, "")
	}
	return strings.Join(lines, "\n")
}

// FixPunctuation removes spaces before : . ، ؟ and then puts a space after
// each of them. Removal must run first or existing spaces would double.
func FixPunctuation(text string) string {
	if text == "" {
		return text
	}
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return spaceAfterPunct.Replace(text)
}

// CollapseSpaces reduces every run of spaces to a single space.
func CollapseSpaces(text string) string {
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return text
}

// Clean strips null bytes, collapses all whitespace (newlines included) to
// single spaces and trims the result.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.Join(strings.Fields(text), " ")
}

// Compact prepares text for plain display: whitespace collapsed, bullets and
// unknown-glyph markers dropped, an RLM in front when basic Arabic is present.
func Compact(text string) string {
	text = Clean(text)
	text = compactDrop.Replace(text)
	text = strings.TrimSpace(CollapseSpaces(text))
	if text != "" && script.ContainsArabicBase(text) && !strings.HasPrefix(text, RLM) {
		text = RLM + text
	}
	return text
}
