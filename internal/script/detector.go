// Package script measures how much of a text is written in Arabic script.
package script

import (
	"unicode"
	"unicode/utf8"
)

// DefaultThreshold is the minimum share of Arabic runes for a text to count as right-to-left.
const DefaultThreshold = 0.1

// Arabic covers the Arabic, Arabic Supplement, Arabic Extended-A and both
// Arabic Presentation Forms blocks.
var Arabic = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06FF, Stride: 1},
		{Lo: 0x0750, Hi: 0x077F, Stride: 1},
		{Lo: 0x08A0, Hi: 0x08FF, Stride: 1},
		{Lo: 0xFB50, Hi: 0xFDFF, Stride: 1},
		{Lo: 0xFE70, Hi: 0xFEFF, Stride: 1},
	},
}

// ArabicBase is the basic Arabic block only.
var ArabicBase = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06FF, Stride: 1},
	},
}

// Detector classifies text blocks by their dominant script
type Detector struct {
	Threshold float64
}

// NewDetector creates a detector; a non-positive threshold selects DefaultThreshold
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold}
}

// IsRightToLeft reports whether text is Arabic-dominant at the detector's threshold
func (d *Detector) IsRightToLeft(text string) bool {
	return IsRightToLeftDominant(text, d.Threshold)
}

// IsRightToLeftDominant reports whether the share of Arabic runes in text is at
// least threshold. Empty text is never right-to-left.
func IsRightToLeftDominant(text string, threshold float64) bool {
	if text == "" {
		return false
	}
	return Ratio(text) >= threshold
}

// Ratio returns the share of runes in text that fall in the Arabic blocks.
func Ratio(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	return float64(Count(text)) / float64(total)
}

// Count returns the number of Arabic runes in text.
func Count(text string) int {
	n := 0
	for _, r := range text {
		if unicode.Is(Arabic, r) {
			n++
		}
	}
	return n
}

// ContainsArabicBase reports whether any rune of text is in U+0600–U+06FF.
func ContainsArabicBase(text string) bool {
	for _, r := range text {
		if unicode.Is(ArabicBase, r) {
			return true
		}
	}
	return false
}
