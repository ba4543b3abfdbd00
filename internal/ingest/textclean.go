package ingest

import (
	"strings"
	"unicode"
)

// CleanText normalizes extracted text: control characters are dropped
// (newline and tab survive as whitespace) and runs of whitespace collapse
// to a single space. The result is what gets chunked and indexed, so all
// chunk offsets are relative to it.
func CleanText(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true // trims leading whitespace
	for _, r := range s {
		switch {
		case r == '�':
			// Replacement runes from broken decoders carry no content.
			continue
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// TextDensity returns the fraction of runes that are readable content:
// letters (Hangul, Latin, CJK, anything unicode considers a letter) or
// digits. Scanned PDFs that yield mojibake or whitespace-only output score
// low and trigger the OCR fallback.
func TextDensity(s string) float64 {
	if s == "" {
		return 0
	}

	total := 0
	good := 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			good++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}
