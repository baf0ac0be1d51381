package textutil

import (
	"strings"
	"unicode/utf8"

	"github.com/xrash/smetrics"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Similarity scores how alike a and b are, from 0 (nothing shared) to 1
// (identical). It is the edit distance between the case- and width-folded
// strings, relative to the length of the longer one:
//
//	(len(longer) - distance) / len(longer)
//
// Lengths count characters, not bytes.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	a, b = fold(a), fold(b)
	longer, shorter := a, b
	if utf8.RuneCountInString(b) > utf8.RuneCountInString(a) {
		longer, shorter = b, a
	}
	n := utf8.RuneCountInString(longer)
	if n == 0 {
		return 1
	}
	return float64(n-EditDistance(longer, shorter)) / float64(n)
}

// EditDistance returns the Levenshtein distance between a and b in
// characters.
func EditDistance(a, b string) int {
	ea, eb, ok := byteAlphabet(a, b)
	if !ok {
		// too many distinct characters to remap; fall back to bytes
		ea, eb = a, b
	}
	return smetrics.WagnerFischer(ea, eb, 1, 1, 1)
}

// fold normalizes composition, full-width forms and case.
func fold(s string) string {
	return strings.ToLower(width.Fold.String(norm.NFC.String(s)))
}

// byteAlphabet rewrites a and b so that each distinct rune becomes one
// byte. smetrics compares bytes; the remap makes its distance count
// characters. It fails when the strings use more than 256 distinct runes.
func byteAlphabet(a, b string) (string, string, bool) {
	codes := make(map[rune]byte)
	encode := func(s string) (string, bool) {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			c, ok := codes[r]
			if !ok {
				if len(codes) == 256 {
					return "", false
				}
				c = byte(len(codes))
				codes[r] = c
			}
			out = append(out, c)
		}
		return string(out), true
	}

	ea, ok := encode(a)
	if !ok {
		return "", "", false
	}
	eb, ok := encode(b)
	if !ok {
		return "", "", false
	}
	return ea, eb, true
}
