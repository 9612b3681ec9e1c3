package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var pronounIPattern = regexp.MustCompile(`\bi\b`)

// capitalizeSentences uppercases sentence-initial letters and the standalone
// pronoun "i". Decimal points and single-letter initialisms do not count as
// sentence boundaries.
func capitalizeSentences(text string) string {
	runes := []rune(text)

	var out strings.Builder
	out.Grow(len(text))

	capitalizeNext := true
	for i, r := range runes {
		if capitalizeNext && unicode.IsLetter(r) {
			r = unicode.ToUpper(r)
			capitalizeNext = false
		}
		out.WriteRune(r)

		switch r {
		case '.':
			if isBoundaryPeriod(runes, i) {
				capitalizeNext = true
			}
		case '!', '?':
			capitalizeNext = true
		}
	}

	return pronounIPattern.ReplaceAllString(out.String(), "I")
}

// isBoundaryPeriod reports whether the period at idx ends a sentence.
func isBoundaryPeriod(runes []rune, idx int) bool {
	// "3.14" keeps its decimal point.
	if idx > 0 && idx+1 < len(runes) && unicode.IsDigit(runes[idx-1]) && unicode.IsDigit(runes[idx+1]) {
		return false
	}
	// "e.g." style single-letter abbreviations are not boundaries.
	if idx > 1 && unicode.IsLetter(runes[idx-1]) && !unicode.IsLetter(runes[idx-2]) {
		return false
	}
	return true
}
