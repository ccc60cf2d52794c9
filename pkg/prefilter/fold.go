package prefilter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// foldRune maps r to a canonical representative of its case class.
//
// Two runes that are equal after unicode.ToLower, or after unicode.ToUpper,
// always fold to the same rune. The regex engine compares case-insensitive
// runes that way, so a folded token found in folded content is a sound test
// for a case-insensitive literal.
func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		if 'a' <= r && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}
	r = unicode.ToLower(unicode.ToUpper(r))
	lo := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < lo {
			lo = f
		}
	}
	return lo
}

// foldString folds every rune of s.
func foldString(s string) string {
	return strings.Map(foldRune, s)
}
