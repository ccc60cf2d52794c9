package prefilter

import "regexp"

// MaxComplexity is the ceiling of the complexity score.
const MaxComplexity = 100

var (
	metaChars    = regexp.MustCompile(`[\\^$*+?{}\[\]().|]`)
	quantifiers  = regexp.MustCompile(`[?*+{]`)
	groupOpeners = regexp.MustCompile(`\(`)
	charClasses  = regexp.MustCompile(`\[.*?\]`)
	alternations = regexp.MustCompile(`\|`)
)

// complexityScore rates a pattern source from 0 to MaxComplexity by counting
// metacharacters, quantifiers, groups, character classes and alternations.
// The score is diagnostic only and never changes what matches.
func complexityScore(pattern string) int {
	count := func(re *regexp.Regexp) int {
		return len(re.FindAllStringIndex(pattern, -1))
	}
	score := count(metaChars)*2 +
		count(quantifiers)*3 +
		count(groupOpeners)*2 +
		count(charClasses)*3 +
		count(alternations)*5
	if score > MaxComplexity {
		score = MaxComplexity
	}
	return score
}
