package prefilter

import "strings"

// OptimizeOptions selects optional rewrites.
type OptimizeOptions struct {
	// CollapseGroups rewrites non-capturing groups "(?:" into capturing
	// groups "(". Every later capture group shifts its index, so consumers
	// that read groups by number break. Patterns with numbered
	// backreferences (\1 to \9) are left alone, since the shift would
	// change what they match.
	CollapseGroups bool
}

// shorthandQuantifiers maps brace quantifiers to their shorthand.
var shorthandQuantifiers = map[string]string{
	"{0,1}": "?",
	"{0,}":  "*",
	"{1,}":  "+",
}

// OptimizePattern applies semantics-preserving rewrites to a JavaScript
// regex source:
//
//	[0-9]  -> \d
//	{0,1}  -> ?
//	{0,}   -> *
//	{1,}   -> +
//
// Escapes and character-class contents are never rewritten, and a brace
// quantifier is only shortened when it follows something quantifiable.
// The \d rewrite assumes ECMAScript semantics where \d is exactly [0-9].
func OptimizePattern(pattern string, opts OptimizeOptions) string {
	collapse := opts.CollapseGroups && !hasNumberedBackref(pattern)

	var b strings.Builder
	b.Grow(len(pattern))

	// quantifiable is true when the previous token can take a quantifier.
	quantifiable := false

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == '\\':
			end := i + 2
			if end > len(pattern) {
				end = len(pattern)
			}
			esc := pattern[i:end]
			b.WriteString(esc)
			quantifiable = esc != `\b` && esc != `\B`
			i = end

		case c == '[':
			if strings.HasPrefix(pattern[i:], "[0-9]") {
				b.WriteString(`\d`)
				i += len("[0-9]")
			} else {
				end := classEnd(pattern, i)
				b.WriteString(pattern[i:end])
				i = end
			}
			quantifiable = true

		case c == '{':
			n := braceQuantifierLen(pattern[i:])
			if n == 0 {
				// a lone brace is a literal
				b.WriteByte(c)
				quantifiable = true
				i++
				break
			}
			q := pattern[i : i+n]
			if short, ok := shorthandQuantifiers[q]; ok && quantifiable {
				q = short
			}
			b.WriteString(q)
			quantifiable = false
			i += n

		case c == '(':
			n := groupHeaderLen(pattern[i:])
			if collapse && strings.HasPrefix(pattern[i:], "(?:") {
				b.WriteByte('(')
			} else {
				b.WriteString(pattern[i : i+n])
			}
			quantifiable = false
			i += n

		case c == '*' || c == '+' || c == '?' || c == '|' || c == '^' || c == '$':
			b.WriteByte(c)
			quantifiable = false
			i++

		default:
			// literals, '.', ')' and '}' end a quantifiable atom
			b.WriteByte(c)
			quantifiable = true
			i++
		}
	}
	return b.String()
}

func hasNumberedBackref(pattern string) bool {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] != '\\' {
			continue
		}
		if c := pattern[i+1]; '1' <= c && c <= '9' {
			return true
		}
		i++
	}
	return false
}

// braceQuantifierLen returns the length of a leading {n}, {n,} or {n,m},
// or 0 when s does not start with one.
func braceQuantifierLen(s string) int {
	end := strings.IndexByte(s, '}')
	if end < 2 {
		return 0
	}
	lo, hi, hasComma := strings.Cut(s[1:end], ",")
	if lo == "" || !allDigits(lo) {
		return 0
	}
	if hasComma && !allDigits(hi) {
		return 0
	}
	return end + 1
}

// groupHeaderLen returns the length of a group opener: "(", "(?:", "(?=",
// "(?!", "(?<=", "(?<!" or "(?<name>".
func groupHeaderLen(s string) int {
	if len(s) < 3 || s[1] != '?' {
		return 1
	}
	switch s[2] {
	case ':', '=', '!':
		return 3
	case '<':
		if len(s) > 3 && (s[3] == '=' || s[3] == '!') {
			return 4
		}
		if end := strings.IndexByte(s, '>'); end > 0 {
			return end + 1
		}
	}
	return 2
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// classEnd returns the index just past the character class starting at
// start. A ']' directly after "[" or "[^" closes the class, as in
// JavaScript. An unterminated class runs to the end of the pattern.
func classEnd(pattern string, start int) int {
	i := start + 1
	if i < len(pattern) && pattern[i] == '^' {
		i++
	}
	for i < len(pattern) {
		switch pattern[i] {
		case '\\':
			i += 2
			continue
		case ']':
			return i + 1
		}
		i++
	}
	return len(pattern)
}
