package prefilter

import (
	"regexp"
	"regexp/syntax"
	"strings"
)

// Token is a literal that every match of a pattern contains.
// Fold tokens are stored case-folded and must be looked up in folded content.
type Token struct {
	Text string
	Fold bool
}

var (
	apiCallToken  = regexp.MustCompile(`[A-Za-z_$][\w$]*\.[A-Za-z_$][\w$]*`)
	htmlTagToken  = regexp.MustCompile(`<[A-Za-z][A-Za-z0-9-]*`)
	alnumRunToken = regexp.MustCompile(`[A-Za-z0-9]{3,}`)
)

// extractToken picks the quick-match token of a pattern. Candidates are
// searched only inside required literals, in this order:
//
//  1. an API-call-like identifier.identifier
//  2. an HTML opening tag "<name", when longer than the candidate of rule 3
//  3. the first alphanumeric run of at least three characters
//
// ok is false when the pattern cannot be prefiltered safely.
func extractToken(pattern string, caseInsensitive bool) (tok Token, ok bool) {
	segs, folded, ok := requiredLiterals(pattern)
	if !ok {
		return Token{}, false
	}

	text := firstMatch(apiCallToken, segs)
	if text == "" {
		alnum := firstMatch(alnumRunToken, segs)
		tag := firstMatch(htmlTagToken, segs)
		text = alnum
		if len(tag) > len(alnum) {
			text = tag
		}
	}
	if text == "" {
		return Token{}, false
	}

	fold := caseInsensitive || folded
	if fold {
		text = foldString(text)
	}
	return Token{Text: text, Fold: fold}, true
}

func firstMatch(re *regexp.Regexp, segs []string) string {
	for _, s := range segs {
		if m := re.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

// requiredLiterals parses pattern and returns, in pattern order, literal
// strings that appear in every match. folded reports whether the pattern
// switches on case folding inline. ok is false when the pattern does not
// parse; such patterns get no token.
func requiredLiterals(pattern string) (segs []string, folded bool, ok bool) {
	if hasAmbiguousEscape(pattern) {
		return nil, false, false
	}
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, false, false
	}
	w := &literalWalker{}
	n := w.walk(re)
	if n.exact {
		w.add(n.text)
	}
	return w.segs, w.folded, true
}

// hasAmbiguousEscape reports escapes that the Go parser reads differently
// from the matching engine, which treats them as plain letters or
// backreferences: \1-\9 (octal in Go), \Q...\E quoting, the \A and \z
// anchors, \C, \p and \P classes, \a and \x{...}.
func hasAmbiguousEscape(pattern string) bool {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] != '\\' {
			continue
		}
		c := pattern[i+1]
		switch {
		case '1' <= c && c <= '9':
			return true
		case strings.IndexByte("aACpPQz", c) >= 0:
			return true
		case c == 'x' && i+2 < len(pattern) && pattern[i+2] == '{':
			return true
		}
		i++
	}
	return false
}

// maxExactRepeat bounds how far x{n} of a literal is unrolled.
const maxExactRepeat = 16

type literalWalker struct {
	segs   []string
	folded bool
}

// node summarizes a subexpression: exact is set when it matches exactly
// one string, text.
type node struct {
	exact bool
	text  string
}

func (w *literalWalker) add(s string) {
	if s != "" {
		w.segs = append(w.segs, s)
	}
}

func (w *literalWalker) walk(re *syntax.Regexp) node {
	switch re.Op {
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 {
			w.folded = true
		}
		return node{exact: true, text: string(re.Rune)}

	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		// zero-width: contributes nothing but does not break a run
		return node{exact: true}

	case syntax.OpCapture:
		return w.walk(re.Sub[0])

	case syntax.OpConcat:
		var run strings.Builder
		allExact := true
		for _, sub := range re.Sub {
			child := &literalWalker{}
			n := child.walk(sub)
			w.folded = w.folded || child.folded
			if n.exact {
				run.WriteString(n.text)
				continue
			}
			allExact = false
			w.add(run.String())
			run.Reset()
			w.segs = append(w.segs, child.segs...)
		}
		if allExact {
			return node{exact: true, text: run.String()}
		}
		w.add(run.String())
		return node{}

	case syntax.OpPlus:
		w.requireOnce(re.Sub[0])
		return node{}

	case syntax.OpRepeat:
		if re.Min < 1 {
			return node{}
		}
		if re.Min == re.Max && re.Min <= maxExactRepeat {
			sub := &literalWalker{}
			n := sub.walk(re.Sub[0])
			if n.exact {
				w.folded = w.folded || sub.folded
				return node{exact: true, text: strings.Repeat(n.text, re.Min)}
			}
		}
		w.requireOnce(re.Sub[0])
		return node{}

	default:
		// alternation, star, quest, classes and any-char contribute nothing
		return node{}
	}
}

// requireOnce records the literals of a subexpression that matches at least once.
func (w *literalWalker) requireOnce(sub *syntax.Regexp) {
	n := w.walk(sub)
	if n.exact {
		w.add(n.text)
	}
}
