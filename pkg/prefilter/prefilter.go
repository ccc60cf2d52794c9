// Package prefilter decides cheaply whether a regex could match content
// before the regex is compiled or run.
//
// A pattern's quick-match token is a literal that every match must
// contain. Content without the token cannot match, so the check is sound:
// it may say "maybe" for content that does not match, never "no" for content
// that does. Patterns without a safe token always pass.
package prefilter

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/vuescan/pkg/types"
)

// maxAutomata bounds the automaton cache; it is cleared when full.
const maxAutomata = 256

type tokenEntry struct {
	tok Token
	ok  bool
}

// automaton is an Aho-Corasick matcher over one set of distinct tokens.
type automaton struct {
	matcher *ahocorasick.Matcher
	tokens  []string
}

// Prefilter owns the token, complexity and automaton caches.
// It is not safe for concurrent use; give each goroutine its own.
type Prefilter struct {
	tokens     map[string]tokenEntry // flags + "\x00" + pattern
	complexity map[string]int
	automata   map[string]*automaton // joined token set

	checked int
	passed  int
}

// New creates a prefilter with empty caches.
func New() *Prefilter {
	return &Prefilter{
		tokens:     make(map[string]tokenEntry),
		complexity: make(map[string]int),
		automata:   make(map[string]*automaton),
	}
}

// QuickMatchToken returns the token for a pattern source and its flags.
// ok is false when the pattern cannot be prefiltered safely.
func (p *Prefilter) QuickMatchToken(pattern, flags string) (Token, bool) {
	key := flags + "\x00" + pattern
	if e, hit := p.tokens[key]; hit {
		return e.tok, e.ok
	}
	tok, ok := extractToken(pattern, strings.ContainsRune(flags, 'i'))
	p.tokens[key] = tokenEntry{tok: tok, ok: ok}
	return tok, ok
}

func (p *Prefilter) tokenFor(spec types.PatternSpec) (Token, bool) {
	return p.QuickMatchToken(spec.Pattern, spec.EffectiveFlags())
}

// QuickCheck reports whether spec could match content. It returns true for
// patterns without a token.
func (p *Prefilter) QuickCheck(content string, spec types.PatternSpec) bool {
	p.checked++
	tok, ok := p.tokenFor(spec)
	if !ok {
		p.passed++
		return true
	}
	if tok.Fold {
		content = foldString(content)
	}
	if strings.Contains(content, tok.Text) {
		p.passed++
		return true
	}
	return false
}

// BatchQuickCheck returns, in order, the indexes of specs that could match
// content. Content is scanned once per token kind with an Aho-Corasick
// automaton instead of once per pattern.
func (p *Prefilter) BatchQuickCheck(content string, specs []types.PatternSpec) []int {
	p.checked += len(specs)

	toks := make([]Token, len(specs))
	has := make([]bool, len(specs))
	var exact, folded []string
	for i, spec := range specs {
		toks[i], has[i] = p.tokenFor(spec)
		if !has[i] {
			continue
		}
		if toks[i].Fold {
			folded = append(folded, toks[i].Text)
		} else {
			exact = append(exact, toks[i].Text)
		}
	}

	found := make(map[Token]bool)
	if len(exact) > 0 {
		for _, t := range p.scan("e", exact, content) {
			found[Token{Text: t}] = true
		}
	}
	if len(folded) > 0 {
		for _, t := range p.scan("f", folded, foldString(content)) {
			found[Token{Text: t, Fold: true}] = true
		}
	}

	out := make([]int, 0, len(specs))
	for i := range specs {
		if !has[i] || found[toks[i]] {
			out = append(out, i)
		}
	}
	p.passed += len(out)
	return out
}

// scan returns the tokens present in content.
func (p *Prefilter) scan(kind string, tokens []string, content string) []string {
	a := p.automatonFor(kind, tokens)
	hits := a.matcher.Match([]byte(content))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, a.tokens[h])
	}
	return out
}

func (p *Prefilter) automatonFor(kind string, tokens []string) *automaton {
	distinct := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			distinct = append(distinct, t)
		}
	}
	key := kind + "\x00" + strings.Join(distinct, "\x00")
	if a, ok := p.automata[key]; ok {
		return a
	}
	if len(p.automata) >= maxAutomata {
		p.automata = make(map[string]*automaton)
	}
	a := &automaton{
		matcher: ahocorasick.NewStringMatcher(distinct),
		tokens:  distinct,
	}
	p.automata[key] = a
	return a
}

// Complexity scores a pattern from 0 to MaxComplexity. Diagnostic only.
func (p *Prefilter) Complexity(pattern string) int {
	if c, ok := p.complexity[pattern]; ok {
		return c
	}
	c := complexityScore(pattern)
	p.complexity[pattern] = c
	return c
}

// Stats reports cache sizes and check counters.
type Stats struct {
	TokenCacheSize      int `json:"tokenCacheSize"`
	ComplexityCacheSize int `json:"complexityCacheSize"`
	AutomatonCacheSize  int `json:"automatonCacheSize"`
	Checked             int `json:"checked"`
	Passed              int `json:"passed"`
}

// Stats returns a snapshot of cache sizes and counters.
func (p *Prefilter) Stats() Stats {
	return Stats{
		TokenCacheSize:      len(p.tokens),
		ComplexityCacheSize: len(p.complexity),
		AutomatonCacheSize:  len(p.automata),
		Checked:             p.checked,
		Passed:              p.passed,
	}
}

// Reset clears every cache and counter.
func (p *Prefilter) Reset() {
	p.tokens = make(map[string]tokenEntry)
	p.complexity = make(map[string]int)
	p.automata = make(map[string]*automaton)
	p.checked = 0
	p.passed = 0
}
