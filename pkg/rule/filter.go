package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/praetorian-inc/vuescan/pkg/types"
)

// FilterConfig narrows a rule set before it reaches the index.
type FilterConfig struct {
	Include    []string // rule id regexes; when set, a rule must match one
	Exclude    []string // rule id regexes; a matching rule is dropped
	Categories []string // when set, only rules in these categories (case-insensitive)
}

// ParsePatterns splits a comma-separated flag value such as
// "xss-.*, injection-.*" into trimmed, non-empty items.
func ParsePatterns(patterns string) []string {
	out := []string{}
	for _, p := range strings.Split(patterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ruleFilter is a compiled FilterConfig.
type ruleFilter struct {
	categories map[string]bool
	include    []*regexp.Regexp
	exclude    []*regexp.Regexp
}

func compileFilter(config FilterConfig) (*ruleFilter, error) {
	f := &ruleFilter{}
	if len(config.Categories) > 0 {
		f.categories = make(map[string]bool, len(config.Categories))
		for _, c := range config.Categories {
			f.categories[normalizeCategory(c)] = true
		}
	}

	var err error
	if f.include, err = compileIDPatterns(config.Include); err != nil {
		return nil, err
	}
	if f.exclude, err = compileIDPatterns(config.Exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compileIDPatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// keep applies the category, include and exclude stages in that order.
func (f *ruleFilter) keep(r *types.Rule) bool {
	if f.categories != nil && !f.categories[normalizeCategory(r.Category)] {
		return false
	}
	if len(f.include) > 0 && !matchesAny(r.ID, f.include) {
		return false
	}
	return !matchesAny(r.ID, f.exclude)
}

// Filter returns the rules that pass config. Rule order is preserved,
// since the index breaks priority ties by declaration order. An invalid
// include or exclude regex is an error.
func Filter(rules []*types.Rule, config FilterConfig) ([]*types.Rule, error) {
	f, err := compileFilter(config)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return rules, nil
	}

	out := make([]*types.Rule, 0, len(rules))
	for _, r := range rules {
		if f.keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func matchesAny(ruleID string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(ruleID) {
			return true
		}
	}
	return false
}
