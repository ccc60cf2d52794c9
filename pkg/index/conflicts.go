package index

import "github.com/praetorian-inc/vuescan/pkg/types"

// similarityThreshold is the positional similarity above which two pattern
// sources are considered near-duplicates.
const similarityThreshold = 0.8

// Conflict is a pair of rules that look redundant or inconsistent.
// Conflicts are diagnostics only and never change matching.
type Conflict struct {
	RuleA    string         `json:"ruleA"`
	RuleB    string         `json:"ruleB"`
	Severity types.Severity `json:"severity"` // the higher of the two rule severities
	Reason   string         `json:"reason"`
}

const (
	ReasonSimilarPatterns     = "similar patterns"
	ReasonConflictingSeverity = "conflicting severities for shared file types"
)

func detectConflicts(rules []*types.Rule, targets []Targets) []Conflict {
	var out []Conflict
	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			reason, ok := conflictReason(rules[i], rules[j], targets[i], targets[j])
			if !ok {
				continue
			}
			sev := rules[i].Severity
			if rules[j].Severity.Weight() > sev.Weight() {
				sev = rules[j].Severity
			}
			out = append(out, Conflict{
				RuleA:    rules[i].ID,
				RuleB:    rules[j].ID,
				Severity: sev,
				Reason:   reason,
			})
		}
	}
	return out
}

func conflictReason(a, b *types.Rule, ta, tb Targets) (string, bool) {
	for _, pa := range a.Patterns {
		for _, pb := range b.Patterns {
			if patternSimilarity(pa.Pattern, pb.Pattern) > similarityThreshold {
				return ReasonSimilarPatterns, true
			}
		}
	}
	if sharesExtension(ta, tb) && absInt(a.Severity.Weight()-b.Severity.Weight()) > 1 {
		return ReasonConflictingSeverity, true
	}
	return "", false
}

// patternSimilarity is the fraction of positions at which both sources hold
// the same byte, relative to the longer source.
func patternSimilarity(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	same := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(longest)
}

func sharesExtension(a, b Targets) bool {
	for _, x := range a.Extensions {
		for _, y := range b.Extensions {
			if x == y {
				return true
			}
		}
	}
	return false
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
