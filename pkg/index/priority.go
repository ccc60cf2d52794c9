package index

import (
	"strings"

	"github.com/praetorian-inc/vuescan/pkg/types"
)

// bonusCategories add one point of priority.
var bonusCategories = map[string]bool{
	"injection": true,
	"xss":       true,
}

// Priority ranks a rule for admission under a rule budget: the severity
// weight plus one for injection and XSS rules.
func Priority(r *types.Rule) int {
	p := r.Severity.Weight()
	if bonusCategories[strings.ToLower(r.Category)] {
		p++
	}
	return p
}

// PriorityGroup is a run of rules sharing one priority.
type PriorityGroup struct {
	Priority int
	Rules    []*types.Rule
}

// GroupByPriority splits rules into contiguous runs of equal priority.
// Input order is kept; pass rules already sorted to get one group per level.
func GroupByPriority(rules []*types.Rule) []PriorityGroup {
	var groups []PriorityGroup
	for _, r := range rules {
		p := Priority(r)
		if n := len(groups); n > 0 && groups[n-1].Priority == p {
			groups[n-1].Rules = append(groups[n-1].Rules, r)
			continue
		}
		groups = append(groups, PriorityGroup{Priority: p, Rules: []*types.Rule{r}})
	}
	return groups
}
