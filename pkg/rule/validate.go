package rule

import (
	"fmt"
	"strings"

	"github.com/praetorian-inc/vuescan/pkg/types"
)

// allowedFlags are the JavaScript regex flags a pattern may declare.
const allowedFlags = "gimsuy"

// ValidateRule checks rule consistency and required fields.
// Regex compilability is deliberately not checked: a pattern that fails to
// compile is neutralized at match time instead of rejecting the rule.
func ValidateRule(r *types.Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}

	// Check required fields
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %s: name is required", r.ID)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("rule %s: at least one pattern is required", r.ID)
	}

	keys := make(map[string]bool, len(r.Patterns))
	for i, p := range r.Patterns {
		if p.Key == "" {
			return fmt.Errorf("rule %s: pattern %d has no key", r.ID, i)
		}
		if p.Pattern == "" {
			return fmt.Errorf("rule %s: pattern %q is empty", r.ID, p.Key)
		}
		if keys[p.Key] {
			return fmt.Errorf("rule %s: duplicate pattern key %q", r.ID, p.Key)
		}
		keys[p.Key] = true
		for _, f := range p.Flags {
			if !strings.ContainsRune(allowedFlags, f) {
				return fmt.Errorf("rule %s: pattern %q has unknown flag %q", r.ID, p.Key, f)
			}
		}
	}

	// Validate StructuralID matches computed value
	if r.StructuralID != "" {
		if expected := r.ComputeStructuralID(); r.StructuralID != expected {
			return fmt.Errorf("rule %s has inconsistent StructuralID: got %s, expected %s",
				r.ID, r.StructuralID, expected)
		}
	}

	return nil
}

// ValidateRuleSet validates every rule and rejects duplicate rule ids.
func ValidateRuleSet(rules []*types.Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule ID: %s", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
