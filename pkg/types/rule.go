package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// DefaultFlags are applied to a pattern that declares no flags.
const DefaultFlags = "gi"

// Rule is a named, severity-tagged detection unit.
// Rules are immutable once loaded.
type Rule struct {
	ID             string        `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	Severity       Severity      `json:"severity" yaml:"severity"`
	Description    string        `json:"description" yaml:"description,omitempty"`
	Recommendation string        `json:"recommendation" yaml:"recommendation,omitempty"`
	Category       string        `json:"category,omitempty" yaml:"category,omitempty"`
	Patterns       []PatternSpec `json:"patterns" yaml:"patterns"`
	StructuralID   string        `json:"-" yaml:"-"` // SHA-1 of the pattern sources (computed)
}

// PatternSpec is one regex matcher belonging to a rule.
type PatternSpec struct {
	Key     string `json:"key" yaml:"key"`         // regex cache key
	Pattern string `json:"pattern" yaml:"pattern"` // JavaScript-flavored regex source
	Flags   string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// EffectiveFlags returns the declared flags or DefaultFlags when none are set.
func (p PatternSpec) EffectiveFlags() string {
	if p.Flags == "" {
		return DefaultFlags
	}
	return p.Flags
}

// CaseInsensitive reports whether the pattern matches without regard to case.
func (p PatternSpec) CaseInsensitive() bool {
	return strings.ContainsRune(p.EffectiveFlags(), 'i')
}

// ComputeStructuralID computes SHA-1 over the rule's pattern sources and flags.
// Two rules with identical patterns share a structural id.
func (r *Rule) ComputeStructuralID() string {
	h := sha1.New()
	for _, p := range r.Patterns {
		h.Write([]byte(p.Pattern))
		h.Write([]byte{0})
		h.Write([]byte(p.EffectiveFlags()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
