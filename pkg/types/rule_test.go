package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRule_ComputeStructuralID(t *testing.T) {
	rule := Rule{
		ID:   "xss-v-html",
		Name: "v-html usage",
		Patterns: []PatternSpec{
			{Key: "v-html", Pattern: `v-html\s*=`},
		},
	}

	structuralID := rule.ComputeStructuralID()

	// Should be SHA-1 hex (40 chars)
	assert.Len(t, structuralID, 40)

	// Same patterns should produce same ID regardless of rule identity
	rule2 := Rule{
		ID:       "different.id",
		Name:     "Different Name",
		Patterns: []PatternSpec{{Key: "other-key", Pattern: `v-html\s*=`, Flags: "gi"}},
	}
	assert.Equal(t, structuralID, rule2.ComputeStructuralID())

	// Different flags should produce different ID
	rule3 := Rule{
		ID:       "xss-v-html",
		Patterns: []PatternSpec{{Key: "v-html", Pattern: `v-html\s*=`, Flags: "g"}},
	}
	assert.NotEqual(t, structuralID, rule3.ComputeStructuralID())
}

func TestPatternSpec_EffectiveFlags(t *testing.T) {
	assert.Equal(t, "gi", PatternSpec{Pattern: "x"}.EffectiveFlags())
	assert.Equal(t, "g", PatternSpec{Pattern: "x", Flags: "g"}.EffectiveFlags())

	assert.True(t, PatternSpec{Pattern: "x"}.CaseInsensitive())
	assert.True(t, PatternSpec{Pattern: "x", Flags: "i"}.CaseInsensitive())
	assert.False(t, PatternSpec{Pattern: "x", Flags: "gm"}.CaseInsensitive())
}
