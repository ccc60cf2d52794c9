package index

import (
	"testing"

	"github.com/praetorian-inc/vuescan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, patternSimilarity("", ""))
	assert.Equal(t, 1.0, patternSimilarity("abc", "abc"))
	assert.Equal(t, 0.0, patternSimilarity("abc", "xyz"))
	assert.InDelta(t, 0.75, patternSimilarity("abcd", "abc"), 1e-9)
}

func TestDetectConflicts(t *testing.T) {
	rules := []*types.Rule{
		{ID: "dom-html-a", Severity: types.SeverityHigh, Patterns: []types.PatternSpec{{Key: "k", Pattern: "innerHTML\\s*="}}},
		{ID: "dom-html-b", Severity: types.SeverityMedium, Patterns: []types.PatternSpec{{Key: "k", Pattern: "innerHTML\\s*=="}}},
		{ID: "dom-low", Severity: types.SeverityLow, Patterns: []types.PatternSpec{{Key: "k", Pattern: "zzz"}}},
		{ID: "vue-other", Severity: types.SeverityMedium, Patterns: []types.PatternSpec{{Key: "k", Pattern: "qqq"}}},
	}
	targets := make([]Targets, len(rules))
	for i, r := range rules {
		targets[i] = Categorize(r)
	}

	conflicts := detectConflicts(rules, targets)
	require.Len(t, conflicts, 2)

	assert.Equal(t, "dom-html-a", conflicts[0].RuleA)
	assert.Equal(t, "dom-html-b", conflicts[0].RuleB)
	assert.Equal(t, ReasonSimilarPatterns, conflicts[0].Reason)
	assert.Equal(t, types.SeverityHigh, conflicts[0].Severity)

	// High vs Low in the shared default bucket; vue-other shares no bucket.
	assert.Equal(t, "dom-html-a", conflicts[1].RuleA)
	assert.Equal(t, "dom-low", conflicts[1].RuleB)
	assert.Equal(t, ReasonConflictingSeverity, conflicts[1].Reason)
}
