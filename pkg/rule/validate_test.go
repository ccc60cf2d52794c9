package rule

import (
	"strings"
	"testing"

	"github.com/praetorian-inc/vuescan/pkg/types"
	"github.com/stretchr/testify/assert"
)

func validRule() *types.Rule {
	r := &types.Rule{
		ID:       "xss-v-html",
		Name:     "Vue v-html directive",
		Severity: types.SeverityHigh,
		Category: "xss",
		Patterns: []types.PatternSpec{{Key: "v-html", Pattern: `v-html\s*=`}},
	}
	r.StructuralID = r.ComputeStructuralID()
	return r
}

func TestValidateRule_Valid(t *testing.T) {
	if err := ValidateRule(validRule()); err != nil {
		t.Errorf("ValidateRule failed for valid rule: %v", err)
	}
}

func TestValidateRule_NilRule(t *testing.T) {
	err := ValidateRule(nil)
	if err == nil {
		t.Fatal("expected error for nil rule")
	}
	if !strings.Contains(err.Error(), "nil") {
		t.Errorf("expected 'nil' in error message, got: %v", err)
	}
}

func TestValidateRule_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *types.Rule)
		wantErr string
	}{
		{"missing id", func(r *types.Rule) { r.ID = "" }, "ID is required"},
		{"missing name", func(r *types.Rule) { r.Name = "" }, "name is required"},
		{"unknown severity", func(r *types.Rule) { r.Severity = "Urgent" }, "invalid severity"},
		{"lowercase severity", func(r *types.Rule) { r.Severity = "high" }, "invalid severity"},
		{"no patterns", func(r *types.Rule) { r.Patterns = nil; r.StructuralID = "" }, "at least one pattern"},
		{"empty key", func(r *types.Rule) { r.Patterns[0].Key = "" }, "has no key"},
		{"empty source", func(r *types.Rule) { r.Patterns[0].Pattern = ""; r.StructuralID = "" }, "is empty"},
		{"duplicate key", func(r *types.Rule) {
			r.Patterns = append(r.Patterns, types.PatternSpec{Key: "v-html", Pattern: "other"})
			r.StructuralID = ""
		}, "duplicate pattern key"},
		{"unknown flag", func(r *types.Rule) { r.Patterns[0].Flags = "gx"; r.StructuralID = "" }, "unknown flag"},
		{"inconsistent structural id", func(r *types.Rule) { r.StructuralID = "deadbeef" }, "inconsistent StructuralID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(r)
			err := ValidateRule(r)
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateRule_EmptyStructuralID(t *testing.T) {
	r := validRule()
	r.StructuralID = ""
	assert.NoError(t, ValidateRule(r))
}

func TestValidateRule_UncompilablePattern(t *testing.T) {
	r := validRule()
	r.Patterns[0].Pattern = "(unclosed"
	r.StructuralID = ""
	assert.NoError(t, ValidateRule(r), "compilability is checked at match time")
}

func TestValidateRule_AllFlags(t *testing.T) {
	r := validRule()
	r.Patterns[0].Flags = "gimsuy"
	r.StructuralID = ""
	assert.NoError(t, ValidateRule(r))
}

func TestValidateRuleSet_DuplicateIDs(t *testing.T) {
	err := ValidateRuleSet([]*types.Rule{validRule(), validRule()})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "duplicate rule ID")
	}
}

func TestValidateRuleSet_PropagatesRuleError(t *testing.T) {
	bad := validRule()
	bad.ID = "other"
	bad.Name = ""
	assert.Error(t, ValidateRuleSet([]*types.Rule{validRule(), bad}))
}

func TestValidateRuleSet_Empty(t *testing.T) {
	assert.NoError(t, ValidateRuleSet(nil))
}
