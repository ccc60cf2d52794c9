package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinding_JSONShape(t *testing.T) {
	f := Finding{
		ID:              "xss-v-html-1",
		RuleID:          "xss-v-html",
		Type:            "v-html usage",
		Severity:        SeverityHigh,
		Confidence:      ConfidenceMedium,
		File:            "App.vue",
		Line:            2,
		CodeSnippet:     `v-html=`,
		Context:         []ContextLine{{Number: 2, Content: `<div v-html="x"></div>`}},
		DataFlowSignals: []Signal{SignalDOMManipulation},
		Recommendation:  "Sanitize HTML",
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"id", "ruleId", "type", "severity", "confidence", "file", "line", "codeSnippet", "context", "dataFlowSignals", "recommendation"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, "High", decoded["severity"])
	assert.Equal(t, float64(2), decoded["line"])

	assert.True(t, f.HasSignal(SignalDOMManipulation))
	assert.False(t, f.HasSignal(SignalUserInput))
}
