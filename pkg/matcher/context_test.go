package matcher

import (
	"strings"
	"testing"

	"github.com/praetorian-inc/vuescan/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestDetectSignals(t *testing.T) {
	tests := []struct {
		name   string
		window string
		want   []types.Signal
	}{
		{"none", "const a = 1;", []types.Signal{}},
		{"user input", "const id = req.params.id", []types.Signal{types.SignalUserInput}},
		{"database", "users.find({})", []types.Signal{types.SignalDatabaseOperation}},
		{"dom", "document.write(x)", []types.Signal{types.SignalDOMManipulation}},
		{"insertAdjacentHTML", "el.insertAdjacentHTML('beforeend', x)", []types.Signal{types.SignalDOMManipulation}},
		{
			"all in fixed order",
			"el.outerHTML = x\ndb.execute(sql)\nreq.body.name",
			[]types.Signal{types.SignalUserInput, types.SignalDatabaseOperation, types.SignalDOMManipulation},
		},
		{"case sensitive", "REQ.QUERY.x", []types.Signal{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectSignals(tt.window))
		})
	}
}

func TestEscalate(t *testing.T) {
	ui := types.SignalUserInput
	db := types.SignalDatabaseOperation
	dom := types.SignalDOMManipulation

	tests := []struct {
		name     string
		base     types.Severity
		signals  []types.Signal
		category string
		ext      string
		want     types.Severity
	}{
		{"no signals", types.SeverityMedium, nil, "", ".js", types.SeverityMedium},
		{"user input and dom from low", types.SeverityLow, []types.Signal{ui, dom}, "", ".js", types.SeverityCritical},
		{"user input and dom from high", types.SeverityHigh, []types.Signal{ui, dom}, "", ".js", types.SeverityCritical},
		{"user input raises medium", types.SeverityMedium, []types.Signal{ui}, "", ".js", types.SeverityHigh},
		{"user input alone keeps low", types.SeverityLow, []types.Signal{ui}, "", ".js", types.SeverityLow},
		{"user input and db raise low", types.SeverityLow, []types.Signal{ui, db}, "", ".js", types.SeverityMedium},
		{"user input and db raise medium once", types.SeverityMedium, []types.Signal{ui, db}, "", ".js", types.SeverityHigh},
		{"db alone", types.SeverityLow, []types.Signal{db}, "", ".js", types.SeverityLow},
		{"dom alone", types.SeverityMedium, []types.Signal{dom}, "", ".js", types.SeverityMedium},
		{"xss in vue", types.SeverityMedium, nil, "xss", ".vue", types.SeverityHigh},
		{"xss category any case", types.SeverityMedium, nil, "XSS", ".vue", types.SeverityHigh},
		{"xss outside vue", types.SeverityMedium, nil, "xss", ".js", types.SeverityMedium},
		{"xss in vue after signals", types.SeverityMedium, []types.Signal{ui}, "xss", ".vue", types.SeverityCritical},
		{"xss in vue saturates", types.SeverityHigh, []types.Signal{ui, dom}, "xss", ".vue", types.SeverityCritical},
		{"injection in vue", types.SeverityMedium, nil, "injection", ".vue", types.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, escalate(tt.base, tt.signals, tt.category, tt.ext))
		})
	}
}

func TestConfidence(t *testing.T) {
	ui := []types.Signal{types.SignalUserInput}
	dom := []types.Signal{types.SignalDOMManipulation}

	tests := []struct {
		name    string
		signals []types.Signal
		matched string
		want    types.Confidence
	}{
		{"input and risky text", ui, "el.innerHTML = x", types.ConfidenceHigh},
		{"input only", ui, "setTimeout(x)", types.ConfidenceMedium},
		{"risky text only", nil, `v-html="x"`, types.ConfidenceMedium},
		{"eval", nil, "eval(code)", types.ConfidenceMedium},
		{"document.write", nil, "document.write(s)", types.ConfidenceMedium},
		{"dom signal is not user input", dom, "setTimeout(x)", types.ConfidenceLow},
		{"neither", nil, "setTimeout(x)", types.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, confidence(tt.signals, tt.matched))
		})
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet([]rune("short")))
	long := []rune(strings.Repeat("界", 150))
	assert.Equal(t, strings.Repeat("界", maxSnippet), snippet(long))
}
