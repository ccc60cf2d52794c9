package matcher

import (
	"regexp"
	"strings"

	"github.com/praetorian-inc/vuescan/pkg/types"
)

const (
	contextRadius = 3   // lines of context either side of a finding
	signalRadius  = 5   // lines probed for dataflow signals
	maxSnippet    = 100 // characters of matched text kept in a finding
)

var signalPatterns = []struct {
	signal types.Signal
	re     *regexp.Regexp
}{
	{types.SignalUserInput, regexp.MustCompile(`req\.(query|params|body)`)},
	{types.SignalDatabaseOperation, regexp.MustCompile(`\.(find|query|select|execute)`)},
	{types.SignalDOMManipulation, regexp.MustCompile(`innerHTML|outerHTML|insertAdjacentHTML|document\.write`)},
}

// highRiskToken marks matched text that is dangerous on its own.
var highRiskToken = regexp.MustCompile(`innerHTML|eval|v-html|document\.write`)

// detectSignals returns the dataflow signals present in window, in a fixed
// order. The result is never nil.
func detectSignals(window string) []types.Signal {
	signals := make([]types.Signal, 0, len(signalPatterns))
	for _, sp := range signalPatterns {
		if sp.re.MatchString(window) {
			signals = append(signals, sp.signal)
		}
	}
	return signals
}

func hasSignal(signals []types.Signal, s types.Signal) bool {
	for _, got := range signals {
		if got == s {
			return true
		}
	}
	return false
}

// escalate raises a rule's base severity from the signals around a match.
// XSS rules matched in .vue files go one step further.
func escalate(base types.Severity, signals []types.Signal, category, ext string) types.Severity {
	userInput := hasSignal(signals, types.SignalUserInput)
	db := hasSignal(signals, types.SignalDatabaseOperation)
	dom := hasSignal(signals, types.SignalDOMManipulation)

	sev := base
	switch {
	case userInput && dom:
		sev = types.SeverityCritical
	case userInput && sev == types.SeverityMedium:
		sev = types.SeverityHigh
	case userInput && db && sev == types.SeverityLow:
		sev = types.SeverityMedium
	}

	if strings.EqualFold(category, "xss") && ext == ".vue" {
		sev = sev.Escalate()
	}
	return sev
}

// confidence is High when user input is nearby and the matched text itself
// is high risk, Medium when only one holds.
func confidence(signals []types.Signal, matched string) types.Confidence {
	userInput := hasSignal(signals, types.SignalUserInput)
	highRisk := highRiskToken.MatchString(matched)
	switch {
	case userInput && highRisk:
		return types.ConfidenceHigh
	case userInput || highRisk:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// snippet truncates matched text to maxSnippet characters.
func snippet(matched []rune) string {
	if len(matched) > maxSnippet {
		matched = matched[:maxSnippet]
	}
	return string(matched)
}
