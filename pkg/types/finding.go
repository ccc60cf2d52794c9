package types

// Signal is a keyword-proximity hint found near a match.
type Signal string

const (
	SignalUserInput         Signal = "user-input"
	SignalDatabaseOperation Signal = "database-operation"
	SignalDOMManipulation   Signal = "dom-manipulation"
)

// ContextLine is one source line surrounding a finding.
type ContextLine struct {
	Number  int    `json:"number"` // 1-based
	Content string `json:"content"`
}

// Finding is one reported occurrence of a rule matching content.
// Findings are produced per call and never retained by the engine.
type Finding struct {
	ID              string        `json:"id"` // unique, not reproducible across runs
	RuleID          string        `json:"ruleId"`
	Type            string        `json:"type"` // rule name
	Severity        Severity      `json:"severity"`
	Confidence      Confidence    `json:"confidence"`
	File            string        `json:"file"`
	Line            int           `json:"line"` // 1-based
	CodeSnippet     string        `json:"codeSnippet"`
	Context         []ContextLine `json:"context"`
	DataFlowSignals []Signal      `json:"dataFlowSignals"`
	Description     string        `json:"description,omitempty"`
	Recommendation  string        `json:"recommendation"`
	PatternKey      string        `json:"patternKey,omitempty"`
}

// HasSignal reports whether the finding carries the given dataflow signal.
func (f *Finding) HasSignal(s Signal) bool {
	for _, got := range f.DataFlowSignals {
		if got == s {
			return true
		}
	}
	return false
}
