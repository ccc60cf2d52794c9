// Package sarif renders findings as a SARIF 2.1.0 log.
package sarif

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/vuescan/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version   = "2.1.0"
	ToolName  = "vuescan"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`

	ruleIndex map[string]int
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule represents a detection rule
type Rule struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	ShortDescription     Message        `json:"shortDescription"`
	Help                 *Message       `json:"help,omitempty"`
	DefaultConfiguration Configuration  `json:"defaultConfiguration"`
	Properties           RuleProperties `json:"properties"`
}

// Configuration carries a rule's default level.
type Configuration struct {
	Level string `json:"level"`
}

// RuleProperties holds vuescan-specific rule metadata.
type RuleProperties struct {
	Severity types.Severity `json:"severity"`
	Tags     []string       `json:"tags,omitempty"`
}

// Result represents a single finding
type Result struct {
	RuleID     string           `json:"ruleId"`
	RuleIndex  int              `json:"ruleIndex"`
	Level      string           `json:"level"`
	Message    Message          `json:"message"`
	Locations  []Location       `json:"locations"`
	Properties ResultProperties `json:"properties"`
}

// ResultProperties holds the finding's enrichment.
type ResultProperties struct {
	Severity        types.Severity   `json:"severity"`
	Confidence      types.Confidence `json:"confidence"`
	DataFlowSignals []types.Signal   `json:"dataFlowSignals,omitempty"`
}

// Message contains plain text
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
	ContextRegion    *Region          `json:"contextRegion,omitempty"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies a line range. Findings carry no columns.
type Region struct {
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine,omitempty"`
	Snippet   *Message `json:"snippet,omitempty"`
}

// NewReport creates a report for one run of the given tool version.
func NewReport(toolVersion string) *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: toolVersion,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
		ruleIndex: make(map[string]int),
	}
}

// Level maps a severity onto a SARIF level.
func Level(s types.Severity) string {
	switch s {
	case types.SeverityCritical, types.SeverityHigh:
		return "error"
	case types.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// AddRule adds a detection rule to the report. Adding a rule id twice is a
// no-op.
func (r *Report) AddRule(rule *types.Rule) {
	if _, ok := r.ruleIndex[rule.ID]; ok {
		return
	}

	sarifRule := Rule{
		ID:                   rule.ID,
		Name:                 rule.Name,
		ShortDescription:     Message{Text: rule.Description},
		DefaultConfiguration: Configuration{Level: Level(rule.Severity)},
		Properties:           RuleProperties{Severity: rule.Severity},
	}
	if sarifRule.ShortDescription.Text == "" {
		sarifRule.ShortDescription.Text = rule.Name
	}
	if rule.Recommendation != "" {
		sarifRule.Help = &Message{Text: rule.Recommendation}
	}
	if rule.Category != "" {
		sarifRule.Properties.Tags = []string{rule.Category}
	}

	driver := &r.Runs[0].Tool.Driver
	r.ruleIndex[rule.ID] = len(driver.Rules)
	driver.Rules = append(driver.Rules, sarifRule)
}

// AddResult adds a finding. Its rule should have been added first; otherwise
// the result's ruleIndex is -1.
func (r *Report) AddResult(f *types.Finding) {
	idx, ok := r.ruleIndex[f.RuleID]
	if !ok {
		idx = -1
	}

	loc := PhysicalLocation{
		ArtifactLocation: ArtifactLocation{URI: formatFileURI(f.File)},
		Region: Region{
			StartLine: f.Line,
			EndLine:   f.Line,
		},
	}
	if f.CodeSnippet != "" {
		loc.Region.Snippet = &Message{Text: f.CodeSnippet}
	}
	if n := len(f.Context); n > 0 {
		lines := make([]string, 0, n)
		for _, c := range f.Context {
			lines = append(lines, c.Content)
		}
		loc.ContextRegion = &Region{
			StartLine: f.Context[0].Number,
			EndLine:   f.Context[n-1].Number,
			Snippet:   &Message{Text: strings.Join(lines, "\n")},
		}
	}

	text := f.Type
	if f.Recommendation != "" {
		text += ": " + f.Recommendation
	}

	r.Runs[0].Results = append(r.Runs[0].Results, Result{
		RuleID:    f.RuleID,
		RuleIndex: idx,
		Level:     Level(f.Severity),
		Message:   Message{Text: text},
		Locations: []Location{{PhysicalLocation: loc}},
		Properties: ResultProperties{
			Severity:        f.Severity,
			Confidence:      f.Confidence,
			DataFlowSignals: f.DataFlowSignals,
		},
	})
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		path = filepath.ToSlash(path)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	return filepath.ToSlash(path)
}
