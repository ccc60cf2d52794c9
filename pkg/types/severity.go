package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the impact level of a rule or finding.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// severityOrder lists severities from lowest to highest.
var severityOrder = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range severityOrder {
		if strings.EqualFold(s, string(sev)) {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	for _, sev := range severityOrder {
		if s == sev {
			return true
		}
	}
	return false
}

// Weight returns the ranking weight used for rule priority.
// Critical=4, High=3, Medium=2, Low=1; anything else weighs 1.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// Escalate returns the next severity up, saturating at Critical.
func (s Severity) Escalate() Severity {
	for i, sev := range severityOrder {
		if sev == s && i+1 < len(severityOrder) {
			return severityOrder[i+1]
		}
	}
	return s
}

// UnmarshalJSON accepts any casing of a known severity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sev, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Confidence is how certain the engine is that a finding is real.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Rank orders confidences: High=3, Medium=2, Low=1, unknown=0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// ParseConfidence parses a confidence name case-insensitively.
func ParseConfidence(s string) (Confidence, error) {
	for _, c := range []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow} {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown confidence %q", s)
}
