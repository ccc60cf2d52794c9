package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// WorkerCount is either "auto" (zero value) or a fixed positive count.
type WorkerCount int

// WorkersAuto lets the dispatcher size batches from its pool.
const WorkersAuto WorkerCount = 0

// ParseWorkerCount parses "auto", "" or a positive integer.
func ParseWorkerCount(s string) (WorkerCount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return WorkersAuto, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid worker count %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("worker count must be positive or \"auto\", got %d", n)
	}
	return WorkerCount(n), nil
}

// IsAuto reports whether the count is "auto".
func (w WorkerCount) IsAuto() bool { return w <= 0 }

// Resolve returns the concrete count, using fallback for "auto".
func (w WorkerCount) Resolve(fallback int) int {
	if w.IsAuto() {
		return fallback
	}
	return int(w)
}

func (w WorkerCount) String() string {
	if w.IsAuto() {
		return "auto"
	}
	return strconv.Itoa(int(w))
}

// MarshalJSON encodes "auto" or the integer count.
func (w WorkerCount) MarshalJSON() ([]byte, error) {
	if w.IsAuto() {
		return json.Marshal("auto")
	}
	return json.Marshal(int(w))
}

// UnmarshalJSON accepts "auto", a numeric string or a number.
func (w *WorkerCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		parsed, err := ParseWorkerCount(strconv.Itoa(n))
		if err != nil {
			return err
		}
		*w = parsed
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("worker count must be a number or \"auto\": %w", err)
	}
	parsed, err := ParseWorkerCount(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Budget bounds the work done for a single file.
type Budget struct {
	// PriorityThreshold drops rules whose priority is below it.
	PriorityThreshold int `json:"priorityThreshold"`
	// MaxRulesPerFile caps evaluated rules (<= 0 means unlimited).
	MaxRulesPerFile int `json:"maxRulesPerFile"`
	// MaxVulnerabilitiesPerFile caps returned findings (<= 0 means unlimited).
	MaxVulnerabilitiesPerFile int `json:"maxVulnerabilitiesPerFile"`
	// WorkerCount is the number of batches in parallel mode.
	WorkerCount WorkerCount `json:"workerCount"`
}

// DefaultBudget returns the budget used when callers supply none.
func DefaultBudget() Budget {
	return Budget{
		PriorityThreshold:         0,
		MaxRulesPerFile:           200,
		MaxVulnerabilitiesPerFile: 100,
		WorkerCount:               WorkersAuto,
	}
}

// Unlimited returns a copy of b without rule or finding caps.
func (b Budget) Unlimited() Budget {
	b.MaxRulesPerFile = 0
	b.MaxVulnerabilitiesPerFile = 0
	return b
}

// FindingCap returns the finding cap, or -1 when unlimited.
func (b Budget) FindingCap() int {
	if b.MaxVulnerabilitiesPerFile <= 0 {
		return -1
	}
	return b.MaxVulnerabilitiesPerFile
}
