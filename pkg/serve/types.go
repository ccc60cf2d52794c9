package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/vuescan/pkg/types"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "detect" | "detect_batch" | "stats" | "reset" | "close"
	Payload json.RawMessage `json:"payload"`
}

// DetectPayload is the payload for "detect" requests. A nil Budget uses the
// server default; Unlimited ignores the budget's caps.
type DetectPayload struct {
	File      string        `json:"file"`
	Content   string        `json:"content"`
	Budget    *types.Budget `json:"budget,omitempty"`
	Unlimited bool          `json:"unlimited,omitempty"`
}

// DetectBatchPayload is the payload for "detect_batch" requests
type DetectBatchPayload struct {
	Items []DetectPayload `json:"items"`
}

// DetectResult is the data of a "detect" response and one entry of a
// "detect_batch" response.
type DetectResult struct {
	File     string           `json:"file"`
	Findings []*types.Finding `json:"findings"`
	Error    string           `json:"error,omitempty"`
}

// DetectBatchResult is the data of a "detect_batch" response
type DetectBatchResult struct {
	Results []DetectResult `json:"results"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | request type | "decode"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
	Rules   int    `json:"rules"`
}
