package output

import "time"

// ErrorResponse is the standard JSON error format
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"` // Remediation hint (suggested fix command)
}

// NewError creates a new error response
func NewError(msg string) ErrorResponse {
	return ErrorResponse{Error: msg}
}

// TimestampedResponse adds a timestamp to any response
type TimestampedResponse struct {
	GeneratedAt time.Time `json:"generated_at"`
}

// NewTimestamped creates a timestamped response base
func NewTimestamped() TimestampedResponse {
	return TimestampedResponse{GeneratedAt: time.Now().UTC()}
}

// IndicatorResponse is one health light in a panel snapshot.
type IndicatorResponse struct {
	Name  string `json:"name"`
	Op    string `json:"op,omitempty"`
	Value string `json:"value"` // good, bad, warning, notapplic
	Age   string `json:"age,omitempty"`
}

// OpSessionResponse is one operation's session in a panel snapshot.
type OpSessionResponse struct {
	Op      string `json:"op"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Success *bool  `json:"success,omitempty"`
	DataAge string `json:"data_age,omitempty"`
}

// PanelResponse is the snapshot for one agent panel.
type PanelResponse struct {
	Agent      string              `json:"agent"`
	Address    string              `json:"address"`
	Router     string              `json:"router"` // indicator value for the router light
	Connected  string              `json:"connected"`
	Worst      string              `json:"worst"`
	Activities string              `json:"activities"` // "idle" when nothing is active
	Indicators []IndicatorResponse `json:"indicators"`
	Sessions   []OpSessionResponse `json:"sessions,omitempty"`
}

// StatusResponse is the output format for the status command.
type StatusResponse struct {
	TimestampedResponse
	Panels []PanelResponse `json:"panels"`
}

// DispatchResponse is the output format for run/abort/start/stop.
type DispatchResponse struct {
	TimestampedResponse
	Agent   string `json:"agent"`
	Op      string `json:"op"`
	Verb    string `json:"verb"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
