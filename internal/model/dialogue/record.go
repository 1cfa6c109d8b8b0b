package dialogue

import "time"

// Invocation record status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// InvocationRecord is the durable audit entry for one remote-model call.
// Written once per call's final outcome, never per retry, never mutated.
type InvocationRecord struct {
	SessionID      int64     `json:"session_id"`
	Timestamp      time.Time `json:"timestamp"`
	AgentName      string    `json:"agent_name"`
	InputText      string    `json:"input_text"`
	OutputText     string    `json:"output_text"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	ModelName      string    `json:"model_name"`
	Status         string    `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}
