package dialogue

// EnvelopeType discriminates the orchestrator's per-turn result.
type EnvelopeType string

const (
	EnvelopeMessage EnvelopeType = "message"
	EnvelopeSys2    EnvelopeType = "sys2"
	EnvelopeError   EnvelopeType = "error"
)

// Envelope is the tagged result of processing one user turn.
// Exactly one variant is populated: Content for message/error,
// Thinking+Response for sys2.
type Envelope struct {
	Type     EnvelopeType `json:"type"`
	Content  string       `json:"content,omitempty"`
	Thinking string       `json:"thinking,omitempty"`
	Response string       `json:"response,omitempty"`
}
