package dialogue

import "time"

// Well-known message roles. The role column is an open string set,
// new labels may appear without a schema change.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one immutable turn in a session's history.
type Message struct {
	SessionID int64     `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
