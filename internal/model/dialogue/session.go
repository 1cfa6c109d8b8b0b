package dialogue

import "time"

// Session status values stored in the sessions table.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// Session bounds one conversation between connect and disconnect.
type Session struct {
	ID        int64      `json:"sessionId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Status    string     `json:"status"`
}
