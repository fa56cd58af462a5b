package types

import "time"

// ProgressMessage is a WebSocket progress update for one job.
type ProgressMessage struct {
	JobID     string    `json:"jobId"`
	Type      string    `json:"type"` // "progress", "status", "complete", "error"
	Status    string    `json:"status"`
	Phase     string    `json:"phase"`
	Progress  int       `json:"progress"` // 0-100
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
