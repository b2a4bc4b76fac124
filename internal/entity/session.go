package entity

import "time"

type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

func IsValidSessionStatus(status string) bool {
	switch SessionStatus(status) {
	case SessionStatusInProgress, SessionStatusCompleted, SessionStatusFailed:
		return true
	default:
		return false
	}
}

// ScanSession is one inspection run: a named grouping of frames, GPS fixes
// and detection results. Counters are owned by the frame aggregator and
// synced here for display.
type ScanSession struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	TotalFrames     int       `json:"total_frames"`
	ProcessedFrames int       `json:"processed_frames"`
	TotalCracks     int       `json:"total_cracks"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SessionStats struct {
	TotalFrames     int `json:"total_frames"`
	ProcessedFrames int `json:"processed_frames"`
	TotalCracks     int `json:"total_cracks"`
}
