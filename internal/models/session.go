package models

import (
	"time"
)

// Session statuses
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// WorkSession represents one worked period of a single owner
type WorkSession struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OwnerID       string     `gorm:"not null;index" json:"owner_id"`
	StartTime     time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	RecoveredAt   *time.Time `json:"recovered_at"` // last time an abandoned session was taken back
	Status        string     `gorm:"not null;default:active" json:"status"` // active, paused, completed, abandoned
	TotalDuration *string    `json:"total_duration"`                        // HH:MM:SS, set on completion
	Notes         string     `json:"notes"`
	DeviceInfo    string     `json:"device_info"`

	// Relationships
	Pauses []WorkPause `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE;" json:"pauses"`
}

// IsOpen reports whether the session still takes part in the lifecycle
func (s *WorkSession) IsOpen() bool {
	return s.Status == StatusActive || s.Status == StatusPaused
}

// StaleSince is the instant staleness is measured from: the start, or the last recovery if later
func (s *WorkSession) StaleSince() time.Time {
	if s.RecoveredAt != nil && s.RecoveredAt.After(s.StartTime) {
		return *s.RecoveredAt
	}
	return s.StartTime
}

// OpenPause returns the pause with no end, if any
func (s *WorkSession) OpenPause() *WorkPause {
	for i := range s.Pauses {
		if s.Pauses[i].PauseEnd == nil {
			return &s.Pauses[i]
		}
	}
	return nil
}

// LastPause returns the most recent pause, if any. Pauses are kept oldest first.
func (s *WorkSession) LastPause() *WorkPause {
	if len(s.Pauses) == 0 {
		return nil
	}
	return &s.Pauses[len(s.Pauses)-1]
}

// WorkPause represents one pause window inside a session
type WorkPause struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SessionID  string     `gorm:"not null;index" json:"session_id"`
	PauseStart time.Time  `gorm:"not null" json:"pause_start"`
	PauseEnd   *time.Time `json:"pause_end"`
}

// SessionUpdate lists the columns a session write may change; nil fields are left alone
type SessionUpdate struct {
	Status        *string
	EndTime       *time.Time
	TotalDuration *string
	Notes         *string
	RecoveredAt   *time.Time

	// CloseOpenPauseAt closes the session's open pause, if any, in the same write
	CloseOpenPauseAt *time.Time
}
