package model

import "time"

const (
	SessionStatusStopped   = "stopped"
	SessionStatusCompleted = "completed"
)

const (
	// MinSessionSeconds is the duration a stopped timer must exceed to be recorded.
	MinSessionSeconds = 5
	// DefaultFocusScore is stored on every session; focus is not measured.
	DefaultFocusScore = 100
)

// Session is an immutable record of a finished study interval.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	SubjectID  string    `json:"subjectId"`
	Mode       string    `json:"mode"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Duration   int       `json:"duration"`
	PauseCount int       `json:"pauseCount"`
	Status     string    `json:"status"`
	FocusScore int       `json:"focusScore"`
	CreatedAt  time.Time `json:"createdAt"`
}
