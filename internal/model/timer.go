package model

import "time"

const (
	ModePomodoro  = "pomodoro"
	ModeStopwatch = "stopwatch"

	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusPaused  = "paused"
)

const (
	DefaultPomodoroMinutes = 25
	MinPomodoroMinutes     = 1
	MaxPomodoroMinutes     = 180
)

// TimerState is the single mutable timer row of a user. StartedAt is set
// exactly when Status is running.
type TimerState struct {
	UserID           string     `json:"userId"`
	Status           string     `json:"status"`
	Mode             string     `json:"mode"`
	InitialDuration  int        `json:"initialDuration"`
	DurationMinutes  int        `json:"durationMinutes"`
	AccumulatedTime  float64    `json:"accumulatedTime"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	SessionStartTime *time.Time `json:"sessionStartTime,omitempty"`
	SubjectID        string     `json:"subjectId,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NewTimerState returns the idle state a user starts with.
func NewTimerState(userID string, durationMinutes int) TimerState {
	if durationMinutes <= 0 {
		durationMinutes = DefaultPomodoroMinutes
	}
	return TimerState{
		UserID:          userID,
		Status:          StatusStopped,
		Mode:            ModePomodoro,
		InitialDuration: durationMinutes * 60,
		DurationMinutes: durationMinutes,
	}
}

func IsValidMode(mode string) bool {
	return mode == ModePomodoro || mode == ModeStopwatch
}
