package model

import "time"

// DailyActivity is a per-user, per-day record keyed by the local date (YYYY-MM-DD).
type DailyActivity struct {
	UserID           string    `json:"userId"`
	Date             string    `json:"date"`
	StudyTimeSeconds int       `json:"studyTimeSeconds"`
	StudyTargetMet   bool      `json:"studyTargetMet"`
	Habits           []Habit   `json:"habits"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Habit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Date      string    `json:"-"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}
