package model

import "time"

const (
	DensityRelaxed = "relaxed"
	DensityCompact = "compact"
)

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	DisplayName      string     `json:"displayName"`
	Streak           int        `json:"streak"`
	LastStreakUpdate string     `json:"lastStreakUpdate,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
}

type UserSettings struct {
	PomodoroDuration   int     `json:"pomodoroDuration"`
	ShortBreakDuration int     `json:"shortBreakDuration"`
	LongBreakDuration  int     `json:"longBreakDuration"`
	SessionEndAlert    bool    `json:"sessionEndAlert"`
	BreakReminder      bool    `json:"breakReminder"`
	StudyTargetHours   float64 `json:"studyTargetHours"`
	DashboardDensity   string  `json:"dashboardDensity"`
	MinimalMode        bool    `json:"minimalMode"`
}

func DefaultUserSettings() UserSettings {
	return UserSettings{
		PomodoroDuration:   DefaultPomodoroMinutes,
		ShortBreakDuration: 5,
		LongBreakDuration:  15,
		SessionEndAlert:    true,
		BreakReminder:      true,
		StudyTargetHours:   2,
		DashboardDensity:   DensityRelaxed,
		MinimalMode:        false,
	}
}

// Profile is the user as served to its owner.
type Profile struct {
	User     User         `json:"user"`
	Settings UserSettings `json:"settings"`
}
