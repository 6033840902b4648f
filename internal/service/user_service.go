package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/model"
	"studytrack/backend/internal/repository"
)

type UserService struct {
	Runtime
	users    *repository.UserRepository
	progress *ProgressService
	timer    *TimerService
}

// NewUserService builds the profile and settings service. timer may be nil;
// otherwise an idle timer follows pomodoro duration changes.
func NewUserService(rt Runtime, users *repository.UserRepository, progress *ProgressService, timer *TimerService) *UserService {
	return &UserService{Runtime: rt, users: users, progress: progress, timer: timer}
}

// SettingsInput is a partial update; nil fields keep their stored value.
type SettingsInput struct {
	PomodoroDuration   *int     `json:"pomodoroDuration" validate:"omitempty,min=1,max=180"`
	ShortBreakDuration *int     `json:"shortBreakDuration" validate:"omitempty,min=1,max=60"`
	LongBreakDuration  *int     `json:"longBreakDuration" validate:"omitempty,min=1,max=120"`
	SessionEndAlert    *bool    `json:"sessionEndAlert"`
	BreakReminder      *bool    `json:"breakReminder"`
	StudyTargetHours   *float64 `json:"studyTargetHours" validate:"omitempty,min=1,max=12,halfstep"`
	DashboardDensity   *string  `json:"dashboardDensity" validate:"omitempty,oneof=relaxed compact"`
	MinimalMode        *bool    `json:"minimalMode"`
}

func (in SettingsInput) apply(settings *model.UserSettings) {
	if in.PomodoroDuration != nil {
		settings.PomodoroDuration = *in.PomodoroDuration
	}
	if in.ShortBreakDuration != nil {
		settings.ShortBreakDuration = *in.ShortBreakDuration
	}
	if in.LongBreakDuration != nil {
		settings.LongBreakDuration = *in.LongBreakDuration
	}
	if in.SessionEndAlert != nil {
		settings.SessionEndAlert = *in.SessionEndAlert
	}
	if in.BreakReminder != nil {
		settings.BreakReminder = *in.BreakReminder
	}
	if in.StudyTargetHours != nil {
		settings.StudyTargetHours = *in.StudyTargetHours
	}
	if in.DashboardDensity != nil {
		settings.DashboardDensity = *in.DashboardDensity
	}
	if in.MinimalMode != nil {
		settings.MinimalMode = *in.MinimalMode
	}
}

// Profile returns the user and settings. A streak whose chain broke before
// yesterday is zeroed on the way out.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.Profile, *apperrors.APIError) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, s.failure("user.get", "failed to get user", err)
	}
	if s.progress != nil {
		s.progress.ExpireStreak(ctx, user)
	}

	settings, apiErr := s.Settings(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	user.PasswordHash = ""
	return &model.Profile{User: *user, Settings: *settings}, nil
}

func (s *UserService) Settings(ctx context.Context, userID string) (*model.UserSettings, *apperrors.APIError) {
	settings, err := s.users.GetSettings(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		defaults := model.DefaultUserSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, s.failure("settings.get", "failed to get settings", err)
	}
	return settings, nil
}

func (s *UserService) UpdateSettings(ctx context.Context, userID string, input SettingsInput) (*model.UserSettings, *apperrors.APIError) {
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	settings, apiErr := s.Settings(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	previousTarget := settings.StudyTargetHours
	previousDuration := settings.PomodoroDuration
	input.apply(settings)

	err := s.users.UpdateSettings(ctx, userID, *settings, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, s.failure("settings.update", "failed to update settings", err)
	}

	if settings.StudyTargetHours != previousTarget && s.progress != nil {
		if _, err := s.progress.RefreshActivity(ctx, userID, settings.StudyTargetHours); err != nil {
			s.failure("progress.activity", "failed to refresh daily activity", err)
		}
	}
	if settings.PomodoroDuration != previousDuration && s.timer != nil {
		if _, apiErr := s.timer.SyncDuration(ctx, userID, settings.PomodoroDuration); apiErr != nil {
			s.log().Warn("timer duration not synced", zap.String("user_id", userID), zap.String("code", apiErr.Code))
		}
	}
	return settings, nil
}

// Resolve finds a user by email when ref contains '@', otherwise by id.
func (s *UserService) Resolve(ctx context.Context, ref string) (*model.User, *apperrors.APIError) {
	ref = strings.TrimSpace(ref)
	var (
		user *model.User
		err  error
	)
	if strings.Contains(ref, "@") {
		user, err = s.users.GetByEmail(ctx, strings.ToLower(ref))
	} else {
		user, err = s.users.GetByID(ctx, ref)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, s.failure("user.resolve", "failed to get user", err)
	}
	user.PasswordHash = ""
	return user, nil
}
