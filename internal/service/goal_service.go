package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/model"
	"studytrack/backend/internal/repository"
	"studytrack/backend/internal/stats"
)

type GoalService struct {
	Runtime
	users      *repository.UserRepository
	sessions   *repository.SessionRepository
	activities *repository.ActivityRepository
	progress   *ProgressService
}

func NewGoalService(
	rt Runtime,
	users *repository.UserRepository,
	sessions *repository.SessionRepository,
	activities *repository.ActivityRepository,
	progress *ProgressService,
) *GoalService {
	return &GoalService{Runtime: rt, users: users, sessions: sessions, activities: activities, progress: progress}
}

// GoalView is today's target progress and habit list.
type GoalView struct {
	Date           string        `json:"date"`
	TargetHours    float64       `json:"targetHours"`
	StudiedSeconds int           `json:"studiedSeconds"`
	Progress       float64       `json:"progress"`
	TargetMet      bool          `json:"targetMet"`
	Streak         int           `json:"streak"`
	Habits         []model.Habit `json:"habits"`
}

type TargetInput struct {
	Hours float64 `json:"hours" validate:"required,min=1,max=12,halfstep"`
}

type HabitInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (s *GoalService) Today(ctx context.Context, userID string) (*GoalView, *apperrors.APIError) {
	now := s.now()
	loc := s.loc()
	date := stats.DateKey(now, loc)

	settings, err := s.users.GetSettings(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, s.failure("goal.settings", "failed to get settings", err)
	}
	target := model.DefaultUserSettings().StudyTargetHours
	if settings != nil {
		target = settings.StudyTargetHours
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, s.failure("goal.user", "failed to get user", err)
	}
	if s.progress != nil {
		s.progress.ExpireStreak(ctx, user)
	}

	today, err := s.sessions.ListSince(ctx, userID, stats.StartOfDay(now, loc))
	if err != nil {
		return nil, s.failure("goal.sessions", "failed to list sessions", err)
	}
	studied := stats.TodayTotal(today, now, loc)

	habits, err := s.activities.ListHabits(ctx, userID, date)
	if err != nil {
		return nil, s.failure("goal.habits", "failed to list habits", err)
	}

	return &GoalView{
		Date:           date,
		TargetHours:    target,
		StudiedSeconds: studied,
		Progress:       stats.Progress(studied, target),
		TargetMet:      float64(studied) >= stats.TargetSeconds(target),
		Streak:         user.Streak,
		Habits:         habits,
	}, nil
}

// SetTarget stores the daily target and re-evaluates today's activity row
// against it.
func (s *GoalService) SetTarget(ctx context.Context, userID string, input TargetInput) (*GoalView, *apperrors.APIError) {
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	settings, err := s.users.GetSettings(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, s.failure("goal.settings", "failed to get settings", err)
	}
	settings.StudyTargetHours = input.Hours
	if err := s.users.UpdateSettings(ctx, userID, *settings, s.now()); err != nil {
		return nil, s.failure("goal.target", "failed to update target", err)
	}

	if s.progress != nil {
		if _, err := s.progress.RefreshActivity(ctx, userID, input.Hours); err != nil {
			s.failure("progress.activity", "failed to refresh daily activity", err)
		}
	}
	return s.Today(ctx, userID)
}

// AddHabit appends a habit to today's list.
func (s *GoalService) AddHabit(ctx context.Context, userID string, input HabitInput) (*model.Habit, *apperrors.APIError) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	now := s.now()
	habit := &model.Habit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      stats.DateKey(now, s.loc()),
		Name:      input.Name,
		CreatedAt: now,
	}
	if err := s.activities.AddHabit(ctx, habit); err != nil {
		return nil, s.failure("goal.habit_add", "failed to add habit", err)
	}
	return habit, nil
}

func (s *GoalService) ToggleHabit(ctx context.Context, userID, id string) (*model.Habit, *apperrors.APIError) {
	habit, err := s.activities.ToggleHabit(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("habit_not_found", "habit not found")
	}
	if err != nil {
		return nil, s.failure("goal.habit_toggle", "failed to toggle habit", err)
	}
	return habit, nil
}

func (s *GoalService) DeleteHabit(ctx context.Context, userID, id string) *apperrors.APIError {
	err := s.activities.DeleteHabit(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("habit_not_found", "habit not found")
	}
	if err != nil {
		return s.failure("goal.habit_delete", "failed to delete habit", err)
	}
	return nil
}
