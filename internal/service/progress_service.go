package service

import (
	"context"

	"go.uber.org/zap"

	"studytrack/backend/internal/model"
	"studytrack/backend/internal/repository"
	"studytrack/backend/internal/stats"
)

// ProgressService keeps the derived per-user progress in step with stored
// sessions: the streak and today's activity row. Its writes are best effort;
// failures are logged and counted and never undo the session that caused them.
type ProgressService struct {
	Runtime
	users      *repository.UserRepository
	sessions   *repository.SessionRepository
	activities *repository.ActivityRepository
}

func NewProgressService(
	rt Runtime,
	users *repository.UserRepository,
	sessions *repository.SessionRepository,
	activities *repository.ActivityRepository,
) *ProgressService {
	return &ProgressService{Runtime: rt, users: users, sessions: sessions, activities: activities}
}

// AfterSession re-derives today's total from every stored session of the
// local day, advances the streak when the target is first met, and records
// the day's activity.
func (s *ProgressService) AfterSession(ctx context.Context, userID string) {
	now := s.now()
	loc := s.loc()

	settings, err := s.users.GetSettings(ctx, userID)
	if err != nil {
		s.failure("progress.settings", "failed to load settings", err)
		return
	}
	today, err := s.sessions.ListSince(ctx, userID, stats.StartOfDay(now, loc))
	if err != nil {
		s.failure("progress.sessions", "failed to load today's sessions", err)
		return
	}
	total := stats.TodayTotal(today, now, loc)
	targetMet := float64(total) >= stats.TargetSeconds(settings.StudyTargetHours)

	if err := s.activities.UpsertStudyTime(ctx, userID, stats.DateKey(now, loc), total, targetMet, now); err != nil {
		s.failure("progress.activity", "failed to record daily activity", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.failure("progress.user", "failed to load user", err)
		return
	}
	update := stats.EvaluateStreak(user.Streak, user.LastStreakUpdate, total, settings.StudyTargetHours, now, loc)
	if !update.Changed {
		return
	}
	if err := s.users.UpdateStreak(ctx, userID, update.Streak, update.LastUpdate, now); err != nil {
		s.failure("progress.streak", "failed to update streak", err)
		return
	}

	kind := "increment"
	if update.Streak == 1 {
		kind = "restart"
	}
	s.countStreak(kind)
	s.log().Info("streak updated",
		zap.String("user_id", userID),
		zap.Int("streak", update.Streak),
		zap.String("kind", kind),
	)
}

// ExpireStreak zeroes a lapsed streak on user in place and persists it.
func (s *ProgressService) ExpireStreak(ctx context.Context, user *model.User) {
	update := stats.ExpireStreak(user.Streak, user.LastStreakUpdate, s.now(), s.loc())
	if !update.Changed {
		return
	}
	user.Streak = update.Streak
	if err := s.users.UpdateStreak(ctx, user.ID, update.Streak, update.LastUpdate, s.now()); err != nil {
		s.failure("progress.expire", "failed to expire streak", err)
		return
	}
	s.countStreak("expire")
}

// RefreshActivity rewrites today's activity row, for example after the
// target changed.
func (s *ProgressService) RefreshActivity(ctx context.Context, userID string, targetHours float64) (int, error) {
	now := s.now()
	loc := s.loc()
	today, err := s.sessions.ListSince(ctx, userID, stats.StartOfDay(now, loc))
	if err != nil {
		return 0, err
	}
	total := stats.TodayTotal(today, now, loc)
	targetMet := float64(total) >= stats.TargetSeconds(targetHours)
	if err := s.activities.UpsertStudyTime(ctx, userID, stats.DateKey(now, loc), total, targetMet, now); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *ProgressService) countStreak(kind string) {
	if s.Metrics != nil {
		s.Metrics.StreakUpdates.WithLabelValues(kind).Inc()
	}
}
