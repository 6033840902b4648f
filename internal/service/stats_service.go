package service

import (
	"context"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/repository"
	"studytrack/backend/internal/stats"
)

type StatsService struct {
	Runtime
	sessions *repository.SessionRepository
	subjects *repository.SubjectRepository
}

func NewStatsService(rt Runtime, sessions *repository.SessionRepository, subjects *repository.SubjectRepository) *StatsService {
	return &StatsService{Runtime: rt, sessions: sessions, subjects: subjects}
}

// Dashboard aggregates every stored session. Archived subjects are included
// so their history still counts.
func (s *StatsService) Dashboard(ctx context.Context, userID string) (*stats.Dashboard, *apperrors.APIError) {
	sessions, err := s.sessions.List(ctx, userID, 0)
	if err != nil {
		return nil, s.failure("stats.sessions", "failed to list sessions", err)
	}
	subjects, err := s.subjects.List(ctx, userID, false)
	if err != nil {
		return nil, s.failure("stats.subjects", "failed to list subjects", err)
	}
	dashboard := stats.Compute(sessions, subjects, s.now(), s.loc())
	return &dashboard, nil
}
