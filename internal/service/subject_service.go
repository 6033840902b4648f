package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/model"
	"studytrack/backend/internal/repository"
)

type SubjectService struct {
	Runtime
	repo *repository.SubjectRepository
}

func NewSubjectService(rt Runtime, repo *repository.SubjectRepository) *SubjectService {
	return &SubjectService{Runtime: rt, repo: repo}
}

type SubjectInput struct {
	Name     string `json:"name" validate:"required,max=64"`
	Color    string `json:"color" validate:"required,len=7,hexcolor"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func (in *SubjectInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.ToLower(strings.TrimSpace(in.Color))
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
}

func (s *SubjectService) List(ctx context.Context, userID string, activeOnly bool) ([]model.Subject, *apperrors.APIError) {
	subjects, err := s.repo.List(ctx, userID, activeOnly)
	if err != nil {
		return nil, s.failure("subject.list", "failed to list subjects", err)
	}
	return subjects, nil
}

func (s *SubjectService) Create(ctx context.Context, userID string, input SubjectInput) (*model.Subject, *apperrors.APIError) {
	input.normalize()
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	now := s.now()
	subject := &model.Subject{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      input.Name,
		Color:     input.Color,
		Priority:  input.Priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, s.failure("subject.create", "failed to create subject", err)
	}
	return subject, nil
}

func (s *SubjectService) Update(ctx context.Context, userID, id string, input SubjectInput) (*model.Subject, *apperrors.APIError) {
	input.normalize()
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	subject, apiErr := s.get(ctx, userID, id)
	if apiErr != nil {
		return nil, apiErr
	}
	subject.Name = input.Name
	subject.Color = input.Color
	subject.Priority = input.Priority
	subject.UpdatedAt = s.now()
	return subject, s.save(ctx, subject)
}

// ToggleArchive flips the archived flag. Archived subjects keep their
// sessions and stay visible in statistics.
func (s *SubjectService) ToggleArchive(ctx context.Context, userID, id string) (*model.Subject, *apperrors.APIError) {
	subject, apiErr := s.get(ctx, userID, id)
	if apiErr != nil {
		return nil, apiErr
	}
	subject.Archived = !subject.Archived
	subject.UpdatedAt = s.now()
	return subject, s.save(ctx, subject)
}

func (s *SubjectService) get(ctx context.Context, userID, id string) (*model.Subject, *apperrors.APIError) {
	subject, err := s.repo.GetByID(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("subject_not_found", "subject not found")
	}
	if err != nil {
		return nil, s.failure("subject.get", "failed to get subject", err)
	}
	return subject, nil
}

func (s *SubjectService) save(ctx context.Context, subject *model.Subject) *apperrors.APIError {
	err := s.repo.Update(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("subject_not_found", "subject not found")
	}
	if err != nil {
		return s.failure("subject.update", "failed to update subject", err)
	}
	return nil
}
