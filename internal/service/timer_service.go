package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/events"
	"studytrack/backend/internal/model"
	"studytrack/backend/internal/repository"
	"studytrack/backend/internal/timer"
)

const codeTimerActive = "timer_active"

type TimerService struct {
	Runtime
	repo     *repository.TimerRepository
	sessions *repository.SessionRepository
	subjects *repository.SubjectRepository
	users    *repository.UserRepository
	progress *ProgressService
	bus      events.Publisher
}

// StateView is the timer row plus the derived display seconds at ServerTime.
type StateView struct {
	model.TimerState
	Display    float64   `json:"display"`
	ServerTime time.Time `json:"serverTime"`
}

type ActionResult struct {
	State   StateView      `json:"state"`
	Session *model.Session `json:"session,omitempty"`
}

func NewTimerService(
	rt Runtime,
	repo *repository.TimerRepository,
	sessions *repository.SessionRepository,
	subjects *repository.SubjectRepository,
	users *repository.UserRepository,
	progress *ProgressService,
	bus events.Publisher,
) *TimerService {
	if bus == nil {
		bus = events.Nop{}
	}
	return &TimerService{
		Runtime:  rt,
		repo:     repo,
		sessions: sessions,
		subjects: subjects,
		users:    users,
		progress: progress,
		bus:      bus,
	}
}

// GetState returns the current state, finishing a countdown that reached
// zero while nobody was watching.
func (s *TimerService) GetState(ctx context.Context, userID string) (*ActionResult, *apperrors.APIError) {
	return s.apply(ctx, userID, timer.Tick())
}

func (s *TimerService) Tick(ctx context.Context, userID string) (*ActionResult, *apperrors.APIError) {
	return s.apply(ctx, userID, timer.Tick())
}

func (s *TimerService) Start(ctx context.Context, userID, subjectID string) (*ActionResult, *apperrors.APIError) {
	if subjectID != "" {
		if apiErr := s.ensureSubject(ctx, userID, subjectID); apiErr != nil {
			return nil, apiErr
		}
	}
	return s.apply(ctx, userID, timer.Start(subjectID))
}

func (s *TimerService) Pause(ctx context.Context, userID string) (*ActionResult, *apperrors.APIError) {
	return s.apply(ctx, userID, timer.Pause())
}

// Stop finalizes the session. An empty reason means a manual stop.
func (s *TimerService) Stop(ctx context.Context, userID, reason string) (*ActionResult, *apperrors.APIError) {
	if reason == "" {
		reason = model.SessionStatusStopped
	}
	return s.apply(ctx, userID, timer.Stop(reason))
}

func (s *TimerService) Reset(ctx context.Context, userID string) (*ActionResult, *apperrors.APIError) {
	return s.apply(ctx, userID, timer.Reset())
}

func (s *TimerService) SetMode(ctx context.Context, userID, mode string) (*ActionResult, *apperrors.APIError) {
	return s.apply(ctx, userID, timer.SetMode(mode))
}

func (s *TimerService) SetSubject(ctx context.Context, userID, subjectID string) (*ActionResult, *apperrors.APIError) {
	if subjectID != "" {
		if apiErr := s.ensureSubject(ctx, userID, subjectID); apiErr != nil {
			return nil, apiErr
		}
	}
	return s.apply(ctx, userID, timer.SetSubject(subjectID))
}

func (s *TimerService) SetDuration(ctx context.Context, userID string, minutes int) (*ActionResult, *apperrors.APIError) {
	return s.apply(ctx, userID, timer.SetDuration(minutes))
}

// SyncDuration follows a changed pomodoro setting. A running or paused
// timer keeps its duration and nil is returned.
func (s *TimerService) SyncDuration(ctx context.Context, userID string, minutes int) (*ActionResult, *apperrors.APIError) {
	result, apiErr := s.apply(ctx, userID, timer.SetDuration(minutes))
	if apiErr != nil && apiErr.Code == codeTimerActive {
		return nil, nil
	}
	return result, apiErr
}

// Now is the service clock, shared with the event stream.
func (s *TimerService) Now() time.Time {
	return s.now()
}

// apply runs ev in one transaction: load (or create) the row, complete an
// overdue countdown, apply the event, persist, and record any finished
// session. Streak and activity follow after commit.
func (s *TimerService) apply(ctx context.Context, userID string, ev timer.Event) (*ActionResult, *apperrors.APIError) {
	now := s.now()
	op := "timer." + string(ev.Kind)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, s.failure(op, "failed to start transaction", err)
	}
	defer tx.Rollback()

	state, apiErr := s.loadStateTx(ctx, tx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}

	var recorded []*model.Session
	if ev.Kind != timer.EventTick && timer.Due(*state, now) {
		session, apiErr := s.stepTx(ctx, tx, state, timer.Tick(), now)
		if apiErr != nil {
			return nil, apiErr
		}
		if session != nil {
			recorded = append(recorded, session)
		}
	}

	session, apiErr := s.stepTx(ctx, tx, state, ev, now)
	if apiErr != nil {
		return nil, apiErr
	}
	if session != nil {
		recorded = append(recorded, session)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.failure(op, "failed to commit transaction", err)
	}

	for _, session := range recorded {
		s.countSession(session)
		if s.progress != nil {
			s.progress.AfterSession(ctx, userID)
		}
		s.publish(events.TypeCompleted, *state, session, now)
	}
	if state.UpdatedAt.Equal(now) {
		s.publish(events.TypeState, *state, nil, now)
	}

	result := &ActionResult{State: s.toStateView(*state, now)}
	if len(recorded) > 0 {
		result.Session = recorded[len(recorded)-1]
	}
	return result, nil
}

// stepTx applies one event to state in place and writes what changed.
func (s *TimerService) stepTx(ctx context.Context, tx *sql.Tx, state *model.TimerState, ev timer.Event, now time.Time) (*model.Session, *apperrors.APIError) {
	res, err := timer.Apply(*state, ev, now)
	if err != nil {
		s.countTransition(ev.Kind, "rejected")
		return nil, s.timerError(err, *state, now)
	}
	if !res.Changed {
		s.countTransition(ev.Kind, "noop")
		return nil, nil
	}
	s.countTransition(ev.Kind, "changed")

	*state = res.State
	state.UpdatedAt = now
	if err := s.repo.UpsertStateTx(ctx, tx, state); err != nil {
		return nil, s.failure("timer."+string(ev.Kind), "failed to update timer state", err)
	}

	if res.Completion == nil {
		return nil, nil
	}
	session := &model.Session{
		ID:         uuid.NewString(),
		UserID:     state.UserID,
		SubjectID:  res.Completion.SubjectID,
		Mode:       res.Completion.Mode,
		StartTime:  res.Completion.StartTime.UTC(),
		EndTime:    res.Completion.EndTime.UTC(),
		Duration:   res.Completion.Duration,
		PauseCount: 0,
		Status:     res.Completion.Status,
		FocusScore: model.DefaultFocusScore,
		CreatedAt:  now,
	}
	if err := s.sessions.InsertTx(ctx, tx, session); err != nil {
		return nil, s.failure("session.insert", "failed to record session", err)
	}
	return session, nil
}

// loadStateTx reads the timer row, creating the idle row from the user's
// pomodoro setting when it does not exist yet.
func (s *TimerService) loadStateTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (*model.TimerState, *apperrors.APIError) {
	state, err := s.repo.GetStateTx(ctx, tx, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.failure("timer.load", "failed to get timer state", err)
	}

	minutes := model.DefaultPomodoroMinutes
	settings, err := s.users.GetSettingsTx(ctx, tx, userID)
	switch {
	case err == nil:
		minutes = settings.PomodoroDuration
	case !errors.Is(err, repository.ErrNotFound):
		return nil, s.failure("timer.load", "failed to get settings", err)
	}

	initial := model.NewTimerState(userID, minutes)
	initial.UpdatedAt = now
	if err := s.repo.UpsertStateTx(ctx, tx, &initial); err != nil {
		return nil, s.failure("timer.load", "failed to initialize timer state", err)
	}
	return &initial, nil
}

func (s *TimerService) ensureSubject(ctx context.Context, userID, subjectID string) *apperrors.APIError {
	subject, err := s.subjects.GetByID(ctx, userID, subjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("subject_not_found", "subject not found")
	}
	if err != nil {
		return s.failure("subject.get", "failed to get subject", err)
	}
	if subject.Archived {
		return apperrors.UnprocessableEntity("subject_archived", "subject is archived")
	}
	return nil
}

func (s *TimerService) timerError(err error, state model.TimerState, now time.Time) *apperrors.APIError {
	switch {
	case errors.Is(err, timer.ErrSubjectRequired):
		return apperrors.UnprocessableEntity("subject_required", "select a subject before starting the timer")
	case errors.Is(err, timer.ErrTimerActive):
		return apperrors.Conflict(codeTimerActive, "stop the timer before changing it", map[string]interface{}{
			"state": s.toStateView(state, now),
		})
	case errors.Is(err, timer.ErrInvalidMode):
		return apperrors.BadRequest("invalid_mode", "mode must be one of pomodoro, stopwatch")
	case errors.Is(err, timer.ErrInvalidDuration):
		return apperrors.BadRequest("invalid_duration", "duration must be between 1 and 180 minutes")
	case errors.Is(err, timer.ErrInvalidReason):
		return apperrors.BadRequest("invalid_reason", "reason must be one of stopped, completed")
	default:
		return s.failure("timer.apply", "failed to apply timer event", err)
	}
}

func (s *TimerService) toStateView(state model.TimerState, now time.Time) StateView {
	return StateView{
		TimerState: state,
		Display:    timer.Display(state, now),
		ServerTime: now,
	}
}

func (s *TimerService) publish(kind string, state model.TimerState, session *model.Session, now time.Time) {
	err := s.bus.PublishTimer(events.TimerEvent{
		Type:    kind,
		UserID:  state.UserID,
		State:   state,
		Display: timer.Display(state, now),
		Session: session,
		At:      now,
	})
	if err != nil {
		s.log().Warn("timer event not published", zap.String("user_id", state.UserID), zap.Error(err))
	}
}

func (s *TimerService) countTransition(kind timer.EventKind, outcome string) {
	if s.Metrics != nil {
		s.Metrics.TimerTransitions.WithLabelValues(string(kind), outcome).Inc()
	}
}

func (s *TimerService) countSession(session *model.Session) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.SessionsRecorded.WithLabelValues(session.Status).Inc()
	s.Metrics.SessionSeconds.Observe(float64(session.Duration))
}
