package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studytrack/backend/internal/db"
	"studytrack/backend/internal/model"
)

type TimerRepository struct {
	base
}

func NewTimerRepository(database *sql.DB, dialect db.Dialect) *TimerRepository {
	return &TimerRepository{base: base{db: database, dialect: dialect}}
}

const selectTimerState = `SELECT user_id, status, mode, initial_duration, duration_minutes,
        accumulated_time, started_at, session_start_time, subject_id, updated_at
 FROM timer_states WHERE user_id = ?`

func (r *TimerRepository) GetState(ctx context.Context, userID string) (*model.TimerState, error) {
	return scanTimerState(r.queryRow(ctx, r.db, selectTimerState, userID))
}

// GetStateTx reads the row and holds it until tx ends, so concurrent
// transitions of one user run one after another. SQLite already has a
// single connection; Postgres takes a row lock.
func (r *TimerRepository) GetStateTx(ctx context.Context, tx *sql.Tx, userID string) (*model.TimerState, error) {
	return scanTimerState(r.queryRow(ctx, tx, r.lockingSelect(), userID))
}

func (r *TimerRepository) lockingSelect() string {
	if r.dialect == db.Postgres {
		return selectTimerState + " FOR UPDATE"
	}
	return selectTimerState
}

// UpsertStateTx writes the single timer row of the user, creating it when
// missing.
func (r *TimerRepository) UpsertStateTx(ctx context.Context, tx *sql.Tx, state *model.TimerState) error {
	_, err := r.exec(
		ctx,
		tx,
		`INSERT INTO timer_states (
			user_id, status, mode, initial_duration, duration_minutes,
			accumulated_time, started_at, session_start_time, subject_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			status = excluded.status,
			mode = excluded.mode,
			initial_duration = excluded.initial_duration,
			duration_minutes = excluded.duration_minutes,
			accumulated_time = excluded.accumulated_time,
			started_at = excluded.started_at,
			session_start_time = excluded.session_start_time,
			subject_id = excluded.subject_id,
			updated_at = excluded.updated_at`,
		state.UserID,
		state.Status,
		state.Mode,
		state.InitialDuration,
		state.DurationMinutes,
		state.AccumulatedTime,
		nullableTime(state.StartedAt),
		nullableTime(state.SessionStartTime),
		state.SubjectID,
		formatTime(state.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert timer state: %w", err)
	}
	return nil
}

func scanTimerState(s scanner) (*model.TimerState, error) {
	state := model.TimerState{}
	var startedAt sql.NullString
	var sessionStart sql.NullString
	var updatedAt string
	err := s.Scan(
		&state.UserID,
		&state.Status,
		&state.Mode,
		&state.InitialDuration,
		&state.DurationMinutes,
		&state.AccumulatedTime,
		&startedAt,
		&sessionStart,
		&state.SubjectID,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan timer state: %w", err)
	}

	if state.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse timer started_at: %w", err)
	}
	if state.SessionStartTime, err = parseNullTime(sessionStart); err != nil {
		return nil, fmt.Errorf("parse timer session_start_time: %w", err)
	}
	if state.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse timer updated_at: %w", err)
	}
	return &state, nil
}
