package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studytrack/backend/internal/db"
	"studytrack/backend/internal/model"
)

type SessionRepository struct {
	base
}

func NewSessionRepository(database *sql.DB, dialect db.Dialect) *SessionRepository {
	return &SessionRepository{base: base{db: database, dialect: dialect}}
}

const sessionColumns = `id, user_id, subject_id, mode, start_time, end_time, duration,
        pause_count, status, focus_score, created_at`

func (r *SessionRepository) InsertTx(ctx context.Context, tx *sql.Tx, session *model.Session) error {
	_, err := r.exec(
		ctx,
		tx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.SubjectID,
		session.Mode,
		formatTime(session.StartTime),
		formatTime(session.EndTime),
		session.Duration,
		session.PauseCount,
		session.Status,
		session.FocusScore,
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// List returns the newest sessions first. A limit of 0 or less returns all.
func (r *SessionRepository) List(ctx context.Context, userID string, limit int) ([]model.Session, error) {
	if limit <= 0 {
		return r.collect(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY start_time DESC`,
			userID,
		)
	}
	return r.collect(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY start_time DESC LIMIT ?`,
		userID,
		limit,
	)
}

// ListSince returns sessions started at or after since, newest first.
func (r *SessionRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]model.Session, error) {
	return r.collect(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND start_time >= ? ORDER BY start_time DESC`,
		userID,
		formatTime(since),
	)
}

func (r *SessionRepository) collect(ctx context.Context, query string, args ...interface{}) ([]model.Session, error) {
	rows, err := r.query(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.Session, 0)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(s scanner) (*model.Session, error) {
	session := model.Session{}
	var startTime, endTime, createdAt string
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&session.SubjectID,
		&session.Mode,
		&startTime,
		&endTime,
		&session.Duration,
		&session.PauseCount,
		&session.Status,
		&session.FocusScore,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if session.StartTime, err = parseTime(startTime); err != nil {
		return nil, fmt.Errorf("parse session start_time: %w", err)
	}
	if session.EndTime, err = parseTime(endTime); err != nil {
		return nil, fmt.Errorf("parse session end_time: %w", err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	return &session, nil
}
