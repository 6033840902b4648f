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

type UserRepository struct {
	base
}

func NewUserRepository(database *sql.DB, dialect db.Dialect) *UserRepository {
	return &UserRepository{base: base{db: database, dialect: dialect}}
}

const userColumns = `id, email, password_hash, display_name, streak, last_streak_update,
        created_at, updated_at, last_login_at`

func (r *UserRepository) CreateTx(ctx context.Context, tx *sql.Tx, user *model.User) error {
	_, err := r.exec(
		ctx,
		tx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.Streak,
		user.LastStreakUpdate,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		nullableTime(user.LastLoginAt),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.queryRow(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.queryRow(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdateStreak(ctx context.Context, userID string, streak int, lastUpdate string, now time.Time) error {
	result, err := r.exec(
		ctx,
		r.db,
		`UPDATE users SET streak = ?, last_streak_update = ?, updated_at = ? WHERE id = ?`,
		streak,
		lastUpdate,
		formatTime(now),
		userID,
	)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	return requireAffected(result)
}

func (r *UserRepository) TouchLogin(ctx context.Context, userID string, now time.Time) error {
	_, err := r.exec(
		ctx,
		r.db,
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(now),
		formatTime(now),
		userID,
	)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}

func (r *UserRepository) CreateSettingsTx(ctx context.Context, tx *sql.Tx, userID string, settings model.UserSettings, now time.Time) error {
	_, err := r.exec(
		ctx,
		tx,
		`INSERT INTO user_settings (
			user_id, pomodoro_duration, short_break_duration, long_break_duration,
			session_end_alert, break_reminder, study_target_hours, dashboard_density,
			minimal_mode, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID,
		settings.PomodoroDuration,
		settings.ShortBreakDuration,
		settings.LongBreakDuration,
		settings.SessionEndAlert,
		settings.BreakReminder,
		settings.StudyTargetHours,
		settings.DashboardDensity,
		settings.MinimalMode,
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("create settings: %w", err)
	}
	return nil
}

func (r *UserRepository) GetSettings(ctx context.Context, userID string) (*model.UserSettings, error) {
	return r.getSettings(ctx, r.db, userID)
}

func (r *UserRepository) GetSettingsTx(ctx context.Context, tx *sql.Tx, userID string) (*model.UserSettings, error) {
	return r.getSettings(ctx, tx, userID)
}

func (r *UserRepository) getSettings(ctx context.Context, q Querier, userID string) (*model.UserSettings, error) {
	row := r.queryRow(
		ctx,
		q,
		`SELECT pomodoro_duration, short_break_duration, long_break_duration,
		        session_end_alert, break_reminder, study_target_hours,
		        dashboard_density, minimal_mode
		 FROM user_settings WHERE user_id = ?`,
		userID,
	)

	var settings model.UserSettings
	err := row.Scan(
		&settings.PomodoroDuration,
		&settings.ShortBreakDuration,
		&settings.LongBreakDuration,
		&settings.SessionEndAlert,
		&settings.BreakReminder,
		&settings.StudyTargetHours,
		&settings.DashboardDensity,
		&settings.MinimalMode,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

func (r *UserRepository) UpdateSettings(ctx context.Context, userID string, settings model.UserSettings, now time.Time) error {
	result, err := r.exec(
		ctx,
		r.db,
		`UPDATE user_settings
		 SET pomodoro_duration = ?,
		     short_break_duration = ?,
		     long_break_duration = ?,
		     session_end_alert = ?,
		     break_reminder = ?,
		     study_target_hours = ?,
		     dashboard_density = ?,
		     minimal_mode = ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		settings.PomodoroDuration,
		settings.ShortBreakDuration,
		settings.LongBreakDuration,
		settings.SessionEndAlert,
		settings.BreakReminder,
		settings.StudyTargetHours,
		settings.DashboardDensity,
		settings.MinimalMode,
		formatTime(now),
		userID,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return requireAffected(result)
}

func scanUser(s scanner) (*model.User, error) {
	var user model.User
	var createdAt, updatedAt string
	var lastLoginAt sql.NullString
	err := s.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Streak,
		&user.LastStreakUpdate,
		&createdAt,
		&updatedAt,
		&lastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse user updated_at: %w", err)
	}
	if user.LastLoginAt, err = parseNullTime(lastLoginAt); err != nil {
		return nil, fmt.Errorf("parse user last_login_at: %w", err)
	}
	return &user, nil
}
