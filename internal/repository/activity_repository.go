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

// ActivityRepository stores the per-day study totals and habits.
type ActivityRepository struct {
	base
}

func NewActivityRepository(database *sql.DB, dialect db.Dialect) *ActivityRepository {
	return &ActivityRepository{base: base{db: database, dialect: dialect}}
}

func (r *ActivityRepository) UpsertStudyTime(ctx context.Context, userID, date string, seconds int, targetMet bool, now time.Time) error {
	_, err := r.exec(
		ctx,
		r.db,
		`INSERT INTO daily_activities (user_id, date, study_time_seconds, study_target_met, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, date) DO UPDATE SET
			study_time_seconds = excluded.study_time_seconds,
			study_target_met = excluded.study_target_met,
			updated_at = excluded.updated_at`,
		userID,
		date,
		seconds,
		targetMet,
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("upsert daily activity: %w", err)
	}
	return nil
}

// GetDay returns the activity row with its habits. A day without a row
// yields ErrNotFound.
func (r *ActivityRepository) GetDay(ctx context.Context, userID, date string) (*model.DailyActivity, error) {
	row := r.queryRow(
		ctx,
		r.db,
		`SELECT user_id, date, study_time_seconds, study_target_met, updated_at
		 FROM daily_activities WHERE user_id = ? AND date = ?`,
		userID,
		date,
	)

	var activity model.DailyActivity
	var updatedAt string
	err := row.Scan(&activity.UserID, &activity.Date, &activity.StudyTimeSeconds, &activity.StudyTargetMet, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get daily activity: %w", err)
	}
	if activity.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse activity updated_at: %w", err)
	}

	habits, err := r.ListHabits(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	activity.Habits = habits
	return &activity, nil
}

func (r *ActivityRepository) ListHabits(ctx context.Context, userID, date string) ([]model.Habit, error) {
	rows, err := r.query(
		ctx,
		r.db,
		`SELECT id, user_id, date, name, completed, created_at
		 FROM habits WHERE user_id = ? AND date = ?
		 ORDER BY created_at ASC`,
		userID,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	habits := make([]model.Habit, 0)
	for rows.Next() {
		habit, scanErr := scanHabit(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		habits = append(habits, *habit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habits: %w", err)
	}
	return habits, nil
}

func (r *ActivityRepository) AddHabit(ctx context.Context, habit *model.Habit) error {
	_, err := r.exec(
		ctx,
		r.db,
		`INSERT INTO habits (id, user_id, date, name, completed, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		habit.ID,
		habit.UserID,
		habit.Date,
		habit.Name,
		habit.Completed,
		formatTime(habit.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("add habit: %w", err)
	}
	return nil
}

func (r *ActivityRepository) ToggleHabit(ctx context.Context, userID, id string) (*model.Habit, error) {
	result, err := r.exec(
		ctx,
		r.db,
		`UPDATE habits SET completed = NOT completed WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle habit: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}

	row := r.queryRow(
		ctx,
		r.db,
		`SELECT id, user_id, date, name, completed, created_at FROM habits WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	return scanHabit(row)
}

func (r *ActivityRepository) DeleteHabit(ctx context.Context, userID, id string) error {
	result, err := r.exec(ctx, r.db, `DELETE FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return requireAffected(result)
}

func scanHabit(s scanner) (*model.Habit, error) {
	var habit model.Habit
	var createdAt string
	err := s.Scan(&habit.ID, &habit.UserID, &habit.Date, &habit.Name, &habit.Completed, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan habit: %w", err)
	}
	if habit.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse habit created_at: %w", err)
	}
	return &habit, nil
}
