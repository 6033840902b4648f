package repository

import (
	"context"
	"database/sql"
	"fmt"

	"studytrack/backend/internal/db"
	"studytrack/backend/internal/model"
)

type SubjectRepository struct {
	base
}

func NewSubjectRepository(database *sql.DB, dialect db.Dialect) *SubjectRepository {
	return &SubjectRepository{base: base{db: database, dialect: dialect}}
}

const subjectColumns = `id, user_id, name, color, priority, archived, created_at, updated_at`

func (r *SubjectRepository) Create(ctx context.Context, subject *model.Subject) error {
	_, err := r.exec(
		ctx,
		r.db,
		`INSERT INTO subjects (`+subjectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		subject.ID,
		subject.UserID,
		subject.Name,
		subject.Color,
		subject.Priority,
		subject.Archived,
		formatTime(subject.CreatedAt),
		formatTime(subject.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

func (r *SubjectRepository) Update(ctx context.Context, subject *model.Subject) error {
	result, err := r.exec(
		ctx,
		r.db,
		`UPDATE subjects
		 SET name = ?, color = ?, priority = ?, archived = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		subject.Name,
		subject.Color,
		subject.Priority,
		subject.Archived,
		formatTime(subject.UpdatedAt),
		subject.ID,
		subject.UserID,
	)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return requireAffected(result)
}

// GetByID only finds subjects owned by userID.
func (r *SubjectRepository) GetByID(ctx context.Context, userID, id string) (*model.Subject, error) {
	row := r.queryRow(ctx, r.db, `SELECT `+subjectColumns+` FROM subjects WHERE id = ? AND user_id = ?`, id, userID)
	return scanSubject(row)
}

func (r *SubjectRepository) List(ctx context.Context, userID string, activeOnly bool) ([]model.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE user_id = ?`
	if activeOnly {
		query += ` AND archived = ?`
	}
	query += ` ORDER BY created_at ASC`

	args := []interface{}{userID}
	if activeOnly {
		args = append(args, false)
	}

	rows, err := r.query(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]model.Subject, 0)
	for rows.Next() {
		subject, scanErr := scanSubject(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		subjects = append(subjects, *subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

func scanSubject(s scanner) (*model.Subject, error) {
	var subject model.Subject
	var createdAt, updatedAt string
	err := s.Scan(
		&subject.ID,
		&subject.UserID,
		&subject.Name,
		&subject.Color,
		&subject.Priority,
		&subject.Archived,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subject: %w", err)
	}

	if subject.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse subject created_at: %w", err)
	}
	if subject.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse subject updated_at: %w", err)
	}
	return &subject, nil
}
