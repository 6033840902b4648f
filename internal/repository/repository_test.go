package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studytrack/backend/internal/db"
	"studytrack/backend/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	_, err = db.RunMigrations(database, db.SQLite, filepath.Join(filepath.Dir(file), "..", "..", "migrations"))
	require.NoError(t, err)
	return database
}

func seedUser(t *testing.T, database *sql.DB, id string) {
	t.Helper()
	users := NewUserRepository(database, db.SQLite)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

	tx, err := users.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, users.CreateTx(ctx, tx, &model.User{
		ID: id, Email: id + "@example.com", PasswordHash: "x", DisplayName: "Ada",
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, users.CreateSettingsTx(ctx, tx, id, model.DefaultUserSettings(), now))
	require.NoError(t, tx.Commit())
}

func TestUserRepository(t *testing.T) {
	database := openTestDB(t)
	seedUser(t, database, "u1")
	users := NewUserRepository(database, db.SQLite)
	ctx := context.Background()

	user, err := users.GetByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.DisplayName)
	assert.Nil(t, user.LastLoginAt)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, users.UpdateStreak(ctx, "u1", 3, "2026-03-04", now))
	require.NoError(t, users.TouchLogin(ctx, "u1", now))
	user, err = users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, user.Streak)
	assert.Equal(t, "2026-03-04", user.LastStreakUpdate)
	require.NotNil(t, user.LastLoginAt)
	assert.True(t, user.LastLoginAt.Equal(now))

	settings, err := users.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultUserSettings(), *settings)

	settings.StudyTargetHours = 3.5
	settings.MinimalMode = true
	require.NoError(t, users.UpdateSettings(ctx, "u1", *settings, now))
	settings, err = users.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3.5, settings.StudyTargetHours)
	assert.True(t, settings.MinimalMode)

	assert.ErrorIs(t, users.UpdateSettings(ctx, "missing", *settings, now), ErrNotFound)
}

func TestTimerRepositoryUpsert(t *testing.T) {
	database := openTestDB(t)
	seedUser(t, database, "u1")
	timers := NewTimerRepository(database, db.SQLite)
	ctx := context.Background()

	_, err := timers.GetState(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	start := time.Date(2026, 3, 4, 9, 0, 0, 123456789, time.UTC)
	state := model.NewTimerState("u1", 30)
	state.Status = model.StatusRunning
	state.SubjectID = "math"
	state.StartedAt = &start
	state.SessionStartTime = &start
	state.AccumulatedTime = 12.5
	state.UpdatedAt = start

	for i := 0; i < 2; i++ {
		tx, err := timers.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, timers.UpsertStateTx(ctx, tx, &state))
		require.NoError(t, tx.Commit())
		state.AccumulatedTime += 1
	}

	got, err := timers.GetState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, got.Status)
	assert.Equal(t, 30, got.DurationMinutes)
	assert.Equal(t, 13.5, got.AccumulatedTime)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(start))

	state.Status = model.StatusStopped
	state.StartedAt = nil
	state.SessionStartTime = nil
	tx, err := timers.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, timers.UpsertStateTx(ctx, tx, &state))
	require.NoError(t, tx.Commit())

	got, err = timers.GetState(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.SessionStartTime)
}

func TestTimerStateTxLocksRowOnPostgres(t *testing.T) {
	pg := NewTimerRepository(nil, db.Postgres)
	query := db.Postgres.Rebind(pg.lockingSelect())
	assert.True(t, strings.HasSuffix(query, "FOR UPDATE"))
	assert.Contains(t, query, "user_id = $1")

	lite := NewTimerRepository(nil, db.SQLite)
	assert.NotContains(t, lite.lockingSelect(), "FOR UPDATE")
}

func TestSessionRepositoryOrdering(t *testing.T) {
	database := openTestDB(t)
	seedUser(t, database, "u1")
	sessions := NewSessionRepository(database, db.SQLite)
	ctx := context.Background()

	base := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	tx, err := sessions.BeginTx(ctx)
	require.NoError(t, err)
	for i, offset := range []time.Duration{0, 90 * time.Minute, -26 * time.Hour, 500 * time.Millisecond} {
		start := base.Add(offset)
		require.NoError(t, sessions.InsertTx(ctx, tx, &model.Session{
			ID: string(rune('a' + i)), UserID: "u1", SubjectID: "math", Mode: model.ModeStopwatch,
			StartTime: start, EndTime: start.Add(time.Minute), Duration: 60 * (i + 1),
			Status: model.SessionStatusStopped, FocusScore: model.DefaultFocusScore, CreatedAt: start,
		}))
	}
	require.NoError(t, tx.Commit())

	all, err := sessions.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"b", "d", "a", "c"}, []string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})

	limited, err := sessions.List(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	today, err := sessions.ListSince(ctx, "u1", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, today, 3)

	other, err := sessions.List(ctx, "u2", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSubjectRepository(t *testing.T) {
	database := openTestDB(t)
	seedUser(t, database, "u1")
	subjects := NewSubjectRepository(database, db.SQLite)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	for i, name := range []string{"Math", "Art"} {
		require.NoError(t, subjects.Create(ctx, &model.Subject{
			ID: name, UserID: "u1", Name: name, Color: "#112233", Priority: model.PriorityMedium,
			CreatedAt: now.Add(time.Duration(i) * time.Second), UpdatedAt: now,
		}))
	}

	art, err := subjects.GetByID(ctx, "u1", "Art")
	require.NoError(t, err)
	art.Archived = true
	require.NoError(t, subjects.Update(ctx, art))

	active, err := subjects.List(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Math", active[0].Name)

	all, err := subjects.List(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = subjects.GetByID(ctx, "u2", "Math")
	assert.ErrorIs(t, err, ErrNotFound)

	art.UserID = "u2"
	assert.ErrorIs(t, subjects.Update(ctx, art), ErrNotFound)
}

func TestActivityRepository(t *testing.T) {
	database := openTestDB(t)
	seedUser(t, database, "u1")
	activities := NewActivityRepository(database, db.SQLite)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	_, err := activities.GetDay(ctx, "u1", "2026-03-04")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, activities.UpsertStudyTime(ctx, "u1", "2026-03-04", 1200, false, now))
	require.NoError(t, activities.UpsertStudyTime(ctx, "u1", "2026-03-04", 7300, true, now))
	require.NoError(t, activities.AddHabit(ctx, &model.Habit{ID: "h1", UserID: "u1", Date: "2026-03-04", Name: "Read", CreatedAt: now}))

	day, err := activities.GetDay(ctx, "u1", "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, 7300, day.StudyTimeSeconds)
	assert.True(t, day.StudyTargetMet)
	require.Len(t, day.Habits, 1)
	assert.False(t, day.Habits[0].Completed)

	habit, err := activities.ToggleHabit(ctx, "u1", "h1")
	require.NoError(t, err)
	assert.True(t, habit.Completed)
	habit, err = activities.ToggleHabit(ctx, "u1", "h1")
	require.NoError(t, err)
	assert.False(t, habit.Completed)

	_, err = activities.ToggleHabit(ctx, "u2", "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, activities.DeleteHabit(ctx, "u1", "h1"))
	assert.ErrorIs(t, activities.DeleteHabit(ctx, "u1", "h1"), ErrNotFound)
}
