package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studytrack/backend/internal/config"
	"studytrack/backend/internal/events"
	"studytrack/backend/internal/model"
	"studytrack/backend/internal/service"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return config.Config{
		Port:          "0",
		DBDriver:      config.DriverSQLite,
		DBPath:        filepath.Join(t.TempDir(), "app.db"),
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		MigrationsDir: filepath.Join(filepath.Dir(file), "..", "..", "migrations"),
		Timezone:      "UTC",
	}
}

func TestAppPublishesTimerChanges(t *testing.T) {
	a, err := New(testConfig(t), nil, Options{WithBus: true, Migrate: true})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NotNil(t, a.Bus)

	ctx := context.Background()
	auth, apiErr := a.Services.Auth.Register(ctx, service.RegisterInput{Email: "ada@example.com", Password: "secret123"})
	require.Nil(t, apiErr)
	userID := auth.User.ID

	subject, apiErr := a.Services.Subjects.Create(ctx, userID, service.SubjectInput{Name: "Math", Color: "#123456"})
	require.Nil(t, apiErr)

	sub, err := a.Bus.SubscribeTimer(userID)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	_, apiErr = a.Services.Timer.Start(ctx, userID, subject.ID)
	require.Nil(t, apiErr)

	select {
	case msg := <-sub.C:
		ev, err := events.Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, events.TypeState, ev.Type)
		assert.Equal(t, model.StatusRunning, ev.State.Status)
		assert.Equal(t, subject.ID, ev.State.SubjectID)
	case <-time.After(3 * time.Second):
		t.Fatal("no timer event received")
	}
}

func TestAppRouterServesHealth(t *testing.T) {
	a, err := New(testConfig(t), nil, Options{Migrate: true})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Nil(t, a.Bus)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
