package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"studytrack/backend/internal/db"
	"studytrack/backend/internal/events"
	"studytrack/backend/internal/metrics"
	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/repository"
	"studytrack/backend/internal/router"
	"studytrack/backend/internal/service"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type timerEnvelope struct {
	State struct {
		Status    string  `json:"status"`
		Mode      string  `json:"mode"`
		SubjectID string  `json:"subjectId"`
		Display   float64 `json:"display"`
	} `json:"state"`
	Session *struct {
		Duration int    `json:"duration"`
		Status   string `json:"status"`
	} `json:"session"`
}

type sessionsEnvelope struct {
	Sessions []struct {
		SubjectID string `json:"subjectId"`
		Status    string `json:"status"`
		Duration  int    `json:"duration"`
	} `json:"sessions"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			State struct {
				Status string `json:"status"`
			} `json:"state"`
		} `json:"details"`
	} `json:"error"`
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTimerFlowAndIsolation(t *testing.T) {
	engine, clk := setupTestEngine(t)

	user1 := registerUser(t, engine, "user1@example.com", "123456")
	user2 := registerUser(t, engine, "user2@example.com", "123456")

	state := getState(t, engine, user1.Token)
	if state.State.Status != "stopped" || state.State.Display != 1500 {
		t.Fatalf("expected idle 25 minute timer, got %+v", state.State)
	}

	// Starting without a subject is a missing precondition.
	status, raw := requestJSON(t, engine, http.MethodPost, "/api/timer/start", user1.Token, nil)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without subject, got %d: %s", status, raw)
	}
	if code := errorCode(t, raw); code != "subject_required" {
		t.Fatalf("expected subject_required, got %s", code)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/subjects", user1.Token, map[string]string{
		"name":  "Math",
		"color": "#ff8800",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on subject create, got %d: %s", status, raw)
	}
	var created struct {
		Subject struct {
			ID       string `json:"id"`
			Priority string `json:"priority"`
		} `json:"subject"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("unmarshal subject: %v", err)
	}
	if created.Subject.Priority != "medium" {
		t.Fatalf("expected default priority medium, got %s", created.Subject.Priority)
	}

	// user2 cannot start on user1's subject.
	status, _ = requestJSON(t, engine, http.MethodPost, "/api/timer/start", user2.Token, map[string]string{
		"subjectId": created.Subject.ID,
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign subject, got %d", status)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/timer/start", user1.Token, map[string]string{
		"subjectId": created.Subject.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", status, raw)
	}

	clk.Advance(10 * time.Minute)

	// Setters are refused while the timer is active.
	status, raw = requestJSON(t, engine, http.MethodPut, "/api/timer/duration", user1.Token, map[string]int{"minutes": 50})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d: %s", status, raw)
	}
	var conflict apiErrorEnvelope
	if err := json.Unmarshal(raw, &conflict); err != nil {
		t.Fatalf("unmarshal conflict response: %v", err)
	}
	if conflict.Error.Code != "timer_active" || conflict.Error.Details.State.Status != "running" {
		t.Fatalf("unexpected conflict body: %s", raw)
	}

	state = getState(t, engine, user1.Token)
	if state.State.Display != 900 {
		t.Fatalf("expected 900 seconds remaining, got %v", state.State.Display)
	}

	clk.Advance(20 * time.Minute)

	// The countdown ran out while nobody was looking; reading completes it.
	state = getState(t, engine, user1.Token)
	if state.State.Status != "stopped" {
		t.Fatalf("expected stopped after countdown, got %s", state.State.Status)
	}
	if state.Session == nil || state.Session.Status != "completed" || state.Session.Duration != 1500 {
		t.Fatalf("expected completed 1500s session, got %+v", state.Session)
	}

	status, user2Raw := requestJSON(t, engine, http.MethodGet, "/api/sessions?limit=10", user2.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for user2 sessions, got %d", status)
	}
	var user2Sessions sessionsEnvelope
	if err := json.Unmarshal(user2Raw, &user2Sessions); err != nil {
		t.Fatalf("unmarshal user2 sessions: %v", err)
	}
	if len(user2Sessions.Sessions) != 0 {
		t.Fatalf("expected no sessions for user2, got %d", len(user2Sessions.Sessions))
	}

	status, user1Raw := requestJSON(t, engine, http.MethodGet, "/api/sessions?limit=10", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for user1 sessions, got %d", status)
	}
	var user1Sessions sessionsEnvelope
	if err := json.Unmarshal(user1Raw, &user1Sessions); err != nil {
		t.Fatalf("unmarshal user1 sessions: %v", err)
	}
	if len(user1Sessions.Sessions) != 1 || user1Sessions.Sessions[0].SubjectID != created.Subject.ID {
		t.Fatalf("expected one session on Math, got %s", user1Raw)
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/dashboard", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for dashboard, got %d", status)
	}
	var dashboard struct {
		TimeToday           int `json:"timeToday"`
		SubjectDistribution []struct {
			Name string `json:"name"`
		} `json:"subjectDistribution"`
	}
	if err := json.Unmarshal(raw, &dashboard); err != nil {
		t.Fatalf("unmarshal dashboard: %v", err)
	}
	if dashboard.TimeToday != 1500 || len(dashboard.SubjectDistribution) != 1 {
		t.Fatalf("unexpected dashboard: %s", raw)
	}
}

func TestSessionExportCSV(t *testing.T) {
	engine, clk := setupTestEngine(t)
	user := registerUser(t, engine, "user1@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/subjects", user.Token, map[string]string{
		"name":  "Art",
		"color": "#00aa00",
	})
	if status != http.StatusCreated {
		t.Fatalf("create subject: %d %s", status, raw)
	}
	var created struct {
		Subject struct {
			ID string `json:"id"`
		} `json:"subject"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("unmarshal subject: %v", err)
	}

	requestJSON(t, engine, http.MethodPut, "/api/timer/mode", user.Token, map[string]string{"mode": "stopwatch"})
	requestJSON(t, engine, http.MethodPost, "/api/timer/start", user.Token, map[string]string{"subjectId": created.Subject.ID})
	clk.Advance(45 * time.Minute)
	status, raw = requestJSON(t, engine, http.MethodPost, "/api/timer/stop", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("stop: %d %s", status, raw)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/export?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+user.Token)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for export, got %d", recorder.Code)
	}
	if !strings.HasPrefix(recorder.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected content type %s", recorder.Header().Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != "id,subjectId,mode,startTime,endTime,duration,status,focusScore" {
		t.Fatalf("unexpected csv: %q", recorder.Body.String())
	}
	if !strings.HasSuffix(lines[1], ",2700,stopped,100") {
		t.Fatalf("unexpected csv row: %s", lines[1])
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	engine, _ := setupTestEngine(t)
	for _, path := range []string{"/api/timer", "/api/me", "/api/dashboard", "/api/goals/today"} {
		status, raw := requestJSON(t, engine, http.MethodGet, path, "", nil)
		if status != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, status)
		}
		if code := errorCode(t, raw); code != "unauthorized" {
			t.Fatalf("%s: expected unauthorized, got %s", path, code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	engine, _ := setupTestEngine(t)
	registerUser(t, engine, "user1@example.com", "123456")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `studytrack_http_requests_total{method="POST",route="/api/auth/register",status="201"} 1`) {
		t.Fatalf("request counter missing from metrics output")
	}
}

func TestCORSPreflight(t *testing.T) {
	engine, _ := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestEngine(t *testing.T) (http.Handler, *clock) {
	t.Helper()
	services, clk, m := setupTestServices(t, nil)
	engine := router.New(services, router.Options{
		CORS:    middleware.CORSConfig{Origins: []string{"http://localhost:5173"}},
		Metrics: m,
	})
	return engine, clk
}

func setupTestServices(t *testing.T, publisher events.Publisher) (router.Services, *clock, *metrics.Metrics) {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if _, err := db.RunMigrations(database, db.SQLite, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	clk := &clock{now: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)}
	rt := service.Runtime{Metrics: metrics.New(), Location: time.UTC, Clock: clk.Now}

	users := repository.NewUserRepository(database, db.SQLite)
	timers := repository.NewTimerRepository(database, db.SQLite)
	sessions := repository.NewSessionRepository(database, db.SQLite)
	subjects := repository.NewSubjectRepository(database, db.SQLite)
	activities := repository.NewActivityRepository(database, db.SQLite)
	progress := service.NewProgressService(rt, users, sessions, activities)
	timerService := service.NewTimerService(rt, timers, sessions, subjects, users, progress, publisher)

	services := router.Services{
		Auth:     service.NewAuthService(rt, users, timers, "test-secret", 24*time.Hour),
		Users:    service.NewUserService(rt, users, progress, timerService),
		Subjects: service.NewSubjectService(rt, subjects),
		Timer:    timerService,
		Sessions: service.NewSessionService(rt, sessions),
		Stats:    service.NewStatsService(rt, sessions, subjects),
		Goals:    service.NewGoalService(rt, users, sessions, activities, progress),
	}
	return services, clk, rt.Metrics
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func getState(t *testing.T, server http.Handler, token string) timerEnvelope {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/timer", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get state failed with status %d: %s", status, string(body))
	}
	var stateResp timerEnvelope
	if err := json.Unmarshal(body, &stateResp); err != nil {
		t.Fatalf("unmarshal state response: %v", err)
	}
	return stateResp
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp apiErrorEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	return resp.Error.Code
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
