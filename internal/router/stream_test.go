package router_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"studytrack/backend/internal/events"
	"studytrack/backend/internal/metrics"
	"studytrack/backend/internal/router"
)

const testStreamInterval = 10 * time.Millisecond

type sseEvent struct {
	Name string
	Data string
}

type streamPayload struct {
	Status  string  `json:"status"`
	Display float64 `json:"display"`
	State   struct {
		Status string `json:"status"`
	} `json:"state"`
	Session *struct {
		Duration int    `json:"duration"`
		Status   string `json:"status"`
	} `json:"session"`
}

type streamEnv struct {
	engine  http.Handler
	server  *httptest.Server
	clock   *clock
	metrics *metrics.Metrics
}

func setupStreamEnv(t *testing.T, withBus bool) streamEnv {
	t.Helper()

	opts := router.Options{StreamInterval: testStreamInterval}
	var publisher events.Publisher
	if withBus {
		srv, err := events.StartEmbedded("127.0.0.1", -1)
		if err != nil {
			t.Fatalf("start nats: %v", err)
		}
		t.Cleanup(srv.Shutdown)
		nc, err := events.Connect(srv.ClientURL(), zap.NewNop())
		if err != nil {
			t.Fatalf("connect nats: %v", err)
		}
		t.Cleanup(nc.Close)
		bus := events.NewBus(nc, zap.NewNop())
		publisher = bus
		opts.Subscriber = bus
	}

	services, clk, m := setupTestServices(t, publisher)
	opts.Metrics = m
	engine := router.New(services, opts)
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	return streamEnv{engine: engine, server: server, clock: clk, metrics: m}
}

// openStream connects to the timer event stream and decodes events on a
// channel until the connection ends.
func openStream(t *testing.T, env streamEnv, token string) <-chan sseEvent {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/api/timer/events?access_token="+token, nil)
	if err != nil {
		t.Fatalf("build stream request: %v", err)
	}
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for stream, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected stream content type %s", resp.Header.Get("Content-Type"))
	}

	out := make(chan sseEvent, 64)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		var current sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if current.Name != "" {
					select {
					case out <- current:
					case <-ctx.Done():
						return
					}
				}
				current = sseEvent{}
			case strings.HasPrefix(line, "event:"):
				current.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				current.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()
	return out
}

// nextEvent returns the first event named name, failing after a deadline.
func nextEvent(t *testing.T, stream <-chan sseEvent, name string) streamPayload {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				t.Fatalf("stream closed before %q event", name)
			}
			if ev.Name != name {
				continue
			}
			var payload streamPayload
			if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
				t.Fatalf("decode %s event %q: %v", name, ev.Data, err)
			}
			return payload
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", name)
		}
	}
}

// startShortPomodoro leaves a one minute pomodoro running with one second
// to go.
func startShortPomodoro(t *testing.T, env streamEnv) string {
	t.Helper()
	user := registerUser(t, env.engine, "stream@example.com", "123456")

	status, raw := requestJSON(t, env.engine, http.MethodPost, "/api/subjects", user.Token, map[string]string{
		"name":  "Physics",
		"color": "#00aa88",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on subject create, got %d: %s", status, raw)
	}
	var created struct {
		Subject struct {
			ID string `json:"id"`
		} `json:"subject"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("unmarshal subject: %v", err)
	}

	status, raw = requestJSON(t, env.engine, http.MethodPut, "/api/timer/duration", user.Token, map[string]int{"minutes": 1})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on duration, got %d: %s", status, raw)
	}
	status, raw = requestJSON(t, env.engine, http.MethodPost, "/api/timer/start", user.Token, map[string]string{
		"subjectId": created.Subject.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", status, raw)
	}
	env.clock.Advance(59 * time.Second)
	return user.Token
}

func TestTimerStreamCompletesCountdown(t *testing.T) {
	env := setupStreamEnv(t, true)
	token := startShortPomodoro(t, env)
	stream := openStream(t, env, token)

	initial := nextEvent(t, stream, "state")
	if initial.Status != "running" || initial.Display != 1 {
		t.Fatalf("expected running state with 1s left, got %+v", initial)
	}
	if active := testutil.ToFloat64(env.metrics.ActiveStreams); active != 1 {
		t.Fatalf("expected one active stream, got %v", active)
	}

	tick := nextEvent(t, stream, "display")
	if tick.Status != "running" || tick.Display != 1 {
		t.Fatalf("expected display tick with 1s left, got %+v", tick)
	}

	env.clock.Advance(2 * time.Second)
	completed := nextEvent(t, stream, "completed")
	if completed.Session == nil {
		t.Fatalf("completed event without session")
	}
	if completed.Session.Status != "completed" || completed.Session.Duration != 60 {
		t.Fatalf("unexpected completed session %+v", *completed.Session)
	}
	if completed.State.Status != "stopped" {
		t.Fatalf("expected stopped timer after completion, got %s", completed.State.Status)
	}

	// The stream goes idle and keeps the connection alive.
	nextEvent(t, stream, "ping")

	status, raw := requestJSON(t, env.engine, http.MethodGet, "/api/sessions", token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for sessions, got %d", status)
	}
	var list sessionsEnvelope
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("unmarshal sessions: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].Duration != 60 {
		t.Fatalf("expected one 60s session, got %+v", list.Sessions)
	}
}

func TestTimerStreamWithoutBusSendsFinalState(t *testing.T) {
	env := setupStreamEnv(t, false)
	token := startShortPomodoro(t, env)
	stream := openStream(t, env, token)

	nextEvent(t, stream, "state")
	nextEvent(t, stream, "display")

	env.clock.Advance(2 * time.Second)
	final := nextEvent(t, stream, "state")
	if final.Status != "stopped" || final.Display != 60 {
		t.Fatalf("expected stopped state showing the full pomodoro, got %+v", final)
	}
}

func TestTimerStreamRequiresToken(t *testing.T) {
	env := setupStreamEnv(t, false)
	resp, err := env.server.Client().Get(env.server.URL + "/api/timer/events?access_token=bogus")
	if err != nil {
		t.Fatalf("request stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}
