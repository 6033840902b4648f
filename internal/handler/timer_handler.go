package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/events"
	"studytrack/backend/internal/metrics"
	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/model"
	"studytrack/backend/internal/service"
	"studytrack/backend/internal/timer"
)

const (
	defaultStreamTick = time.Second
	heartbeatEvery    = 15
	eventDisplay      = "display"
	eventHeartbeat    = "ping"
)

// TimerSubscriber is the part of the event bus the stream needs.
type TimerSubscriber interface {
	SubscribeTimer(userID string) (*events.Subscription, error)
}

type TimerHandler struct {
	timerService *service.TimerService
	subscriber   TimerSubscriber
	metrics      *metrics.Metrics
	logger       *zap.Logger
	tick         time.Duration
}

type startRequest struct {
	SubjectID string `json:"subjectId"`
}

type stopRequest struct {
	Reason string `json:"reason"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type subjectRequest struct {
	SubjectID string `json:"subjectId"`
}

type durationRequest struct {
	Minutes int `json:"minutes"`
}

// NewTimerHandler wires the timer routes. subscriber may be nil, in which
// case streams only see their own ticks.
func NewTimerHandler(timerService *service.TimerService, subscriber TimerSubscriber, m *metrics.Metrics, logger *zap.Logger) *TimerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerHandler{
		timerService: timerService,
		subscriber:   subscriber,
		metrics:      m,
		logger:       logger,
		tick:         defaultStreamTick,
	}
}

// SetStreamInterval changes how often an open stream re-derives the display.
// Non-positive values are ignored.
func (h *TimerHandler) SetStreamInterval(d time.Duration) {
	if d > 0 {
		h.tick = d
	}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	result, apiErr := h.timerService.GetState(c.Request.Context(), middleware.UserID(c))
	respond(c, result, apiErr)
}

func (h *TimerHandler) Start(c *gin.Context) {
	var req startRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, apiErr := h.timerService.Start(c.Request.Context(), middleware.UserID(c), req.SubjectID)
	respond(c, result, apiErr)
}

func (h *TimerHandler) Pause(c *gin.Context) {
	result, apiErr := h.timerService.Pause(c.Request.Context(), middleware.UserID(c))
	respond(c, result, apiErr)
}

func (h *TimerHandler) Stop(c *gin.Context) {
	var req stopRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, apiErr := h.timerService.Stop(c.Request.Context(), middleware.UserID(c), req.Reason)
	respond(c, result, apiErr)
}

func (h *TimerHandler) Reset(c *gin.Context) {
	result, apiErr := h.timerService.Reset(c.Request.Context(), middleware.UserID(c))
	respond(c, result, apiErr)
}

func (h *TimerHandler) SetMode(c *gin.Context) {
	var req modeRequest
	if !bindJSON(c, &req) {
		return
	}
	result, apiErr := h.timerService.SetMode(c.Request.Context(), middleware.UserID(c), req.Mode)
	respond(c, result, apiErr)
}

func (h *TimerHandler) SetSubject(c *gin.Context) {
	var req subjectRequest
	if !bindJSON(c, &req) {
		return
	}
	result, apiErr := h.timerService.SetSubject(c.Request.Context(), middleware.UserID(c), req.SubjectID)
	respond(c, result, apiErr)
}

func (h *TimerHandler) SetDuration(c *gin.Context) {
	var req durationRequest
	if !bindJSON(c, &req) {
		return
	}
	result, apiErr := h.timerService.SetDuration(c.Request.Context(), middleware.UserID(c), req.Minutes)
	respond(c, result, apiErr)
}

// Events streams the timer as server-sent events: the current state first,
// every change published on the bus, and a display tick each second while
// running. A countdown reaching zero is finalized from here.
func (h *TimerHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	initial, apiErr := h.timerService.GetState(ctx, userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	state := initial.State.TimerState

	var updates <-chan *nats.Msg
	if h.subscriber != nil {
		sub, err := h.subscriber.SubscribeTimer(userID)
		if err != nil {
			h.logger.Warn("timer stream without bus", zap.String("user_id", userID), zap.Error(err))
		} else {
			defer func() { _ = sub.Close() }()
			updates = sub.C
		}
	}

	if h.metrics != nil {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(events.TypeState, initial.State)
	c.Writer.Flush()

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()
	idle := 0

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-updates:
			if !ok {
				return false
			}
			ev, err := events.Decode(msg)
			if err != nil {
				h.logger.Warn("dropping undecodable timer event", zap.Error(err))
				return true
			}
			state = ev.State
			c.SSEvent(ev.Type, ev)
			return true
		case <-ticker.C:
			now := h.timerService.Now()
			if state.Status != model.StatusRunning {
				idle++
				if idle%heartbeatEvery == 0 {
					c.SSEvent(eventHeartbeat, gin.H{"at": now.UTC()})
				}
				return true
			}
			idle = 0
			if timer.Due(state, now) {
				result, apiErr := h.timerService.Tick(ctx, userID)
				if apiErr != nil {
					h.logger.Warn("timer completion from stream failed", zap.String("user_id", userID), zap.String("code", apiErr.Code))
					return true
				}
				state = result.State.TimerState
				if updates == nil {
					c.SSEvent(events.TypeState, result.State)
				}
				return true
			}
			c.SSEvent(eventDisplay, gin.H{
				"status":  state.Status,
				"mode":    state.Mode,
				"display": timer.Display(state, now),
			})
			return true
		}
	})
}

func respond(c *gin.Context, result *service.ActionResult, apiErr *apperrors.APIError) {
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}
