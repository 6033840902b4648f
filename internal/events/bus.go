// Package events carries timer state changes between requests over NATS.
// Every change is published on timer.<userID>; SSE streams subscribe to it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"studytrack/backend/internal/model"
)

const (
	TypeState     = "state"
	TypeCompleted = "completed"

	subjectPrefix = "timer."
	bufferSize    = 16
)

// TimerEvent is the payload published after a timer transition. Display is
// the derived seconds at At.
type TimerEvent struct {
	Type    string           `json:"type"`
	UserID  string           `json:"userId"`
	State   model.TimerState `json:"state"`
	Display float64          `json:"display"`
	Session *model.Session   `json:"session,omitempty"`
	At      time.Time        `json:"at"`
}

type Publisher interface {
	PublishTimer(ev TimerEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishTimer(TimerEvent) error { return nil }

type Bus struct {
	nc     *nats.Conn
	logger *zap.Logger
}

func NewBus(nc *nats.Conn, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{nc: nc, logger: logger}
}

func Subject(userID string) string {
	return subjectPrefix + userID
}

func (b *Bus) PublishTimer(ev TimerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal timer event: %w", err)
	}
	if err := b.nc.Publish(Subject(ev.UserID), data); err != nil {
		return fmt.Errorf("publish timer event: %w", err)
	}
	b.logger.Debug("timer event published",
		zap.String("user_id", ev.UserID),
		zap.String("type", ev.Type),
		zap.String("status", ev.State.Status),
	)
	return nil
}

// Subscription delivers the timer events of one user until Close.
type Subscription struct {
	C   chan *nats.Msg
	sub *nats.Subscription
}

func (b *Bus) SubscribeTimer(userID string) (*Subscription, error) {
	ch := make(chan *nats.Msg, bufferSize)
	sub, err := b.nc.ChanSubscribe(Subject(userID), ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Subject(userID), err)
	}
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}
	return &Subscription{C: ch, sub: sub}, nil
}

func (s *Subscription) Close() error {
	return s.sub.Unsubscribe()
}

func Decode(msg *nats.Msg) (TimerEvent, error) {
	var ev TimerEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return TimerEvent{}, fmt.Errorf("decode timer event: %w", err)
	}
	return ev, nil
}
