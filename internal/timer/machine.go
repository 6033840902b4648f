// Package timer implements the resumable study timer as a pure reducer over
// model.TimerState. It performs no I/O; callers persist the returned state and
// record the returned Completion.
package timer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"studytrack/backend/internal/model"
)

type EventKind string

const (
	EventStart       EventKind = "start"
	EventPause       EventKind = "pause"
	EventStop        EventKind = "stop"
	EventReset       EventKind = "reset"
	EventTick        EventKind = "tick"
	EventSetMode     EventKind = "set_mode"
	EventSetSubject  EventKind = "set_subject"
	EventSetDuration EventKind = "set_duration"
)

var (
	ErrSubjectRequired = errors.New("timer: subject required")
	ErrTimerActive     = errors.New("timer: timer is active")
	ErrInvalidMode     = errors.New("timer: invalid mode")
	ErrInvalidDuration = errors.New("timer: invalid duration")
	ErrInvalidReason   = errors.New("timer: invalid stop reason")
)

// Event is an input to Apply. Only the fields relevant to Kind are read.
type Event struct {
	Kind      EventKind
	Reason    string
	Mode      string
	SubjectID string
	Minutes   int
}

func Start(subjectID string) Event {
	return Event{Kind: EventStart, SubjectID: subjectID}
}

func Pause() Event {
	return Event{Kind: EventPause}
}

func Stop(reason string) Event {
	return Event{Kind: EventStop, Reason: reason}
}

func Reset() Event {
	return Event{Kind: EventReset}
}

func Tick() Event {
	return Event{Kind: EventTick}
}

func SetMode(mode string) Event {
	return Event{Kind: EventSetMode, Mode: mode}
}

func SetSubject(subjectID string) Event {
	return Event{Kind: EventSetSubject, SubjectID: subjectID}
}

func SetDuration(minutes int) Event {
	return Event{Kind: EventSetDuration, Minutes: minutes}
}

// Completion describes a finished session produced by a stop transition.
type Completion struct {
	SubjectID string
	Mode      string
	StartTime time.Time
	EndTime   time.Time
	Duration  int
	Status    string
}

type Result struct {
	State      model.TimerState
	Changed    bool
	Completion *Completion
}

type transition func(s model.TimerState, ev Event, now time.Time) (Result, error)

var transitions = map[string]map[EventKind]transition{
	model.StatusStopped: {
		EventStart:       startFresh,
		EventPause:       noop,
		EventStop:        noop,
		EventReset:       reset,
		EventTick:        noop,
		EventSetMode:     setMode,
		EventSetSubject:  setSubject,
		EventSetDuration: setDuration,
	},
	model.StatusRunning: {
		EventStart:       noop,
		EventPause:       pause,
		EventStop:        finalize,
		EventReset:       reset,
		EventTick:        tick,
		EventSetMode:     rejectActive,
		EventSetSubject:  rejectActive,
		EventSetDuration: rejectActive,
	},
	model.StatusPaused: {
		EventStart:       resume,
		EventPause:       noop,
		EventStop:        finalize,
		EventReset:       reset,
		EventTick:        noop,
		EventSetMode:     rejectActive,
		EventSetSubject:  rejectActive,
		EventSetDuration: rejectActive,
	},
}

// Apply runs one event against the state at instant now.
func Apply(s model.TimerState, ev Event, now time.Time) (Result, error) {
	s = normalize(s)
	byEvent, ok := transitions[s.Status]
	if !ok {
		return Result{State: s}, fmt.Errorf("timer: unknown status %q", s.Status)
	}
	fn, ok := byEvent[ev.Kind]
	if !ok {
		return Result{State: s}, fmt.Errorf("timer: unknown event %q", ev.Kind)
	}
	return fn(s, ev, now)
}

// Elapsed returns the active seconds of the current session at now.
func Elapsed(s model.TimerState, now time.Time) float64 {
	total := s.AccumulatedTime
	if s.Status == model.StatusRunning {
		total += sinceStart(s.StartedAt, now)
	}
	return total
}

// Display derives the seconds shown to the user: remaining time for a
// pomodoro, elapsed time for a stopwatch.
func Display(s model.TimerState, now time.Time) float64 {
	s = normalize(s)
	pomodoro := s.Mode == model.ModePomodoro
	switch s.Status {
	case model.StatusPaused, model.StatusRunning:
		total := Elapsed(s, now)
		if pomodoro {
			return math.Max(0, float64(s.InitialDuration)-total)
		}
		return total
	default:
		if pomodoro {
			return float64(s.InitialDuration)
		}
		return 0
	}
}

// Due reports whether a running pomodoro has counted down to zero.
func Due(s model.TimerState, now time.Time) bool {
	s = normalize(s)
	return s.Status == model.StatusRunning && s.Mode == model.ModePomodoro && Display(s, now) <= 0
}

func InitialDuration(mode string, minutes int) int {
	if mode != model.ModePomodoro {
		return 0
	}
	if minutes <= 0 {
		minutes = model.DefaultPomodoroMinutes
	}
	return minutes * 60
}

func normalize(s model.TimerState) model.TimerState {
	if s.Status == "" {
		s.Status = model.StatusStopped
	}
	if s.Mode == "" {
		s.Mode = model.ModePomodoro
	}
	if s.DurationMinutes <= 0 {
		s.DurationMinutes = model.DefaultPomodoroMinutes
	}
	return s
}

func noop(s model.TimerState, _ Event, _ time.Time) (Result, error) {
	return Result{State: s}, nil
}

func rejectActive(s model.TimerState, _ Event, _ time.Time) (Result, error) {
	return Result{State: s}, ErrTimerActive
}

func startFresh(s model.TimerState, ev Event, now time.Time) (Result, error) {
	subjectID := s.SubjectID
	if ev.SubjectID != "" {
		subjectID = ev.SubjectID
	}
	if subjectID == "" {
		return Result{State: s}, ErrSubjectRequired
	}

	sessionStart := now
	startedAt := now
	s.SubjectID = subjectID
	s.Status = model.StatusRunning
	s.AccumulatedTime = 0
	s.InitialDuration = InitialDuration(s.Mode, s.DurationMinutes)
	s.SessionStartTime = &sessionStart
	s.StartedAt = &startedAt
	return Result{State: s, Changed: true}, nil
}

func resume(s model.TimerState, _ Event, now time.Time) (Result, error) {
	if s.SubjectID == "" {
		return Result{State: s}, ErrSubjectRequired
	}
	startedAt := now
	s.Status = model.StatusRunning
	s.StartedAt = &startedAt
	if s.SessionStartTime == nil {
		sessionStart := now
		s.SessionStartTime = &sessionStart
	}
	return Result{State: s, Changed: true}, nil
}

func pause(s model.TimerState, _ Event, now time.Time) (Result, error) {
	s.AccumulatedTime += sinceStart(s.StartedAt, now)
	s.Status = model.StatusPaused
	s.StartedAt = nil
	return Result{State: s, Changed: true}, nil
}

func tick(s model.TimerState, _ Event, now time.Time) (Result, error) {
	if !Due(s, now) {
		return Result{State: s}, nil
	}
	return finalize(s, Stop(model.SessionStatusCompleted), now)
}

func finalize(s model.TimerState, ev Event, now time.Time) (Result, error) {
	if ev.Reason != model.SessionStatusStopped && ev.Reason != model.SessionStatusCompleted {
		return Result{State: s}, ErrInvalidReason
	}

	final := Elapsed(s, now)
	end := now
	// A countdown observed after it reached zero ends at the zero instant.
	if ev.Reason == model.SessionStatusCompleted && s.Mode == model.ModePomodoro && s.InitialDuration > 0 {
		if overshoot := final - float64(s.InitialDuration); overshoot > 0 {
			final = float64(s.InitialDuration)
			end = now.Add(-seconds(overshoot))
		}
	}

	result := Result{State: resetState(s), Changed: true}
	duration := int(math.Round(final))
	if duration > model.MinSessionSeconds && s.SessionStartTime != nil && !s.SessionStartTime.IsZero() {
		result.Completion = &Completion{
			SubjectID: s.SubjectID,
			Mode:      s.Mode,
			StartTime: *s.SessionStartTime,
			EndTime:   end,
			Duration:  duration,
			Status:    ev.Reason,
		}
	}
	return result, nil
}

func reset(s model.TimerState, _ Event, _ time.Time) (Result, error) {
	return Result{State: resetState(s), Changed: true}, nil
}

func setMode(s model.TimerState, ev Event, _ time.Time) (Result, error) {
	if !model.IsValidMode(ev.Mode) {
		return Result{State: s}, ErrInvalidMode
	}
	s.Mode = ev.Mode
	s.InitialDuration = InitialDuration(s.Mode, s.DurationMinutes)
	return Result{State: s, Changed: true}, nil
}

func setSubject(s model.TimerState, ev Event, _ time.Time) (Result, error) {
	if ev.SubjectID == "" {
		return Result{State: s}, ErrSubjectRequired
	}
	s.SubjectID = ev.SubjectID
	return Result{State: s, Changed: true}, nil
}

func setDuration(s model.TimerState, ev Event, _ time.Time) (Result, error) {
	if ev.Minutes < model.MinPomodoroMinutes || ev.Minutes > model.MaxPomodoroMinutes {
		return Result{State: s}, ErrInvalidDuration
	}
	s.DurationMinutes = ev.Minutes
	s.InitialDuration = InitialDuration(s.Mode, s.DurationMinutes)
	return Result{State: s, Changed: true}, nil
}

func resetState(s model.TimerState) model.TimerState {
	s.Status = model.StatusStopped
	s.AccumulatedTime = 0
	s.StartedAt = nil
	s.SessionStartTime = nil
	s.InitialDuration = InitialDuration(s.Mode, s.DurationMinutes)
	return s
}

func sinceStart(startedAt *time.Time, now time.Time) float64 {
	if startedAt == nil || startedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(*startedAt).Seconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
