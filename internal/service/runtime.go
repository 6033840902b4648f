package service

import (
	"time"

	"go.uber.org/zap"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/metrics"
)

// Runtime carries what every service shares: logging, metrics, the user's
// calendar location and the clock.
type Runtime struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Location *time.Location
	Clock    func() time.Time
}

func (r Runtime) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}

func (r Runtime) loc() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func (r Runtime) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// failure logs and counts a store error and returns the 500 shown to the
// caller.
func (r Runtime) failure(op, message string, err error) *apperrors.APIError {
	r.log().Error(message, zap.String("op", op), zap.Error(err))
	if r.Metrics != nil {
		r.Metrics.PersistenceFailure(op)
	}
	return apperrors.Internal(message)
}
