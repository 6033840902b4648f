package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/model"
	"studytrack/backend/internal/repository"
	"studytrack/backend/internal/stats"
)

const (
	DefaultSessionLimit = 50
	MaxSessionLimit     = 500

	FormatCSV  = "csv"
	FormatJSON = "json"

	exportTimeLayout = "2006-01-02T15:04:05.000Z"
)

var csvHeader = []string{"id", "subjectId", "mode", "startTime", "endTime", "duration", "status", "focusScore"}

type SessionService struct {
	Runtime
	repo *repository.SessionRepository
}

func NewSessionService(rt Runtime, repo *repository.SessionRepository) *SessionService {
	return &SessionService{Runtime: rt, repo: repo}
}

// Export is a rendered session file ready to be served or written to disk.
type Export struct {
	ContentType string
	Filename    string
	Body        []byte
}

// List returns the newest sessions first. limit falls back to
// DefaultSessionLimit and is capped at MaxSessionLimit.
func (s *SessionService) List(ctx context.Context, userID string, limit int) ([]model.Session, *apperrors.APIError) {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	if limit > MaxSessionLimit {
		limit = MaxSessionLimit
	}
	sessions, err := s.repo.List(ctx, userID, limit)
	if err != nil {
		return nil, s.failure("session.list", "failed to list sessions", err)
	}
	return sessions, nil
}

func (s *SessionService) Grouped(ctx context.Context, userID string) (*stats.GroupedSessions, *apperrors.APIError) {
	sessions, err := s.repo.List(ctx, userID, 0)
	if err != nil {
		return nil, s.failure("session.list", "failed to list sessions", err)
	}
	grouped := stats.GroupByDay(sessions, s.now(), s.loc())
	return &grouped, nil
}

func (s *SessionService) Heatmap(ctx context.Context, userID string, days int) ([]stats.HeatmapDay, *apperrors.APIError) {
	if days <= 0 || days > 366 {
		days = stats.DefaultHeatmapDays
	}
	since := stats.StartOfDay(s.now(), s.loc()).AddDate(0, 0, -(days - 1))
	sessions, err := s.repo.ListSince(ctx, userID, since)
	if err != nil {
		return nil, s.failure("session.heatmap", "failed to list sessions", err)
	}
	return stats.Heatmap(sessions, s.now(), s.loc(), days), nil
}

func (s *SessionService) Export(ctx context.Context, userID, format string) (*Export, *apperrors.APIError) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatJSON {
		return nil, apperrors.BadRequest("invalid_format", "format must be one of csv, json")
	}

	sessions, err := s.repo.List(ctx, userID, 0)
	if err != nil {
		return nil, s.failure("session.export", "failed to list sessions", err)
	}

	var buf bytes.Buffer
	if err := WriteSessions(&buf, format, sessions); err != nil {
		return nil, s.failure("session.export", "failed to encode sessions", err)
	}

	out := &Export{
		Filename: fmt.Sprintf("sessions-%s.%s", stats.DateKey(s.now(), s.loc()), format),
		Body:     buf.Bytes(),
	}
	if format == FormatCSV {
		out.ContentType = "text/csv; charset=utf-8"
	} else {
		out.ContentType = "application/json; charset=utf-8"
	}
	return out, nil
}

// WriteSessions encodes sessions as csv or json.
func WriteSessions(w io.Writer, format string, sessions []model.Session) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if sessions == nil {
			sessions = []model.Session{}
		}
		return enc.Encode(sessions)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, session := range sessions {
			record := []string{
				session.ID,
				session.SubjectID,
				session.Mode,
				session.StartTime.UTC().Format(exportTimeLayout),
				session.EndTime.UTC().Format(exportTimeLayout),
				strconv.Itoa(session.Duration),
				session.Status,
				strconv.Itoa(session.FocusScore),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
