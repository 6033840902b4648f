package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studytrack/backend/internal/model"
)

func TestHeatmap(t *testing.T) {
	sessions := []model.Session{
		sess("a", at(0, 9), 1200),
		sess("a", at(0, 11), 1200),
		sess("a", at(2, 9), 5000),
		sess("a", at(29, 9), 20000),
		sess("a", at(30, 9), 999),
	}

	cells := Heatmap(sessions, now, time.UTC, 0)
	require.Len(t, cells, DefaultHeatmapDays)

	assert.Equal(t, "2026-02-03", cells[0].Date)
	assert.Equal(t, 20000, cells[0].TotalDuration)
	assert.Equal(t, 4, cells[0].Level)

	last := cells[len(cells)-1]
	assert.Equal(t, "2026-03-04", last.Date)
	assert.Equal(t, 2400, last.TotalDuration)
	assert.Equal(t, 1, last.Level)

	assert.Equal(t, 2, cells[27].Level)
	assert.Equal(t, 0, cells[28].Level)
}

func TestLevel(t *testing.T) {
	for seconds, want := range map[int]int{0: 0, 1: 1, 3599: 1, 3600: 2, 7199: 2, 7200: 3, 14399: 3, 14400: 4} {
		assert.Equal(t, want, Level(seconds), "seconds %d", seconds)
	}
}

func TestGroupByDay(t *testing.T) {
	sessions := []model.Session{
		sess("a", at(0, 14), 100),
		sess("a", at(0, 9), 200),
		sess("b", at(1, 20), 300),
		sess("a", at(3, 8), 400),
		sess("b", at(1, 7), 500),
	}

	g := GroupByDay(sessions, now, time.UTC)
	require.Len(t, g.Today, 2)
	assert.Equal(t, 100, g.Today[0].Duration)

	require.Len(t, g.Past, 2)
	assert.Equal(t, "2026-03-03", g.Past[0].Date)
	assert.Equal(t, 800, g.Past[0].TotalDuration)
	assert.Len(t, g.Past[0].Sessions, 2)
	assert.Equal(t, "2026-03-01", g.Past[1].Date)
}

func TestGroupByDayEmpty(t *testing.T) {
	g := GroupByDay(nil, now, time.UTC)
	assert.NotNil(t, g.Today)
	assert.NotNil(t, g.Past)
}
