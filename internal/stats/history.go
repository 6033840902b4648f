package stats

import (
	"sort"
	"time"

	"studytrack/backend/internal/model"
)

const DefaultHeatmapDays = 30

type HeatmapDay struct {
	Date          string `json:"date"`
	TotalDuration int    `json:"totalDuration"`
	Level         int    `json:"level"`
}

type DayGroup struct {
	Date          string          `json:"date"`
	TotalDuration int             `json:"totalDuration"`
	Sessions      []model.Session `json:"sessions"`
}

type GroupedSessions struct {
	Today []model.Session `json:"today"`
	Past  []DayGroup      `json:"past"`
}

// Heatmap returns one cell per local day, oldest first, ending today.
func Heatmap(sessions []model.Session, now time.Time, loc *time.Location, days int) []HeatmapDay {
	if days <= 0 {
		days = DefaultHeatmapDays
	}
	totals := make(map[string]int, days)
	for _, s := range sessions {
		totals[DateKey(s.StartTime, loc)] += s.Duration
	}

	first := StartOfDay(now, loc).AddDate(0, 0, -(days - 1))
	out := make([]HeatmapDay, 0, days)
	for i := 0; i < days; i++ {
		key := DateKey(first.AddDate(0, 0, i), loc)
		out = append(out, HeatmapDay{Date: key, TotalDuration: totals[key], Level: Level(totals[key])})
	}
	return out
}

// Level buckets a day's seconds: 0 none, 1 under 1h, 2 under 2h, 3 under 4h, 4 otherwise.
func Level(seconds int) int {
	switch {
	case seconds <= 0:
		return 0
	case seconds < 3600:
		return 1
	case seconds < 7200:
		return 2
	case seconds < 14400:
		return 3
	default:
		return 4
	}
}

// GroupByDay splits sessions into today's and earlier ones grouped by local
// date, newest date first. Order within a group follows the input.
func GroupByDay(sessions []model.Session, now time.Time, loc *time.Location) GroupedSessions {
	today := DateKey(now, loc)
	out := GroupedSessions{Today: []model.Session{}, Past: []DayGroup{}}
	index := map[string]int{}
	for _, s := range sessions {
		key := DateKey(s.StartTime, loc)
		if key == today {
			out.Today = append(out.Today, s)
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(out.Past)
			index[key] = i
			out.Past = append(out.Past, DayGroup{Date: key, Sessions: []model.Session{}})
		}
		out.Past[i].Sessions = append(out.Past[i].Sessions, s)
		out.Past[i].TotalDuration += s.Duration
	}
	sort.SliceStable(out.Past, func(i, j int) bool {
		return out.Past[i].Date > out.Past[j].Date
	})
	return out
}
