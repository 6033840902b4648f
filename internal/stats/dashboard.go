// Package stats derives dashboard, streak and history views from stored
// sessions. Everything here is a pure function of its inputs.
package stats

import (
	"fmt"
	"sort"
	"time"

	"studytrack/backend/internal/model"
)

const (
	RhythmNightOwl   = "Night Owl"
	RhythmEarlyFocus = "Early Focus"
	RhythmBalanced   = "Balanced Learner"

	rhythmThreshold     = 5
	neglectAfter        = 3 * 24 * time.Hour
	deepFocusSeconds    = 2400
	surgePercent        = 10
	consistencyWindow   = 7
	maxInsights         = 3
	dateLayout          = "2006-01-02"
	hourLabelLayout     = "3PM"
	insightSurge        = "Your momentum is surging this week. Capitalize on this energy."
	insightDeepFocus    = "You excel in deep focus. Long sessions are your strength."
	insightShortSprints = "You perform best with short, intense focus sprints."
)

var weekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type SubjectStat struct {
	SubjectID    string  `json:"subjectId"`
	Name         string  `json:"name"`
	Color        string  `json:"color"`
	TotalTime    int     `json:"totalTime"`
	Consistency  float64 `json:"consistency"`
	SessionCount int     `json:"sessionCount"`
}

type HourBucket struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
	Total int    `json:"total"`
}

type DayBucket struct {
	Day   string `json:"day"`
	Total int    `json:"total"`
}

// Dashboard is the flat aggregate served by GET /api/dashboard.
type Dashboard struct {
	TimeToday           int           `json:"timeToday"`
	TimeThisWeek        int           `json:"timeThisWeek"`
	TimePrevWeek        int           `json:"timePrevWeek"`
	AvgSessionDuration  float64       `json:"avgSessionDuration"`
	LongestSession      int           `json:"longestSession"`
	Momentum            float64       `json:"momentum"`
	SubjectDistribution []SubjectStat `json:"subjectDistribution"`
	Neglected           []string      `json:"neglected"`
	HourHeatmap         []HourBucket  `json:"hourHeatmap"`
	BestHour            HourBucket    `json:"bestHour"`
	DayOfWeekStats      []DayBucket   `json:"dayOfWeekStats"`
	Rhythm              string        `json:"rhythm"`
	Insights            []string      `json:"insights"`
}

// Compute aggregates sessions and subjects as seen at now. Day boundaries
// and hours are taken in loc.
func Compute(sessions []model.Session, subjects []model.Subject, now time.Time, loc *time.Location) Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	todayStart := StartOfDay(now, loc)
	weekStart := todayStart.AddDate(0, 0, -(consistencyWindow - 1))
	prevStart := weekStart.AddDate(0, 0, -consistencyWindow)

	d := Dashboard{
		SubjectDistribution: []SubjectStat{},
		Neglected:           []string{},
		HourHeatmap:         make([]HourBucket, 24),
		DayOfWeekStats:      make([]DayBucket, 7),
		Insights:            []string{},
	}
	for h := range d.HourHeatmap {
		d.HourHeatmap[h] = HourBucket{Hour: h, Label: HourLabel(h)}
	}
	for i, day := range weekdays {
		d.DayOfWeekStats[i] = DayBucket{Day: day}
	}

	var total, lateNight, earlyMorning int
	for _, s := range sessions {
		start := s.StartTime.In(loc)
		switch {
		case !start.Before(todayStart):
			d.TimeToday += s.Duration
			d.TimeThisWeek += s.Duration
		case !start.Before(weekStart):
			d.TimeThisWeek += s.Duration
		case !start.Before(prevStart):
			d.TimePrevWeek += s.Duration
		}

		total += s.Duration
		if s.Duration > d.LongestSession {
			d.LongestSession = s.Duration
		}

		hour := start.Hour()
		d.HourHeatmap[hour].Total += s.Duration
		d.DayOfWeekStats[start.Weekday()].Total += s.Duration
		switch {
		case hour >= 22 || hour <= 4:
			lateNight++
		case hour >= 5 && hour <= 9:
			earlyMorning++
		}
	}

	if len(sessions) > 0 {
		d.AvgSessionDuration = float64(total) / float64(len(sessions))
	}
	d.Momentum = Momentum(d.TimeThisWeek, d.TimePrevWeek)
	d.BestHour = bestHour(d.HourHeatmap)
	d.Rhythm = Rhythm(lateNight, earlyMorning)
	d.SubjectDistribution, d.Neglected = subjectStats(sessions, subjects, now, weekStart, loc)
	d.Insights = insights(d)
	return d
}

// Momentum is the week-over-week change in percent, 0 without a previous week.
func Momentum(thisWeek, prevWeek int) float64 {
	if prevWeek <= 0 {
		return 0
	}
	return float64(thisWeek-prevWeek) / float64(prevWeek) * 100
}

func Rhythm(lateNight, earlyMorning int) string {
	switch {
	case lateNight > earlyMorning && lateNight > rhythmThreshold:
		return RhythmNightOwl
	case earlyMorning > lateNight && earlyMorning > rhythmThreshold:
		return RhythmEarlyFocus
	default:
		return RhythmBalanced
	}
}

// HourLabel renders an hour of day as 12AM, 1AM, ... 11PM.
func HourLabel(hour int) string {
	return time.Date(2000, 1, 1, hour, 0, 0, 0, time.UTC).Format(hourLabelLayout)
}

func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DateKey formats the local calendar day of t as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

func bestHour(heatmap []HourBucket) HourBucket {
	best := heatmap[0]
	for _, b := range heatmap[1:] {
		if b.Total > best.Total {
			best = b
		}
	}
	return best
}

func subjectStats(sessions []model.Session, subjects []model.Subject, now, weekStart time.Time, loc *time.Location) ([]SubjectStat, []string) {
	type acc struct {
		total   int
		count   int
		days    map[string]struct{}
		lastRun time.Time
	}
	bySubject := make(map[string]*acc, len(subjects))
	for _, s := range sessions {
		a, ok := bySubject[s.SubjectID]
		if !ok {
			a = &acc{days: map[string]struct{}{}}
			bySubject[s.SubjectID] = a
		}
		a.total += s.Duration
		a.count++
		if !s.StartTime.Before(weekStart) {
			a.days[DateKey(s.StartTime, loc)] = struct{}{}
		}
		if s.StartTime.After(a.lastRun) {
			a.lastRun = s.StartTime
		}
	}

	distribution := []SubjectStat{}
	neglected := []string{}
	cutoff := now.Add(-neglectAfter)
	for _, sub := range subjects {
		if sub.Archived {
			continue
		}
		stat := SubjectStat{SubjectID: sub.ID, Name: sub.Name, Color: sub.Color}
		a, ok := bySubject[sub.ID]
		if ok {
			stat.TotalTime = a.total
			stat.SessionCount = a.count
			stat.Consistency = float64(len(a.days)) / consistencyWindow * 100
		}
		distribution = append(distribution, stat)

		if !ok || a.lastRun.Before(cutoff) {
			neglected = append(neglected, sub.Name)
		}
	}
	sort.SliceStable(distribution, func(i, j int) bool {
		return distribution[i].TotalTime > distribution[j].TotalTime
	})
	return distribution, neglected
}

func insights(d Dashboard) []string {
	out := make([]string, 0, 4)
	if d.Momentum > surgePercent {
		out = append(out, insightSurge)
	}
	if len(d.Neglected) > 0 {
		out = append(out, fmt.Sprintf("Focus on %s to maintain subject balance.", d.Neglected[0]))
	}
	if d.AvgSessionDuration > deepFocusSeconds {
		out = append(out, insightDeepFocus)
	} else {
		out = append(out, insightShortSprints)
	}
	if d.BestHour.Total > 0 {
		out = append(out, fmt.Sprintf("Your biological prime time appears to be around %s.", d.BestHour.Label))
	}
	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out
}
