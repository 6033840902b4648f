package stats

import (
	"math"
	"time"

	"studytrack/backend/internal/model"
)

// StreakUpdate is the outcome of a streak rule. Changed is false when the
// stored values are already correct.
type StreakUpdate struct {
	Streak     int
	LastUpdate string
	Changed    bool
}

// EvaluateStreak applies the daily target rule after a session is recorded.
// todaySeconds must cover every session of the local day, not only the last one.
func EvaluateStreak(streak int, lastUpdate string, todaySeconds int, targetHours float64, now time.Time, loc *time.Location) StreakUpdate {
	unchanged := StreakUpdate{Streak: streak, LastUpdate: lastUpdate}
	today := DateKey(now, loc)
	if lastUpdate == today {
		return unchanged
	}
	if float64(todaySeconds) < TargetSeconds(targetHours) {
		return unchanged
	}

	next := 1
	if lastUpdate == yesterdayKey(now, loc) {
		next = streak + 1
	}
	return StreakUpdate{Streak: next, LastUpdate: today, Changed: true}
}

// ExpireStreak zeroes a streak whose last qualifying day is older than
// yesterday. It runs when a profile is loaded.
func ExpireStreak(streak int, lastUpdate string, now time.Time, loc *time.Location) StreakUpdate {
	if streak == 0 || lastUpdate == DateKey(now, loc) || lastUpdate == yesterdayKey(now, loc) {
		return StreakUpdate{Streak: streak, LastUpdate: lastUpdate}
	}
	return StreakUpdate{Streak: 0, LastUpdate: lastUpdate, Changed: true}
}

// TodayTotal sums the durations of sessions started on the local day of now.
func TodayTotal(sessions []model.Session, now time.Time, loc *time.Location) int {
	start := StartOfDay(now, loc)
	total := 0
	for _, s := range sessions {
		if !s.StartTime.Before(start) {
			total += s.Duration
		}
	}
	return total
}

func TargetSeconds(targetHours float64) float64 {
	return targetHours * 3600
}

// Progress is today's share of the target in percent, capped at 100.
func Progress(todaySeconds int, targetHours float64) float64 {
	target := TargetSeconds(targetHours)
	if target <= 0 {
		return 0
	}
	return math.Min(100, float64(todaySeconds)/target*100)
}

func yesterdayKey(now time.Time, loc *time.Location) string {
	return DateKey(StartOfDay(now, loc).AddDate(0, 0, -1), loc)
}
