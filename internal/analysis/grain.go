package analysis

import (
	"math"
	"time"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// Grain is a time-bucketing resolution.
type Grain string

const (
	GrainDay   Grain = "day"
	GrainWeek  Grain = "week"
	GrainMonth Grain = "month"
)

// Valid reports whether g is one of the known grains.
func (g Grain) Valid() bool {
	return g == GrainDay || g == GrainWeek || g == GrainMonth
}

// GrainForSpan picks a grain from the number of whole days between the
// earliest and latest timestamp: a year or more buckets by month, 60 days or
// more by week, otherwise by day.
func GrainForSpan(days int) Grain {
	switch {
	case days >= 365:
		return GrainMonth
	case days >= 60:
		return GrainWeek
	default:
		return GrainDay
	}
}

// SpanDays returns the whole-day distance between a datetime column's profiled min and max.
func SpanDays(st *ColumnStats) (int, bool) {
	if st == nil || st.MinTime == "" || st.MaxTime == "" {
		return 0, false
	}
	lo, ok1 := dataset.ParseTime(st.MinTime)
	hi, ok2 := dataset.ParseTime(st.MaxTime)
	if !ok1 || !ok2 {
		return 0, false
	}
	return wholeDays(hi.Sub(lo)), true
}

// InferGrain derives the grain of a profiled datetime column; ok is false
// when the column has no parsed values.
func InferGrain(st *ColumnStats) (Grain, bool) {
	days, ok := SpanDays(st)
	if !ok {
		return "", false
	}
	return GrainForSpan(days), true
}

func wholeDays(d time.Duration) int {
	return int(math.Abs(math.Floor(d.Hours() / 24)))
}

// BucketStart truncates t to the start of its bucket. Weeks start on Monday.
func BucketStart(t time.Time, g Grain) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case GrainMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GrainWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return day
	}
}

// PreviousBucket returns the start of the bucket immediately before the one containing t.
func PreviousBucket(t time.Time, g Grain) time.Time {
	start := BucketStart(t, g)
	switch g {
	case GrainMonth:
		return start.AddDate(0, -1, 0)
	case GrainWeek:
		return start.AddDate(0, 0, -7)
	default:
		return start.AddDate(0, 0, -1)
	}
}
