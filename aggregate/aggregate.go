// Package aggregate buckets closed sessions into calendar periods for
// the statistics endpoint and the dashboard charts.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

// GroupBy selects the period key derivation.
type GroupBy string

const (
	ByDay   GroupBy = "day"
	ByWeek  GroupBy = "week"
	ByMonth GroupBy = "month"
	ByYear  GroupBy = "year"
)

// ParseGroupBy validates a query-string grouping value.
func ParseGroupBy(s string) (GroupBy, bool) {
	switch GroupBy(s) {
	case ByDay, ByWeek, ByMonth, ByYear:
		return GroupBy(s), true
	}
	return "", false
}

// Bucket is one period's totals. Counts never include excluded (ATIS)
// sessions.
type Bucket struct {
	Period             string         `json:"period"`
	SessionsByCategory map[string]int `json:"sessions_by_category"`
	MinutesByCategory  map[string]int `json:"minutes_by_category"`
	TotalSessions      int            `json:"total_sessions"`
	TotalMinutes       int            `json:"total_minutes"`
}

// Aggregate folds closed sessions into period buckets, sorted ascending
// by period key. The input is not mutated; running the fold twice over
// the same history yields identical output.
func Aggregate(sessions []models.ClosedSession, groupBy GroupBy) []Bucket {
	buckets := make(map[string]*Bucket)

	for _, s := range sessions {
		if s.Excluded() {
			continue
		}
		key := periodKey(s.StartTime, groupBy)
		b, ok := buckets[key]
		if !ok {
			b = &Bucket{
				Period:             key,
				SessionsByCategory: make(map[string]int),
				MinutesByCategory:  make(map[string]int),
			}
			buckets[key] = b
		}
		cat := s.Identity.Category.String()
		b.SessionsByCategory[cat]++
		b.MinutesByCategory[cat] += s.DurationMinutes
		b.TotalSessions++
		b.TotalMinutes += s.DurationMinutes
	}

	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// periodKey truncates a session's start time to its calendar period. All
// keys sort lexicographically in chronological order.
func periodKey(t time.Time, groupBy GroupBy) string {
	t = t.UTC()
	switch groupBy {
	case ByWeek:
		// ISO week start: shift back to the most recent Monday.
		offset := (int(t.Weekday()) + 6) % 7
		monday := t.AddDate(0, 0, -offset)
		return monday.Format("2006-01-02")
	case ByMonth:
		return t.Format("2006-01")
	case ByYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

// String implements fmt.Stringer for log output.
func (b Bucket) String() string {
	return fmt.Sprintf("%s: %d sessions, %d min", b.Period, b.TotalSessions, b.TotalMinutes)
}
