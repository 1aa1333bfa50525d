package models

// Stats is the denormalized counter block cached next to the history
// store. It is always recomputed by folding over the full history, never
// incremented in place, so it can not drift from the underlying records.
type Stats struct {
	TotalMinutesByCategory  map[string]int `json:"total_minutes_by_category"`
	TotalSessionsByCategory map[string]int `json:"total_sessions_by_category"`
}

// FoldStats recomputes the counter block from scratch. Excluded (ATIS)
// sessions contribute nothing. The fold is idempotent: running it twice
// over the same records yields identical output.
func FoldStats(sessions []ClosedSession) Stats {
	st := Stats{
		TotalMinutesByCategory:  make(map[string]int),
		TotalSessionsByCategory: make(map[string]int),
	}
	for _, s := range sessions {
		if s.Excluded() {
			continue
		}
		cat := s.Identity.Category.String()
		st.TotalMinutesByCategory[cat] += s.DurationMinutes
		st.TotalSessionsByCategory[cat]++
	}
	return st
}
