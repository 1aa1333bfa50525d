package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/AliSDisrupt/Pakistan-vACC/aggregate"
	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

type handlers struct {
	sessions SessionReader
	history  HistoryReader
	status   StatusSource
}

const defaultHistoryLimit = 50

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// GetOpenSessions lists everything currently believed online, longest
// running first.
func (h *handlers) GetOpenSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// GetRecentClosedSessions returns the newest closed sessions, capped by
// the ?limit= parameter.
func (h *handlers) GetRecentClosedSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions := h.history.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

type statsResponse struct {
	GroupBy string             `json:"group_by"`
	Totals  models.Stats       `json:"totals"`
	Periods []aggregate.Bucket `json:"periods"`
}

// GetAggregatedStats buckets the history by ?group_by=day|week|month|year
// (default day) and attaches the overall totals.
func (h *handlers) GetAggregatedStats(w http.ResponseWriter, r *http.Request) {
	groupBy := aggregate.ByDay
	if v := r.URL.Query().Get("group_by"); v != "" {
		g, ok := aggregate.ParseGroupBy(v)
		if !ok {
			http.Error(w, "group_by must be one of: day, week, month, year", http.StatusBadRequest)
			return
		}
		groupBy = g
	}

	writeJSON(w, http.StatusOK, statsResponse{
		GroupBy: string(groupBy),
		Totals:  h.history.Stats(),
		Periods: aggregate.Aggregate(h.history.List(), groupBy),
	})
}

func (h *handlers) GetCollectorStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Stats())
}
