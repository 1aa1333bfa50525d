// Package api exposes the tracker's query surface over HTTP.
package api

import (
	"github.com/gorilla/mux"

	"github.com/AliSDisrupt/Pakistan-vACC/models"
	"github.com/AliSDisrupt/Pakistan-vACC/types"
)

// SessionReader is the open-session view the handlers read.
type SessionReader interface {
	List() []models.OpenSession
}

// HistoryReader is the closed-session view the handlers read.
type HistoryReader interface {
	Recent(n int) []models.ClosedSession
	List() []models.ClosedSession
	Stats() models.Stats
}

// StatusSource reports collector runtime counters.
type StatusSource interface {
	Stats() types.CollectionStats
}

// NewRouter wires all endpoints. Stores are injected so handlers carry no
// hidden state.
func NewRouter(sessions SessionReader, history HistoryReader, status StatusSource) *mux.Router {
	h := &handlers{sessions: sessions, history: history, status: status}

	r := mux.NewRouter()
	r.Use(RequestID)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(RateLimit)

	api.HandleFunc("/sessions/online", h.GetOpenSessions).Methods("GET")
	api.HandleFunc("/sessions/history", h.GetRecentClosedSessions).Methods("GET")
	api.HandleFunc("/stats", h.GetAggregatedStats).Methods("GET")
	api.HandleFunc("/collector/stats", h.GetCollectorStats).Methods("GET")

	return r
}
