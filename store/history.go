package store

import (
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

// historyDocument is the persisted shape of the closed-session history.
type historyDocument struct {
	LastUpdated time.Time              `json:"last_updated"`
	Sessions    []models.ClosedSession `json:"sessions"`
	Stats       models.Stats           `json:"stats"`
}

// HistoryStore keeps the most recent closed sessions, newest first,
// bounded to a fixed capacity with the oldest evicted on overflow. The
// cached Stats block is recomputed by a full fold after every mutation.
type HistoryStore struct {
	mu       sync.RWMutex
	db       *badger.DB
	limit    int
	sessions []models.ClosedSession
	ids      map[string]struct{}
	stats    models.Stats
}

// NewHistoryStore loads any previously persisted history snapshot.
func NewHistoryStore(db *badger.DB, limit int) (*HistoryStore, error) {
	h := &HistoryStore{
		db:    db,
		limit: limit,
		ids:   make(map[string]struct{}),
	}

	doc, err := readDoc(db, historyStateKey)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		var parsed historyDocument
		if err := json.Unmarshal(doc, &parsed); err != nil {
			return nil, err
		}
		h.sessions = parsed.Sessions
		if len(h.sessions) > limit {
			h.sessions = h.sessions[:limit]
		}
		for _, sess := range h.sessions {
			h.ids[sess.ID] = struct{}{}
		}
	}
	// Recompute rather than trust the stored block; stale snapshots may
	// predate the current exclusion rules.
	h.stats = models.FoldStats(h.sessions)
	return h, nil
}

// Append records a closed session unless its id is already present.
func (h *HistoryStore) Append(sess models.ClosedSession) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, dup := h.ids[sess.ID]; dup {
		return nil
	}

	h.sessions = append([]models.ClosedSession{sess}, h.sessions...)
	h.ids[sess.ID] = struct{}{}
	for len(h.sessions) > h.limit {
		evicted := h.sessions[len(h.sessions)-1]
		delete(h.ids, evicted.ID)
		h.sessions = h.sessions[:len(h.sessions)-1]
	}

	h.stats = models.FoldStats(h.sessions)
	return h.persistLocked()
}

// List returns the full history, newest first.
func (h *HistoryStore) List() []models.ClosedSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.ClosedSession, len(h.sessions))
	copy(out, h.sessions)
	return out
}

// Recent returns up to n of the newest closed sessions.
func (h *HistoryStore) Recent(n int) []models.ClosedSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.sessions) {
		n = len(h.sessions)
	}
	out := make([]models.ClosedSession, n)
	copy(out, h.sessions[:n])
	return out
}

func (h *HistoryStore) Contains(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.ids[id]
	return ok
}

func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Stats returns the cached fold over the current history.
func (h *HistoryStore) Stats() models.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

func (h *HistoryStore) persistLocked() error {
	raw, err := json.Marshal(historyDocument{
		LastUpdated: time.Now().UTC(),
		Sessions:    h.sessions,
		Stats:       h.stats,
	})
	if err != nil {
		return err
	}
	return writeDoc(h.db, historyStateKey, raw)
}
