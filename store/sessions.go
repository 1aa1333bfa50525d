package store

import (
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

// openDocument is the persisted shape of the open-session state.
type openDocument struct {
	LastUpdated time.Time                     `json:"last_updated"`
	Sessions    map[string]models.OpenSession `json:"sessions"`
}

// SessionStore holds every session currently believed open. The map is
// authoritative; the badger document is a write-through snapshot used
// only to survive restarts.
type SessionStore struct {
	mu       sync.RWMutex
	db       *badger.DB
	sessions map[models.Identity]models.OpenSession
}

// NewSessionStore loads any previously persisted open-session snapshot.
func NewSessionStore(db *badger.DB) (*SessionStore, error) {
	s := &SessionStore{
		db:       db,
		sessions: make(map[models.Identity]models.OpenSession),
	}

	doc, err := readDoc(db, openStateKey)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		var parsed openDocument
		if err := json.Unmarshal(doc, &parsed); err != nil {
			return nil, err
		}
		for _, sess := range parsed.Sessions {
			s.sessions[sess.Identity] = sess
		}
	}
	return s, nil
}

// Upsert writes a session into the map and persists the snapshot. A
// persistence failure is returned after the in-memory write took effect.
func (s *SessionStore) Upsert(sess models.OpenSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Identity] = sess
	return s.persistLocked()
}

func (s *SessionStore) Delete(id models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return s.persistLocked()
}

func (s *SessionStore) Get(id models.Identity) (models.OpenSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// List returns a copy of every open session.
func (s *SessionStore) List() []models.OpenSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OpenSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) persistLocked() error {
	doc := openDocument{
		LastUpdated: time.Now().UTC(),
		Sessions:    make(map[string]models.OpenSession, len(s.sessions)),
	}
	for id, sess := range s.sessions {
		doc.Sessions[id.Key()] = sess
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return writeDoc(s.db, openStateKey, raw)
}
