// Package syncer rebuilds ephemeral state from the durable store. It is
// the crash-recovery path: if the local snapshot is lost, one run
// restores the history, its aggregate counters and the open-session map
// from durable truth. Every step is idempotent, so running it repeatedly
// or concurrently with the live loop is safe.
package syncer

import (
	"context"
	"fmt"

	"github.com/AliSDisrupt/Pakistan-vACC/db"
	"github.com/AliSDisrupt/Pakistan-vACC/logging"
	"github.com/AliSDisrupt/Pakistan-vACC/models"
	"github.com/AliSDisrupt/Pakistan-vACC/store"
)

// DurableReader is the read surface of the durable store the syncer
// consumes. *db.Store satisfies it.
type DurableReader interface {
	ListClosedSessions(ctx context.Context, f db.ClosedSessionFilter) ([]models.ClosedSession, error)
	ListOpenSessions(ctx context.Context) ([]models.OpenSession, error)
}

// Report summarizes one run for operability.
type Report struct {
	InsertedByCategory map[string]int `json:"inserted_by_category"`
	SkippedByCategory  map[string]int `json:"skipped_by_category"`
	OpenCreated        int            `json:"open_created"`
	OpenRefreshed      int            `json:"open_refreshed"`
}

type Syncer struct {
	durable  DurableReader
	sessions *store.SessionStore
	history  *store.HistoryStore
}

func New(durable DurableReader, sessions *store.SessionStore, history *store.HistoryStore) *Syncer {
	return &Syncer{durable: durable, sessions: sessions, history: history}
}

// Run performs one full durable-to-ephemeral reconciliation.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	report := Report{
		InsertedByCategory: make(map[string]int),
		SkippedByCategory:  make(map[string]int),
	}

	closed, err := s.durable.ListClosedSessions(ctx, db.ClosedSessionFilter{})
	if err != nil {
		return report, fmt.Errorf("reading closed sessions: %w", err)
	}

	// The store orders newest first; append oldest first so the history
	// store ends up in recency order with the newest retained when the
	// cap is hit.
	for i := len(closed) - 1; i >= 0; i-- {
		c := closed[i]
		if c.ID == "" {
			c.ID = models.SessionID(c.Identity, c.StartTime)
		}
		cat := c.Identity.Category.String()
		if s.history.Contains(c.ID) {
			report.SkippedByCategory[cat]++
			continue
		}
		if err := s.history.Append(c); err != nil {
			logging.Error().Err(err).Str("id", c.ID).Msg("history import failed")
			continue
		}
		report.InsertedByCategory[cat]++
	}

	open, err := s.durable.ListOpenSessions(ctx)
	if err != nil {
		return report, fmt.Errorf("reading open sessions: %w", err)
	}

	for _, o := range open {
		existing, ok := s.sessions.Get(o.Identity)
		if ok {
			// The ephemeral copy may have seen the participant more
			// recently than the last durable checkpoint. Keep the newest
			// observation and the earliest start.
			if existing.LastSeenAt.After(o.LastSeenAt) {
				o.LastSeenAt = existing.LastSeenAt
			}
			if existing.StartedAt.Before(o.StartedAt) {
				o.StartedAt = existing.StartedAt
			}
			report.OpenRefreshed++
		} else {
			report.OpenCreated++
		}
		if err := s.sessions.Upsert(o); err != nil {
			logging.Error().Err(err).Str("callsign", o.Identity.Callsign).
				Msg("open session import failed")
		}
	}

	logging.Info().
		Interface("inserted", report.InsertedByCategory).
		Interface("skipped", report.SkippedByCategory).
		Int("open_created", report.OpenCreated).
		Int("open_refreshed", report.OpenRefreshed).
		Msg("sync complete")
	return report, nil
}
