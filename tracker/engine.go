package tracker

import (
	"sort"
	"time"

	"github.com/AliSDisrupt/Pakistan-vACC/logging"
	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

// SessionStore is the ephemeral open-session state consumed by the
// engine. Implementations must keep the in-memory view authoritative
// even when their disk snapshot write fails.
type SessionStore interface {
	Upsert(s models.OpenSession) error
	Delete(id models.Identity) error
	Get(id models.Identity) (models.OpenSession, bool)
	List() []models.OpenSession
}

// HistoryStore receives closed sessions and answers recency queries.
type HistoryStore interface {
	Append(s models.ClosedSession) error
	List() []models.ClosedSession
	Contains(id string) bool
}

// DurableSink mirrors session state to long-term storage. Calls must not
// block and must not fail the caller; implementations log their own
// errors.
type DurableSink interface {
	InsertClosedSession(s models.ClosedSession)
	UpsertOpenSession(s models.OpenSession)
	DeleteOpenSession(id models.Identity)
}

// DurableLookup is the synchronous read side of the durable store, used
// only for the last-active-callsign backfill. A lookup failure is treated
// as "not found".
type DurableLookup interface {
	MostRecentCallsign(cid int, category models.Category) (string, error)
}

// Notifier is the roster enrichment collaborator. Best effort: the engine
// consumes no return value.
type Notifier interface {
	NotifyObserved(cid int, name, callsign string)
}

// Result is the outcome of one reconciliation cycle.
type Result struct {
	Started   []models.OpenSession
	Refreshed []models.OpenSession
	Closed    []models.ClosedSession
}

// Engine diffs each classified snapshot against the open-session state
// and derives session starts, liveness refreshes and closures. It is the
// single reconciliation implementation shared by the live poll loop, the
// one-shot backfill mode and the synchronizer.
type Engine struct {
	sessions SessionStore
	history  HistoryStore
	durable  DurableSink
	lookup   DurableLookup
	notifier Notifier

	staleThreshold time.Duration

	// lastActive maps a participant CID to the callsign of their most
	// recent non-excluded session per category. ATIS closures never
	// overwrite these.
	lastActive map[lastActiveKey]string
}

type lastActiveKey struct {
	cid      int
	category models.Category
}

// EngineOption configures optional collaborators.
type EngineOption func(*Engine)

// WithDurable attaches the durable mirror and its read side.
func WithDurable(sink DurableSink, lookup DurableLookup) EngineOption {
	return func(e *Engine) {
		e.durable = sink
		e.lookup = lookup
	}
}

// WithNotifier attaches the roster collaborator.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

func NewEngine(sessions SessionStore, history HistoryStore, staleThreshold time.Duration, opts ...EngineOption) *Engine {
	e := &Engine{
		sessions:       sessions,
		history:        history,
		staleThreshold: staleThreshold,
		lastActive:     make(map[lastActiveKey]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.seedLastActive()
	return e
}

// seedLastActive rebuilds the last-active map from whatever the stores
// already hold, newest first so older records never clobber newer ones.
func (e *Engine) seedLastActive() {
	for _, s := range e.sessions.List() {
		e.recordLastActive(s.CID, s.Identity)
	}
	for _, c := range e.history.List() {
		e.recordLastActive(c.CID, c.Identity)
	}
}

func (e *Engine) recordLastActive(cid int, id models.Identity) {
	if cid == 0 || models.IsExcluded(id.Callsign) {
		return
	}
	key := lastActiveKey{cid: cid, category: id.Category}
	if _, seen := e.lastActive[key]; !seen {
		e.lastActive[key] = id.Callsign
	}
}

// LastActiveCallsign returns the most recent non-excluded callsign seen
// for a participant in the given category.
func (e *Engine) LastActiveCallsign(cid int, category models.Category) (string, bool) {
	cs, ok := e.lastActive[lastActiveKey{cid: cid, category: category}]
	return cs, ok
}

// Reconcile runs one cycle against a consistent snapshot of observed
// entries taken at a single instant. Reconciling the same snapshot twice
// produces no new starts and no closures.
func (e *Engine) Reconcile(observed []Entry, now time.Time) Result {
	var res Result

	seen := make(map[models.Identity]struct{}, len(observed))
	for _, entry := range observed {
		if _, dup := seen[entry.Identity]; dup {
			continue
		}
		seen[entry.Identity] = struct{}{}

		prev, open := e.sessions.Get(entry.Identity)
		if !open {
			s := models.OpenSession{
				Identity:   entry.Identity,
				CID:        entry.CID,
				Name:       entry.Name,
				StartedAt:  now,
				LastSeenAt: now,
				Frequency:  entry.Frequency,
				Facility:   entry.Facility,
				Departure:  entry.Departure,
				Arrival:    entry.Arrival,
				Aircraft:   entry.Aircraft,
			}
			e.persistOpen(s)
			res.Started = append(res.Started, s)
			if e.notifier != nil {
				e.notifier.NotifyObserved(s.CID, s.Name, s.Identity.Callsign)
			}
			continue
		}

		// Refresh liveness and the mutable attributes; StartedAt is
		// preserved so the session keeps its identity.
		prev.LastSeenAt = now
		prev.Name = entry.Name
		prev.Frequency = entry.Frequency
		prev.Facility = entry.Facility
		prev.Departure = entry.Departure
		prev.Arrival = entry.Arrival
		prev.Aircraft = entry.Aircraft
		if prev.CID == 0 {
			prev.CID = entry.CID
		}
		e.persistOpen(prev)
		res.Refreshed = append(res.Refreshed, prev)
	}

	for _, s := range e.sessions.List() {
		if _, present := seen[s.Identity]; present {
			continue
		}
		if now.Sub(s.LastSeenAt) <= e.staleThreshold {
			// Grace period: a single missed poll must not flap.
			continue
		}
		res.Closed = append(res.Closed, e.close(s))
	}

	return res
}

func (e *Engine) persistOpen(s models.OpenSession) {
	if err := e.sessions.Upsert(s); err != nil {
		logging.Error().Err(err).Str("callsign", s.Identity.Callsign).
			Msg("session store write failed, in-memory state stays authoritative")
	}
	if e.durable != nil {
		e.durable.UpsertOpenSession(s)
	}
}

// close evicts a stale open session and emits its historical record.
// EndTime is the last observation, not the eviction time.
func (e *Engine) close(s models.OpenSession) models.ClosedSession {
	closed := s.Close()

	if err := e.sessions.Delete(s.Identity); err != nil {
		logging.Error().Err(err).Str("callsign", s.Identity.Callsign).
			Msg("session store delete failed")
	}
	if err := e.history.Append(closed); err != nil {
		logging.Error().Err(err).Str("id", closed.ID).Msg("history append failed")
	}
	if e.durable != nil {
		e.durable.InsertClosedSession(closed)
		e.durable.DeleteOpenSession(s.Identity)
	}

	e.updateLastActive(closed)

	logging.Info().Str("callsign", s.Identity.Callsign).
		Str("category", s.Identity.Category.String()).
		Int("duration_min", closed.DurationMinutes).
		Msg("session closed")
	return closed
}

// updateLastActive records the closing callsign unless it is an excluded
// ATIS position. For ATIS closures it backfills from the most recent
// non-excluded session instead: open sessions first, then history, then
// the durable store; if nothing is found the prior value stays.
func (e *Engine) updateLastActive(closed models.ClosedSession) {
	if closed.CID == 0 {
		return
	}
	key := lastActiveKey{cid: closed.CID, category: closed.Identity.Category}

	if !closed.Excluded() {
		e.lastActive[key] = closed.Identity.Callsign
		return
	}

	if cs, ok := e.mostRecentNonExcluded(closed.CID, closed.Identity.Category); ok {
		e.lastActive[key] = cs
	}
}

func (e *Engine) mostRecentNonExcluded(cid int, category models.Category) (string, bool) {
	open := e.sessions.List()
	sort.Slice(open, func(i, j int) bool {
		return open[i].LastSeenAt.After(open[j].LastSeenAt)
	})
	for _, s := range open {
		if s.CID == cid && s.Identity.Category == category && !models.IsExcluded(s.Identity.Callsign) {
			return s.Identity.Callsign, true
		}
	}
	for _, c := range e.history.List() {
		if c.CID == cid && c.Identity.Category == category && !c.Excluded() {
			return c.Identity.Callsign, true
		}
	}
	if e.lookup != nil {
		cs, err := e.lookup.MostRecentCallsign(cid, category)
		if err == nil && cs != "" && !models.IsExcluded(cs) {
			return cs, true
		}
	}
	return "", false
}
