package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

// In-memory store fakes. The real badger-backed implementations are
// covered in the store package; the engine only needs the contracts.

type memSessions struct {
	m map[models.Identity]models.OpenSession
}

func newMemSessions() *memSessions {
	return &memSessions{m: make(map[models.Identity]models.OpenSession)}
}

func (s *memSessions) Upsert(sess models.OpenSession) error { s.m[sess.Identity] = sess; return nil }
func (s *memSessions) Delete(id models.Identity) error      { delete(s.m, id); return nil }
func (s *memSessions) Get(id models.Identity) (models.OpenSession, bool) {
	sess, ok := s.m[id]
	return sess, ok
}
func (s *memSessions) List() []models.OpenSession {
	out := make([]models.OpenSession, 0, len(s.m))
	for _, sess := range s.m {
		out = append(out, sess)
	}
	return out
}

type memHistory struct {
	sessions []models.ClosedSession
	ids      map[string]struct{}
}

func newMemHistory() *memHistory {
	return &memHistory{ids: make(map[string]struct{})}
}

func (h *memHistory) Append(c models.ClosedSession) error {
	if _, dup := h.ids[c.ID]; dup {
		return nil
	}
	h.sessions = append([]models.ClosedSession{c}, h.sessions...)
	h.ids[c.ID] = struct{}{}
	return nil
}
func (h *memHistory) List() []models.ClosedSession { return h.sessions }
func (h *memHistory) Contains(id string) bool {
	_, ok := h.ids[id]
	return ok
}

type fakeLookup struct {
	callsign string
}

func (f *fakeLookup) MostRecentCallsign(cid int, category models.Category) (string, error) {
	return f.callsign, nil
}

const threshold = 2 * time.Minute

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func controllerEntry(callsign string, cid int) Entry {
	return Entry{
		Identity:  models.Identity{Category: models.CategoryController, Callsign: callsign},
		CID:       cid,
		Name:      "Ali",
		Frequency: "118.300",
	}
}

func newTestEngine() (*Engine, *memSessions, *memHistory) {
	sessions := newMemSessions()
	history := newMemHistory()
	return NewEngine(sessions, history, threshold), sessions, history
}

func TestReconcileStartsNewSession(t *testing.T) {
	engine, sessions, _ := newTestEngine()

	res := engine.Reconcile([]Entry{controllerEntry("OPKC_TWR", 1300001)}, t0)

	require.Len(t, res.Started, 1)
	assert.Empty(t, res.Closed)
	assert.Equal(t, t0, res.Started[0].StartedAt)
	assert.Equal(t, t0, res.Started[0].LastSeenAt)

	stored, ok := sessions.Get(res.Started[0].Identity)
	require.True(t, ok)
	assert.Equal(t, t0, stored.StartedAt)
}

func TestReconcileRefreshPreservesStart(t *testing.T) {
	engine, sessions, _ := newTestEngine()

	engine.Reconcile([]Entry{controllerEntry("OPKC_TWR", 1300001)}, t0)

	refreshed := controllerEntry("OPKC_TWR", 1300001)
	refreshed.Name = "Ali Raza"
	refreshed.Frequency = "121.900"
	res := engine.Reconcile([]Entry{refreshed}, t0.Add(15*time.Second))

	assert.Empty(t, res.Started)
	require.Len(t, res.Refreshed, 1)

	stored, _ := sessions.Get(refreshed.Identity)
	assert.Equal(t, t0, stored.StartedAt)
	assert.Equal(t, t0.Add(15*time.Second), stored.LastSeenAt)
	assert.Equal(t, "Ali Raza", stored.Name)
	assert.Equal(t, "121.900", stored.Frequency)
}

func TestReconcileIdempotentOnRepeatedSnapshot(t *testing.T) {
	engine, _, _ := newTestEngine()
	snapshot := []Entry{controllerEntry("OPKC_TWR", 1300001), controllerEntry("OPLA_APP", 1300002)}

	first := engine.Reconcile(snapshot, t0)
	require.Len(t, first.Started, 2)

	second := engine.Reconcile(snapshot, t0)
	assert.Empty(t, second.Started)
	assert.Empty(t, second.Closed)
}

func TestReconcileGracePeriod(t *testing.T) {
	engine, sessions, _ := newTestEngine()
	entry := controllerEntry("OPKC_TWR", 1300001)

	engine.Reconcile([]Entry{entry}, t0)

	// Absent one second before the threshold: untouched.
	res := engine.Reconcile(nil, t0.Add(threshold-time.Second))
	assert.Empty(t, res.Closed)

	// Observed again: still one continuous session from t0.
	reobserved := t0.Add(threshold + time.Second)
	res = engine.Reconcile([]Entry{entry}, reobserved)
	assert.Empty(t, res.Started)
	require.Len(t, res.Refreshed, 1)

	stored, _ := sessions.Get(entry.Identity)
	assert.Equal(t, t0, stored.StartedAt)
	assert.Equal(t, reobserved, stored.LastSeenAt)
}

func TestReconcileStaleEviction(t *testing.T) {
	engine, sessions, history := newTestEngine()
	entry := controllerEntry("OPKC_TWR", 1300001)

	engine.Reconcile([]Entry{entry}, t0)
	lastSeen := t0.Add(30 * time.Second)
	engine.Reconcile([]Entry{entry}, lastSeen)

	res := engine.Reconcile(nil, lastSeen.Add(threshold+time.Second))
	require.Len(t, res.Closed, 1)

	closed := res.Closed[0]
	assert.Equal(t, t0, closed.StartTime)
	// EndTime is the last observation, not the eviction time.
	assert.Equal(t, lastSeen, closed.EndTime)
	assert.GreaterOrEqual(t, closed.DurationMinutes, 1)

	_, stillOpen := sessions.Get(entry.Identity)
	assert.False(t, stillOpen)
	assert.True(t, history.Contains(closed.ID))

	// Once closed it stays closed: the next empty cycle closes nothing.
	res = engine.Reconcile(nil, lastSeen.Add(threshold+time.Minute))
	assert.Empty(t, res.Closed)
}

func TestReconcileEndToEndScenario(t *testing.T) {
	engine, sessions, _ := newTestEngine()
	entry := controllerEntry("OPKC_TWR", 1300001)

	engine.Reconcile([]Entry{entry}, t0)

	t90 := t0.Add(90 * time.Second)
	entry.Frequency = "121.900"
	engine.Reconcile([]Entry{entry}, t90)

	// The absence clock runs from the last observation at t90, so the
	// session is evictable only once that gap exceeds the threshold.
	res := engine.Reconcile(nil, t90.Add(threshold+5*time.Second))
	require.Len(t, res.Closed, 1)

	closed := res.Closed[0]
	assert.Equal(t, t0, closed.StartTime)
	assert.Equal(t, t90, closed.EndTime)
	assert.Equal(t, 2, closed.DurationMinutes)
	assert.Equal(t, "121.900", closed.Frequency)
	assert.Empty(t, sessions.List())
}

func TestReconcileDuplicateEntriesInSnapshot(t *testing.T) {
	engine, _, _ := newTestEngine()

	res := engine.Reconcile([]Entry{
		controllerEntry("OPKC_TWR", 1300001),
		controllerEntry("OPKC_TWR", 1300001),
	}, t0)
	assert.Len(t, res.Started, 1)
}

func TestLastActiveNotOverwrittenByATIS(t *testing.T) {
	engine, _, _ := newTestEngine()
	cid := 1300001

	// A tower session closes first and becomes the last active callsign.
	engine.Reconcile([]Entry{controllerEntry("OPKC_TWR", cid)}, t0)
	engine.Reconcile(nil, t0.Add(threshold+time.Second))

	cs, ok := engine.LastActiveCallsign(cid, models.CategoryController)
	require.True(t, ok)
	assert.Equal(t, "OPKC_TWR", cs)

	// The same member then runs only an ATIS, which goes stale too.
	atisStart := t0.Add(10 * time.Minute)
	engine.Reconcile([]Entry{controllerEntry("OPKC_ATIS", cid)}, atisStart)
	engine.Reconcile(nil, atisStart.Add(threshold+time.Second))

	cs, ok = engine.LastActiveCallsign(cid, models.CategoryController)
	require.True(t, ok)
	assert.Equal(t, "OPKC_TWR", cs, "ATIS closure must not overwrite the last active callsign")
}

func TestLastActiveBackfillPicksNewestOpenSession(t *testing.T) {
	engine, _, _ := newTestEngine()
	cid := 1300001

	twr := controllerEntry("OPKC_TWR", cid)
	app := controllerEntry("OPLA_APP", cid)
	atis := controllerEntry("OPKC_ATIS", cid)

	// The member holds two real positions alongside an ATIS. The tower
	// is last refreshed before the approach, and the ATIS then goes
	// stale while both real positions are still within grace.
	engine.Reconcile([]Entry{twr, app, atis}, t0)
	engine.Reconcile([]Entry{twr, app}, t0.Add(60*time.Second))
	engine.Reconcile([]Entry{app}, t0.Add(90*time.Second))

	res := engine.Reconcile([]Entry{app}, t0.Add(threshold+time.Second))
	require.Len(t, res.Closed, 1)
	assert.Equal(t, "OPKC_ATIS", res.Closed[0].Identity.Callsign)

	// The backfill must choose the most recently seen open position,
	// not whichever the map yields first.
	cs, ok := engine.LastActiveCallsign(cid, models.CategoryController)
	require.True(t, ok)
	assert.Equal(t, "OPLA_APP", cs)
}

func TestLastActiveBackfillFromDurable(t *testing.T) {
	sessions := newMemSessions()
	history := newMemHistory()
	engine := NewEngine(sessions, history, threshold,
		WithDurable(nopSink{}, &fakeLookup{callsign: "OPLA_CTR"}))
	cid := 1300009

	// Only an ATIS session exists locally; the durable store remembers a
	// real position from before the restart.
	engine.Reconcile([]Entry{controllerEntry("OPKC_ATIS", cid)}, t0)
	engine.Reconcile(nil, t0.Add(threshold+time.Second))

	cs, ok := engine.LastActiveCallsign(cid, models.CategoryController)
	require.True(t, ok)
	assert.Equal(t, "OPLA_CTR", cs)
}

type nopSink struct{}

func (nopSink) InsertClosedSession(models.ClosedSession) {}
func (nopSink) UpsertOpenSession(models.OpenSession)     {}
func (nopSink) DeleteOpenSession(models.Identity)        {}
