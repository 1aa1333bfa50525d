package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

func closedAt(callsign string, start time.Time, minutes int) models.ClosedSession {
	id := models.Identity{Category: models.CategoryController, Callsign: callsign}
	return models.ClosedSession{
		ID:              models.SessionID(id, start),
		Identity:        id,
		CID:             1300001,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
	}
}

var historyT0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestHistoryStoreAppendAndOrder(t *testing.T) {
	h, err := NewHistoryStore(testDB(t), 100)
	require.NoError(t, err)

	older := closedAt("OPKC_TWR", historyT0, 60)
	newer := closedAt("OPLA_APP", historyT0.Add(time.Hour), 30)
	require.NoError(t, h.Append(older))
	require.NoError(t, h.Append(newer))

	list := h.List()
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID, "newest first")

	recent := h.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, newer.ID, recent[0].ID)
	assert.Len(t, h.Recent(10), 2)
}

func TestHistoryStoreDeduplicates(t *testing.T) {
	h, err := NewHistoryStore(testDB(t), 100)
	require.NoError(t, err)

	c := closedAt("OPKC_TWR", historyT0, 60)
	require.NoError(t, h.Append(c))
	require.NoError(t, h.Append(c))

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 1, h.Stats().TotalSessionsByCategory["controller"])
}

func TestHistoryStoreCapEvictsOldest(t *testing.T) {
	h, err := NewHistoryStore(testDB(t), 3)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 5; i++ {
		c := closedAt(fmt.Sprintf("OPKC_TWR_%d", i), historyT0.Add(time.Duration(i)*time.Hour), 10)
		ids = append(ids, c.ID)
		require.NoError(t, h.Append(c))
	}

	assert.Equal(t, 3, h.Len())
	assert.False(t, h.Contains(ids[0]))
	assert.False(t, h.Contains(ids[1]))
	assert.True(t, h.Contains(ids[4]))

	// Stats track the retained records only.
	assert.Equal(t, 3, h.Stats().TotalSessionsByCategory["controller"])
	assert.Equal(t, 30, h.Stats().TotalMinutesByCategory["controller"])
}

func TestHistoryStoreStatsExcludeATIS(t *testing.T) {
	h, err := NewHistoryStore(testDB(t), 100)
	require.NoError(t, err)

	require.NoError(t, h.Append(closedAt("OPKC_TWR", historyT0, 60)))
	require.NoError(t, h.Append(closedAt("OPKC_ATIS", historyT0.Add(time.Hour), 60)))

	st := h.Stats()
	assert.Equal(t, 60, st.TotalMinutesByCategory["controller"])
	assert.Equal(t, 1, st.TotalSessionsByCategory["controller"])

	// The excluded session is still listed for display.
	assert.Equal(t, 2, h.Len())
}

func TestHistoryStoreSurvivesReload(t *testing.T) {
	db := testDB(t)

	h, err := NewHistoryStore(db, 100)
	require.NoError(t, err)
	c := closedAt("OPKC_TWR", historyT0, 60)
	require.NoError(t, h.Append(c))

	reloaded, err := NewHistoryStore(db, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	assert.True(t, reloaded.Contains(c.ID))
	assert.Equal(t, 60, reloaded.Stats().TotalMinutesByCategory["controller"])
}
