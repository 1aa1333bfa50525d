package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationMinutes(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{"zero span clamps to one", base, 1},
		{"sub-minute clamps to one", base.Add(20 * time.Second), 1},
		{"rounds down below half minute", base.Add(2*time.Minute + 20*time.Second), 2},
		{"rounds up at half minute", base.Add(2*time.Minute + 30*time.Second), 3},
		{"exact minutes", base.Add(90 * time.Minute), 90},
		{"clock skew never goes negative", base.Add(-5 * time.Minute), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DurationMinutes(base, tt.end))
		})
	}
}

func TestSessionIDDeterministic(t *testing.T) {
	id := Identity{Category: CategoryController, Callsign: "OPKC_TWR"}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := SessionID(id, start)
	second := SessionID(id, start)
	require.Equal(t, first, second)

	// Same instant in another zone yields the same id.
	karachi := time.FixedZone("PKT", 5*3600)
	assert.Equal(t, first, SessionID(id, start.In(karachi)))

	// Different start or identity yields a different id.
	assert.NotEqual(t, first, SessionID(id, start.Add(time.Second)))
	assert.NotEqual(t, first, SessionID(Identity{Category: CategoryPilot, Callsign: "OPKC_TWR"}, start))
}

func TestCloseUsesLastSeenAsEndTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lastSeen := start.Add(90 * time.Second)

	open := OpenSession{
		Identity:   Identity{Category: CategoryController, Callsign: "OPKC_TWR"},
		CID:        1300000,
		StartedAt:  start,
		LastSeenAt: lastSeen,
		Frequency:  "118.300",
	}
	closed := open.Close()

	assert.Equal(t, start, closed.StartTime)
	assert.Equal(t, lastSeen, closed.EndTime)
	assert.Equal(t, 2, closed.DurationMinutes)
	assert.Equal(t, SessionID(open.Identity, start), closed.ID)
	assert.Equal(t, "118.300", closed.Frequency)
}

func TestIsExcluded(t *testing.T) {
	assert.True(t, IsExcluded("OPKC_ATIS"))
	assert.True(t, IsExcluded("opla_atis"))
	assert.False(t, IsExcluded("OPKC_TWR"))
	assert.False(t, IsExcluded("KARACHI_CTR"))
}

func TestParseCategory(t *testing.T) {
	cat, ok := ParseCategory("controller")
	require.True(t, ok)
	assert.Equal(t, CategoryController, cat)

	cat, ok = ParseCategory("ATC")
	require.True(t, ok)
	assert.Equal(t, CategoryController, cat)

	cat, ok = ParseCategory("pilot")
	require.True(t, ok)
	assert.Equal(t, CategoryPilot, cat)

	_, ok = ParseCategory("atis")
	assert.False(t, ok)
}
