package models

import (
	"fmt"
	"strings"
	"time"
)

// Category distinguishes the two kinds of tracked participants.
type Category int

const (
	CategoryController Category = 1
	CategoryPilot      Category = 2
)

func (c Category) String() string {
	switch c {
	case CategoryController:
		return "controller"
	case CategoryPilot:
		return "pilot"
	default:
		return "unknown"
	}
}

// ParseCategory maps the wire/query spelling back to a Category.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(s) {
	case "controller", "atc":
		return CategoryController, true
	case "pilot":
		return CategoryPilot, true
	}
	return 0, false
}

// Identity is the logical key for a participant. The numeric CID is
// metadata, not part of the key: two snapshot rows with the same callsign
// and category are the same participant even if the CID is missing.
type Identity struct {
	Category Category `json:"category"`
	Callsign string   `json:"callsign"`
}

func (id Identity) Key() string {
	return fmt.Sprintf("%d-%s", id.Category, id.Callsign)
}

// OpenSession is an in-progress presence record, owned by the session
// store. LastSeenAt is never earlier than StartedAt.
type OpenSession struct {
	Identity   Identity  `json:"identity"`
	CID        int       `json:"cid,omitempty"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	LastSeenAt time.Time `json:"last_seen_at"`

	// Controller attributes.
	Frequency string `json:"frequency,omitempty"`
	Facility  int    `json:"facility,omitempty"`

	// Pilot attributes.
	Departure string `json:"departure,omitempty"`
	Arrival   string `json:"arrival,omitempty"`
	Aircraft  string `json:"aircraft,omitempty"`
}

// ClosedSession is the immutable historical record derived from an
// OpenSession at eviction time.
type ClosedSession struct {
	ID              string    `json:"id"`
	Identity        Identity  `json:"identity"`
	CID             int       `json:"cid,omitempty"`
	Name            string    `json:"name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`

	Frequency string `json:"frequency,omitempty"`
	Departure string `json:"departure,omitempty"`
	Arrival   string `json:"arrival,omitempty"`
	Aircraft  string `json:"aircraft,omitempty"`
}

// SessionID derives the stable identifier used for deduplication across
// the history store and the durable store. Identity plus start time is
// enough: a participant cannot start two sessions at the same instant.
func SessionID(id Identity, startedAt time.Time) string {
	return fmt.Sprintf("%d|%s|%d", id.Category, id.Callsign, startedAt.UTC().Unix())
}

// DurationMinutes rounds a session span to whole minutes, clamped to a
// minimum of one so sub-minute flaps and clock skew never produce zero or
// negative durations.
func DurationMinutes(start, end time.Time) int {
	if end.Before(start) {
		return 1
	}
	mins := int((end.Sub(start) + 30*time.Second) / time.Minute)
	if mins < 1 {
		return 1
	}
	return mins
}

// Close converts an open session into its historical record. EndTime is
// the last observation, not the eviction time.
func (s OpenSession) Close() ClosedSession {
	return ClosedSession{
		ID:              SessionID(s.Identity, s.StartedAt),
		Identity:        s.Identity,
		CID:             s.CID,
		Name:            s.Name,
		StartTime:       s.StartedAt,
		EndTime:         s.LastSeenAt,
		DurationMinutes: DurationMinutes(s.StartedAt, s.LastSeenAt),
		Frequency:       s.Frequency,
		Departure:       s.Departure,
		Arrival:         s.Arrival,
		Aircraft:        s.Aircraft,
	}
}

// IsExcluded reports whether a callsign names an ATIS broadcast position.
// These are tracked for display but excluded from every aggregate and from
// "last active callsign" derivations.
func IsExcluded(callsign string) bool {
	return strings.HasSuffix(strings.ToUpper(callsign), "_ATIS")
}

// Excluded is the exclusion predicate applied to a whole session.
func (s ClosedSession) Excluded() bool {
	return IsExcluded(s.Identity.Callsign)
}
