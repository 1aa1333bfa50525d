// Package tracker contains the presence tracking core: snapshot
// classification and the session reconciliation engine.
package tracker

import (
	"strings"

	"github.com/AliSDisrupt/Pakistan-vACC/models"
	"github.com/AliSDisrupt/Pakistan-vACC/types"
)

// Entry is one classified snapshot row: a participant the vACC cares
// about, with the attributes the reconciliation engine carries on its
// open session.
type Entry struct {
	Identity models.Identity
	CID      int
	Name     string

	Frequency string
	Facility  int

	Departure string
	Arrival   string
	Aircraft  string
}

// Position suffixes staffed by the vACC. ATIS is classified so it shows
// up on the dashboard, but it is excluded from all aggregates downstream.
var controllerSuffixes = []string{"_DEL", "_GND", "_TWR", "_APP", "_DEP", "_CTR", "_FSS", "_ATIS"}

// FIR radio callsign prefixes that do not carry the OP airport prefix.
var firPrefixes = []string{"KARACHI", "LAHORE"}

// Geofence covering the Karachi and Lahore FIRs. A coarse bounding box is
// deliberate: pilots just outside it still match via their OP flight plan.
const (
	geofenceLatMin = 23.0
	geofenceLatMax = 37.5
	geofenceLonMin = 60.5
	geofenceLonMax = 78.0
)

const unknownValue = "Unknown"
const notAvailable = "N/A"

// Classify filters one feed snapshot down to the entries relevant to the
// vACC. It is a pure function: rows that fail validation or match no
// inclusion rule are dropped, never reported as errors, so one bad row
// can not take down a cycle.
func Classify(data *types.VatsimData) []Entry {
	if data == nil {
		return nil
	}

	entries := make([]Entry, 0, len(data.Controllers)+len(data.Pilots))

	for _, c := range data.Controllers {
		if e, ok := classifyController(c); ok {
			entries = append(entries, e)
		}
	}
	// The v3 feed lists ATIS stations separately from controllers.
	for _, c := range data.ATIS {
		if e, ok := classifyController(c); ok {
			entries = append(entries, e)
		}
	}
	for _, p := range data.Pilots {
		if e, ok := classifyPilot(p); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func classifyController(c types.Controller) (Entry, bool) {
	callsign := strings.ToUpper(strings.TrimSpace(c.Callsign))
	if callsign == "" {
		return Entry{}, false
	}
	if !hasControllerSuffix(callsign) {
		return Entry{}, false
	}
	if !strings.HasPrefix(callsign, "OP") && !hasFIRPrefix(callsign) {
		return Entry{}, false
	}

	freq := strings.TrimSpace(c.Frequency)
	if freq == "" {
		freq = notAvailable
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = unknownValue
	}

	return Entry{
		Identity:  models.Identity{Category: models.CategoryController, Callsign: callsign},
		CID:       c.CID,
		Name:      name,
		Frequency: freq,
		Facility:  c.Facility,
	}, true
}

func classifyPilot(p types.Pilot) (Entry, bool) {
	callsign := strings.ToUpper(strings.TrimSpace(p.Callsign))
	if callsign == "" {
		return Entry{}, false
	}

	dep, arr, acft := notAvailable, notAvailable, unknownValue
	if fp := p.FlightPlan; fp != nil {
		if s := strings.ToUpper(strings.TrimSpace(fp.Departure)); s != "" {
			dep = s
		}
		if s := strings.ToUpper(strings.TrimSpace(fp.Arrival)); s != "" {
			arr = s
		}
		if s := strings.TrimSpace(fp.AircraftShort); s != "" {
			acft = s
		} else if s := strings.TrimSpace(fp.Aircraft); s != "" {
			acft = s
		}
	}

	inFence := p.Latitude >= geofenceLatMin && p.Latitude <= geofenceLatMax &&
		p.Longitude >= geofenceLonMin && p.Longitude <= geofenceLonMax
	opFlight := strings.HasPrefix(dep, "OP") || strings.HasPrefix(arr, "OP")
	if !inFence && !opFlight {
		return Entry{}, false
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = unknownValue
	}

	return Entry{
		Identity:  models.Identity{Category: models.CategoryPilot, Callsign: callsign},
		CID:       p.CID,
		Name:      name,
		Departure: dep,
		Arrival:   arr,
		Aircraft:  acft,
	}, true
}

func hasControllerSuffix(callsign string) bool {
	for _, suffix := range controllerSuffixes {
		if strings.HasSuffix(callsign, suffix) {
			return true
		}
	}
	return false
}

func hasFIRPrefix(callsign string) bool {
	for _, prefix := range firPrefixes {
		if strings.HasPrefix(callsign, prefix) {
			return true
		}
	}
	return false
}
