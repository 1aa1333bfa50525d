package types

import "time"

// CollectionStats describes the running collector for the status endpoint.
type CollectionStats struct {
	StartTime         time.Time `json:"start_time"`
	LastUpdate        time.Time `json:"last_update"`
	TotalCycles       int64     `json:"total_cycles"`
	FailedCycles      int64     `json:"failed_cycles"`
	OnlineControllers int       `json:"online_controllers"`
	OnlinePilots      int       `json:"online_pilots"`
	SessionsClosed    int64     `json:"sessions_closed"`
}
