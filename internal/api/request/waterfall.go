package request

import "github.com/equitydesk/captable-backend/internal/waterfall"

// DistributeRequest runs one exit scenario against the cap table as of the
// given date (YYYY-MM-DD).
type DistributeRequest struct {
	AsOf     string             `json:"as_of"`
	Scenario waterfall.Scenario `json:"scenario"`
}

// DistributeScenariosRequest runs several scenarios against the same
// snapshot and returns the results in request order.
type DistributeScenariosRequest struct {
	AsOf      string               `json:"as_of"`
	Scenarios []waterfall.Scenario `json:"scenarios"`
}
