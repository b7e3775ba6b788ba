// Package httpapi provides the HTTP REST API for the backboard dashboard,
// exposing share links, run control, and a WebSocket event stream in JSON
// form for the browser frontend.
package httpapi

import (
	"backboard/internal/domain"
	"backboard/internal/run"
)

// ShareResponse carries a freshly minted share token and the full link.
type ShareResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// RestoreResponse reports the outcome of decoding a share token. State is
// null on cold start.
type RestoreResponse struct {
	Restored bool                   `json:"restored"`
	State    *domain.ShareableState `json:"state"`
}

// RunRequest is the body for run-triggering endpoints.
type RunRequest struct {
	Config domain.BacktestConfig `json:"config"`
}

// RunAccepted acknowledges a run request.
type RunAccepted struct {
	Slot run.SlotID `json:"slot"`
}

// LabelRequest renames a comparison slot.
type LabelRequest struct {
	Label string `json:"label"`
}
