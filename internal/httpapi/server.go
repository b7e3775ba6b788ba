package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"backboard/internal/domain"
	"backboard/internal/restore"
	"backboard/internal/run"
	"backboard/internal/share"
)

// DashboardServer serves the dashboard HTTP API.
type DashboardServer struct {
	coord    *run.Coordinator
	restorer *restore.Restorer
	loc      share.Location
	log      *slog.Logger
}

// NewDashboardServer creates a new dashboard HTTP server. loc is the public
// dashboard URL that share links point at.
func NewDashboardServer(
	coord *run.Coordinator,
	restorer *restore.Restorer,
	loc share.Location,
	log *slog.Logger,
) *DashboardServer {
	return &DashboardServer{
		coord:    coord,
		restorer: restorer,
		loc:      loc,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/share", s.handleShare)
	mux.HandleFunc("GET /api/restore", s.handleRestore)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("POST /api/compare/{slot}/run", s.handleCompareRun)
	mux.HandleFunc("POST /api/compare/promote", s.handlePromote)
	mux.HandleFunc("POST /api/compare/reset", s.handleReset)
	mux.HandleFunc("PUT /api/compare/{slot}/label", s.handleLabel)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseSlot maps the {slot} path segment to a SlotID. Accepts "a"/"A" and
// "b"/"B" only.
func parseSlot(r *http.Request) (run.SlotID, bool) {
	switch r.PathValue("slot") {
	case "a", "A":
		return run.SlotA, true
	case "b", "B":
		return run.SlotB, true
	}
	return "", false
}

func (s *DashboardServer) handleShare(w http.ResponseWriter, r *http.Request) {
	var state domain.ShareableState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "invalid state JSON")
		return
	}
	if err := state.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := share.Encode(&state)
	if err != nil {
		s.log.Error("encoding share state", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to encode state")
		return
	}

	link, err := share.BuildLink(s.loc, &state)
	if err != nil {
		s.log.Error("building share link", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build link")
		return
	}

	writeJSON(w, ShareResponse{Token: token, URL: link})
}

func (s *DashboardServer) handleRestore(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("state")
	if token == "" {
		writeJSON(w, RestoreResponse{Restored: false})
		return
	}

	// Runs triggered here outlive the request, so cancellation is detached.
	state := s.restorer.RestoreToken(context.WithoutCancel(r.Context()), token)
	writeJSON(w, RestoreResponse{Restored: state != nil, State: state})
}

func (s *DashboardServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid run request")
		return
	}

	// The run outlives the request; detach cancellation from the handler.
	s.coord.RunA(context.WithoutCancel(r.Context()), req.Config)
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, RunAccepted{Slot: run.SlotA})
}

func (s *DashboardServer) handleCompareRun(w http.ResponseWriter, r *http.Request) {
	slot, ok := parseSlot(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "slot must be a or b")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid run request")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if slot == run.SlotB {
		s.coord.RunB(ctx, req.Config)
	} else {
		s.coord.RunA(ctx, req.Config)
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, RunAccepted{Slot: slot})
}

func (s *DashboardServer) handlePromote(w http.ResponseWriter, r *http.Request) {
	s.coord.PromoteToCompare()
	writeJSON(w, s.coord.View())
}

func (s *DashboardServer) handleReset(w http.ResponseWriter, r *http.Request) {
	s.coord.Reset()
	writeJSON(w, s.coord.View())
}

func (s *DashboardServer) handleLabel(w http.ResponseWriter, r *http.Request) {
	slot, ok := parseSlot(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "slot must be a or b")
		return
	}

	var req LabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Label == "" {
		writeError(w, http.StatusBadRequest, "label required")
		return
	}

	s.coord.SetLabel(slot, req.Label)
	writeJSON(w, s.coord.View())
}

func (s *DashboardServer) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.coord.View())
}
