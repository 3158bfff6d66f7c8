package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hivegame/botherd/internal/journal"
)

const defaultTurnLimit = 50

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    s.queue.Len(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStatus handles GET /v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	bots := make([]BotStatus, 0, len(s.bots))
	for _, b := range s.bots {
		bots = append(bots, BotStatus{
			Name:       b.Name,
			Endpoint:   b.Endpoint,
			MoveBudget: b.MoveBudget,
		})
	}

	resp := StatusResponse{
		Service:       "botherd",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Queue: QueueStatus{
			Depth:    s.queue.Len(),
			Capacity: s.queue.Cap(),
		},
		Tracker:  s.tracker.Stats(),
		Dispatch: s.dispatch.Stats(),
		Bots:     bots,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleTurns handles GET /v1/turns?limit=N.
func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	limit := defaultTurnLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := s.turns.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read turn journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read turn journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	s.writeJSON(w, http.StatusOK, TurnsResponse{Turns: entries})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
