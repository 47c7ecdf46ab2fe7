package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/scriptbridge/internal/journal"
)

const maxRequestsLimit = 500

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		Worker:        s.config.Worker,
		Profile:       s.config.Profile,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.symbols != nil {
		resp.Symbols = s.symbols.Symbols()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleRequests handles GET /requests?limit=N.
func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	if s.requests == nil {
		s.writeError(w, http.StatusNotFound, "journal is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRequestsLimit)
	}

	entries, err := s.requests.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list requests", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respondJSON(w, http.StatusOK, RequestsResponse{Requests: entries})
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
