package core

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the store ping so a wedged database cannot hang
// the liveness probe.
const healthCheckTimeout = 2 * time.Second

// healthResponse is the JSON body for GET /health.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// HandleHealth reports process liveness and store reachability. Returns
// 200 when the database responds to a ping within the deadline, 503
// otherwise. The endpoint is public.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.ErrorContext(r.Context(), "health check failed", "error", err)
		JSON(w, r, http.StatusServiceUnavailable, healthResponse{
			Status:   "unhealthy",
			Database: "unreachable",
		})
		return
	}

	JSON(w, r, http.StatusOK, healthResponse{
		Status:   "healthy",
		Database: "ok",
	})
}
