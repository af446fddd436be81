package handlers

import (
	"net/http"
	"time"
)

// HealthChecker reports storage health
type HealthChecker interface {
	IsHealthy() error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db     HealthChecker
	poller Poller
}

// NewHealthHandler creates a new health handler. Either dependency may be nil.
func NewHealthHandler(db HealthChecker, poller Poller) *HealthHandler {
	return &HealthHandler{db: db, poller: poller}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string      `json:"status"`
	Database string      `json:"database"`
	Poll     *PollHealth `json:"poll,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// PollHealth summarizes the latest mailbox poll
type PollHealth struct {
	Success     bool       `json:"success"`
	Records     int        `json:"records"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// HealthCheck handles GET /api/health. A failed poll reports "degraded"; an
// unreachable database is unhealthy.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:   "healthy",
		Database: "ok",
	}

	if h.db == nil {
		response.Database = "disabled"
	} else if err := h.db.IsHealthy(); err != nil {
		response.Status = "unhealthy"
		response.Database = "error"
		response.Message = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	if h.poller != nil {
		snapshot := h.poller.Snapshot()
		poll := &PollHealth{
			Success:   snapshot.Success,
			Records:   snapshot.Total,
			LastError: snapshot.LastError,
		}
		if !snapshot.LastUpdated.IsZero() {
			poll.LastUpdated = &snapshot.LastUpdated
		}
		if !snapshot.LastAttempt.IsZero() {
			poll.LastAttempt = &snapshot.LastAttempt
		}
		if snapshot.LastError != "" {
			response.Status = "degraded"
		}
		response.Poll = poll
	}

	writeJSON(w, http.StatusOK, response)
}
