package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"parcel-tracking/internal/cache"
)

// PollControl pauses and resumes scheduled polls
type PollControl interface {
	Pause()
	Resume()
	IsPaused() bool
}

// CacheStats reports enrichment cache statistics
type CacheStats interface {
	GetStats(ctx context.Context) (cache.Stats, error)
}

// AdminHandler handles administrative operations
type AdminHandler struct {
	poller PollControl
	cache  CacheStats
	logger *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(poller PollControl, cacheStats CacheStats, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		poller: poller,
		cache:  cacheStats,
		logger: logger,
	}
}

// PollerStatusResponse represents the status of the poll scheduler
type PollerStatusResponse struct {
	Paused bool `json:"paused"`
}

// GetPollerStatus handles GET /api/admin/poller/status
func (h *AdminHandler) GetPollerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PollerStatusResponse{Paused: h.poller.IsPaused()})
}

// PausePoller handles POST /api/admin/poller/pause
func (h *AdminHandler) PausePoller(w http.ResponseWriter, r *http.Request) {
	h.poller.Pause()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "paused",
		"message": "Scheduled mailbox polls have been paused",
	})
}

// ResumePoller handles POST /api/admin/poller/resume
func (h *AdminHandler) ResumePoller(w http.ResponseWriter, r *http.Request) {
	h.poller.Resume()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "resumed",
		"message": "Scheduled mailbox polls have been resumed",
	})
}

// GetCacheStats handles GET /api/admin/cache/stats
func (h *AdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		http.Error(w, "Cache is not configured", http.StatusNotFound)
		return
	}

	stats, err := h.cache.GetStats(r.Context())
	if err != nil {
		h.logger.Error("Failed to read cache stats", "error", err)
		http.Error(w, "Failed to read cache stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
