package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"parcel-tracking/internal/workers"
)

// Poller exposes the polled tracking state
type Poller interface {
	Snapshot() workers.Snapshot
	Refresh(ctx context.Context, force bool) (workers.Snapshot, time.Duration, error)
}

// RecordHandler handles HTTP requests for tracking records
type RecordHandler struct {
	poller  Poller
	timeout time.Duration
	logger  *slog.Logger
}

// NewRecordHandler creates a new record handler. timeout bounds a manual
// refresh; zero means the request context alone decides.
func NewRecordHandler(poller Poller, timeout time.Duration, logger *slog.Logger) *RecordHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordHandler{poller: poller, timeout: timeout, logger: logger}
}

// RecordsResponse is the body of GET /api/records
type RecordsResponse struct {
	Records     []workers.TrackingRecord `json:"records"`
	Total       int                      `json:"total"`
	Success     bool                     `json:"success"`
	LastUpdated *time.Time               `json:"last_updated,omitempty"`
	LastError   string                   `json:"last_error,omitempty"`
}

// GetRecords handles GET /api/records. The optional carrier query parameter
// filters by carrier key.
func (h *RecordHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	snapshot := h.poller.Snapshot()

	records := snapshot.Records
	if carrier := r.URL.Query().Get("carrier"); carrier != "" {
		filtered := make([]workers.TrackingRecord, 0, len(records))
		for _, record := range records {
			if strings.EqualFold(record.Carrier, carrier) {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}

	writeJSON(w, http.StatusOK, newRecordsResponse(snapshot, records))
}

// GetRecord handles GET /api/records/{tracking_number}
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "tracking_number")
	if number == "" {
		http.Error(w, "Missing tracking number", http.StatusBadRequest)
		return
	}

	for _, record := range h.poller.Snapshot().Records {
		if record.TrackingNumber == number {
			writeJSON(w, http.StatusOK, record)
			return
		}
	}
	http.Error(w, "Tracking record not found", http.StatusNotFound)
}

// Refresh handles POST /api/refresh. force=true bypasses the cooldown.
func (h *RecordHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	snapshot, remaining, err := h.poller.Refresh(ctx, force)
	if errors.Is(err, workers.ErrRefreshLimited) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(remaining.Seconds()))))
		http.Error(w, fmt.Sprintf("Rate limit exceeded. Please wait %v before refreshing again", remaining.Truncate(time.Second)), http.StatusTooManyRequests)
		return
	}
	if err != nil {
		h.logger.Error("Manual refresh failed", "error", err)
		writeJSON(w, http.StatusBadGateway, newRecordsResponse(snapshot, snapshot.Records))
		return
	}

	writeJSON(w, http.StatusOK, newRecordsResponse(snapshot, snapshot.Records))
}

func newRecordsResponse(snapshot workers.Snapshot, records []workers.TrackingRecord) RecordsResponse {
	resp := RecordsResponse{
		Records:   records,
		Total:     len(records),
		Success:   snapshot.Success,
		LastError: snapshot.LastError,
	}
	if resp.Records == nil {
		resp.Records = []workers.TrackingRecord{}
	}
	if !snapshot.LastUpdated.IsZero() {
		updated := snapshot.LastUpdated
		resp.LastUpdated = &updated
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
