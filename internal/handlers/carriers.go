package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/database"
)

// CarrierStore persists custom carrier rules
type CarrierStore interface {
	List(ctx context.Context) ([]carriers.Rule, error)
	Create(ctx context.Context, rule carriers.Rule) error
	Delete(ctx context.Context, key string) error
}

// CarrierHandler handles HTTP requests for carriers
type CarrierHandler struct {
	registry *carriers.Registry
	store    CarrierStore
	active   map[string]bool
	logger   *slog.Logger
}

// NewCarrierHandler creates a new carrier handler. activeKeys are the
// carriers scanned by the poller; store may be nil.
func NewCarrierHandler(registry *carriers.Registry, store CarrierStore, activeKeys []string, logger *slog.Logger) *CarrierHandler {
	if logger == nil {
		logger = slog.Default()
	}
	active := make(map[string]bool, len(activeKeys))
	for _, key := range activeKeys {
		active[strings.ToUpper(key)] = true
	}
	return &CarrierHandler{registry: registry, store: store, active: active, logger: logger}
}

// CarrierResponse describes one carrier rule
type CarrierResponse struct {
	carriers.Rule
	HasAPI bool `json:"has_api"`
	Active bool `json:"active"`
	Custom bool `json:"custom"`
}

// CreateCarrierRequest is the body of POST /api/carriers
type CreateCarrierRequest struct {
	Name            string `json:"name"`
	SearchCriteria  string `json:"search_criteria"`
	TrackingPattern string `json:"tracking_pattern"`
	ETAString       string `json:"eta_string"`
	ETADatePattern  string `json:"eta_date_pattern"`
	// StatusStrings is comma-delimited
	StatusStrings   string `json:"status_strings"`
	TrackingLinkURL string `json:"tracking_link_url"`
}

// GetCarriers handles GET /api/carriers
func (h *CarrierHandler) GetCarriers(w http.ResponseWriter, r *http.Request) {
	// Check if we should filter for active carriers only
	activeOnly := r.URL.Query().Get("active") == "true"

	custom := map[string]bool{}
	if h.store != nil {
		stored, err := h.store.List(r.Context())
		if err != nil {
			h.logger.Error("Failed to list custom carriers", "error", err)
			http.Error(w, fmt.Sprintf("Failed to get carriers: %v", err), http.StatusInternalServerError)
			return
		}
		for _, rule := range stored {
			custom[rule.Key] = true
		}
	}

	response := []CarrierResponse{}
	for _, rule := range h.registry.List() {
		if activeOnly && !h.active[rule.Key] {
			continue
		}
		response = append(response, CarrierResponse{
			Rule:   rule,
			HasAPI: rule.HasAPI(),
			Active: h.active[rule.Key],
			Custom: custom[rule.Key],
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// CreateCarrier handles POST /api/carriers
func (h *CarrierHandler) CreateCarrier(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Custom carriers are not available", http.StatusServiceUnavailable)
		return
	}

	var req CreateCarrierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	rule := carriers.NewCustomRule(req.Name, req.SearchCriteria, req.TrackingPattern)
	rule.ETAString = req.ETAString
	rule.ETADatePattern = req.ETADatePattern
	rule.StatusStrings = carriers.ParseStatusStrings(req.StatusStrings)
	rule.TrackingLinkURL = req.TrackingLinkURL

	if _, builtin := carriers.BuiltinRules()[rule.Key]; builtin {
		http.Error(w, fmt.Sprintf("Carrier %s is builtin", rule.Key), http.StatusConflict)
		return
	}

	if err := h.store.Create(r.Context(), rule); err != nil {
		switch {
		case errors.Is(err, carriers.ErrInvalidRule):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, database.ErrCarrierExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("Failed to create carrier", "carrier", rule.Key, "error", err)
			http.Error(w, fmt.Sprintf("Failed to create carrier: %v", err), http.StatusInternalServerError)
		}
		return
	}

	if err := h.registry.Add(rule); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Info("Custom carrier added", "carrier", rule.Key)

	writeJSON(w, http.StatusCreated, CarrierResponse{
		Rule:   rule,
		Active: h.active[rule.Key],
		Custom: true,
	})
}

// DeleteCarrier handles DELETE /api/carriers/{key}
func (h *CarrierHandler) DeleteCarrier(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Custom carriers are not available", http.StatusServiceUnavailable)
		return
	}

	key := strings.ToUpper(chi.URLParam(r, "key"))
	if err := h.store.Delete(r.Context(), key); err != nil {
		if errors.Is(err, database.ErrCarrierNotFound) {
			http.Error(w, "Carrier not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to delete carrier: %v", err), http.StatusInternalServerError)
		return
	}

	h.registry.Remove(key)
	h.logger.Info("Custom carrier removed", "carrier", key)
	w.WriteHeader(http.StatusNoContent)
}
