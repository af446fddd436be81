package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"parcel-tracking/internal/workers"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetRecords(t *testing.T) {
	poller := &stubPoller{snapshot: testSnapshot()}
	handler := NewRecordHandler(poller, 0, nil)

	t.Run("AllRecords", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/records", nil)
		w := httptest.NewRecorder()

		handler.GetRecords(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}

		var response RecordsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Total != 2 || len(response.Records) != 2 {
			t.Errorf("Expected 2 records, got %d", len(response.Records))
		}
		if !response.Success {
			t.Error("Expected success to be true")
		}
		if response.LastUpdated == nil {
			t.Error("Expected last_updated to be set")
		}
	})

	t.Run("FilterByCarrier", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/records?carrier=dpd", nil)
		w := httptest.NewRecorder()

		handler.GetRecords(w, req)

		var response RecordsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(response.Records) != 1 || response.Records[0].Carrier != "DPD" {
			t.Errorf("Expected only the DPD record, got %+v", response.Records)
		}
	})

	t.Run("EmptySnapshot", func(t *testing.T) {
		handler := NewRecordHandler(&stubPoller{}, 0, nil)
		req := httptest.NewRequest("GET", "/api/records", nil)
		w := httptest.NewRecorder()

		handler.GetRecords(w, req)

		var raw map[string]any
		if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		records, ok := raw["records"].([]any)
		if !ok || len(records) != 0 {
			t.Errorf("Expected an empty records array, got %v", raw["records"])
		}
		if _, ok := raw["last_updated"]; ok {
			t.Error("Expected last_updated to be omitted before the first poll")
		}
	})
}

func TestGetRecord(t *testing.T) {
	handler := NewRecordHandler(&stubPoller{snapshot: testSnapshot()}, 0, nil)

	t.Run("Found", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest("GET", "/api/records/111111111111", nil), "tracking_number", "111111111111")
		w := httptest.NewRecorder()

		handler.GetRecord(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var record workers.TrackingRecord
		if err := json.NewDecoder(w.Body).Decode(&record); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if record.ETA != "17.07.2024" {
			t.Errorf("Expected ETA 17.07.2024, got %s", record.ETA)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest("GET", "/api/records/999", nil), "tracking_number", "999")
		w := httptest.NewRecorder()

		handler.GetRecord(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestRefresh(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		poller := &stubPoller{snapshot: testSnapshot()}
		handler := NewRecordHandler(poller, time.Minute, nil)

		req := httptest.NewRequest("POST", "/api/refresh", nil)
		w := httptest.NewRecorder()
		handler.Refresh(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if len(poller.refreshed) != 1 || poller.refreshed[0] {
			t.Errorf("Expected one unforced refresh, got %v", poller.refreshed)
		}
	})

	t.Run("Forced", func(t *testing.T) {
		poller := &stubPoller{snapshot: testSnapshot()}
		handler := NewRecordHandler(poller, 0, nil)

		req := httptest.NewRequest("POST", "/api/refresh?force=true", nil)
		w := httptest.NewRecorder()
		handler.Refresh(w, req)

		if len(poller.refreshed) != 1 || !poller.refreshed[0] {
			t.Errorf("Expected one forced refresh, got %v", poller.refreshed)
		}
	})

	t.Run("RateLimited", func(t *testing.T) {
		poller := &stubPoller{
			snapshot:  testSnapshot(),
			remaining: 90*time.Second + 200*time.Millisecond,
			err:       workers.ErrRefreshLimited,
		}
		handler := NewRecordHandler(poller, 0, nil)

		req := httptest.NewRequest("POST", "/api/refresh", nil)
		w := httptest.NewRecorder()
		handler.Refresh(w, req)

		if w.Code != http.StatusTooManyRequests {
			t.Errorf("Expected status 429, got %d", w.Code)
		}
		if got := w.Header().Get("Retry-After"); got != "91" {
			t.Errorf("Expected Retry-After 91, got %q", got)
		}
	})

	t.Run("PollFailure", func(t *testing.T) {
		snapshot := testSnapshot()
		snapshot.Success = false
		snapshot.LastError = "run x: mailbox connection failed"
		poller := &stubPoller{snapshot: snapshot, err: errors.New("mailbox connection failed")}
		handler := NewRecordHandler(poller, 0, nil)

		req := httptest.NewRequest("POST", "/api/refresh", nil)
		w := httptest.NewRecorder()
		handler.Refresh(w, req)

		if w.Code != http.StatusBadGateway {
			t.Errorf("Expected status 502, got %d", w.Code)
		}
		var response RecordsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Total != 2 {
			t.Errorf("Expected previous records to be returned, got %d", response.Total)
		}
		if response.LastError == "" {
			t.Error("Expected last_error to be set")
		}
	})
}
