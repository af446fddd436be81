package carriers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parcel-tracking/internal/parser"
)

// DHLClient implements the Enricher interface for the DHL shipment tracking API
type DHLClient struct {
	apiKey    string
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

type dhlResponse struct {
	Shipments []dhlShipment `json:"shipments"`
}

type dhlShipment struct {
	ID                      string     `json:"id"`
	ServiceURL              *string    `json:"serviceUrl"`
	EstimatedTimeOfDelivery *string    `json:"estimatedTimeOfDelivery"`
	Status                  *dhlStatus `json:"status"`
}

type dhlStatus struct {
	StatusCode  *string `json:"statusCode"`
	Status      string  `json:"status"`
	Description string  `json:"description"`
}

// NewDHLClient creates a new DHL API client. The https scheme is added to
// apiURL when it has none. An empty userAgent leaves Go's default in place.
func NewDHLClient(apiURL, apiKey, userAgent string, timeout time.Duration, logger *slog.Logger) *DHLClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if !strings.HasPrefix(apiURL, "http://") && !strings.HasPrefix(apiURL, "https://") {
		apiURL = "https://" + apiURL
	}

	return &DHLClient{
		apiKey:    apiKey,
		baseURL:   apiURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Name returns the enrichment template name
func (c *DHLClient) Name() string {
	return TemplateDHL
}

// Enrich queries the DHL API for the first shipment matching trackingNumber.
// Missing fields fall back to the sentinel values; any failure returns the
// sentinel enrichment with the error.
func (c *DHLClient) Enrich(ctx context.Context, trackingNumber string) (Enrichment, error) {
	if trackingNumber == "" || strings.EqualFold(trackingNumber, UnknownStatus) {
		c.logger.Debug("Skipping DHL lookup for invalid tracking number", "tracking_number", trackingNumber)
		return UnknownEnrichment(), nil
	}

	params := url.Values{}
	params.Set("trackingNumber", trackingNumber)

	reqURL := c.baseURL
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + params.Encode()
	} else {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return UnknownEnrichment(), fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("DHL-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("Fetching DHL tracking info", "tracking_number", trackingNumber, "url", c.baseURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return UnknownEnrichment(), fmt.Errorf("DHL request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return UnknownEnrichment(), fmt.Errorf("failed to read DHL response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return UnknownEnrichment(), &CarrierError{
			Carrier:    TemplateDHL,
			Code:       http.StatusText(resp.StatusCode),
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			RateLimit:  resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var parsed dhlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return UnknownEnrichment(), fmt.Errorf("failed to decode DHL response: %w", err)
	}

	if len(parsed.Shipments) == 0 {
		c.logger.Debug("No shipment data found", "tracking_number", trackingNumber)
		return UnknownEnrichment(), nil
	}

	return c.toEnrichment(parsed.Shipments[0]), nil
}

func (c *DHLClient) toEnrichment(s dhlShipment) Enrichment {
	result := Enrichment{
		StatusCode: UnknownStatus,
		ServiceURL: parser.NotAvailable,
		ETA:        UnknownETA,
	}

	if s.Status != nil && s.Status.StatusCode != nil && *s.Status.StatusCode != "" {
		raw := *s.Status.StatusCode
		result.StatusCode = parser.MapStatus(raw)
		if parser.IsCanonicalStatus(result.StatusCode) {
			c.logger.Debug("Mapped DHL status", "raw", raw, "status", result.StatusCode)
		} else {
			c.logger.Info("DHL status has no category, keeping raw code", "raw", raw)
		}
	}
	if s.ServiceURL != nil && *s.ServiceURL != "" {
		result.ServiceURL = *s.ServiceURL
	}
	if s.EstimatedTimeOfDelivery != nil && *s.EstimatedTimeOfDelivery != "" {
		result.ETA = formatDeliveryTime(*s.EstimatedTimeOfDelivery)
	}
	return result
}

// formatDeliveryTime renders an ISO 8601 timestamp as DD.MM.YYYY and returns
// other values unchanged.
func formatDeliveryTime(value string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(parser.DateLayout)
		}
	}
	return value
}
