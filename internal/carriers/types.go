package carriers

import (
	"context"
	"time"
)

// Sentinel values of an enrichment that produced no data
const (
	UnknownStatus     = "unknown"
	UnknownServiceURL = "unknown"
	UnknownETA        = "N/A"
)

// Enrichment holds the fields a carrier API may overwrite on a tracking record
type Enrichment struct {
	StatusCode string `json:"status_code"`
	ServiceURL string `json:"service_url"`
	ETA        string `json:"eta"`
}

// UnknownEnrichment returns the sentinel used when a lookup yields nothing
func UnknownEnrichment() Enrichment {
	return Enrichment{
		StatusCode: UnknownStatus,
		ServiceURL: UnknownServiceURL,
		ETA:        UnknownETA,
	}
}

// IsUnknown reports whether e is the sentinel enrichment
func (e Enrichment) IsUnknown() bool {
	return e == UnknownEnrichment()
}

// Enricher looks up a tracking number at a carrier API. Implementations return
// the sentinel enrichment together with any error so callers can use the
// result directly.
type Enricher interface {
	// Enrich retrieves status, service URL and ETA for a tracking number
	Enrich(ctx context.Context, trackingNumber string) (Enrichment, error)

	// Name returns the enrichment template this enricher implements
	Name() string
}

// CarrierError represents errors from carrier APIs
type CarrierError struct {
	Carrier    string `json:"carrier"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Retryable  bool   `json:"retryable"`
	RateLimit  bool   `json:"rate_limit"`
}

func (e *CarrierError) Error() string {
	return e.Carrier + ": " + e.Message
}

// Config contains configuration shared by carrier enrichment clients
type Config struct {
	Timeout   time.Duration `json:"timeout"`
	UserAgent string        `json:"user_agent"`
}

// DefaultTimeout bounds a single enrichment request
const DefaultTimeout = 10 * time.Second
