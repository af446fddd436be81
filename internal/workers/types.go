package workers

import (
	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/parser"
)

// TrackingRecord is one parcel found in the mailbox during a poll
type TrackingRecord struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	StatusCode     string `json:"status_code"`
	ETA            string `json:"eta"`
	ServiceURL     string `json:"service_url"`
}

// NewTrackingRecord returns a record with the defaults used before any
// extraction or enrichment
func NewTrackingRecord(trackingNumber, carrier string) TrackingRecord {
	return TrackingRecord{
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
		StatusCode:     parser.StatusUnknown,
		ETA:            parser.NotAvailable,
		ServiceURL:     parser.NotAvailable,
	}
}

// ApplyEnrichment overwrites the status, service URL and ETA with an
// enrichment result
func (r *TrackingRecord) ApplyEnrichment(e carriers.Enrichment) {
	r.StatusCode = e.StatusCode
	r.ServiceURL = e.ServiceURL
	r.ETA = e.ETA
}

// HasServiceURL reports whether the record carries a usable tracking link
func (r *TrackingRecord) HasServiceURL() bool {
	return r.ServiceURL != "" && r.ServiceURL != carriers.UnknownServiceURL && r.ServiceURL != parser.NotAvailable
}
