package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/email"
	"parcel-tracking/internal/parser"
)

// DefaultMaxAgeDays limits a scan to recent mail when no age is configured
const DefaultMaxAgeDays = 10

var (
	// ErrConnect is returned when the mailbox connection or login fails
	ErrConnect = errors.New("mailbox connection failed")
	// ErrFolderSelect marks a folder that could not be opened. Scans log it
	// and return an empty result.
	ErrFolderSelect = errors.New("failed to select folder")
	// ErrPartialScan is returned together with the records found before a
	// mailbox failure interrupted the scan
	ErrPartialScan = errors.New("scan interrupted")
	// ErrNoTrackingPattern is returned when neither the request nor its rule
	// supplies a tracking pattern
	ErrNoTrackingPattern = errors.New("no tracking pattern")
)

const logoutTimeout = 10 * time.Second

// ScanRequest describes one pass over a mailbox folder
type ScanRequest struct {
	Folder         string
	SearchCriteria string
	// TrackingPattern defaults to the rule's tracking pattern
	TrackingPattern *regexp.Regexp
	// Seen is shared by all scans of one poll. A nil set is replaced by a
	// fresh one.
	Seen parser.SeenSet
	// Rule supplies the carrier key, the ETA anchor and pattern, and the
	// status phrases
	Rule *carriers.CompiledRule
	// Enricher, when set, is called for every record during the scan
	Enricher   carriers.Enricher
	MaxAgeDays int
}

// Scanner searches one mailbox account for carrier notifications and turns
// them into tracking records
type Scanner struct {
	mu      sync.Mutex
	mailbox email.Mailbox
	fields  *parser.FieldExtractor
	logger  *slog.Logger
	now     func() time.Time
}

// NewScanner creates a scanner for mailbox
func NewScanner(mailbox email.Mailbox, fields *parser.FieldExtractor, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if fields == nil {
		fields = parser.NewFieldExtractor(parser.NewDateNormalizer(logger), logger)
	}
	return &Scanner{
		mailbox: mailbox,
		fields:  fields,
		logger:  logger,
		now:     time.Now,
	}
}

// Scan runs one pass over the mailbox. Scans of the same scanner are
// serialized. Messages are processed newest first, so when several mails
// carry the same tracking number the most recent one wins.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) ([]TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := []TrackingRecord{}

	pattern := req.TrackingPattern
	if pattern == nil && req.Rule != nil {
		pattern = req.Rule.TrackingRe
	}
	if pattern == nil {
		return records, ErrNoTrackingPattern
	}
	if req.Seen == nil {
		req.Seen = parser.NewSeenSet()
	}
	carrier := ""
	if req.Rule != nil {
		carrier = req.Rule.Key
	}
	logger := s.logger.With("carrier", carrier, "folder", req.Folder)

	if err := s.mailbox.Connect(ctx); err != nil {
		logger.Error("Failed to connect to mailbox", "error", err)
		return records, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
		defer cancel()
		if err := s.mailbox.Logout(logoutCtx); err != nil {
			logger.Warn("Mailbox logout failed", "error", err)
		}
	}()

	if err := s.mailbox.Select(ctx, req.Folder); err != nil {
		logger.Error("Folder not available, returning no records",
			"error", fmt.Errorf("%w %q: %w", ErrFolderSelect, req.Folder, err))
		return records, nil
	}

	maxAge := req.MaxAgeDays
	if maxAge <= 0 {
		maxAge = DefaultMaxAgeDays
	}
	cutoff := s.now().AddDate(0, 0, -maxAge)
	criteria := email.FormatSearchCriteria(req.SearchCriteria, cutoff)

	logger.Debug("Searching mailbox", "criteria", criteria)
	seqNums, err := s.mailbox.Search(ctx, criteria)
	if err != nil {
		logger.Error("Mailbox search failed", "criteria", criteria, "error", err)
		return records, fmt.Errorf("%w: search: %w", ErrPartialScan, err)
	}
	if len(seqNums) == 0 {
		logger.Debug("No messages matched the search criteria", "criteria", criteria)
		return records, nil
	}
	logger.Debug("Found messages to process", "count", len(seqNums))

	for i := len(seqNums) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			logger.Warn("Scan cancelled", "processed", len(seqNums)-1-i, "records", len(records))
			return records, fmt.Errorf("%w: %w", ErrPartialScan, err)
		}

		seqNum := seqNums[i]
		raw, err := s.mailbox.Fetch(ctx, seqNum)
		if err != nil {
			if errors.Is(err, email.ErrNotConnected) || ctx.Err() != nil {
				logger.Error("Mailbox connection lost during scan", "seq_num", seqNum, "error", err)
				return records, fmt.Errorf("%w: fetch %d: %w", ErrPartialScan, seqNum, err)
			}
			logger.Warn("Failed to fetch message, skipping", "seq_num", seqNum, "error", err)
			continue
		}

		record, ok := s.extract(ctx, raw, pattern, req, logger)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	logger.Debug("Scan complete", "messages", len(seqNums), "records", len(records))
	return records, nil
}

// extract builds a record from one raw message. It returns false when the
// message has no unseen tracking number.
func (s *Scanner) extract(ctx context.Context, raw []byte, pattern *regexp.Regexp, req ScanRequest, logger *slog.Logger) (TrackingRecord, bool) {
	body := email.ExtractBody(raw)

	number, ok := parser.ExtractTrackingNumber(body, pattern, req.Seen)
	if !ok {
		return TrackingRecord{}, false
	}

	carrier := ""
	if req.Rule != nil {
		carrier = req.Rule.Key
	}
	record := NewTrackingRecord(number, carrier)

	if rule := req.Rule; rule != nil {
		if rule.ETAString != "" && rule.ETARe != nil {
			record.ETA = s.fields.ExtractETA(body, rule.ETAString, rule.ETARe)
			if record.ETA == parser.NotAvailable {
				logger.Warn("ETA not found in message", "tracking_number", number)
			}
		}
		if len(rule.StatusStrings) > 0 {
			record.StatusCode = s.fields.ExtractStatus(body, rule.StatusStrings)
			if record.StatusCode == parser.StatusUnknown {
				logger.Warn("Status not found in message", "tracking_number", number)
			}
		}
	}

	if req.Enricher != nil {
		enrichment, err := carriers.Apply(ctx, req.Enricher, number)
		if err != nil {
			logger.Warn("Enrichment failed", "tracking_number", number, "error", err)
		}
		record.ApplyEnrichment(enrichment)
	}

	logger.Debug("Added tracking record", "tracking_number", number, "status", record.StatusCode, "eta", record.ETA)
	return record, true
}
