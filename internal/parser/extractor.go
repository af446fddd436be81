package parser

import (
	"log/slog"
	"regexp"
	"strings"
)

// NotAvailable is the ETA and service URL sentinel for missing values.
const NotAvailable = "N/A"

// FieldExtractor pulls ETA and status values out of a plain-text email body
type FieldExtractor struct {
	normalizer *DateNormalizer
	logger     *slog.Logger
}

// NewFieldExtractor creates a new field extractor
func NewFieldExtractor(normalizer *DateNormalizer, logger *slog.Logger) *FieldExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = NewDateNormalizer(logger)
	}
	return &FieldExtractor{
		normalizer: normalizer,
		logger:     logger,
	}
}

// ExtractETA finds the first case-insensitive occurrence of anchor in body and
// searches the text after it for datePattern. The raw match is normalized to
// DD.MM.YYYY. Every miss yields NotAvailable.
func (e *FieldExtractor) ExtractETA(body, anchor string, datePattern *regexp.Regexp) string {
	if anchor == "" || datePattern == nil {
		return NotAvailable
	}

	anchorRe, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(anchor))
	if err != nil {
		return NotAvailable
	}

	loc := anchorRe.FindStringIndex(body)
	if loc == nil {
		e.logger.Debug("ETA anchor not found", "anchor", anchor)
		return NotAvailable
	}

	remainder := body[loc[1]:]
	raw := caseInsensitive(datePattern).FindString(remainder)
	if raw == "" {
		e.logger.Debug("No ETA date after anchor", "anchor", anchor)
		return NotAvailable
	}

	normalized, ok := e.normalizer.Normalize(raw)
	if !ok {
		e.logger.Warn("Failed to normalize ETA", "raw", raw)
		return NotAvailable
	}
	return normalized
}

// ExtractStatus returns the mapped status of the first phrase in statusStrings
// that appears in body, compared case-insensitively. StatusUnknown is returned
// when no phrase is present.
func (e *FieldExtractor) ExtractStatus(body string, statusStrings []string) string {
	lowerBody := strings.ToLower(body)
	for _, phrase := range statusStrings {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		if strings.Contains(lowerBody, strings.ToLower(phrase)) {
			status := MapStatus(phrase)
			if !IsCanonicalStatus(status) {
				e.logger.Debug("Status phrase has no category, keeping it verbatim", "phrase", phrase)
			}
			return status
		}
	}
	e.logger.Debug("No status phrase found in body")
	return StatusUnknown
}

func caseInsensitive(re *regexp.Regexp) *regexp.Regexp {
	expr := re.String()
	if strings.HasPrefix(expr, "(?i)") {
		return re
	}
	ci, err := regexp.Compile(`(?i)` + expr)
	if err != nil {
		return re
	}
	return ci
}
