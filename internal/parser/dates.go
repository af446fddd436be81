package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// DateLayout is the output layout of every normalized date (DD.MM.YYYY).
const DateLayout = "02.01.2006"

const weekdayAlternation = `(?:Montag|Dienstag|Mittwoch|Donnerstag|Freitag|Samstag|Sonntag)`

var germanMonths = map[string]time.Month{
	"januar":    time.January,
	"februar":   time.February,
	"märz":      time.March,
	"maerz":     time.March,
	"april":     time.April,
	"mai":       time.May,
	"juni":      time.June,
	"juli":      time.July,
	"august":    time.August,
	"september": time.September,
	"oktober":   time.October,
	"november":  time.November,
	"dezember":  time.December,
}

type dateKind int

const (
	kindFullNumeric dateKind = iota
	kindMonthName
	kindDayMonthNumeric
	kindRelativeWorkdays
)

type datePattern struct {
	name string
	re   *regexp.Regexp
	kind dateKind
}

// datePatterns are tried in order; the first one that yields a valid date wins.
var datePatterns = []datePattern{
	{
		name: "weekday_full_date",
		re:   regexp.MustCompile(`(?i)\b` + weekdayAlternation + `,\s+(\d{1,2})\.(\d{1,2})\.(\d{4})\b`),
		kind: kindFullNumeric,
	},
	{
		name: "zustellung_weekday_month",
		re:   regexp.MustCompile(`(?i)Zustellung:\s+` + weekdayAlternation + `,\s+(\d{1,2})\.?\s+(\pL+)`),
		kind: kindMonthName,
	},
	{
		name: "am_weekday_den",
		re:   regexp.MustCompile(`(?i)am\s+` + weekdayAlternation + `,\s+den\s+(\d{1,2})\.(\d{1,2})\.`),
		kind: kindDayMonthNumeric,
	},
	{
		name: "weekday_month",
		re:   regexp.MustCompile(`(?i)` + weekdayAlternation + `,\s+(\d{1,2})\.?\s+(\pL+)`),
		kind: kindMonthName,
	},
	{
		name: "relative_workdays",
		re:   workdaysPattern,
		kind: kindRelativeWorkdays,
	},
}

// Matches "in 1-3 Werktagen" as well as a bare "1-3 Werktagen". The DPD ETA
// anchor ends in "in", so the raw match handed to Normalize has no prefix.
var workdaysPattern = regexp.MustCompile(`(?i)(?:\bin\s+)?(\d+)-(\d+)\s+Werktagen`)

// DateNormalizer converts free-text German/English delivery dates into
// DD.MM.YYYY strings.
type DateNormalizer struct {
	// Now returns the reference time for partial and relative dates.
	Now    func() time.Time
	logger *slog.Logger
	parser *dps.Parser
}

// NewDateNormalizer creates a normalizer using the wall clock
func NewDateNormalizer(logger *slog.Logger) *DateNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DateNormalizer{
		Now:    time.Now,
		logger: logger,
		parser: &dps.Parser{},
	}
}

// Normalize returns the date contained in raw formatted as DD.MM.YYYY. The
// boolean is false when no strategy produced a date.
func (n *DateNormalizer) Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	now := n.now()

	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if t, ok := resolveMatch(p.kind, m, now); ok {
			n.log().Debug("Normalized date", "raw", raw, "pattern", p.name, "date", t.Format(DateLayout))
			return t.Format(DateLayout), true
		}
		n.log().Debug("Date pattern matched without valid date", "raw", raw, "pattern", p.name)
	}

	if t, ok := n.parseFreeText(raw, now); ok {
		n.log().Debug("Normalized date via free-text parser", "raw", raw, "date", t.Format(DateLayout))
		return t.Format(DateLayout), true
	}

	if m := workdaysPattern.FindStringSubmatch(raw); m != nil {
		if t, ok := resolveMatch(kindRelativeWorkdays, m, now); ok {
			return t.Format(DateLayout), true
		}
	}

	n.log().Warn("Could not normalize date", "raw", raw)
	return "", false
}

func (n *DateNormalizer) parseFreeText(raw string, now time.Time) (time.Time, bool) {
	p := n.parser
	if p == nil {
		p = &dps.Parser{}
	}

	cfg := &dps.Configuration{
		Languages:           []string{"de"},
		CurrentTime:         now,
		PreferredDayOfMonth: dps.First,
	}

	dt, err := p.Parse(cfg, raw)
	if err != nil || dt.Time.IsZero() {
		return time.Time{}, false
	}
	return dt.Time, true
}

func (n *DateNormalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

func (n *DateNormalizer) log() *slog.Logger {
	if n.logger == nil {
		return slog.Default()
	}
	return n.logger
}

func resolveMatch(kind dateKind, m []string, now time.Time) (time.Time, bool) {
	switch kind {
	case kindFullNumeric:
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return buildDate(year, time.Month(month), day, now.Location())

	case kindMonthName:
		day, _ := strconv.Atoi(m[1])
		month, ok := germanMonths[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		return buildDate(now.Year(), month, day, now.Location())

	case kindDayMonthNumeric:
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return buildDate(now.Year(), time.Month(month), day, now.Location())

	case kindRelativeWorkdays:
		// The upper bound of the range is used.
		maxDays, err := strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, false
		}
		return now.AddDate(0, 0, maxDays), true
	}
	return time.Time{}, false
}

// buildDate rejects dates that time.Date would silently roll over, such as 31.02.
func buildDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}
