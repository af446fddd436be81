package parser

import (
	"log/slog"
	"regexp"
	"strings"
)

// Canonical status categories produced by MapStatus.
const (
	StatusInDelivery     = "in Zustellung"
	StatusDelivered      = "Zugestellt"
	StatusWaiting        = "Warten"
	StatusDeliveryFailed = "Zustellung fehlgeschlagen"
	StatusReadyForPickup = "Abholbereit"

	// StatusUnknown is the sentinel used when no status phrase was found.
	StatusUnknown = "unknown"
)

// statusMapping pairs a canonical category with the phrase patterns that select it
type statusMapping struct {
	Category string
	Patterns []*regexp.Regexp
}

// statusTable is evaluated top to bottom; the first category with a matching
// pattern wins. Some phrases overlap across categories, so order matters.
var statusTable = []statusMapping{
	{
		Category: StatusInDelivery,
		Patterns: compilePatterns(
			`in transit`,
			`in delivery`,
			`out for delivery`,
			`in zustellung`,
			`wird zugestellt`,
			`wurde versandt`,
			`ist unterwegs`,
			`auf dem weg zu dir`,
			`ist fast da`,
			`ist auf dem weg`,
			`kommt ihr dpd paket`,
			`wird ihnen heute`,
			`wird ihnen voraussichtlich`,
			`paket kommt heute`,
			`sendung unterwegs`,
			`sendung ist unterwegs`,
			`unterwegs`,
			`versandt`,
			`bestellung versandt`,
			`transit`,
			`zustellung`,
			`wird in kürze zugestellt`,
			`stellen wir`,
		),
	},
	{
		Category: StatusDelivered,
		Patterns: compilePatterns(
			`delivered`,
			`zugestellt`,
			`ausgeliefert`,
			`ihr paket ist da`,
			`paket angekommen`,
			`paket geliefert`,
			`ist da`,
		),
	},
	{
		Category: StatusWaiting,
		Patterns: compilePatterns(
			`pending`,
			`waiting`,
			`wartet`,
			`warte auf zustellung`,
		),
	},
	{
		Category: StatusDeliveryFailed,
		Patterns: compilePatterns(
			`failed delivery`,
			`zustellung fehlgeschlagen`,
			`abholung fehlgeschlagen`,
			`paket konnte nicht zugestellt werden`,
		),
	},
	{
		Category: StatusReadyForPickup,
		Patterns: compilePatterns(
			`packstation`,
			`abholbereit`,
			`filiale`,
			`paket konnte nicht zugestellt werden`,
			`hinterlegt`,
		),
	},
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// IsCanonicalStatus reports whether status is one of the canonical categories.
// A value returned by MapStatus that is not canonical is unmapped text.
func IsCanonicalStatus(status string) bool {
	for _, m := range statusTable {
		if m.Category == status {
			return true
		}
	}
	return false
}

// MapStatus maps a raw status phrase to its canonical category. The input is
// returned unchanged when nothing in the table matches.
func MapStatus(raw string) string {
	lower := strings.ToLower(raw)
	for _, m := range statusTable {
		for _, re := range m.Patterns {
			if re.MatchString(lower) {
				slog.Debug("Mapped status", "raw", raw, "status", m.Category)
				return m.Category
			}
		}
	}
	slog.Debug("No status mapping found, returning original", "raw", raw)
	return raw
}
