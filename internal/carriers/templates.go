package carriers

const germanWeekdays = `(?:Montag|Dienstag|Mittwoch|Donnerstag|Freitag|Samstag|Sonntag)`

// DefaultStatusStrings are the status phrases searched for by the builtin rules
var DefaultStatusStrings = []string{
	"in transit",
	"in delivery",
	"out for delivery",
	"in zustellung",
	"wird zugestellt",
	"unterwegs",
	"in Kürze zugestellt",
	"sendung unterwegs",
	"in zustellung",
	"wird zugestellt",
	"abholbereit",
}

// BuiltinRules returns fresh copies of the builtin carrier rules keyed by
// uppercase carrier key.
func BuiltinRules() map[string]Rule {
	return map[string]Rule{
		"DHL": {
			Key:             "DHL",
			Name:            "DHL",
			SearchCriteria:  `(FROM "dhl")`,
			TrackingPattern: `\b\d{12}\b|\b\d{20}\b|\bJJD\d{12,24}\b`,
			ETAString:       "geplant für ",
			ETADatePattern:  `(?i)` + germanWeekdays + `,\s+\d{1,2}\s+(?:Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)`,
			StatusStrings:   statusStrings(),
			TrackingLinkURL: "https://www.dhl.de/de/privatkunden/pakete-empfangen/verfolgen.html?lang=de&idc=",
			APIURL:          "https://api-eu.dhl.com/track/shipments",
			APITemplate:     TemplateDHL,
		},
		"HERMES": {
			Key:             "HERMES",
			Name:            "Hermes",
			SearchCriteria:  `(FROM "myhermes")`,
			TrackingPattern: `\b(H\d{19}|\d{14})\b`,
			ETAString:       "Voraussichtliche Zustellung am",
			ETADatePattern:  `\d{2}\.\d{2}\.\d{4}`,
			StatusStrings:   statusStrings(),
			TrackingLinkURL: "https://www.myhermes.de/empfangen/sendungsverfolgung/?suche=",
		},
		"AMAZON": {
			Key:             "AMAZON",
			Name:            "Amazon",
			SearchCriteria:  `(FROM "amazon")`,
			TrackingPattern: `\bDE\d{10}\b`,
			ETAString:       "Zustellung:",
			ETADatePattern:  `\pL+,\s+\d{1,2}\.?\s+\pL+`,
			StatusStrings:   statusStrings(),
		},
		"DPD": {
			Key:             "DPD",
			Name:            "DPD",
			SearchCriteria:  `(FROM "dpd")`,
			TrackingPattern: `\b\d{14}\b`,
			ETAString:       "Ihre Sendung stellen wir in",
			ETADatePattern:  `(\d+)-(\d+)\s+Werktagen`,
			StatusStrings:   append([]string{"stellen wir"}, statusStrings()...),
			TrackingLinkURL: "https://my.dpd.de/myparcels/dataprotection.aspx?action=2&parcelno=B2C0",
			APITemplate:     TemplateNoAPI,
		},
		"GLS": {
			Key:             "GLS",
			Name:            "GLS",
			SearchCriteria:  `(FROM "gls")`,
			TrackingPattern: `\b\d{11}\b`,
			StatusStrings:   statusStrings(),
			APITemplate:     TemplateNoAPI,
		},
	}
}

func statusStrings() []string {
	out := make([]string, len(DefaultStatusStrings))
	copy(out, DefaultStatusStrings)
	return out
}
