package carriers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRule is returned when a carrier rule fails validation
var ErrInvalidRule = errors.New("invalid carrier rule")

// Template names understood by the enrichment client factory
const (
	TemplateDHL   = "dhl"
	TemplateNoAPI = "no_api"
)

// Rule describes how to find and interpret one carrier's notification mails
type Rule struct {
	Key             string   `json:"key" mapstructure:"key" db:"key"`
	Name            string   `json:"name" mapstructure:"name" db:"name"`
	SearchCriteria  string   `json:"search_criteria" mapstructure:"search_criteria" db:"search_criteria"`
	TrackingPattern string   `json:"tracking_pattern" mapstructure:"tracking_pattern" db:"tracking_pattern"`
	ETAString       string   `json:"eta_string" mapstructure:"eta_string" db:"eta_string"`
	ETADatePattern  string   `json:"eta_date_pattern" mapstructure:"eta_date_pattern" db:"eta_date_pattern"`
	StatusStrings   []string `json:"status_strings" mapstructure:"status_strings" db:"-"`
	TrackingLinkURL string   `json:"tracking_link_url" mapstructure:"tracking_link_url" db:"tracking_link_url"`
	APIURL          string   `json:"api_url" mapstructure:"api_url" db:"api_url"`
	APIKey          string   `json:"-" mapstructure:"api_key" db:"-"`
	APITemplate     string   `json:"api_template" mapstructure:"api_template" db:"api_template"`
}

// CompiledRule is a validated rule with its regular expressions compiled
type CompiledRule struct {
	Rule
	TrackingRe *regexp.Regexp
	ETARe      *regexp.Regexp
}

// Validate checks that the rule's patterns compile and are consistent
func (r Rule) Validate() error {
	_, err := r.Compile()
	return err
}

// Compile validates the rule and compiles its patterns
func (r Rule) Compile() (*CompiledRule, error) {
	if strings.TrimSpace(r.TrackingPattern) == "" {
		return nil, fmt.Errorf("%w %s: tracking pattern is required", ErrInvalidRule, r.Key)
	}

	trackingRe, err := regexp.Compile(r.TrackingPattern)
	if err != nil {
		return nil, fmt.Errorf("%w %s: tracking pattern: %v", ErrInvalidRule, r.Key, err)
	}

	compiled := &CompiledRule{Rule: r, TrackingRe: trackingRe}

	if r.ETADatePattern != "" {
		if r.ETAString == "" {
			return nil, fmt.Errorf("%w %s: eta date pattern requires an eta anchor string", ErrInvalidRule, r.Key)
		}
		etaRe, err := regexp.Compile(r.ETADatePattern)
		if err != nil {
			return nil, fmt.Errorf("%w %s: eta date pattern: %v", ErrInvalidRule, r.Key, err)
		}
		compiled.ETARe = etaRe
	}

	return compiled, nil
}

// Template returns the enrichment template name, defaulting to the lowercased key
func (r Rule) Template() string {
	if r.APITemplate != "" {
		return strings.ToLower(r.APITemplate)
	}
	return strings.ToLower(r.Key)
}

// HasAPI reports whether the rule carries enough settings for an API lookup
func (r Rule) HasAPI() bool {
	url := strings.TrimSpace(r.APIURL)
	return r.APIKey != "" && url != "" && !strings.EqualFold(url, "none") && r.Template() != TemplateNoAPI
}

// ParseStatusStrings splits a comma-delimited phrase list, trimming whitespace
// and dropping empty entries.
func ParseStatusStrings(s string) []string {
	phrases := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

// NewCustomRule creates a rule for a user-defined carrier. The key is the
// uppercased name and the search criteria default to a sender match on name.
func NewCustomRule(name, searchCriteria, trackingPattern string) Rule {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(searchCriteria) == "" {
		searchCriteria = fmt.Sprintf(`(FROM "%s")`, name)
	}
	return Rule{
		Key:             strings.ToUpper(name),
		Name:            strings.ToLower(name),
		SearchCriteria:  searchCriteria,
		TrackingPattern: trackingPattern,
		StatusStrings:   []string{},
	}
}
