package carriers

import (
	"context"
	"log/slog"
	"time"
)

// NoopEnricher returns the sentinel enrichment without contacting anything.
// It stands in for rules without a usable API template.
type NoopEnricher struct {
	template string
}

// Name returns the template the noop enricher was selected for
func (n NoopEnricher) Name() string {
	if n.template == "" {
		return TemplateNoAPI
	}
	return n.template
}

// Enrich returns the sentinel enrichment
func (n NoopEnricher) Enrich(context.Context, string) (Enrichment, error) {
	return UnknownEnrichment(), nil
}

// EnricherWrapper decorates an enricher, for example with caching
type EnricherWrapper func(rule Rule, next Enricher) Enricher

// ClientFactory selects the enrichment client for a carrier rule
type ClientFactory struct {
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
	wrappers  []EnricherWrapper
}

// NewClientFactory creates a new client factory
func NewClientFactory(config Config, logger *slog.Logger) *ClientFactory {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientFactory{
		timeout:   config.Timeout,
		userAgent: config.UserAgent,
		logger:    logger,
	}
}

// Use registers a wrapper applied to every API-backed enricher
func (f *ClientFactory) Use(w EnricherWrapper) {
	f.wrappers = append(f.wrappers, w)
}

// ForRule returns the enricher for rule. The boolean is false when the rule
// has no API-backed enricher, in which case a NoopEnricher is returned.
// The template defaults to the lowercased carrier key.
func (f *ClientFactory) ForRule(rule Rule) (Enricher, bool) {
	template := rule.Template()

	var e Enricher
	switch template {
	case TemplateDHL:
		if !rule.HasAPI() {
			f.logger.Debug("DHL template without API credentials", "carrier", rule.Key)
			return NoopEnricher{template: template}, false
		}
		e = NewDHLClient(rule.APIURL, rule.APIKey, f.userAgent, f.timeout, f.logger)
	default:
		f.logger.Debug("No enrichment client for template", "carrier", rule.Key, "template", template)
		return NoopEnricher{template: template}, false
	}

	for _, w := range f.wrappers {
		e = w(rule, e)
	}
	return e, true
}
