package carriers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimitedEnricher struct {
	next    Enricher
	limiter *rate.Limiter
}

// RateLimited returns a wrapper that waits on limiter before every lookup.
// The limiter is shared by all enrichers the wrapper is applied to.
func RateLimited(limiter *rate.Limiter) EnricherWrapper {
	return func(_ Rule, next Enricher) Enricher {
		if limiter == nil {
			return next
		}
		return &rateLimitedEnricher{next: next, limiter: limiter}
	}
}

func (r *rateLimitedEnricher) Name() string {
	return r.next.Name()
}

func (r *rateLimitedEnricher) Enrich(ctx context.Context, trackingNumber string) (Enrichment, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return UnknownEnrichment(), fmt.Errorf("enrichment rate limit: %w", err)
	}
	return r.next.Enrich(ctx, trackingNumber)
}

// Apply runs enricher for trackingNumber and returns the enrichment to store on
// the record. Errors degrade to the sentinel enrichment.
func Apply(ctx context.Context, enricher Enricher, trackingNumber string) (Enrichment, error) {
	if enricher == nil {
		return UnknownEnrichment(), nil
	}
	result, err := enricher.Enrich(ctx, trackingNumber)
	if err != nil {
		return UnknownEnrichment(), err
	}
	return result, nil
}
