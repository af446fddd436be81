package ratelimit

import (
	"time"
)

// DefaultCooldown is the minimum time between two manual poll refreshes
const DefaultCooldown = 5 * time.Minute

// Config interface for rate limiting configuration
type Config interface {
	GetDisableRateLimit() bool
	GetRefreshCooldown() time.Duration
}

// Policy is a static Config
type Policy struct {
	Disabled bool
	Cooldown time.Duration
}

// GetDisableRateLimit reports whether refreshes are never limited
func (p Policy) GetDisableRateLimit() bool {
	return p.Disabled
}

// GetRefreshCooldown returns the cooldown, defaulting to DefaultCooldown
func (p Policy) GetRefreshCooldown() time.Duration {
	if p.Cooldown <= 0 {
		return DefaultCooldown
	}
	return p.Cooldown
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	ShouldBlock   bool
	RemainingTime time.Duration
	Reason        string
}

// CheckRefreshRateLimit checks if a manual mailbox poll should be rate
// limited. lastRefresh is the start of the previous manual poll.
func CheckRefreshRateLimit(cfg Config, lastRefresh *time.Time, isForced bool) RateLimitResult {
	if cfg.GetDisableRateLimit() {
		return RateLimitResult{
			ShouldBlock: false,
			Reason:      "rate_limiting_disabled",
		}
	}

	if isForced {
		return RateLimitResult{
			ShouldBlock: false,
			Reason:      "forced_refresh",
		}
	}

	if lastRefresh == nil {
		return RateLimitResult{
			ShouldBlock: false,
			Reason:      "no_previous_refresh",
		}
	}

	cooldown := cfg.GetRefreshCooldown()
	elapsed := time.Since(*lastRefresh)

	if elapsed < cooldown {
		return RateLimitResult{
			ShouldBlock:   true,
			RemainingTime: cooldown - elapsed,
			Reason:        "rate_limit_active",
		}
	}

	return RateLimitResult{
		ShouldBlock: false,
		Reason:      "rate_limit_passed",
	}
}
