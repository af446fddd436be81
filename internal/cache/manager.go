package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"parcel-tracking/internal/carriers"
)

// DefaultTTL is how long an enrichment response stays cached
const DefaultTTL = 30 * time.Minute

// Store is a persistent tier behind the in-memory cache. Get returns nil and
// no error on a miss.
type Store interface {
	Get(ctx context.Context, key string) (*carriers.Enrichment, error)
	Set(ctx context.Context, key string, value carriers.Enrichment, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// statsStore is implemented by stores that can count their entries
type statsStore interface {
	Stats(ctx context.Context) (total int, expired int, err error)
}

// expiringStore is implemented by stores that need explicit expiry sweeps
type expiringStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// cachedEnrichment is an in-memory entry with expiry
type cachedEnrichment struct {
	value     carriers.Enrichment
	expiresAt time.Time
}

func (c *cachedEnrichment) isExpired(now time.Time) bool {
	return now.After(c.expiresAt)
}

// Manager caches carrier enrichment responses in memory and, when a store is
// configured, in a persistent tier shared between processes.
type Manager struct {
	store    Store
	memory   sync.Map // map[string]*cachedEnrichment
	disabled bool
	ttl      time.Duration
	logger   *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a cache manager. store may be nil for a memory-only cache.
func NewManager(store Store, disabled bool, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		disabled: disabled,
		ttl:      ttl,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	if !disabled {
		go m.cleanupLoop()
	}
	return m
}

// Key builds the cache key for a carrier and tracking number
func Key(carrier, trackingNumber string) string {
	return strings.ToLower(carrier) + ":" + trackingNumber
}

// Get returns the cached enrichment for key
func (m *Manager) Get(ctx context.Context, key string) (carriers.Enrichment, bool, error) {
	if m.disabled {
		return carriers.Enrichment{}, false, nil
	}

	if value, ok := m.memory.Load(key); ok {
		cached := value.(*cachedEnrichment)
		if !cached.isExpired(time.Now()) {
			m.hits.Add(1)
			return cached.value, true, nil
		}
		m.memory.Delete(key)
	}

	if m.store == nil {
		m.misses.Add(1)
		return carriers.Enrichment{}, false, nil
	}

	value, err := m.store.Get(ctx, key)
	if err != nil {
		m.misses.Add(1)
		return carriers.Enrichment{}, false, fmt.Errorf("failed to get from cache store: %w", err)
	}
	if value == nil {
		m.misses.Add(1)
		return carriers.Enrichment{}, false, nil
	}

	m.memory.Store(key, &cachedEnrichment{value: *value, expiresAt: time.Now().Add(m.ttl)})
	m.hits.Add(1)
	return *value, true, nil
}

// Set stores an enrichment in the store first and then in memory
func (m *Manager) Set(ctx context.Context, key string, value carriers.Enrichment) error {
	if m.disabled {
		return nil
	}

	if m.store != nil {
		if err := m.store.Set(ctx, key, value, m.ttl); err != nil {
			return fmt.Errorf("failed to store in cache store: %w", err)
		}
	}

	m.memory.Store(key, &cachedEnrichment{value: value, expiresAt: time.Now().Add(m.ttl)})
	return nil
}

// Delete removes key from both tiers
func (m *Manager) Delete(ctx context.Context, key string) error {
	if m.disabled {
		return nil
	}

	m.memory.Delete(key)
	if m.store != nil {
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete from cache store: %w", err)
		}
	}
	return nil
}

// IsEnabled returns true if caching is enabled
func (m *Manager) IsEnabled() bool {
	return !m.disabled
}

// TTL returns the cache TTL
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *Manager) cleanup() {
	now := time.Now()
	removed := 0
	m.memory.Range(func(key, value any) bool {
		if value.(*cachedEnrichment).isExpired(now) {
			m.memory.Delete(key)
			removed++
		}
		return true
	})
	if removed > 0 {
		m.logger.Debug("Cleaned up expired enrichment cache entries", "count", removed)
	}

	if store, ok := m.store.(expiringStore); ok {
		n, err := store.DeleteExpired(m.ctx)
		if err != nil {
			m.logger.Warn("Failed to clean up expired cache store entries", "error", err)
		} else if n > 0 {
			m.logger.Debug("Cleaned up expired cache store entries", "count", n)
		}
	}
}

// Stats represents cache statistics
type Stats struct {
	Disabled      bool          `json:"disabled"`
	TTL           time.Duration `json:"ttl"`
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	MemoryTotal   int           `json:"memory_total"`
	MemoryExpired int           `json:"memory_expired"`
	StoreTotal    int           `json:"store_total"`
	StoreExpired  int           `json:"store_expired"`
}

// GetStats returns cache statistics
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Disabled: m.disabled,
		TTL:      m.ttl,
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
	}
	if m.disabled {
		return stats, nil
	}

	now := time.Now()
	m.memory.Range(func(_, value any) bool {
		stats.MemoryTotal++
		if value.(*cachedEnrichment).isExpired(now) {
			stats.MemoryExpired++
		}
		return true
	})

	if store, ok := m.store.(statsStore); ok {
		total, expired, err := store.Stats(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to get cache store stats: %w", err)
		}
		stats.StoreTotal = total
		stats.StoreExpired = expired
	}
	return stats, nil
}

// Close shuts down the cleanup goroutine
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Wrapper returns a carriers.EnricherWrapper that serves lookups from the
// cache. Only successful lookups are cached.
func (m *Manager) Wrapper() carriers.EnricherWrapper {
	return func(rule carriers.Rule, next carriers.Enricher) carriers.Enricher {
		if m.disabled {
			return next
		}
		return &cachingEnricher{carrier: rule.Key, next: next, manager: m}
	}
}

type cachingEnricher struct {
	carrier string
	next    carriers.Enricher
	manager *Manager
}

func (c *cachingEnricher) Name() string {
	return c.next.Name()
}

func (c *cachingEnricher) Enrich(ctx context.Context, trackingNumber string) (carriers.Enrichment, error) {
	key := Key(c.carrier, trackingNumber)

	cached, ok, err := c.manager.Get(ctx, key)
	if err != nil {
		c.manager.logger.Warn("Enrichment cache lookup failed", "key", key, "error", err)
	}
	if ok {
		c.manager.logger.Debug("Enrichment served from cache", "key", key)
		return cached, nil
	}

	result, err := c.next.Enrich(ctx, trackingNumber)
	if err != nil {
		return result, err
	}

	if err := c.manager.Set(ctx, key, result); err != nil {
		c.manager.logger.Warn("Failed to cache enrichment", "key", key, "error", err)
	}
	return result, nil
}
