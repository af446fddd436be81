package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"parcel-tracking/internal/carriers"
)

// EnrichmentCacheStore persists carrier enrichment responses with an expiry
type EnrichmentCacheStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewEnrichmentCacheStore creates a new enrichment cache store
func NewEnrichmentCacheStore(db *sqlx.DB) *EnrichmentCacheStore {
	return &EnrichmentCacheStore{db: db, now: time.Now}
}

// Get retrieves a cached enrichment. A missing or expired entry is a miss.
func (s *EnrichmentCacheStore) Get(ctx context.Context, key string) (*carriers.Enrichment, error) {
	var entry struct {
		ResponseData string `db:"response_data"`
		ExpiresAt    int64  `db:"expires_at"`
	}

	err := s.db.GetContext(ctx, &entry, `SELECT response_data, expires_at FROM enrichment_cache WHERE cache_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached enrichment: %w", err)
	}

	if s.now().UnixMilli() >= entry.ExpiresAt {
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var value carriers.Enrichment
	if err := json.Unmarshal([]byte(entry.ResponseData), &value); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached enrichment: %w", err)
	}
	return &value, nil
}

// Set stores an enrichment with the specified TTL
func (s *EnrichmentCacheStore) Set(ctx context.Context, key string, value carriers.Enrichment, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize enrichment: %w", err)
	}

	now := s.now()
	query := `INSERT OR REPLACE INTO enrichment_cache (cache_key, response_data, cached_at, expires_at)
		VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, key, string(data), now.UnixMilli(), now.Add(ttl).UnixMilli()); err != nil {
		return fmt.Errorf("failed to cache enrichment: %w", err)
	}
	return nil
}

// Delete removes a cached entry
func (s *EnrichmentCacheStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM enrichment_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cached enrichment: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired entries and reports how many were removed
func (s *EnrichmentCacheStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM enrichment_cache WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// Stats returns the total and expired entry counts
func (s *EnrichmentCacheStore) Stats(ctx context.Context) (int, int, error) {
	var total, expired int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM enrichment_cache`); err != nil {
		return 0, 0, fmt.Errorf("failed to get total cache entries: %w", err)
	}
	if err := s.db.GetContext(ctx, &expired, `SELECT COUNT(*) FROM enrichment_cache WHERE expires_at <= ?`, s.now().UnixMilli()); err != nil {
		return 0, 0, fmt.Errorf("failed to get expired cache entries: %w", err)
	}
	return total, expired, nil
}
