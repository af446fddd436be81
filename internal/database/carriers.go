package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"parcel-tracking/internal/carriers"
)

var (
	// ErrCarrierNotFound is returned when no custom carrier has the given key
	ErrCarrierNotFound = errors.New("carrier not found")
	// ErrCarrierExists is returned when adding a key that is already stored
	ErrCarrierExists = errors.New("carrier already exists")
)

// carrierRow is the stored form of a carriers.Rule. Status strings are kept
// comma-delimited and API keys are never persisted.
type carrierRow struct {
	Key             string `db:"key"`
	Name            string `db:"name"`
	SearchCriteria  string `db:"search_criteria"`
	TrackingPattern string `db:"tracking_pattern"`
	ETAString       string `db:"eta_string"`
	ETADatePattern  string `db:"eta_date_pattern"`
	StatusStrings   string `db:"status_strings"`
	TrackingLinkURL string `db:"tracking_link_url"`
	APIURL          string `db:"api_url"`
	APITemplate     string `db:"api_template"`
}

func (r carrierRow) rule() carriers.Rule {
	return carriers.Rule{
		Key:             r.Key,
		Name:            r.Name,
		SearchCriteria:  r.SearchCriteria,
		TrackingPattern: r.TrackingPattern,
		ETAString:       r.ETAString,
		ETADatePattern:  r.ETADatePattern,
		StatusStrings:   carriers.ParseStatusStrings(r.StatusStrings),
		TrackingLinkURL: r.TrackingLinkURL,
		APIURL:          r.APIURL,
		APITemplate:     r.APITemplate,
	}
}

func rowFromRule(rule carriers.Rule) carrierRow {
	return carrierRow{
		Key:             strings.ToUpper(strings.TrimSpace(rule.Key)),
		Name:            rule.Name,
		SearchCriteria:  rule.SearchCriteria,
		TrackingPattern: rule.TrackingPattern,
		ETAString:       rule.ETAString,
		ETADatePattern:  rule.ETADatePattern,
		StatusStrings:   strings.Join(rule.StatusStrings, ","),
		TrackingLinkURL: rule.TrackingLinkURL,
		APIURL:          rule.APIURL,
		APITemplate:     rule.APITemplate,
	}
}

const carrierColumns = `key, name, search_criteria, tracking_pattern, eta_string, eta_date_pattern,
	status_strings, tracking_link_url, api_url, api_template`

// CarrierStore persists user-defined carrier rules
type CarrierStore struct {
	db *sqlx.DB
}

// NewCarrierStore creates a new carrier store
func NewCarrierStore(db *sqlx.DB) *CarrierStore {
	return &CarrierStore{db: db}
}

// List returns all custom carriers ordered by key
func (s *CarrierStore) List(ctx context.Context) ([]carriers.Rule, error) {
	var rows []carrierRow
	query := `SELECT ` + carrierColumns + ` FROM custom_carriers ORDER BY key`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list carriers: %w", err)
	}

	rules := make([]carriers.Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, row.rule())
	}
	return rules, nil
}

// Get returns the custom carrier stored under key
func (s *CarrierStore) Get(ctx context.Context, key string) (carriers.Rule, error) {
	var row carrierRow
	query := `SELECT ` + carrierColumns + ` FROM custom_carriers WHERE key = ?`
	err := s.db.GetContext(ctx, &row, query, strings.ToUpper(strings.TrimSpace(key)))
	if errors.Is(err, sql.ErrNoRows) {
		return carriers.Rule{}, fmt.Errorf("%w: %s", ErrCarrierNotFound, key)
	}
	if err != nil {
		return carriers.Rule{}, fmt.Errorf("failed to get carrier %s: %w", key, err)
	}
	return row.rule(), nil
}

// Create validates and stores a new custom carrier
func (s *CarrierStore) Create(ctx context.Context, rule carriers.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	row := rowFromRule(rule)
	if row.Key == "" {
		return fmt.Errorf("%w: key is required", carriers.ErrInvalidRule)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM custom_carriers WHERE key = ?`, row.Key); err != nil {
		return fmt.Errorf("failed to check carrier %s: %w", row.Key, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrCarrierExists, row.Key)
	}

	query := `INSERT INTO custom_carriers (` + carrierColumns + `)
		VALUES (:key, :name, :search_criteria, :tracking_pattern, :eta_string, :eta_date_pattern,
			:status_strings, :tracking_link_url, :api_url, :api_template)`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create carrier %s: %w", row.Key, err)
	}
	return nil
}

// Delete removes a custom carrier
func (s *CarrierStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM custom_carriers WHERE key = ?`, strings.ToUpper(strings.TrimSpace(key)))
	if err != nil {
		return fmt.Errorf("failed to delete carrier %s: %w", key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrCarrierNotFound, key)
	}
	return nil
}

// LoadInto adds every stored carrier to registry, overriding builtins with
// the same key
func (s *CarrierStore) LoadInto(ctx context.Context, registry *carriers.Registry) (int, error) {
	rules, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, rule := range rules {
		if err := registry.Override(rule); err != nil {
			return 0, fmt.Errorf("stored carrier %s: %w", rule.Key, err)
		}
	}
	return len(rules), nil
}
