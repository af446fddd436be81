package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/email"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendSQLite = "sqlite"
)

// Config holds the complete parcel tracker configuration
type Config struct {
	IMAP     IMAPConfig     `json:"imap"`
	Scan     ScanConfig     `json:"scan"`
	Carrier  CarrierConfig  `json:"carrier"`
	API      APIConfig      `json:"api"`
	Cache    CacheConfig    `json:"cache"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Keyring  KeyringConfig  `json:"keyring"`
	Log      LogConfig      `json:"log"`
}

// IMAPConfig holds mailbox connection settings
type IMAPConfig struct {
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	TLS        bool          `json:"tls"`
	Username   string        `json:"username"`
	Password   string        `json:"password"`
	AuthMethod string        `json:"auth_method"`
	Folder     string        `json:"folder"`
	Timeout    time.Duration `json:"timeout"`

	OAuthClientID     string   `json:"oauth_client_id"`
	OAuthClientSecret string   `json:"oauth_client_secret"`
	OAuthRefreshToken string   `json:"oauth_refresh_token"`
	OAuthTokenURL     string   `json:"oauth_token_url"`
	OAuthScopes       []string `json:"oauth_scopes"`
}

// ScanConfig holds scan scheduling settings
type ScanConfig struct {
	MaxAgeDays int           `json:"max_age_days"`
	Schedule   string        `json:"schedule"`
	Timeout    time.Duration `json:"timeout"`
}

// CarrierConfig selects which carrier rules are scanned and how they are
// customized
type CarrierConfig struct {
	Keys      []string                 `json:"keys"`
	DHLAPIKey string                   `json:"dhl_api_key"`
	Overrides map[string]carriers.Rule `json:"overrides"`
}

// APIConfig holds carrier enrichment client settings
type APIConfig struct {
	Timeout     time.Duration `json:"timeout"`
	UserAgent   string        `json:"user_agent"`
	RateLimit   float64       `json:"rate_limit"`
	Burst       int           `json:"burst"`
	Concurrency int           `json:"concurrency"`
	EnrichAll   bool          `json:"enrich_all"`
}

// CacheConfig holds enrichment cache settings
type CacheConfig struct {
	Disabled bool          `json:"disabled"`
	TTL      time.Duration `json:"ttl"`
	Backend  string        `json:"backend"`
	RedisURL string        `json:"redis_url"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	RefreshCooldown time.Duration `json:"refresh_cooldown"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	// AdminAPIKey protects the admin routes. Empty disables them.
	AdminAPIKey string `json:"admin_api_key"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// KeyringConfig selects where mailbox passwords are looked up
type KeyringConfig struct {
	Disabled bool   `json:"disabled"`
	Backend  string `json:"backend"`
	FileDir  string `json:"file_dir"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Scan.MaxAgeDays < 1 {
		return fmt.Errorf("scan max_age_days must be at least 1")
	}
	if c.Scan.Schedule == "" {
		return fmt.Errorf("scan schedule cannot be empty")
	}

	switch c.IMAP.AuthMethod {
	case email.AuthPassword:
	case email.AuthXOAuth2, email.AuthOAuthBearer:
		if c.IMAP.OAuthClientID == "" || c.IMAP.OAuthRefreshToken == "" {
			return fmt.Errorf("imap oauth_client_id and oauth_refresh_token are required for %s", c.IMAP.AuthMethod)
		}
	default:
		return fmt.Errorf("invalid imap auth_method: %s (must be one of: %s, %s, %s)",
			c.IMAP.AuthMethod, email.AuthPassword, email.AuthXOAuth2, email.AuthOAuthBearer)
	}

	if c.IMAP.Port < 0 || c.IMAP.Port > 65535 {
		return fmt.Errorf("imap port must be between 0 and 65535")
	}

	if len(c.Carrier.Keys) == 0 {
		return fmt.Errorf("at least one carrier must be selected")
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("api rate_limit must be non-negative")
	}
	if c.API.Concurrency < 1 {
		return fmt.Errorf("api concurrency must be at least 1")
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendSQLite:
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// RequireIMAP checks that the mailbox settings needed to connect are present
func (c *Config) RequireIMAP() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("imap host is required")
	}
	if c.IMAP.Username == "" {
		return fmt.Errorf("imap username is required")
	}
	return nil
}

// MailboxConfig converts the IMAP section into the mailbox client settings
func (c *Config) MailboxConfig() email.IMAPConfig {
	return email.IMAPConfig{
		Host:       c.IMAP.Host,
		Port:       c.IMAP.Port,
		TLS:        c.IMAP.TLS,
		Username:   c.IMAP.Username,
		Password:   c.IMAP.Password,
		AuthMethod: c.IMAP.AuthMethod,
		Timeout:    c.IMAP.Timeout,
		OAuth: email.OAuthConfig{
			ClientID:     c.IMAP.OAuthClientID,
			ClientSecret: c.IMAP.OAuthClientSecret,
			RefreshToken: c.IMAP.OAuthRefreshToken,
			TokenURL:     c.IMAP.OAuthTokenURL,
			Scopes:       c.IMAP.OAuthScopes,
		},
	}
}

// ApplyCarriers layers the configured overrides and the DHL API key onto
// registry
func (c *Config) ApplyCarriers(registry *carriers.Registry) error {
	for key, rule := range c.Carrier.Overrides {
		if rule.Key == "" {
			rule.Key = key
		}
		if err := registry.Override(rule); err != nil {
			return fmt.Errorf("carrier override %s: %w", key, err)
		}
	}
	if c.Carrier.DHLAPIKey != "" {
		if err := registry.Override(carriers.Rule{Key: "DHL", APIKey: c.Carrier.DHLAPIKey}); err != nil {
			return err
		}
	}
	return nil
}

// Address returns the server listen address
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ParseLogLevel maps a level name to a slog level
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
}

// ToJSON serializes the configuration to JSON with secrets redacted
func (c *Config) ToJSON() (string, error) {
	safe := *c
	safe.IMAP.Password = redact(safe.IMAP.Password)
	safe.IMAP.OAuthClientSecret = redact(safe.IMAP.OAuthClientSecret)
	safe.IMAP.OAuthRefreshToken = redact(safe.IMAP.OAuthRefreshToken)
	safe.Carrier.DHLAPIKey = redact(safe.Carrier.DHLAPIKey)
	safe.Server.AdminAPIKey = redact(safe.Server.AdminAPIKey)
	safe.Cache.RedisURL = redactURL(safe.Cache.RedisURL)

	data, err := json.MarshalIndent(safe, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

// redactURL hides the userinfo of a connection URL
func redactURL(value string) string {
	scheme, rest, ok := strings.Cut(value, "://")
	if !ok {
		return value
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return value
	}
	return scheme + "://***@" + rest[at+1:]
}
