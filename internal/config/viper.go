package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/email"
)

// EnvPrefix is the prefix of every environment variable the tracker reads
const EnvPrefix = "PARCEL_TRACKER"

// Load reads configuration from the default search paths and the environment
func Load() (*Config, error) {
	return LoadWithViper(viper.New())
}

// LoadWithFile reads configuration from a specific file and the environment
func LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return Load()
	}
	if err := ValidateConfigFilePath(configFile); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(configFile)
	return LoadWithViper(v)
}

// LoadWithViper loads configuration using v. Flags bound to v before the call
// take precedence over the file and the environment.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	setupEnvBinding(v)

	if err := loadConfigFile(v); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := &Config{}
	if err := unmarshalConfig(v, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// setDefaults sets default values
func setDefaults(v *viper.Viper) {
	// IMAP defaults
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.auth_method", email.AuthPassword)
	v.SetDefault("imap.folder", "INBOX")
	v.SetDefault("imap.timeout", "30s")
	v.SetDefault("imap.oauth_token_url", "")

	// Scan defaults
	v.SetDefault("scan.max_age_days", 10)
	v.SetDefault("scan.schedule", "@every 60m")
	v.SetDefault("scan.timeout", "5m")

	// Carrier defaults
	v.SetDefault("carrier.keys", "DHL")
	v.SetDefault("carrier.dhl_api_key", "")

	// Enrichment API defaults
	v.SetDefault("api.timeout", carriers.DefaultTimeout.String())
	v.SetDefault("api.user_agent", "parcel-tracker/1.0")
	v.SetDefault("api.rate_limit", 1.0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("api.concurrency", 4)
	v.SetDefault("api.enrich_all", true)

	// Cache defaults
	v.SetDefault("cache.disabled", false)
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.redis_url", "")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.refresh_cooldown", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_api_key", "")

	// Database defaults
	v.SetDefault("database.path", "./parcel-tracker.db")

	// Keyring defaults
	v.SetDefault("keyring.disabled", false)
	v.SetDefault("keyring.backend", "")
	v.SetDefault("keyring.file_dir", "")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// setupEnvBinding binds PARCEL_TRACKER_* environment variables
func setupEnvBinding(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envBindings := map[string]string{
		"imap.host":                "IMAP_HOST",
		"imap.port":                "IMAP_PORT",
		"imap.tls":                 "IMAP_TLS",
		"imap.username":            "IMAP_USERNAME",
		"imap.password":            "IMAP_PASSWORD",
		"imap.auth_method":         "IMAP_AUTH_METHOD",
		"imap.folder":              "IMAP_FOLDER",
		"imap.timeout":             "IMAP_TIMEOUT",
		"imap.oauth_client_id":     "IMAP_OAUTH_CLIENT_ID",
		"imap.oauth_client_secret": "IMAP_OAUTH_CLIENT_SECRET",
		"imap.oauth_refresh_token": "IMAP_OAUTH_REFRESH_TOKEN",
		"imap.oauth_token_url":     "IMAP_OAUTH_TOKEN_URL",
		"imap.oauth_scopes":        "IMAP_OAUTH_SCOPES",
		"scan.max_age_days":        "SCAN_MAX_AGE_DAYS",
		"scan.schedule":            "SCAN_SCHEDULE",
		"scan.timeout":             "SCAN_TIMEOUT",
		"carrier.keys":             "CARRIERS",
		"carrier.dhl_api_key":      "DHL_API_KEY",
		"api.timeout":              "API_TIMEOUT",
		"api.user_agent":           "API_USER_AGENT",
		"api.rate_limit":           "API_RATE_LIMIT",
		"api.burst":                "API_BURST",
		"api.concurrency":          "API_CONCURRENCY",
		"api.enrich_all":           "API_ENRICH_ALL",
		"cache.disabled":           "CACHE_DISABLED",
		"cache.ttl":                "CACHE_TTL",
		"cache.backend":            "CACHE_BACKEND",
		"cache.redis_url":          "CACHE_REDIS_URL",
		"server.host":              "SERVER_HOST",
		"server.port":              "SERVER_PORT",
		"server.refresh_cooldown":  "SERVER_REFRESH_COOLDOWN",
		"server.shutdown_timeout":  "SERVER_SHUTDOWN_TIMEOUT",
		"server.admin_api_key":     "ADMIN_API_KEY",
		"database.path":            "DATABASE_PATH",
		"keyring.disabled":         "KEYRING_DISABLED",
		"keyring.backend":          "KEYRING_BACKEND",
		"keyring.file_dir":         "KEYRING_FILE_DIR",
		"log.level":                "LOG_LEVEL",
		"log.format":               "LOG_FORMAT",
	}

	for configKey, envSuffix := range envBindings {
		_ = v.BindEnv(configKey, EnvPrefix+"_"+envSuffix)
	}
}

// loadConfigFile loads the configuration file if one exists
func loadConfigFile(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.parcel-tracker")
		v.SetConfigName("parcel-tracker")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return err
		}
	}
	return nil
}

// unmarshalConfig copies viper values into config
func unmarshalConfig(v *viper.Viper, config *Config) error {
	var err error

	// IMAP configuration
	config.IMAP.Host = v.GetString("imap.host")
	config.IMAP.Port = v.GetInt("imap.port")
	config.IMAP.TLS = v.GetBool("imap.tls")
	config.IMAP.Username = v.GetString("imap.username")
	config.IMAP.Password = v.GetString("imap.password")
	config.IMAP.AuthMethod = strings.ToLower(v.GetString("imap.auth_method"))
	config.IMAP.Folder = v.GetString("imap.folder")
	config.IMAP.OAuthClientID = v.GetString("imap.oauth_client_id")
	config.IMAP.OAuthClientSecret = v.GetString("imap.oauth_client_secret")
	config.IMAP.OAuthRefreshToken = v.GetString("imap.oauth_refresh_token")
	config.IMAP.OAuthTokenURL = v.GetString("imap.oauth_token_url")
	config.IMAP.OAuthScopes = stringList(v, "imap.oauth_scopes")
	if config.IMAP.Timeout, err = parseDuration(v, "imap.timeout"); err != nil {
		return err
	}

	// Scan configuration
	config.Scan.MaxAgeDays = v.GetInt("scan.max_age_days")
	config.Scan.Schedule = v.GetString("scan.schedule")
	if config.Scan.Timeout, err = parseDuration(v, "scan.timeout"); err != nil {
		return err
	}

	// Carrier configuration
	config.Carrier.Keys = upper(stringList(v, "carrier.keys"))
	config.Carrier.DHLAPIKey = v.GetString("carrier.dhl_api_key")
	config.Carrier.Overrides = map[string]carriers.Rule{}
	if v.IsSet("carrier.overrides") {
		if err := v.UnmarshalKey("carrier.overrides", &config.Carrier.Overrides); err != nil {
			return fmt.Errorf("invalid carrier overrides: %w", err)
		}
	}

	// Enrichment API configuration
	if config.API.Timeout, err = parseDuration(v, "api.timeout"); err != nil {
		return err
	}
	config.API.UserAgent = v.GetString("api.user_agent")
	config.API.RateLimit = v.GetFloat64("api.rate_limit")
	config.API.Burst = v.GetInt("api.burst")
	config.API.Concurrency = v.GetInt("api.concurrency")
	config.API.EnrichAll = v.GetBool("api.enrich_all")

	// Cache configuration
	config.Cache.Disabled = v.GetBool("cache.disabled")
	if config.Cache.TTL, err = parseDuration(v, "cache.ttl"); err != nil {
		return err
	}
	config.Cache.Backend = strings.ToLower(v.GetString("cache.backend"))
	config.Cache.RedisURL = v.GetString("cache.redis_url")

	// Server configuration
	config.Server.Host = v.GetString("server.host")
	config.Server.Port = v.GetString("server.port")
	if config.Server.RefreshCooldown, err = parseDuration(v, "server.refresh_cooldown"); err != nil {
		return err
	}
	if config.Server.ShutdownTimeout, err = parseDuration(v, "server.shutdown_timeout"); err != nil {
		return err
	}
	config.Server.AdminAPIKey = v.GetString("server.admin_api_key")

	config.Database.Path = v.GetString("database.path")

	config.Keyring.Disabled = v.GetBool("keyring.disabled")
	config.Keyring.Backend = v.GetString("keyring.backend")
	config.Keyring.FileDir = v.GetString("keyring.file_dir")

	config.Log.Level = v.GetString("log.level")
	config.Log.Format = v.GetString("log.format")

	return nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ReplaceAll(key, ".", " "), err)
	}
	return d, nil
}

// stringList reads key as a list from a file or as a comma-separated string
// from the environment
func stringList(v *viper.Viper, key string) []string {
	switch v.Get(key).(type) {
	case []any, []string:
		return v.GetStringSlice(key)
	}
	return parseStringSlice(v.GetString(key))
}

func upper(values []string) []string {
	for i, s := range values {
		values[i] = strings.ToUpper(s)
	}
	return values
}
