package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"parcel-tracking/internal/cache"
	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/config"
	"parcel-tracking/internal/credential"
	"parcel-tracking/internal/database"
	"parcel-tracking/internal/email"
	"parcel-tracking/internal/ratelimit"
	"parcel-tracking/internal/workers"
)

// app holds the components shared by the commands
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *database.DB
	registry *carriers.Registry
	cache    *cache.Manager
	closers  []func()
}

// newApp loads configuration, opens the database and builds the carrier
// registry
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfiguration(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: newLogger(cfg, cmd.ErrOrStderr()),
	}

	if configJSON, err := cfg.ToJSON(); err == nil {
		a.logger.Debug("Configuration details", "config", configJSON)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() { db.Close() })

	if err := a.loadRegistry(cmd.Context()); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases everything the app opened, newest first
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadRegistry layers the stored custom carriers and the configured overrides
// onto the builtin rules
func (a *app) loadRegistry(ctx context.Context) error {
	a.registry = carriers.NewRegistry()

	n, err := a.db.Carriers.LoadInto(ctx, a.registry)
	if err != nil {
		return fmt.Errorf("failed to load custom carriers: %w", err)
	}
	if n > 0 {
		a.logger.Debug("Loaded custom carriers", "count", n)
	}

	if err := a.cfg.ApplyCarriers(a.registry); err != nil {
		return err
	}
	return nil
}

// credentials opens the keyring unless it is disabled
func (a *app) credentials() (*credential.Store, error) {
	if a.cfg.Keyring.Disabled {
		return nil, nil
	}
	return credential.Open(credential.Config{
		Backend: a.cfg.Keyring.Backend,
		FileDir: a.cfg.Keyring.FileDir,
	})
}

// newMailbox builds the IMAP client. Password logins fall back to the keyring
// when no password is configured.
func (a *app) newMailbox(ctx context.Context) (*email.IMAPClient, error) {
	if err := a.cfg.RequireIMAP(); err != nil {
		return nil, err
	}
	mailboxConfig := a.cfg.MailboxConfig()

	var tokenSource oauth2.TokenSource
	if mailboxConfig.UsesOAuth() {
		ts, err := email.NewOAuthTokenSource(ctx, mailboxConfig.OAuth)
		if err != nil {
			return nil, fmt.Errorf("failed to create OAuth token source: %w", err)
		}
		tokenSource = ts
	} else if mailboxConfig.Password == "" {
		store, err := a.credentials()
		if err != nil {
			return nil, err
		}
		password, err := store.ResolvePassword("", mailboxConfig.Host, mailboxConfig.Username)
		if err != nil {
			return nil, fmt.Errorf("no IMAP password configured: %w", err)
		}
		mailboxConfig.Password = password
	}

	return email.NewIMAPClient(mailboxConfig, tokenSource, a.logger), nil
}

// newCache builds the enrichment cache for the configured backend
func (a *app) newCache(ctx context.Context) (*cache.Manager, error) {
	if a.cache != nil {
		return a.cache, nil
	}

	var store cache.Store
	switch a.cfg.Cache.Backend {
	case config.CacheBackendMemory, "":
	case config.CacheBackendSQLite:
		store = a.db.EnrichmentCache
	case config.CacheBackendRedis:
		redisStore, err := cache.NewRedisStore(a.cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := redisStore.Ping(ctx); err != nil {
			redisStore.Close()
			return nil, fmt.Errorf("redis cache unavailable: %w", err)
		}
		a.closers = append(a.closers, func() { redisStore.Close() })
		store = redisStore
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", a.cfg.Cache.Backend)
	}

	manager := cache.NewManager(store, a.cfg.Cache.Disabled, a.cfg.Cache.TTL, a.logger)
	a.closers = append(a.closers, manager.Close)
	a.cache = manager

	a.logger.Debug("Enrichment cache ready",
		"backend", a.cfg.Cache.Backend,
		"disabled", a.cfg.Cache.Disabled,
		"ttl", a.cfg.Cache.TTL)
	return manager, nil
}

// newFactory builds the enrichment client factory. Cached lookups skip the
// rate limiter.
func (a *app) newFactory(ctx context.Context) (*carriers.ClientFactory, error) {
	factory := carriers.NewClientFactory(carriers.Config{
		Timeout:   a.cfg.API.Timeout,
		UserAgent: a.cfg.API.UserAgent,
	}, a.logger)

	if a.cfg.API.RateLimit > 0 {
		burst := a.cfg.API.Burst
		if burst < 1 {
			burst = 1
		}
		factory.Use(carriers.RateLimited(rate.NewLimiter(rate.Limit(a.cfg.API.RateLimit), burst)))
	}

	manager, err := a.newCache(ctx)
	if err != nil {
		return nil, err
	}
	factory.Use(manager.Wrapper())
	return factory, nil
}

// newCoordinator wires the mailbox, scanner and enrichment into a poll
// coordinator
func (a *app) newCoordinator(ctx context.Context) (*workers.Coordinator, error) {
	for _, key := range a.cfg.Carrier.Keys {
		if _, ok := a.registry.Get(key); !ok {
			return nil, fmt.Errorf("%w: %s", workers.ErrUnknownCarrier, key)
		}
	}

	mailbox, err := a.newMailbox(ctx)
	if err != nil {
		return nil, err
	}
	factory, err := a.newFactory(ctx)
	if err != nil {
		return nil, err
	}

	scanner := workers.NewScanner(mailbox, nil, a.logger)
	return workers.NewCoordinator(workers.CoordinatorConfig{
		Folder:      a.cfg.IMAP.Folder,
		Carriers:    a.cfg.Carrier.Keys,
		MaxAgeDays:  a.cfg.Scan.MaxAgeDays,
		Schedule:    a.cfg.Scan.Schedule,
		Timeout:     a.cfg.Scan.Timeout,
		EnrichAll:   a.cfg.API.EnrichAll,
		Concurrency: a.cfg.API.Concurrency,
		Refresh: ratelimit.Policy{
			Disabled: a.cfg.Server.RefreshCooldown == 0,
			Cooldown: a.cfg.Server.RefreshCooldown,
		},
	}, scanner, a.registry, factory, a.logger), nil
}
