package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/parser"
	"parcel-tracking/internal/ratelimit"
)

// DefaultSchedule polls the mailbox once an hour
const DefaultSchedule = "@every 60m"

var (
	// ErrUnknownCarrier is returned when a configured carrier key has no rule
	ErrUnknownCarrier = errors.New("unknown carrier")
	// ErrRefreshLimited is returned by Refresh while the cooldown is active
	ErrRefreshLimited = errors.New("refresh rate limited")
)

// CoordinatorConfig controls the periodic mailbox poll
type CoordinatorConfig struct {
	Folder     string
	Carriers   []string
	MaxAgeDays int
	Schedule   string
	// Timeout bounds a single poll. Zero means no limit.
	Timeout time.Duration
	// EnrichAll enriches every record after the scan instead of during it
	EnrichAll   bool
	Concurrency int
	Refresh     ratelimit.Policy
}

// Snapshot is the result of the latest poll. A failed poll only updates the
// attempt fields. A poll interrupted mid-scan publishes the records found so
// far with Success false and LastError set.
type Snapshot struct {
	RunID       string           `json:"run_id"`
	Records     []TrackingRecord `json:"records"`
	Total       int              `json:"total"`
	Success     bool             `json:"success"`
	LastUpdated time.Time        `json:"last_updated"`
	LastAttempt time.Time        `json:"last_attempt"`
	LastError   string           `json:"last_error,omitempty"`
	Duration    time.Duration    `json:"duration"`
}

// Coordinator polls the mailbox on a schedule and keeps the current set of
// tracking records
type Coordinator struct {
	ctx      context.Context
	cancel   context.CancelFunc
	config   CoordinatorConfig
	scanner  *Scanner
	registry *carriers.Registry
	factory  *carriers.ClientFactory
	cron     *cron.Cron
	paused   atomic.Bool
	logger   *slog.Logger
	now      func() time.Time

	runMu sync.Mutex

	mu                sync.RWMutex
	snapshot          Snapshot
	lastManualRefresh *time.Time
}

// NewCoordinator creates a coordinator. factory may be nil, in which case
// records are never enriched.
func NewCoordinator(config CoordinatorConfig, scanner *Scanner, registry *carriers.Registry, factory *carriers.ClientFactory, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Schedule == "" {
		config.Schedule = DefaultSchedule
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:      ctx,
		cancel:   cancel,
		config:   config,
		scanner:  scanner,
		registry: registry,
		factory:  factory,
		logger:   logger,
		now:      time.Now,
		snapshot: Snapshot{Records: []TrackingRecord{}},
	}
}

// Start schedules periodic polls and runs the first one in the background.
// It fails when the schedule cannot be parsed.
func (c *Coordinator) Start() error {
	c.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.cron.AddFunc(c.config.Schedule, c.scheduledRun); err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", c.config.Schedule, err)
	}

	c.logger.Info("Starting mailbox poll coordinator",
		"schedule", c.config.Schedule,
		"carriers", c.config.Carriers,
		"folder", c.config.Folder,
		"enrich_all", c.config.EnrichAll)

	c.cron.Start()
	go c.scheduledRun()
	return nil
}

// Stop cancels any running poll and waits for scheduled jobs to finish
func (c *Coordinator) Stop() {
	c.logger.Info("Stopping mailbox poll coordinator")
	c.cancel()
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}

// Pause suspends scheduled polls. Manual refreshes still run.
func (c *Coordinator) Pause() {
	c.paused.Store(true)
	c.logger.Info("Mailbox poll coordinator paused")
}

// Resume re-enables scheduled polls
func (c *Coordinator) Resume() {
	c.paused.Store(false)
	c.logger.Info("Mailbox poll coordinator resumed")
}

// IsPaused reports whether scheduled polls are suspended
func (c *Coordinator) IsPaused() bool {
	return c.paused.Load()
}

func (c *Coordinator) scheduledRun() {
	if c.paused.Load() || c.ctx.Err() != nil {
		return
	}
	if _, err := c.Run(c.ctx); err != nil {
		c.logger.Error("Scheduled poll failed", "error", err)
	}
}

// Snapshot returns a copy of the current state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copySnapshot()
}

func (c *Coordinator) copySnapshot() Snapshot {
	s := c.snapshot
	s.Records = append([]TrackingRecord(nil), c.snapshot.Records...)
	if s.Records == nil {
		s.Records = []TrackingRecord{}
	}
	return s
}

// Refresh runs a poll on request. Unless force is set, a refresh within the
// cooldown of the previous one fails with ErrRefreshLimited and the
// remaining wait.
func (c *Coordinator) Refresh(ctx context.Context, force bool) (Snapshot, time.Duration, error) {
	c.mu.Lock()
	result := ratelimit.CheckRefreshRateLimit(c.config.Refresh, c.lastManualRefresh, force)
	if result.ShouldBlock {
		c.mu.Unlock()
		c.logger.Debug("Manual refresh rate limited", "remaining", result.RemainingTime)
		return c.Snapshot(), result.RemainingTime, ErrRefreshLimited
	}
	now := c.now()
	c.lastManualRefresh = &now
	c.mu.Unlock()

	c.logger.Info("Manual refresh requested", "reason", result.Reason)
	snapshot, err := c.Run(ctx)
	return snapshot, 0, err
}

// Run performs one poll: every configured carrier is scanned with a shared
// seen set, the records are sorted by tracking number, enriched and given a
// tracking link. On failure the previous records are kept. When a scan is
// interrupted (ErrPartialScan) the records found so far are published and the
// error is returned alongside the snapshot.
func (c *Coordinator) Run(ctx context.Context) (Snapshot, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	start := c.now()
	logger := c.logger.With("run_id", runID)
	logger.Info("Starting mailbox poll", "carriers", c.config.Carriers)

	records, rules, scanErr := c.scanAll(ctx, logger)
	if scanErr != nil && !errors.Is(scanErr, ErrPartialScan) {
		return c.recordFailure(runID, start, scanErr, logger), scanErr
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TrackingNumber < records[j].TrackingNumber
	})

	if c.config.EnrichAll && c.factory != nil && (scanErr == nil || ctx.Err() == nil) {
		if err := c.enrichAll(ctx, records, rules, logger); err != nil && scanErr == nil {
			return c.recordFailure(runID, start, err, logger), err
		}
	}
	FillServiceURLs(records, rules)

	c.mu.Lock()
	c.snapshot = Snapshot{
		RunID:       runID,
		Records:     records,
		Total:       len(records),
		Success:     scanErr == nil,
		LastUpdated: c.now(),
		LastAttempt: start,
		Duration:    c.now().Sub(start),
	}
	if scanErr != nil {
		c.snapshot.LastError = fmt.Sprintf("run %s: %v", runID, scanErr)
	}
	snapshot := c.copySnapshot()
	c.mu.Unlock()

	if scanErr != nil {
		logger.Warn("Mailbox poll incomplete, publishing partial records",
			"records", snapshot.Total, "error", scanErr)
		return snapshot, scanErr
	}
	logger.Info("Mailbox poll complete", "records", snapshot.Total, "duration", snapshot.Duration)
	return snapshot, nil
}

// scanAll scans every configured carrier. Interrupted scans keep their
// records and the remaining carriers are still scanned; the returned error
// then joins every ErrPartialScan. Any other error aborts the poll.
func (c *Coordinator) scanAll(ctx context.Context, logger *slog.Logger) ([]TrackingRecord, map[string]*carriers.CompiledRule, error) {
	seen := parser.NewSeenSet()
	records := []TrackingRecord{}
	rules := make(map[string]*carriers.CompiledRule, len(c.config.Carriers))
	var partial []error

	for _, key := range c.config.Carriers {
		rule, ok := c.registry.Get(key)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownCarrier, key)
		}
		compiled, err := rule.Compile()
		if err != nil {
			return nil, nil, err
		}
		rules[compiled.Key] = compiled

		req := ScanRequest{
			Folder:         c.config.Folder,
			SearchCriteria: compiled.SearchCriteria,
			Seen:           seen,
			Rule:           compiled,
			MaxAgeDays:     c.config.MaxAgeDays,
		}
		if !c.config.EnrichAll && c.factory != nil {
			if enricher, ok := c.factory.ForRule(rule); ok {
				req.Enricher = enricher
			}
		}

		found, err := c.scanner.Scan(ctx, req)
		if err != nil && !errors.Is(err, ErrPartialScan) {
			return nil, nil, fmt.Errorf("scan %s: %w", compiled.Key, err)
		}
		records = append(records, found...)
		if err != nil {
			logger.Warn("Carrier scan interrupted", "carrier", compiled.Key, "records", len(found), "error", err)
			partial = append(partial, fmt.Errorf("scan %s: %w", compiled.Key, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		logger.Debug("Carrier scan complete", "carrier", compiled.Key, "records", len(found))
	}
	return records, rules, errors.Join(partial...)
}

// enrichAll queries the carrier API for every record whose rule has one.
// Failed lookups degrade to the unknown enrichment.
func (c *Coordinator) enrichAll(ctx context.Context, records []TrackingRecord, rules map[string]*carriers.CompiledRule, logger *slog.Logger) error {
	enrichers := make(map[string]carriers.Enricher, len(rules))
	for key, rule := range rules {
		if e, ok := c.factory.ForRule(rule.Rule); ok {
			enrichers[key] = e
		}
	}
	if len(enrichers) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	for i := range records {
		enricher, ok := enrichers[records[i].Carrier]
		if !ok {
			continue
		}
		record := &records[i]
		g.Go(func() error {
			enrichment, err := carriers.Apply(gctx, enricher, record.TrackingNumber)
			if err != nil {
				logger.Warn("Enrichment failed",
					"carrier", record.Carrier,
					"tracking_number", record.TrackingNumber,
					"error", err)
			}
			record.ApplyEnrichment(enrichment)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Coordinator) recordFailure(runID string, start time.Time, err error, logger *slog.Logger) Snapshot {
	logger.Error("Mailbox poll failed, keeping previous records", "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Success = false
	c.snapshot.LastAttempt = start
	c.snapshot.LastError = fmt.Sprintf("run %s: %v", runID, err)
	c.snapshot.Duration = c.now().Sub(start)
	return c.copySnapshot()
}

// FillServiceURLs gives records without a usable service URL the carrier's
// public tracking link
func FillServiceURLs(records []TrackingRecord, rules map[string]*carriers.CompiledRule) {
	for i := range records {
		if records[i].HasServiceURL() {
			continue
		}
		rule, ok := rules[records[i].Carrier]
		if !ok || rule.TrackingLinkURL == "" {
			continue
		}
		records[i].ServiceURL = carriers.BuildTrackingURL(rule.TrackingLinkURL, records[i].TrackingNumber)
	}
}
