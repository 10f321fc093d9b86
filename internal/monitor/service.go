package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/capture"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/cooldown"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/datastore"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/notifier"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/platform"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/registry"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/rules"
	"github.com/rs/zerolog"
)

// MonitoringService orchestrates attribution monitoring: registry refresh,
// rule reconciliation, capture registration, match polling, retention, and
// cooldown-gated alerting. One instance owns the rule allocator, the cooldown
// manager, and the request store for the whole process.
type MonitoringService struct {
	cfg         *config.MonitorConfig
	detectorCfg config.DetectorConfig
	browser     platform.Browser
	registry    *registry.Registry
	allocator   *rules.Allocator
	matches     *rules.MatchChecker
	listeners   *capture.Listeners
	store       *datastore.RequestStore
	exporter    *datastore.ParquetExporter
	cooldowns   *cooldown.Manager
	alerts      *notifier.AlertHelper
	watchdog    *ResourceWatchdog
	logger      zerolog.Logger

	mu      sync.Mutex
	running bool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
	wg            sync.WaitGroup
}

// Dependencies bundles the collaborators the service orchestrates.
type Dependencies struct {
	Browser   platform.Browser
	Registry  *registry.Registry
	Allocator *rules.Allocator
	Matches   *rules.MatchChecker
	Listeners *capture.Listeners
	Store     *datastore.RequestStore
	Exporter  *datastore.ParquetExporter
	Cooldowns *cooldown.Manager
	Alerts    *notifier.AlertHelper
	Watchdog  *ResourceWatchdog
}

// NewMonitoringService creates a new instance of MonitoringService.
func NewMonitoringService(
	monitorCfg *config.MonitorConfig,
	detectorCfg config.DetectorConfig,
	deps Dependencies,
	baseLogger zerolog.Logger,
) *MonitoringService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MonitoringService{
		cfg:           monitorCfg,
		detectorCfg:   detectorCfg,
		browser:       deps.Browser,
		registry:      deps.Registry,
		allocator:     deps.Allocator,
		matches:       deps.Matches,
		listeners:     deps.Listeners,
		store:         deps.Store,
		exporter:      deps.Exporter,
		cooldowns:     deps.Cooldowns,
		alerts:        deps.Alerts,
		watchdog:      deps.Watchdog,
		logger:        baseLogger.With().Str("component", "MonitoringService").Logger(),
		serviceCtx:    ctx,
		serviceCancel: cancel,
	}
}

// Start brings the monitor up: refresh the registry, reconcile rules against
// the platform (restart is a first-class control-flow path, so this always
// runs), register capture listeners, and start the periodic loops.
func (s *MonitoringService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug().Msg("Monitor already running")
		return nil
	}
	s.running = true
	// A previous Stop cancelled the service context; the loops and lifecycle
	// callbacks need a live one.
	s.serviceCtx, s.serviceCancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if !s.cfg.Enabled {
		s.logger.Info().Msg("Monitoring disabled by configuration")
		return nil
	}

	s.logger.Info().Msg("Starting monitoring service")

	s.wireLifecycle()
	s.registry.Refresh(ctx)

	if err := s.allocator.Reconcile(ctx); err != nil {
		// Platform hiccups retry on the next natural trigger; monitoring of
		// the direct channel continues meanwhile.
		s.logger.Warn().Err(err).Msg("Initial reconciliation incomplete")
	}

	s.listeners.Register(s.handleRecord)

	s.wg.Add(3)
	go s.matchPollLoop()
	go s.retentionLoop()
	go s.analysisLoop()

	if s.watchdog != nil {
		s.watchdog.Start(s.serviceCtx)
	}

	s.logger.Info().Msg("Monitoring service started")
	return nil
}

// Stop unregisters listeners and releases all allocated rules before
// returning. A stop-then-immediate-start sequence never double-registers.
func (s *MonitoringService) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping monitoring service")

	s.serviceCancel()
	s.wg.Wait()

	s.listeners.Unregister()
	s.allocator.ReleaseAll(ctx)
	s.store.Flush()

	if s.watchdog != nil {
		s.watchdog.Stop()
	}

	s.logger.Info().Msg("Monitoring service stopped")
}

// wireLifecycle connects platform install/uninstall notifications through the
// registry into the rule allocator.
func (s *MonitoringService) wireLifecycle() {
	s.registry.SetLifecycleCallbacks(
		func(info models.ExtensionInfo) {
			if err := s.allocator.Allocate(s.serviceCtx, info.ID); err != nil {
				s.logger.Warn().Err(err).Str("extension_id", info.ID).Msg("Rule allocation on install failed")
			}
		},
		func(extensionID string) {
			if err := s.allocator.Release(s.serviceCtx, extensionID); err != nil {
				s.logger.Warn().Err(err).Str("extension_id", extensionID).Msg("Rule release on uninstall failed")
			}
		},
	)

	s.browser.SetLifecycleHandlers(
		func(info models.ExtensionInfo) { s.registry.HandleInstalled(s.serviceCtx, info) },
		func(extensionID string) { s.registry.HandleUninstalled(s.serviceCtx, extensionID) },
	)
}

// handleRecord is the shared sink for both capture channels.
func (s *MonitoringService) handleRecord(record models.NetworkRequestRecord) {
	if err := s.store.Append(record); err != nil {
		s.logger.Warn().Err(err).Str("url", record.URL).Msg("Record not persisted")
	}
	s.alerts.EmitExtensionRequest(record)
}

// matchPollLoop periodically drains the rule-match diagnostic channel.
func (s *MonitoringService) matchPollLoop() {
	defer s.wg.Done()

	interval := s.cfg.MatchPollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.serviceCtx.Done():
			return
		case <-ticker.C:
			s.CheckMatches(s.serviceCtx)
		}
	}
}

// CheckMatches drains pending match diagnostics into the capture pipeline.
func (s *MonitoringService) CheckMatches(ctx context.Context) {
	records, err := s.matches.CheckMatches(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Match diagnostics poll failed")
		return
	}
	for _, record := range records {
		s.listeners.Submit(record)
	}
}

// retentionLoop periodically enforces the stored-request cap.
func (s *MonitoringService) retentionLoop() {
	defer s.wg.Done()

	interval := s.cfg.RetentionInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.serviceCtx.Done():
			return
		case <-ticker.C:
			s.store.Flush()
			if _, err := s.store.EnforceRetention(s.cfg.MaxStoredRequests); err != nil {
				s.logger.Warn().Err(err).Msg("Retention enforcement failed")
			}
		}
	}
}

// ApplyConfig tears down and rebuilds listeners and rules under the new
// monitor configuration. From the caller's perspective the swap is atomic: no
// partially-applied configuration is ever observable.
func (s *MonitoringService) ApplyConfig(ctx context.Context, newCfg config.MonitorConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info().Msg("Applying updated monitor configuration")

	s.listeners.Unregister()
	s.allocator.ReleaseAll(ctx)

	newCfg.ApplyDurations()
	*s.cfg = newCfg

	if !s.cfg.Enabled {
		s.logger.Info().Msg("Monitoring disabled by updated configuration")
		return nil
	}

	s.registry.Refresh(ctx)
	if err := s.allocator.Reconcile(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Reconciliation after config update incomplete")
	}
	s.listeners.Register(s.handleRecord)
	return nil
}

// ExportRecords writes the full request log to a parquet file and returns its
// path.
func (s *MonitoringService) ExportRecords() (string, int, error) {
	return s.exporter.Export()
}
