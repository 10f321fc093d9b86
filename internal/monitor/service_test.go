package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceHarness struct {
	service   *MonitoringService
	browser   *platform.MemoryBrowser
	store     *datastore.RequestStore
	allocator *rules.Allocator
	alerts    *notifier.AlertHelper
	cfg       *config.MonitorConfig
}

func newServiceHarness(t *testing.T, mutate func(*config.GlobalConfig)) *serviceHarness {
	t.Helper()
	gCfg := config.NewDefaultGlobalConfig()
	if mutate != nil {
		mutate(gCfg)
	}

	dir := t.TempDir()
	db, err := datastore.NewDB(filepath.Join(dir, "requests.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := datastore.NewRequestStore(db, gCfg.StorageConfig, zerolog.Nop())
	t.Cleanup(store.Close)
	ruleStore := datastore.NewRuleStore(db, zerolog.Nop())
	exporter := datastore.NewParquetExporter(store, gCfg.StorageConfig, zerolog.Nop())

	browser := platform.NewMemoryBrowser(gCfg.MonitorConfig.MaxRules)
	reg := registry.New(browser, zerolog.Nop())
	allocator := rules.NewAllocator(browser, ruleStore, reg, &gCfg.MonitorConfig, zerolog.Nop())
	matches := rules.NewMatchChecker(browser, allocator, reg)
	dedup := capture.NewDeduplicator(gCfg.MonitorConfig.DedupWindow)
	listeners := capture.NewListeners(browser, reg, dedup, &gCfg.MonitorConfig, zerolog.Nop())

	cooldowns := cooldown.NewManager(filepath.Join(dir, "cooldowns.json"), gCfg.NotificationConfig.CooldownWindow, zerolog.Nop())
	webhook := notifier.NewWebhookNotifier(zerolog.Nop(), nil, 0)
	alerts := notifier.NewAlertHelper(webhook, cooldowns, gCfg.NotificationConfig, zerolog.Nop())

	service := NewMonitoringService(&gCfg.MonitorConfig, gCfg.DetectorConfig, Dependencies{
		Browser:   browser,
		Registry:  reg,
		Allocator: allocator,
		Matches:   matches,
		Listeners: listeners,
		Store:     store,
		Exporter:  exporter,
		Cooldowns: cooldowns,
		Alerts:    alerts,
	}, zerolog.Nop())

	return &serviceHarness{
		service:   service,
		browser:   browser,
		store:     store,
		allocator: allocator,
		alerts:    alerts,
		cfg:       &gCfg.MonitorConfig,
	}
}

func TestStartReconcilesAndCaptures(t *testing.T) {
	h := newServiceHarness(t, nil)
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-a", Name: "Extension A"})
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	defer h.service.Stop(ctx)

	// Reconciliation allocated a rule for the installed extension.
	_, ok := h.allocator.RuleFor("ext-a")
	assert.True(t, ok)

	events := make([]models.ExtensionRequestEvent, 0)
	h.alerts.Subscribe(func(event models.ExtensionRequestEvent) {
		events = append(events, event)
	})

	h.browser.EmitRequest(models.RawRequestEvent{
		URL:       "https://api.example.com/sync",
		Method:    "POST",
		Initiator: "chrome-extension://ext-a",
		Timestamp: time.Now(),
	})
	h.store.Flush()

	records, total, err := h.store.Query(datastore.QueryOptions{Limit: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "ext-a", records[0].ExtensionID)

	require.Len(t, events, 1)
	assert.Equal(t, "ext-a", events[0].ExtensionID)
}

func TestInstallUninstallDrivesRuleLifecycle(t *testing.T) {
	h := newServiceHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	defer h.service.Stop(ctx)

	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-new", Name: "New"})
	_, ok := h.allocator.RuleFor("ext-new")
	assert.True(t, ok)

	h.browser.UninstallExtension("ext-new")
	_, ok = h.allocator.RuleFor("ext-new")
	assert.False(t, ok)
}

func TestCheckMatchesFeedsRuleMatchRecords(t *testing.T) {
	h := newServiceHarness(t, nil)
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-a", Name: "Extension A"})
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	defer h.service.Stop(ctx)

	ruleID, ok := h.allocator.RuleFor("ext-a")
	require.True(t, ok)

	h.browser.QueueMatch(models.RuleMatchEvent{
		RuleID:    ruleID,
		URL:       "https://hidden.example.org/ping",
		Timestamp: time.Now(),
	})
	h.service.CheckMatches(ctx)
	h.store.Flush()

	records, _, err := h.store.Query(datastore.QueryOptions{Limit: -1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.DetectedByRuleMatch, records[0].DetectedBy)
	assert.Equal(t, "ext-a", records[0].ExtensionID)
}

func TestStopReleasesRulesAndStopsCapture(t *testing.T) {
	h := newServiceHarness(t, nil)
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-a"})
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	h.service.Stop(ctx)

	assert.Empty(t, h.allocator.ActiveRules())
	platformRules, err := h.browser.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, platformRules)

	h.browser.EmitRequest(models.RawRequestEvent{
		URL:       "https://api.example.com/sync",
		Initiator: "chrome-extension://ext-a",
		Timestamp: time.Now(),
	})
	h.store.Flush()

	_, total, err := h.store.Query(datastore.QueryOptions{Limit: -1})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRestartRevivesServiceContext(t *testing.T) {
	h := newServiceHarness(t, nil)
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-a", Name: "Extension A"})
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	h.service.Stop(ctx)
	require.NoError(t, h.service.Start(ctx))
	defer h.service.Stop(ctx)

	assert.NoError(t, h.service.serviceCtx.Err())

	// Lifecycle allocations run on the service context; a dead one would
	// leave the new extension without a rule.
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-late", Name: "Late"})
	_, ok := h.allocator.RuleFor("ext-late")
	assert.True(t, ok)

	h.browser.EmitRequest(models.RawRequestEvent{
		URL:       "https://api.example.com/after-restart",
		Initiator: "chrome-extension://ext-a",
		Timestamp: time.Now(),
	})
	h.store.Flush()

	_, total, err := h.store.Query(datastore.QueryOptions{Limit: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDisabledMonitorDoesNotTouchPlatform(t *testing.T) {
	h := newServiceHarness(t, func(gCfg *config.GlobalConfig) {
		gCfg.MonitorConfig.Enabled = false
	})
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-a"})
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	defer h.service.Stop(ctx)

	assert.Empty(t, h.allocator.ActiveRules())
}

func TestApplyConfigRebuildsRules(t *testing.T) {
	h := newServiceHarness(t, nil)
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-a"})
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-b"})
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	defer h.service.Stop(ctx)
	assert.Len(t, h.allocator.ActiveRules(), 2)

	updated := *h.cfg
	updated.ExcludedExtensions = []string{"ext-b"}
	require.NoError(t, h.service.ApplyConfig(ctx, updated))

	active := h.allocator.ActiveRules()
	require.Len(t, active, 1)
	assert.Equal(t, "ext-a", active[0].ExtensionID)
}

func TestRunAnalysisFlagsDiverseTraffic(t *testing.T) {
	h := newServiceHarness(t, nil)
	h.browser.InstallExtension(models.ExtensionInfo{ID: "ext-scatter", Name: "Scatter", Permissions: []string{"tabs"}})
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	defer h.service.Stop(ctx)

	now := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, h.store.Append(models.NetworkRequestRecord{
			ID:            fmt.Sprintf("rec-%02d", i),
			Timestamp:     now.Add(-time.Duration(i) * time.Second),
			URL:           fmt.Sprintf("https://host%02d.example/api", i),
			Method:        "GET",
			Domain:        fmt.Sprintf("host%02d.example", i),
			InitiatorType: models.InitiatorExtension,
			ExtensionID:   "ext-scatter",
			DetectedBy:    models.DetectedByDirectObservation,
		}))
	}

	assessments, err := h.service.RunAnalysis(ctx)
	require.NoError(t, err)
	require.Len(t, assessments, 1)

	assessment := assessments[0]
	assert.Equal(t, "ext-scatter", assessment.ExtensionID)
	assert.GreaterOrEqual(t, assessment.Score, 40)
	found := false
	for _, finding := range assessment.Findings {
		if finding.Kind == models.PatternDomainDiversity {
			found = true
		}
	}
	assert.True(t, found)
}
