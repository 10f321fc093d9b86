package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/capture"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/cooldown"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/datastore"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/logger"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/monitor"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/notifier"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/platform"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/registry"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/rules"
	"github.com/rs/zerolog"
)

func main() {
	fmt.Println("Pleno Audit monitor starting...")

	configFile := flag.String("config", "", "Path to the YAML/JSON configuration file. If not set, searches default locations.")
	configFileAlias := flag.String("c", "", "Alias for -config")
	dryRun := flag.Bool("dry-run", false, "Run against an in-memory platform instead of the browser bridge")
	exportOnly := flag.Bool("export", false, "Export the stored request log to a parquet file and exit")
	flag.Parse()

	if *configFile == "" && *configFileAlias != "" {
		*configFile = *configFileAlias
	}

	// Bootstrap logger for the phase before the configured logger exists.
	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	gCfg, err := config.LoadGlobalConfig(*configFile, bootLogger)
	if err != nil {
		log.Fatalf("[FATAL] Could not load config using path '%s': %v", *configFile, err)
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Could not initialize logger: %v", err)
	}
	zLogger.Info().Msg("Logger initialized")

	if err := config.ValidateConfig(gCfg); err != nil {
		zLogger.Fatal().Err(err).Msg("Configuration validation failed")
	}
	zLogger.Info().Msg("Configuration validated")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Platform connection: the browser bridge in normal runs, an in-memory
	// fake in --dry-run.
	var browser platform.Browser
	if *dryRun {
		zLogger.Info().Msg("Dry-run mode: using in-memory platform")
		browser = platform.NewMemoryBrowser(gCfg.MonitorConfig.MaxRules)
	} else {
		bridge := platform.NewBridge(gCfg.PlatformConfig, zLogger)
		if err := bridge.Connect(ctx); err != nil {
			zLogger.Fatal().Err(err).Str("bridge_url", gCfg.PlatformConfig.BridgeURL).Msg("Could not connect to browser bridge")
		}
		browser = bridge
	}

	db, err := datastore.NewDB(gCfg.StorageConfig.DatabasePath, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Str("path", gCfg.StorageConfig.DatabasePath).Msg("Could not open request database")
	}
	defer db.Close()

	requestStore := datastore.NewRequestStore(db, gCfg.StorageConfig, zLogger)
	defer requestStore.Close()
	ruleStore := datastore.NewRuleStore(db, zLogger)
	exporter := datastore.NewParquetExporter(requestStore, gCfg.StorageConfig, zLogger)

	if *exportOnly {
		path, count, err := exporter.Export()
		if err != nil {
			zLogger.Fatal().Err(err).Msg("Parquet export failed")
		}
		zLogger.Info().Str("path", path).Int("records", count).Msg("Parquet export completed")
		return
	}

	cooldownPath := filepath.Join(gCfg.StorageConfig.StateDir, "alert_cooldowns.json")
	cooldowns := cooldown.NewManager(cooldownPath, gCfg.NotificationConfig.CooldownWindow, zLogger)

	webhookTimeout := time.Duration(gCfg.NotificationConfig.WebhookTimeoutSeconds) * time.Second
	webhookNotifier := notifier.NewWebhookNotifier(zLogger, &http.Client{Timeout: webhookTimeout}, gCfg.NotificationConfig.RetryAttempts)
	alertHelper := notifier.NewAlertHelper(webhookNotifier, cooldowns, gCfg.NotificationConfig, zLogger)

	extensionRegistry := registry.New(browser, zLogger)
	allocator := rules.NewAllocator(browser, ruleStore, extensionRegistry, &gCfg.MonitorConfig, zLogger)
	matchChecker := rules.NewMatchChecker(browser, allocator, extensionRegistry)

	dedup := capture.NewDeduplicator(gCfg.MonitorConfig.DedupWindow)
	listeners := capture.NewListeners(browser, extensionRegistry, dedup, &gCfg.MonitorConfig, zLogger)

	watchdog := monitor.NewResourceWatchdog(gCfg.ResourceConfig, zLogger)

	monitoringService := monitor.NewMonitoringService(
		&gCfg.MonitorConfig,
		gCfg.DetectorConfig,
		monitor.Dependencies{
			Browser:   browser,
			Registry:  extensionRegistry,
			Allocator: allocator,
			Matches:   matchChecker,
			Listeners: listeners,
			Store:     requestStore,
			Exporter:  exporter,
			Cooldowns: cooldowns,
			Alerts:    alertHelper,
			Watchdog:  watchdog,
		},
		zLogger,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		zLogger.Info().Str("signal", sig.String()).Msg("Received interrupt signal, initiating graceful shutdown...")
		cancel()
	}()

	if err := monitoringService.Start(ctx); err != nil {
		zLogger.Fatal().Err(err).Msg("Monitoring service failed to start")
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	monitoringService.Stop(shutdownCtx)

	if err := browser.Close(); err != nil {
		zLogger.Warn().Err(err).Msg("Platform connection close failed")
	}

	zLogger.Info().Msg("Pleno Audit monitor finished")
}
