package config

const (
	// Rule pool defaults
	DefaultMaxRules = 64

	// Storage defaults
	DefaultDatabaseFile  = "data/plenoaudit.db"
	DefaultStateDir      = "data/state"
	DefaultExportDir     = "data/exports"
	DefaultMaxStored     = 10000
	DefaultParquetCodec  = "zstd"
	DefaultExportBatch   = 1000

	// Detector defaults
	DefaultBulkRequestThreshold     = 100
	DefaultBulkWindowMinutes        = 5
	DefaultLateNightStartHour       = 0
	DefaultLateNightEndHour         = 5
	DefaultEncodedMinLength         = 64
	DefaultDomainDiversityThreshold = 20
	DefaultDiversityWindowMinutes   = 10

	// Notification defaults
	DefaultAlertCooldownSeconds = 3600
	DefaultWebhookTimeoutSecs   = 20
	DefaultWebhookRetryAttempts = 2

	// Platform bridge defaults
	DefaultBridgeURL             = "ws://127.0.0.1:18792/audit"
	DefaultHandshakeTimeoutSecs  = 10
	DefaultReconnectMinSeconds   = 1
	DefaultReconnectMaxSeconds   = 60

	// Resource watchdog defaults
	DefaultMaxMemoryMB          = 512
	DefaultResourceCheckSeconds = 30
)
