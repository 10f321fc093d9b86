package config

import (
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/logger"
)

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	LogConfig          logger.FileLogConfig   `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	MonitorConfig      MonitorConfig          `json:"monitor_config,omitempty" yaml:"monitor_config,omitempty"`
	StorageConfig      StorageConfig          `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	DetectorConfig     DetectorConfig         `json:"detector_config,omitempty" yaml:"detector_config,omitempty"`
	NotificationConfig NotificationConfig     `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	PlatformConfig     PlatformConfig         `json:"platform_config,omitempty" yaml:"platform_config,omitempty"`
	ResourceConfig     ResourceWatchdogConfig `json:"resource_config,omitempty" yaml:"resource_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:          logger.NewDefaultFileLogConfig(),
		MonitorConfig:      NewDefaultMonitorConfig(),
		StorageConfig:      NewDefaultStorageConfig(),
		DetectorConfig:     NewDefaultDetectorConfig(),
		NotificationConfig: NewDefaultNotificationConfig(),
		PlatformConfig:     NewDefaultPlatformConfig(),
		ResourceConfig:     NewDefaultResourceWatchdogConfig(),
	}
}

// ApplyDurations recomputes all derived duration fields. Must be called after
// overlaying file content onto defaults.
func (gc *GlobalConfig) ApplyDurations() {
	gc.MonitorConfig.ApplyDurations()
	gc.DetectorConfig.ApplyDurations()
	gc.NotificationConfig.ApplyDurations()
	gc.PlatformConfig.ApplyDurations()
	gc.ResourceConfig.ApplyDurations()
}
