package config

import "time"

// ResourceWatchdogConfig holds limits for the process resource watchdog.
type ResourceWatchdogConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	MaxMemoryMB   int64         `json:"max_memory_mb,omitempty" yaml:"max_memory_mb,omitempty" validate:"omitempty,min=16"`
	CheckSeconds  int           `json:"check_seconds,omitempty" yaml:"check_seconds,omitempty" validate:"omitempty,min=1"`
	CheckInterval time.Duration `json:"-" yaml:"-"`
}

// NewDefaultResourceWatchdogConfig creates default watchdog configuration
func NewDefaultResourceWatchdogConfig() ResourceWatchdogConfig {
	return ResourceWatchdogConfig{
		Enabled:       true,
		MaxMemoryMB:   DefaultMaxMemoryMB,
		CheckSeconds:  DefaultResourceCheckSeconds,
		CheckInterval: time.Duration(DefaultResourceCheckSeconds) * time.Second,
	}
}

// ApplyDurations recomputes derived duration fields after loading from a file.
func (rc *ResourceWatchdogConfig) ApplyDurations() {
	if rc.CheckSeconds > 0 {
		rc.CheckInterval = time.Duration(rc.CheckSeconds) * time.Second
	}
}
