package config

import "time"

// MonitorConfig defines configuration for the network attribution monitor.
type MonitorConfig struct {
	Enabled             bool     `json:"enabled" yaml:"enabled"`
	CaptureAllRequests  bool     `json:"capture_all_requests" yaml:"capture_all_requests"`
	ExcludeOwnExtension bool     `json:"exclude_own_extension" yaml:"exclude_own_extension"`
	OwnExtensionID      string   `json:"own_extension_id,omitempty" yaml:"own_extension_id,omitempty"`
	ExcludedDomains     []string `json:"excluded_domains,omitempty" yaml:"excluded_domains,omitempty"`
	ExcludedExtensions  []string `json:"excluded_extensions,omitempty" yaml:"excluded_extensions,omitempty"`
	MaxStoredRequests   int      `json:"max_stored_requests,omitempty" yaml:"max_stored_requests,omitempty" validate:"omitempty,min=1"`

	// MaxRules is the size of the declarative rule pool the platform grants.
	MaxRules int `json:"max_rules,omitempty" yaml:"max_rules,omitempty" validate:"omitempty,min=1"`

	// DedupWindowMs is the tolerance within which a rule-match record that
	// duplicates a direct-observation record is dropped.
	DedupWindowMs int           `json:"dedup_window_ms,omitempty" yaml:"dedup_window_ms,omitempty" validate:"omitempty,min=1"`
	DedupWindow   time.Duration `json:"-" yaml:"-"`

	MatchPollIntervalSeconds int           `json:"match_poll_interval_seconds,omitempty" yaml:"match_poll_interval_seconds,omitempty" validate:"omitempty,min=1"`
	MatchPollInterval        time.Duration `json:"-" yaml:"-"`

	RetentionIntervalSeconds int           `json:"retention_interval_seconds,omitempty" yaml:"retention_interval_seconds,omitempty" validate:"omitempty,min=1"`
	RetentionInterval        time.Duration `json:"-" yaml:"-"`

	AnalysisIntervalSeconds int           `json:"analysis_interval_seconds,omitempty" yaml:"analysis_interval_seconds,omitempty" validate:"omitempty,min=1"`
	AnalysisInterval        time.Duration `json:"-" yaml:"-"`
}

// NewDefaultMonitorConfig creates default monitor configuration
func NewDefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:                  true,
		CaptureAllRequests:       false,
		ExcludeOwnExtension:      true,
		ExcludedDomains:          []string{},
		ExcludedExtensions:       []string{},
		MaxStoredRequests:        DefaultMaxStored,
		MaxRules:                 DefaultMaxRules,
		DedupWindowMs:            2000,
		DedupWindow:              2 * time.Second,
		MatchPollIntervalSeconds: 30,
		MatchPollInterval:        30 * time.Second,
		RetentionIntervalSeconds: 300,
		RetentionInterval:        5 * time.Minute,
		AnalysisIntervalSeconds:  600,
		AnalysisInterval:         10 * time.Minute,
	}
}

// ApplyDurations recomputes the derived duration fields from their
// second/millisecond counterparts after loading from a file.
func (mc *MonitorConfig) ApplyDurations() {
	if mc.DedupWindowMs > 0 {
		mc.DedupWindow = time.Duration(mc.DedupWindowMs) * time.Millisecond
	}
	if mc.MatchPollIntervalSeconds > 0 {
		mc.MatchPollInterval = time.Duration(mc.MatchPollIntervalSeconds) * time.Second
	}
	if mc.RetentionIntervalSeconds > 0 {
		mc.RetentionInterval = time.Duration(mc.RetentionIntervalSeconds) * time.Second
	}
	if mc.AnalysisIntervalSeconds > 0 {
		mc.AnalysisInterval = time.Duration(mc.AnalysisIntervalSeconds) * time.Second
	}
}

// IsExtensionExcluded reports whether the given extension id is excluded from
// rule allocation and capture.
func (mc *MonitorConfig) IsExtensionExcluded(extensionID string) bool {
	if mc.ExcludeOwnExtension && mc.OwnExtensionID != "" && extensionID == mc.OwnExtensionID {
		return true
	}
	for _, id := range mc.ExcludedExtensions {
		if id == extensionID {
			return true
		}
	}
	return false
}

// IsDomainExcluded reports whether the given domain is excluded from capture.
func (mc *MonitorConfig) IsDomainExcluded(domain string) bool {
	for _, d := range mc.ExcludedDomains {
		if d == domain {
			return true
		}
	}
	return false
}
