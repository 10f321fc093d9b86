package config

import "time"

// DetectorConfig holds thresholds for the suspicious pattern detectors.
type DetectorConfig struct {
	BulkRequestThreshold int           `json:"bulk_request_threshold,omitempty" yaml:"bulk_request_threshold,omitempty" validate:"omitempty,min=1"`
	BulkWindowMinutes    int           `json:"bulk_window_minutes,omitempty" yaml:"bulk_window_minutes,omitempty" validate:"omitempty,min=1"`
	BulkWindow           time.Duration `json:"-" yaml:"-"`

	// LateNightStartHour/EndHour bound the local hours considered unusual.
	LateNightStartHour int `json:"late_night_start_hour,omitempty" yaml:"late_night_start_hour" validate:"min=0,max=23"`
	LateNightEndHour   int `json:"late_night_end_hour,omitempty" yaml:"late_night_end_hour" validate:"min=0,max=23"`

	// EncodedMinLength is the minimum decoded payload length that counts as a
	// covert-exfiltration proxy signal.
	EncodedMinLength int `json:"encoded_min_length,omitempty" yaml:"encoded_min_length,omitempty" validate:"omitempty,min=8"`

	DomainDiversityThreshold int           `json:"domain_diversity_threshold,omitempty" yaml:"domain_diversity_threshold,omitempty" validate:"omitempty,min=2"`
	DiversityWindowMinutes   int           `json:"diversity_window_minutes,omitempty" yaml:"diversity_window_minutes,omitempty" validate:"omitempty,min=1"`
	DiversityWindow          time.Duration `json:"-" yaml:"-"`
}

// NewDefaultDetectorConfig creates default detector configuration
func NewDefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BulkRequestThreshold:     DefaultBulkRequestThreshold,
		BulkWindowMinutes:        DefaultBulkWindowMinutes,
		BulkWindow:               time.Duration(DefaultBulkWindowMinutes) * time.Minute,
		LateNightStartHour:       DefaultLateNightStartHour,
		LateNightEndHour:         DefaultLateNightEndHour,
		EncodedMinLength:         DefaultEncodedMinLength,
		DomainDiversityThreshold: DefaultDomainDiversityThreshold,
		DiversityWindowMinutes:   DefaultDiversityWindowMinutes,
		DiversityWindow:          time.Duration(DefaultDiversityWindowMinutes) * time.Minute,
	}
}

// ApplyDurations recomputes derived duration fields after loading from a file.
func (dc *DetectorConfig) ApplyDurations() {
	if dc.BulkWindowMinutes > 0 {
		dc.BulkWindow = time.Duration(dc.BulkWindowMinutes) * time.Minute
	}
	if dc.DiversityWindowMinutes > 0 {
		dc.DiversityWindow = time.Duration(dc.DiversityWindowMinutes) * time.Minute
	}
}
