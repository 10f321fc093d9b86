package detector

import (
	"fmt"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
)

// Detector is a pure function over a window of records plus thresholds. All
// detectors are independent and composable; callers run the subset they need
// and merge findings.
type Detector func(records []models.NetworkRequestRecord, cfg config.DetectorConfig, now time.Time) []models.SuspiciousPattern

// All returns every built-in detector.
func All() []Detector {
	return []Detector{
		DetectBulkRequests,
		DetectLateNightActivity,
		DetectEncodedParameters,
		DetectDomainDiversity,
	}
}

// RunAll executes every detector over the window and merges the findings.
func RunAll(records []models.NetworkRequestRecord, cfg config.DetectorConfig, now time.Time) []models.SuspiciousPattern {
	findings := make([]models.SuspiciousPattern, 0)
	for _, detect := range All() {
		findings = append(findings, detect(records, cfg, now)...)
	}
	return findings
}

// DetectBulkRequests flags extensions whose request count within the trailing
// window exceeds the configured threshold.
func DetectBulkRequests(records []models.NetworkRequestRecord, cfg config.DetectorConfig, now time.Time) []models.SuspiciousPattern {
	window := cfg.BulkWindow
	if window <= 0 {
		window = time.Duration(config.DefaultBulkWindowMinutes) * time.Minute
	}
	threshold := cfg.BulkRequestThreshold
	if threshold <= 0 {
		threshold = config.DefaultBulkRequestThreshold
	}

	cutoff := now.Add(-window)
	counts := make(map[string]int)
	for _, record := range records {
		if record.ExtensionID == "" || record.Timestamp.Before(cutoff) {
			continue
		}
		counts[record.ExtensionID]++
	}

	findings := make([]models.SuspiciousPattern, 0)
	for extensionID, count := range counts {
		if count <= threshold {
			continue
		}
		score := 20 + (count-threshold)/10
		if score > 35 {
			score = 35
		}
		findings = append(findings, models.SuspiciousPattern{
			Kind:        models.PatternBulkRequests,
			ExtensionID: extensionID,
			Evidence:    fmt.Sprintf("%d requests within %s (threshold %d)", count, window, threshold),
			Score:       score,
		})
	}
	return findings
}

// DetectLateNightActivity flags requests whose local hour falls in the
// configured unusual range, weighted by repetition. Fewer than three hits are
// treated as noise.
func DetectLateNightActivity(records []models.NetworkRequestRecord, cfg config.DetectorConfig, _ time.Time) []models.SuspiciousPattern {
	counts := make(map[string]int)
	for _, record := range records {
		if record.ExtensionID == "" {
			continue
		}
		hour := record.Timestamp.Local().Hour()
		if hourInRange(hour, cfg.LateNightStartHour, cfg.LateNightEndHour) {
			counts[record.ExtensionID]++
		}
	}

	findings := make([]models.SuspiciousPattern, 0)
	for extensionID, count := range counts {
		if count < 3 {
			continue
		}
		score := 10 + 2*count
		if score > 25 {
			score = 25
		}
		findings = append(findings, models.SuspiciousPattern{
			Kind:        models.PatternLateNight,
			ExtensionID: extensionID,
			Evidence:    fmt.Sprintf("%d requests between %02d:00 and %02d:00 local time", count, cfg.LateNightStartHour, cfg.LateNightEndHour),
			Score:       score,
		})
	}
	return findings
}

// hourInRange handles ranges that wrap past midnight, e.g. 22 -> 5.
func hourInRange(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// DetectDomainDiversity flags extensions contacting an unusually high number
// of distinct domains within the window, a proxy for broad scraping or
// beaconing behavior.
func DetectDomainDiversity(records []models.NetworkRequestRecord, cfg config.DetectorConfig, now time.Time) []models.SuspiciousPattern {
	window := cfg.DiversityWindow
	if window <= 0 {
		window = time.Duration(config.DefaultDiversityWindowMinutes) * time.Minute
	}
	threshold := cfg.DomainDiversityThreshold
	if threshold <= 0 {
		threshold = config.DefaultDomainDiversityThreshold
	}

	cutoff := now.Add(-window)
	domains := make(map[string]map[string]bool)
	for _, record := range records {
		if record.ExtensionID == "" || record.Timestamp.Before(cutoff) {
			continue
		}
		if record.Domain == "" {
			continue
		}
		if domains[record.ExtensionID] == nil {
			domains[record.ExtensionID] = make(map[string]bool)
		}
		domains[record.ExtensionID][record.Domain] = true
	}

	findings := make([]models.SuspiciousPattern, 0)
	for extensionID, seen := range domains {
		count := len(seen)
		if count < threshold {
			continue
		}
		score := 25 + (count - threshold)
		if score > 40 {
			score = 40
		}
		findings = append(findings, models.SuspiciousPattern{
			Kind:        models.PatternDomainDiversity,
			ExtensionID: extensionID,
			Evidence:    fmt.Sprintf("%d distinct domains within %s (threshold %d)", count, window, threshold),
			Score:       score,
		})
	}
	return findings
}
