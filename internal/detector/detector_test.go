package detector

import (
	"fmt"
	"testing"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(extID, url string, ts time.Time) models.NetworkRequestRecord {
	return models.NetworkRequestRecord{
		ExtensionID:   extID,
		URL:           url,
		Domain:        "example.com",
		InitiatorType: models.InitiatorExtension,
		Timestamp:     ts,
	}
}

func findingsFor(findings []models.SuspiciousPattern, kind models.PatternKind, extID string) *models.SuspiciousPattern {
	for i := range findings {
		if findings[i].Kind == kind && findings[i].ExtensionID == extID {
			return &findings[i]
		}
	}
	return nil
}

func TestDetectBulkRequests(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	cfg.BulkRequestThreshold = 10
	cfg.BulkWindow = 5 * time.Minute
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	records := make([]models.NetworkRequestRecord, 0)
	for i := 0; i < 15; i++ {
		records = append(records, record("ext-busy", "https://api.example.com/poll", now.Add(-time.Duration(i)*time.Second)))
	}
	// Below threshold.
	for i := 0; i < 5; i++ {
		records = append(records, record("ext-quiet", "https://api.example.com/poll", now))
	}
	// Outside the window.
	for i := 0; i < 20; i++ {
		records = append(records, record("ext-old", "https://api.example.com/poll", now.Add(-time.Hour)))
	}

	findings := DetectBulkRequests(records, cfg, now)
	require.Len(t, findings, 1)
	assert.Equal(t, "ext-busy", findings[0].ExtensionID)
	assert.Equal(t, models.PatternBulkRequests, findings[0].Kind)
	assert.Equal(t, 20, findings[0].Score)
}

func TestDetectBulkRequestsScoreIsCapped(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	cfg.BulkRequestThreshold = 10
	cfg.BulkWindow = time.Hour
	now := time.Now()

	records := make([]models.NetworkRequestRecord, 0, 500)
	for i := 0; i < 500; i++ {
		records = append(records, record("ext-flood", "https://api.example.com/poll", now))
	}

	findings := DetectBulkRequests(records, cfg, now)
	require.Len(t, findings, 1)
	assert.Equal(t, 35, findings[0].Score)
}

func TestDetectLateNightActivity(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	lateNight := time.Date(2026, 3, 1, 2, 30, 0, 0, time.Local)
	afternoon := time.Date(2026, 3, 1, 14, 30, 0, 0, time.Local)

	records := []models.NetworkRequestRecord{
		record("ext-night", "https://api.example.com/a", lateNight),
		record("ext-night", "https://api.example.com/b", lateNight.Add(time.Minute)),
		record("ext-night", "https://api.example.com/c", lateNight.Add(2*time.Minute)),
		record("ext-night", "https://api.example.com/d", lateNight.Add(3*time.Minute)),
		// Two hits are below the noise floor.
		record("ext-rare", "https://api.example.com/e", lateNight),
		record("ext-rare", "https://api.example.com/f", lateNight),
		record("ext-day", "https://api.example.com/g", afternoon),
	}

	findings := DetectLateNightActivity(records, cfg, time.Now())
	require.Len(t, findings, 1)
	assert.Equal(t, "ext-night", findings[0].ExtensionID)
	assert.Equal(t, 18, findings[0].Score)
}

func TestHourInRangeWrapsMidnight(t *testing.T) {
	assert.True(t, hourInRange(23, 22, 5))
	assert.True(t, hourInRange(2, 22, 5))
	assert.False(t, hourInRange(12, 22, 5))
	assert.True(t, hourInRange(3, 0, 5))
	assert.False(t, hourInRange(5, 0, 5))
}

func TestDetectDomainDiversityFiftyDomainsInAMinute(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	records := make([]models.NetworkRequestRecord, 0, 50)
	for i := 0; i < 50; i++ {
		r := record("ext-scatter", fmt.Sprintf("https://host%02d.example/api", i), now.Add(-time.Duration(i)*time.Second))
		r.Domain = fmt.Sprintf("host%02d.example", i)
		records = append(records, r)
	}

	findings := DetectDomainDiversity(records, cfg, now)
	require.Len(t, findings, 1)
	assert.Equal(t, models.PatternDomainDiversity, findings[0].Kind)
	// 50 domains over the default threshold of 20 saturates the score cap.
	assert.Equal(t, 40, findings[0].Score)
}

func TestDetectDomainDiversityBelowThreshold(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	now := time.Now()

	records := make([]models.NetworkRequestRecord, 0, 5)
	for i := 0; i < 5; i++ {
		r := record("ext-a", fmt.Sprintf("https://host%d.example/api", i), now)
		r.Domain = fmt.Sprintf("host%d.example", i)
		records = append(records, r)
	}

	assert.Empty(t, DetectDomainDiversity(records, cfg, now))
}

func TestRunAllMergesFindings(t *testing.T) {
	cfg := config.NewDefaultDetectorConfig()
	cfg.BulkRequestThreshold = 5
	cfg.BulkWindow = time.Hour
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	records := make([]models.NetworkRequestRecord, 0)
	for i := 0; i < 30; i++ {
		r := record("ext-a", fmt.Sprintf("https://host%02d.example/api", i), now.Add(-time.Duration(i)*time.Second))
		r.Domain = fmt.Sprintf("host%02d.example", i)
		records = append(records, r)
	}

	findings := RunAll(records, cfg, now)
	assert.NotNil(t, findingsFor(findings, models.PatternBulkRequests, "ext-a"))
	assert.NotNil(t, findingsFor(findings, models.PatternDomainDiversity, "ext-a"))
}
