package capture

import (
	"testing"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/platform"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSnapshot map[string]models.ExtensionInfo

func (s staticSnapshot) Snapshot() map[string]models.ExtensionInfo {
	out := make(map[string]models.ExtensionInfo, len(s))
	for id, info := range s {
		out[id] = info
	}
	return out
}

type captureHarness struct {
	browser   *platform.MemoryBrowser
	listeners *Listeners
	cfg       *config.MonitorConfig
	records   []models.NetworkRequestRecord
}

func newCaptureHarness(t *testing.T, mutate func(*config.MonitorConfig)) *captureHarness {
	t.Helper()
	cfg := config.NewDefaultMonitorConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	browser := platform.NewMemoryBrowser(64)
	snapshot := staticSnapshot{"ext-a": {ID: "ext-a", Name: "Extension A"}}
	h := &captureHarness{
		browser: browser,
		cfg:     &cfg,
	}
	h.listeners = NewListeners(browser, snapshot, NewDeduplicator(cfg.DedupWindow), &cfg, zerolog.Nop())
	h.listeners.Register(func(record models.NetworkRequestRecord) {
		h.records = append(h.records, record)
	})
	return h
}

func extensionEvent(url string) models.RawRequestEvent {
	return models.RawRequestEvent{
		URL:       url,
		Method:    "GET",
		Initiator: "chrome-extension://ext-a",
		Timestamp: time.Now(),
	}
}

func TestDirectObservationReachesSink(t *testing.T) {
	h := newCaptureHarness(t, nil)

	h.browser.EmitRequest(extensionEvent("https://api.example.com/sync"))

	require.Len(t, h.records, 1)
	record := h.records[0]
	assert.Equal(t, "ext-a", record.ExtensionID)
	assert.Equal(t, "Extension A", record.ExtensionName)
	assert.Equal(t, models.DetectedByDirectObservation, record.DetectedBy)
}

func TestPageRequestsRequireCaptureAll(t *testing.T) {
	h := newCaptureHarness(t, nil)
	h.browser.EmitRequest(models.RawRequestEvent{
		URL:       "https://news.example.com/feed",
		Initiator: "https://news.example.com",
		Timestamp: time.Now(),
	})
	assert.Empty(t, h.records)

	all := newCaptureHarness(t, func(cfg *config.MonitorConfig) { cfg.CaptureAllRequests = true })
	all.browser.EmitRequest(models.RawRequestEvent{
		URL:       "https://news.example.com/feed",
		Initiator: "https://news.example.com",
		Timestamp: time.Now(),
	})
	require.Len(t, all.records, 1)
	assert.Equal(t, models.InitiatorPage, all.records[0].InitiatorType)
}

func TestExcludedDomainIsDropped(t *testing.T) {
	h := newCaptureHarness(t, func(cfg *config.MonitorConfig) {
		cfg.ExcludedDomains = []string{"example.com"}
	})
	h.browser.EmitRequest(extensionEvent("https://api.example.com/sync"))
	assert.Empty(t, h.records)
}

func TestExcludedExtensionIsDropped(t *testing.T) {
	h := newCaptureHarness(t, func(cfg *config.MonitorConfig) {
		cfg.ExcludedExtensions = []string{"ext-a"}
	})
	h.browser.EmitRequest(extensionEvent("https://api.example.com/sync"))
	assert.Empty(t, h.records)
}

func TestDisabledMonitorCapturesNothing(t *testing.T) {
	h := newCaptureHarness(t, func(cfg *config.MonitorConfig) { cfg.Enabled = false })
	h.browser.EmitRequest(extensionEvent("https://api.example.com/sync"))
	assert.Empty(t, h.records)
}

func TestRegisterIsIdempotent(t *testing.T) {
	h := newCaptureHarness(t, nil)

	// A second Register must not double-deliver.
	h.listeners.Register(func(record models.NetworkRequestRecord) {
		h.records = append(h.records, record)
	})
	h.browser.EmitRequest(extensionEvent("https://api.example.com/sync"))
	assert.Len(t, h.records, 1)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	h := newCaptureHarness(t, nil)
	h.listeners.Unregister()
	h.listeners.Unregister()

	h.browser.EmitRequest(extensionEvent("https://api.example.com/sync"))
	assert.Empty(t, h.records)
}

func TestSubmitDropsDuplicateRuleMatch(t *testing.T) {
	h := newCaptureHarness(t, nil)
	now := time.Now()

	h.browser.EmitRequest(models.RawRequestEvent{
		URL:       "https://api.example.com/sync",
		Initiator: "chrome-extension://ext-a",
		Timestamp: now,
	})
	require.Len(t, h.records, 1)

	// The same request reported via the rule channel 50ms later is a duplicate;
	// the richer direct record wins.
	h.listeners.Submit(models.NetworkRequestRecord{
		ID:            "match-1",
		Timestamp:     now.Add(50 * time.Millisecond),
		URL:           "https://api.example.com/sync",
		Domain:        "example.com",
		InitiatorType: models.InitiatorExtension,
		ExtensionID:   "ext-a",
		DetectedBy:    models.DetectedByRuleMatch,
	})
	assert.Len(t, h.records, 1)
	assert.Equal(t, models.DetectedByDirectObservation, h.records[0].DetectedBy)
}

func TestSubmitDeliversNonDuplicateRuleMatch(t *testing.T) {
	h := newCaptureHarness(t, nil)

	h.listeners.Submit(models.NetworkRequestRecord{
		ID:            "match-1",
		Timestamp:     time.Now(),
		URL:           "https://other.example.org/ping",
		Domain:        "example.org",
		InitiatorType: models.InitiatorExtension,
		ExtensionID:   "ext-a",
		DetectedBy:    models.DetectedByRuleMatch,
	})
	require.Len(t, h.records, 1)
	assert.Equal(t, models.DetectedByRuleMatch, h.records[0].DetectedBy)
}
