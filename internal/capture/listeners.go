package capture

import (
	"sync"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/attribution"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/platform"
	"github.com/rs/zerolog"
)

// listenerState is the one-time registration state transition. Registration
// must happen synchronously and unconditionally so that platform restrictions
// on late listener registration never silently disable capture after a
// restart.
type listenerState int

const (
	stateUnregistered listenerState = iota
	stateRegistered
)

// SnapshotProvider supplies the current registry snapshot for classification.
type SnapshotProvider interface {
	Snapshot() map[string]models.ExtensionInfo
}

// Listeners owns the direct observation channel. Raw events are classified,
// filtered against config, fed into the dedup index, and handed to the sink.
// The rule-match channel reaches the same sink through Submit.
type Listeners struct {
	feed     platform.RequestFeed
	registry SnapshotProvider
	dedup    *Deduplicator
	cfg      *config.MonitorConfig
	logger   zerolog.Logger

	mu    sync.Mutex
	state listenerState
	sink  func(models.NetworkRequestRecord)
}

// NewListeners creates the capture listeners.
func NewListeners(
	feed platform.RequestFeed,
	registry SnapshotProvider,
	dedup *Deduplicator,
	cfg *config.MonitorConfig,
	baseLogger zerolog.Logger,
) *Listeners {
	return &Listeners{
		feed:     feed,
		registry: registry,
		dedup:    dedup,
		cfg:      cfg,
		logger:   baseLogger.With().Str("component", "CaptureListeners").Logger(),
	}
}

// Register attaches the direct observation handler. Duplicate registration is
// a no-op: the state transition unregistered -> registered happens exactly
// once per Register/Unregister cycle.
func (l *Listeners) Register(sink func(models.NetworkRequestRecord)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == stateRegistered {
		l.logger.Debug().Msg("Listeners already registered, ignoring")
		return
	}

	l.sink = sink
	l.state = stateRegistered
	l.feed.SetRequestHandler(l.handleRawEvent)
	l.logger.Info().Msg("Capture listeners registered")
}

// Unregister detaches from the platform feed. Idempotent.
func (l *Listeners) Unregister() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == stateUnregistered {
		return
	}

	l.feed.SetRequestHandler(nil)
	l.sink = nil
	l.state = stateUnregistered
	l.logger.Info().Msg("Capture listeners unregistered")
}

// handleRawEvent is the direct observation path: classify, filter, dedup
// bookkeeping, sink.
func (l *Listeners) handleRawEvent(raw models.RawRequestEvent) {
	record := attribution.Classify(raw, l.registry.Snapshot())
	if !l.shouldCapture(record) {
		return
	}

	l.dedup.RecordDirect(record)
	l.deliver(record)
}

// Submit feeds a provisional rule-match record into the shared pipeline. A
// record duplicating an earlier direct observation inside the tolerance
// window is dropped in favor of the richer direct record.
func (l *Listeners) Submit(record models.NetworkRequestRecord) {
	if !l.shouldCapture(record) {
		return
	}
	if record.DetectedBy == models.DetectedByRuleMatch && l.dedup.IsDuplicate(record) {
		l.logger.Debug().Str("url", record.URL).Str("extension_id", record.ExtensionID).Msg("Dropping duplicate rule-match record")
		return
	}
	l.deliver(record)
}

func (l *Listeners) deliver(record models.NetworkRequestRecord) {
	l.mu.Lock()
	sink := l.sink
	l.mu.Unlock()
	if sink != nil {
		sink(record)
	}
}

func (l *Listeners) shouldCapture(record models.NetworkRequestRecord) bool {
	if !l.cfg.Enabled {
		return false
	}
	if l.cfg.IsDomainExcluded(record.Domain) {
		return false
	}
	if record.InitiatorType == models.InitiatorExtension {
		return !l.cfg.IsExtensionExcluded(record.ExtensionID)
	}
	return l.cfg.CaptureAllRequests
}
