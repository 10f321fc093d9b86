package capture

import (
	"sync"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
)

// Deduplicator suppresses rule-match records that duplicate an
// already-captured direct-observation record within a time tolerance. The
// direct record is richer, so it always wins. The tolerance window is an
// explicit, tunable parameter rather than a hard-coded constant.
type Deduplicator struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string][]time.Time
	last time.Time
}

// NewDeduplicator creates a Deduplicator with the given tolerance window.
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Deduplicator{
		window: window,
		seen:   make(map[string][]time.Time),
	}
}

func dedupKey(extensionID, url string) string {
	return extensionID + "|" + url
}

// RecordDirect notes a direct-observation record so later rule-match
// duplicates can be dropped.
func (d *Deduplicator) RecordDirect(record models.NetworkRequestRecord) {
	if record.ExtensionID == "" {
		return
	}
	key := dedupKey(record.ExtensionID, record.URL)

	d.mu.Lock()
	d.seen[key] = append(d.seen[key], record.Timestamp)
	d.pruneLocked(record.Timestamp)
	d.mu.Unlock()
}

// IsDuplicate reports whether a rule-match record duplicates a direct record
// for the same extension and URL within the tolerance window.
func (d *Deduplicator) IsDuplicate(record models.NetworkRequestRecord) bool {
	if record.ExtensionID == "" {
		return false
	}
	key := dedupKey(record.ExtensionID, record.URL)

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ts := range d.seen[key] {
		delta := record.Timestamp.Sub(ts)
		if delta < 0 {
			delta = -delta
		}
		if delta <= d.window {
			return true
		}
	}
	return false
}

// pruneLocked evicts timestamps too old to ever match again. Runs at most
// once per window to keep insertion cheap.
func (d *Deduplicator) pruneLocked(now time.Time) {
	if now.Sub(d.last) < d.window {
		return
	}
	d.last = now

	horizon := now.Add(-4 * d.window)
	for key, stamps := range d.seen {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(horizon) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(d.seen, key)
		} else {
			d.seen[key] = kept
		}
	}
}
