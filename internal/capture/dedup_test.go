package capture

import (
	"testing"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/stretchr/testify/assert"
)

func dedupRecord(extID, url string, ts time.Time) models.NetworkRequestRecord {
	return models.NetworkRequestRecord{
		ExtensionID: extID,
		URL:         url,
		Timestamp:   ts,
	}
}

func TestDuplicateWithinWindowIsDropped(t *testing.T) {
	dedup := NewDeduplicator(2 * time.Second)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	dedup.RecordDirect(dedupRecord("ext-a", "https://example.com/a", now))

	// Rule-match arrives 50ms later for the same extension and URL.
	assert.True(t, dedup.IsDuplicate(dedupRecord("ext-a", "https://example.com/a", now.Add(50*time.Millisecond))))

	// The match may also predate the direct record slightly.
	assert.True(t, dedup.IsDuplicate(dedupRecord("ext-a", "https://example.com/a", now.Add(-50*time.Millisecond))))
}

func TestOutsideWindowIsNotDuplicate(t *testing.T) {
	dedup := NewDeduplicator(2 * time.Second)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	dedup.RecordDirect(dedupRecord("ext-a", "https://example.com/a", now))
	assert.False(t, dedup.IsDuplicate(dedupRecord("ext-a", "https://example.com/a", now.Add(3*time.Second))))
}

func TestDifferentKeyIsNotDuplicate(t *testing.T) {
	dedup := NewDeduplicator(2 * time.Second)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	dedup.RecordDirect(dedupRecord("ext-a", "https://example.com/a", now))

	assert.False(t, dedup.IsDuplicate(dedupRecord("ext-b", "https://example.com/a", now)))
	assert.False(t, dedup.IsDuplicate(dedupRecord("ext-a", "https://example.com/b", now)))
}

func TestEmptyExtensionIDNeverDeduplicates(t *testing.T) {
	dedup := NewDeduplicator(2 * time.Second)
	now := time.Now()

	dedup.RecordDirect(dedupRecord("", "https://example.com/a", now))
	assert.False(t, dedup.IsDuplicate(dedupRecord("", "https://example.com/a", now)))
}

func TestPruneEvictsStaleEntries(t *testing.T) {
	dedup := NewDeduplicator(time.Second)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	dedup.RecordDirect(dedupRecord("ext-a", "https://example.com/a", base))
	// A much later insert triggers pruning of the first entry.
	dedup.RecordDirect(dedupRecord("ext-a", "https://example.com/b", base.Add(time.Minute)))

	dedup.mu.Lock()
	_, stale := dedup.seen[dedupKey("ext-a", "https://example.com/a")]
	dedup.mu.Unlock()
	assert.False(t, stale)
}
