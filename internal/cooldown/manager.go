package cooldown

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/rs/zerolog"
)

// Manager is a persisted, keyed rate limiter for alerts. The whole table is a
// flat key -> last-fired-at mapping stored as one JSON file: every operation
// loads the table, mutates, and writes back. This is intentionally simple and
// correct under the single-logical-owner assumption; true parallel writers
// are out of scope.
type Manager struct {
	filePath string
	window   time.Duration
	files    *common.FileManager
	logger   zerolog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// table is the persisted form: key -> unix milliseconds of the last alert.
type table map[string]int64

// NewManager creates a cooldown manager persisting to filePath with the given
// window.
func NewManager(filePath string, window time.Duration, baseLogger zerolog.Logger) *Manager {
	if window <= 0 {
		window = time.Hour
	}
	logger := baseLogger.With().Str("component", "CooldownManager").Logger()
	return &Manager{
		filePath: filePath,
		window:   window,
		files:    common.NewFileManager(logger),
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// IsOnCooldown reports whether the key fired within the window.
func (m *Manager) IsOnCooldown(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.load()
	last, ok := entries[key]
	if !ok {
		return false
	}
	return m.now().UnixMilli()-last < m.window.Milliseconds()
}

// SetCooldown marks the key as fired at the given time (or now).
func (m *Manager) SetCooldown(key string, at ...time.Time) {
	firedAt := m.now()
	if len(at) > 0 {
		firedAt = at[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.load()
	entries[key] = firedAt.UnixMilli()
	m.save(entries)
}

// GetRemaining returns how long until the key may fire again. Zero when the
// key is not on cooldown.
func (m *Manager) GetRemaining(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.load()
	last, ok := entries[key]
	if !ok {
		return 0
	}
	remaining := m.window - time.Duration(m.now().UnixMilli()-last)*time.Millisecond
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clear removes a single key.
func (m *Manager) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.load()
	if _, ok := entries[key]; !ok {
		return
	}
	delete(entries, key)
	m.save(entries)
}

// ClearAll removes every entry.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.save(table{})
}

// load reads the full table. A missing or corrupt file yields an empty table;
// cooldown state is advisory, so losing it widens alerting rather than
// breaking it.
func (m *Manager) load() table {
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("path", m.filePath).Msg("Failed to read cooldown table, starting empty")
		}
		return table{}
	}

	var entries table
	if err := json.Unmarshal(data, &entries); err != nil {
		m.logger.Warn().Err(err).Str("path", m.filePath).Msg("Corrupt cooldown table, starting empty")
		return table{}
	}
	return entries
}

func (m *Manager) save(entries table) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to marshal cooldown table")
		return
	}
	if err := m.files.WriteFileAtomic(m.filePath, data); err != nil {
		m.logger.Error().Err(err).Str("path", m.filePath).Msg("Failed to persist cooldown table")
	}
}

// Key builds the conventional (eventKind, extensionID) cooldown key, so one
// noisy extension does not suppress alerts for others.
func Key(eventKind, extensionID string) string {
	return eventKind + ":" + extensionID
}
