package rules

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/datastore"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/platform"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticInstalled is a fixed registry snapshot for allocator tests.
type staticInstalled map[string]models.ExtensionInfo

func (s staticInstalled) Snapshot() map[string]models.ExtensionInfo {
	out := make(map[string]models.ExtensionInfo, len(s))
	for id, info := range s {
		out[id] = info
	}
	return out
}

func newTestRuleStore(t *testing.T) *datastore.RuleStore {
	t.Helper()
	db, err := datastore.NewDB(filepath.Join(t.TempDir(), "rules.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return datastore.NewRuleStore(db, zerolog.Nop())
}

func newTestAllocator(t *testing.T, browser *platform.MemoryBrowser, installed staticInstalled, cfg *config.MonitorConfig) *Allocator {
	t.Helper()
	if cfg == nil {
		defaults := config.NewDefaultMonitorConfig()
		cfg = &defaults
	}
	return NewAllocator(browser, newTestRuleStore(t), installed, cfg, zerolog.Nop())
}

func TestAllocateAssignsLowestFreeID(t *testing.T) {
	browser := platform.NewMemoryBrowser(64)
	allocator := newTestAllocator(t, browser, staticInstalled{}, nil)
	ctx := context.Background()

	require.NoError(t, allocator.Allocate(ctx, "ext-a"))
	require.NoError(t, allocator.Allocate(ctx, "ext-b"))

	idA, ok := allocator.RuleFor("ext-a")
	require.True(t, ok)
	assert.Equal(t, 1, idA)

	idB, ok := allocator.RuleFor("ext-b")
	require.True(t, ok)
	assert.Equal(t, 2, idB)
}

func TestAllocateIsIdempotentPerExtension(t *testing.T) {
	browser := platform.NewMemoryBrowser(64)
	allocator := newTestAllocator(t, browser, staticInstalled{}, nil)
	ctx := context.Background()

	require.NoError(t, allocator.Allocate(ctx, "ext-a"))
	require.NoError(t, allocator.Allocate(ctx, "ext-a"))

	assert.Len(t, allocator.ActiveRules(), 1)
}

func TestAllocatePoolExhaustion(t *testing.T) {
	cfg := config.NewDefaultMonitorConfig()
	cfg.MaxRules = 2
	browser := platform.NewMemoryBrowser(2)
	allocator := newTestAllocator(t, browser, staticInstalled{}, &cfg)
	ctx := context.Background()

	require.NoError(t, allocator.Allocate(ctx, "ext-a"))
	require.NoError(t, allocator.Allocate(ctx, "ext-b"))

	err := allocator.Allocate(ctx, "ext-c")
	assert.ErrorIs(t, err, common.ErrPoolExhausted)
	assert.Len(t, allocator.ActiveRules(), 2)

	// A release returns the id to the pool and the waiting extension fits.
	require.NoError(t, allocator.Release(ctx, "ext-a"))
	require.NoError(t, allocator.Allocate(ctx, "ext-c"))

	idC, ok := allocator.RuleFor("ext-c")
	require.True(t, ok)
	assert.Equal(t, 1, idC)
}

func TestPoolSizeTracksConfigUpdates(t *testing.T) {
	cfg := config.NewDefaultMonitorConfig()
	cfg.MaxRules = 2
	browser := platform.NewMemoryBrowser(64)
	allocator := newTestAllocator(t, browser, staticInstalled{}, &cfg)
	ctx := context.Background()

	require.NoError(t, allocator.Allocate(ctx, "ext-a"))
	require.NoError(t, allocator.Allocate(ctx, "ext-b"))
	require.ErrorIs(t, allocator.Allocate(ctx, "ext-c"), common.ErrPoolExhausted)

	// Growing max_rules through a config update takes effect without a
	// process restart.
	cfg.MaxRules = 3
	require.NoError(t, allocator.Allocate(ctx, "ext-c"))

	idC, ok := allocator.RuleFor("ext-c")
	require.True(t, ok)
	assert.Equal(t, 3, idC)
}

func TestAllocateSkipsExcludedExtensions(t *testing.T) {
	cfg := config.NewDefaultMonitorConfig()
	cfg.ExcludedExtensions = []string{"ext-noisy"}
	browser := platform.NewMemoryBrowser(64)
	allocator := newTestAllocator(t, browser, staticInstalled{}, &cfg)

	require.NoError(t, allocator.Allocate(context.Background(), "ext-noisy"))
	_, ok := allocator.RuleFor("ext-noisy")
	assert.False(t, ok)
}

func TestReleaseIsIdempotent(t *testing.T) {
	browser := platform.NewMemoryBrowser(64)
	allocator := newTestAllocator(t, browser, staticInstalled{}, nil)
	ctx := context.Background()

	require.NoError(t, allocator.Allocate(ctx, "ext-a"))
	require.NoError(t, allocator.Release(ctx, "ext-a"))
	require.NoError(t, allocator.Release(ctx, "ext-a"))

	assert.Empty(t, allocator.ActiveRules())
}

func TestReleaseAllClearsPlatformAndCache(t *testing.T) {
	browser := platform.NewMemoryBrowser(64)
	allocator := newTestAllocator(t, browser, staticInstalled{}, nil)
	ctx := context.Background()

	require.NoError(t, allocator.Allocate(ctx, "ext-a"))
	require.NoError(t, allocator.Allocate(ctx, "ext-b"))

	allocator.ReleaseAll(ctx)

	assert.Empty(t, allocator.ActiveRules())
	platformRules, err := browser.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, platformRules)
}
