package registry

import (
	"context"
	"sync"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/platform"
	"github.com/rs/zerolog"
)

// Registry maintains the current set of installed extensions. The snapshot is
// owned exclusively by this component; everyone else reads copies. Refresh
// fails soft: when the platform query fails the prior snapshot stays in place
// and the next natural trigger retries.
type Registry struct {
	enumerator platform.ExtensionEnumerator
	logger     zerolog.Logger

	mu         sync.RWMutex
	extensions map[string]models.ExtensionInfo

	// Lifecycle callbacks, typically wired to the rule allocator.
	onInstalled   func(models.ExtensionInfo)
	onUninstalled func(extensionID string)
}

// New creates a Registry over the given enumerator.
func New(enumerator platform.ExtensionEnumerator, baseLogger zerolog.Logger) *Registry {
	return &Registry{
		enumerator: enumerator,
		logger:     baseLogger.With().Str("component", "ExtensionRegistry").Logger(),
		extensions: make(map[string]models.ExtensionInfo),
	}
}

// SetLifecycleCallbacks wires the install/uninstall forwarding targets.
func (r *Registry) SetLifecycleCallbacks(onInstalled func(models.ExtensionInfo), onUninstalled func(string)) {
	r.mu.Lock()
	r.onInstalled = onInstalled
	r.onUninstalled = onUninstalled
	r.mu.Unlock()
}

// Refresh fully replaces the in-memory snapshot from the platform. On query
// failure the previous snapshot is retained.
func (r *Registry) Refresh(ctx context.Context) {
	infos, err := r.enumerator.ListExtensions(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Extension enumeration failed, keeping previous snapshot")
		return
	}

	fresh := make(map[string]models.ExtensionInfo, len(infos))
	for _, info := range infos {
		fresh[info.ID] = info
	}

	r.mu.Lock()
	r.extensions = fresh
	r.mu.Unlock()

	r.logger.Debug().Int("count", len(fresh)).Msg("Extension snapshot refreshed")
}

// Snapshot returns a copy of the current id -> ExtensionInfo mapping. Never
// triggers I/O.
func (r *Registry) Snapshot() map[string]models.ExtensionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.ExtensionInfo, len(r.extensions))
	for id, info := range r.extensions {
		out[id] = info
	}
	return out
}

// Get returns the extension with the given id, if known.
func (r *Registry) Get(extensionID string) (models.ExtensionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.extensions[extensionID]
	return info, ok
}

// HandleInstalled is the edge-triggered install notification entry point. It
// refreshes the snapshot and forwards to the wired callback.
func (r *Registry) HandleInstalled(ctx context.Context, info models.ExtensionInfo) {
	r.logger.Info().Str("extension_id", info.ID).Str("name", info.Name).Msg("Extension installed")
	r.Refresh(ctx)

	r.mu.RLock()
	callback := r.onInstalled
	r.mu.RUnlock()
	if callback != nil {
		callback(info)
	}
}

// HandleUninstalled is the edge-triggered uninstall notification entry point.
func (r *Registry) HandleUninstalled(ctx context.Context, extensionID string) {
	r.logger.Info().Str("extension_id", extensionID).Msg("Extension uninstalled")
	r.Refresh(ctx)

	r.mu.RLock()
	callback := r.onUninstalled
	r.mu.RUnlock()
	if callback != nil {
		callback(extensionID)
	}
}
