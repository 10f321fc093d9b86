package platform

import (
	"context"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
)

// The browser platform is modeled as a set of capabilities rather than a
// concrete API surface. The monitor only ever talks to these interfaces; the
// websocket bridge and the in-memory implementation both satisfy them.

// ExtensionEnumerator lists the currently installed extensions.
type ExtensionEnumerator interface {
	ListExtensions(ctx context.Context) ([]models.ExtensionInfo, error)
}

// RuleRegistrar manages the platform's declarative match rules. The set of
// rules the platform reports via ListRules is the source of truth; any locally
// persisted mapping is only a cache.
type RuleRegistrar interface {
	RegisterRule(ctx context.Context, ruleID int, extensionID string) error
	UnregisterRules(ctx context.Context, ruleIDs []int) error
	// ListRules returns the currently registered rules as ruleID -> extensionID.
	ListRules(ctx context.Context) (map[int]string, error)
}

// MatchPoller drains match-diagnostic events accumulated since the last call.
type MatchPoller interface {
	DrainMatchedEvents(ctx context.Context) ([]models.RuleMatchEvent, error)
}

// RequestFeed delivers direct request observations. At most one handler is
// active at a time; setting a nil handler detaches the feed.
type RequestFeed interface {
	SetRequestHandler(handler func(models.RawRequestEvent))
}

// LifecycleFeed delivers extension install/uninstall notifications.
type LifecycleFeed interface {
	SetLifecycleHandlers(onInstalled func(models.ExtensionInfo), onUninstalled func(extensionID string))
}

// Browser bundles every capability the monitor needs from the platform.
type Browser interface {
	ExtensionEnumerator
	RuleRegistrar
	MatchPoller
	RequestFeed
	LifecycleFeed
	Close() error
}
