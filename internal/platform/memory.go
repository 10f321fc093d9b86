package platform

import (
	"context"
	"sync"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
)

// MemoryBrowser is a deterministic in-process Browser implementation. It backs
// the --dry-run mode and the package tests: extensions are installed and
// removed programmatically, requests are injected with EmitRequest, and rule
// bookkeeping mirrors what a real platform would report.
type MemoryBrowser struct {
	mu             sync.Mutex
	extensions     map[string]models.ExtensionInfo
	rules          map[int]string
	pendingMatches []models.RuleMatchEvent
	maxRules       int

	requestHandler func(models.RawRequestEvent)
	onInstalled    func(models.ExtensionInfo)
	onUninstalled  func(string)

	failListExtensions bool
	failListRules      bool
}

// NewMemoryBrowser creates an in-memory platform with the given rule pool
// bound. maxRules <= 0 means unbounded.
func NewMemoryBrowser(maxRules int) *MemoryBrowser {
	return &MemoryBrowser{
		extensions: make(map[string]models.ExtensionInfo),
		rules:      make(map[int]string),
		maxRules:   maxRules,
	}
}

// ListExtensions implements ExtensionEnumerator.
func (mb *MemoryBrowser) ListExtensions(_ context.Context) ([]models.ExtensionInfo, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.failListExtensions {
		return nil, common.ErrPlatformUnavailable
	}
	out := make([]models.ExtensionInfo, 0, len(mb.extensions))
	for _, info := range mb.extensions {
		out = append(out, info)
	}
	return out, nil
}

// RegisterRule implements RuleRegistrar.
func (mb *MemoryBrowser) RegisterRule(_ context.Context, ruleID int, extensionID string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if _, taken := mb.rules[ruleID]; !taken && mb.maxRules > 0 && len(mb.rules) >= mb.maxRules {
		return common.ErrPoolExhausted
	}
	mb.rules[ruleID] = extensionID
	return nil
}

// UnregisterRules implements RuleRegistrar. Unknown ids are ignored.
func (mb *MemoryBrowser) UnregisterRules(_ context.Context, ruleIDs []int) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for _, id := range ruleIDs {
		delete(mb.rules, id)
	}
	return nil
}

// ListRules implements RuleRegistrar.
func (mb *MemoryBrowser) ListRules(_ context.Context) (map[int]string, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.failListRules {
		return nil, common.ErrPlatformUnavailable
	}
	out := make(map[int]string, len(mb.rules))
	for id, ext := range mb.rules {
		out[id] = ext
	}
	return out, nil
}

// DrainMatchedEvents implements MatchPoller.
func (mb *MemoryBrowser) DrainMatchedEvents(_ context.Context) ([]models.RuleMatchEvent, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := mb.pendingMatches
	mb.pendingMatches = nil
	return out, nil
}

// SetRequestHandler implements RequestFeed.
func (mb *MemoryBrowser) SetRequestHandler(handler func(models.RawRequestEvent)) {
	mb.mu.Lock()
	mb.requestHandler = handler
	mb.mu.Unlock()
}

// SetLifecycleHandlers implements LifecycleFeed.
func (mb *MemoryBrowser) SetLifecycleHandlers(onInstalled func(models.ExtensionInfo), onUninstalled func(string)) {
	mb.mu.Lock()
	mb.onInstalled = onInstalled
	mb.onUninstalled = onUninstalled
	mb.mu.Unlock()
}

// Close implements Browser.
func (mb *MemoryBrowser) Close() error { return nil }

// InstallExtension adds or updates an extension and fires the installed
// notification.
func (mb *MemoryBrowser) InstallExtension(info models.ExtensionInfo) {
	mb.mu.Lock()
	mb.extensions[info.ID] = info
	handler := mb.onInstalled
	mb.mu.Unlock()
	if handler != nil {
		handler(info)
	}
}

// UninstallExtension removes an extension, drops any rules targeting it, and
// fires the uninstalled notification.
func (mb *MemoryBrowser) UninstallExtension(extensionID string) {
	mb.mu.Lock()
	delete(mb.extensions, extensionID)
	for id, ext := range mb.rules {
		if ext == extensionID {
			delete(mb.rules, id)
		}
	}
	handler := mb.onUninstalled
	mb.mu.Unlock()
	if handler != nil {
		handler(extensionID)
	}
}

// EmitRequest pushes a raw request event into the direct observation channel.
func (mb *MemoryBrowser) EmitRequest(event models.RawRequestEvent) {
	mb.mu.Lock()
	handler := mb.requestHandler
	mb.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

// QueueMatch appends a match diagnostic for the next DrainMatchedEvents call.
func (mb *MemoryBrowser) QueueMatch(event models.RuleMatchEvent) {
	mb.mu.Lock()
	mb.pendingMatches = append(mb.pendingMatches, event)
	mb.mu.Unlock()
}

// SeedRule registers a rule directly, bypassing the pool bound. Used to set up
// restart-reconciliation scenarios.
func (mb *MemoryBrowser) SeedRule(ruleID int, extensionID string) {
	mb.mu.Lock()
	mb.rules[ruleID] = extensionID
	mb.mu.Unlock()
}

// FailNextQueries toggles soft platform failures for enumeration and rule
// listing.
func (mb *MemoryBrowser) FailNextQueries(listExtensions, listRules bool) {
	mb.mu.Lock()
	mb.failListExtensions = listExtensions
	mb.failListRules = listRules
	mb.mu.Unlock()
}
