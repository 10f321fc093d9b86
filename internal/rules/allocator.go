package rules

import (
	"context"
	"sort"
	"sync"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/datastore"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/platform"
	"github.com/rs/zerolog"
)

// InstalledSet is the view of the registry the allocator needs during
// reconciliation: which extensions are currently installed.
type InstalledSet interface {
	Snapshot() map[string]models.ExtensionInfo
}

// Allocator manages the bounded mapping between extension identities and
// platform match-rule identifiers. Rule ids are drawn from a fixed arena of
// 1..maxRules; the platform-registered rule set is the source of truth and
// the persisted mapping is reconciled against it at every start.
type Allocator struct {
	registrar platform.RuleRegistrar
	store     *datastore.RuleStore
	installed InstalledSet
	cfg       *config.MonitorConfig
	logger    zerolog.Logger

	mu          sync.Mutex
	byExtension map[string]int
	byRule      map[int]string
}

// NewAllocator creates an Allocator. In-memory state starts empty; Reconcile
// must run before the allocator is trusted, since any state from a previous
// process is assumed lost.
func NewAllocator(
	registrar platform.RuleRegistrar,
	store *datastore.RuleStore,
	installed InstalledSet,
	cfg *config.MonitorConfig,
	baseLogger zerolog.Logger,
) *Allocator {
	return &Allocator{
		registrar:   registrar,
		store:       store,
		installed:   installed,
		cfg:         cfg,
		logger:      baseLogger.With().Str("component", "RuleAllocator").Logger(),
		byExtension: make(map[string]int),
		byRule:      make(map[int]string),
	}
}

// poolSize reads the arena bound from the live configuration, so a config
// update changing max_rules takes effect on the next allocation or
// reconciliation.
func (a *Allocator) poolSize() int {
	if n := a.cfg.MaxRules; n > 0 {
		return n
	}
	return config.DefaultMaxRules
}

// Allocate registers a match rule for the extension. Excluded extensions and
// extensions that already hold a rule are no-ops. Pool exhaustion returns
// ErrPoolExhausted: the caller reports it and attribution for that extension
// degrades to direct observation only.
func (a *Allocator) Allocate(ctx context.Context, extensionID string) error {
	if extensionID == "" {
		return common.ErrInvalidInput
	}
	if a.cfg.IsExtensionExcluded(extensionID) {
		a.logger.Debug().Str("extension_id", extensionID).Msg("Extension excluded, skipping rule allocation")
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.byExtension[extensionID]; exists {
		return nil
	}

	ruleID, ok := a.pickFreeIDLocked()
	if !ok {
		a.logger.Warn().
			Str("extension_id", extensionID).
			Int("pool_size", a.poolSize()).
			Msg("Rule pool exhausted, extension degrades to direct observation only")
		return common.ErrPoolExhausted
	}

	if err := a.registrar.RegisterRule(ctx, ruleID, extensionID); err != nil {
		return common.WrapErrorf(err, "failed to register rule %d for %s", ruleID, extensionID)
	}

	a.byExtension[extensionID] = ruleID
	a.byRule[ruleID] = extensionID
	a.persistLocked()

	a.logger.Info().Str("extension_id", extensionID).Int("rule_id", ruleID).Msg("Attribution rule allocated")
	return nil
}

// Release unregisters the extension's rule, if any, and returns the id to the
// pool. Idempotent.
func (a *Allocator) Release(ctx context.Context, extensionID string) error {
	a.mu.Lock()
	ruleID, exists := a.byExtension[extensionID]
	if exists {
		delete(a.byExtension, extensionID)
		delete(a.byRule, ruleID)
		a.persistLocked()
	}
	a.mu.Unlock()

	if !exists {
		return nil
	}

	if err := a.registrar.UnregisterRules(ctx, []int{ruleID}); err != nil {
		a.logger.Warn().Err(err).Int("rule_id", ruleID).Msg("Failed to unregister rule, reconciliation will retry")
		return common.WrapErrorf(err, "failed to unregister rule %d", ruleID)
	}

	a.logger.Info().Str("extension_id", extensionID).Int("rule_id", ruleID).Msg("Attribution rule released")
	return nil
}

// ReleaseAll unregisters every active rule. Called on monitor stop so that a
// stop-then-start sequence never double-registers.
func (a *Allocator) ReleaseAll(ctx context.Context) {
	a.mu.Lock()
	ids := make([]int, 0, len(a.byRule))
	for id := range a.byRule {
		ids = append(ids, id)
	}
	a.byExtension = make(map[string]int)
	a.byRule = make(map[int]string)
	a.persistLocked()
	a.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	if err := a.registrar.UnregisterRules(ctx, ids); err != nil {
		a.logger.Warn().Err(err).Ints("rule_ids", ids).Msg("Failed to unregister rules on shutdown")
	}
}

// RuleFor returns the active rule id for the extension.
func (a *Allocator) RuleFor(extensionID string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.byExtension[extensionID]
	return id, ok
}

// ExtensionForRule resolves a rule id back to its extension.
func (a *Allocator) ExtensionForRule(ruleID int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ext, ok := a.byRule[ruleID]
	return ext, ok
}

// ActiveRules returns the current mapping sorted by rule id.
func (a *Allocator) ActiveRules() []models.AttributionRule {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeRulesLocked()
}

func (a *Allocator) activeRulesLocked() []models.AttributionRule {
	rules := make([]models.AttributionRule, 0, len(a.byRule))
	for id, ext := range a.byRule {
		rules = append(rules, models.AttributionRule{RuleID: id, ExtensionID: ext})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].RuleID < rules[j].RuleID })
	return rules
}

// pickFreeIDLocked scans the arena for the lowest unused rule id.
func (a *Allocator) pickFreeIDLocked() (int, bool) {
	limit := a.poolSize()
	for id := 1; id <= limit; id++ {
		if _, taken := a.byRule[id]; !taken {
			return id, true
		}
	}
	return 0, false
}

// persistLocked writes the current mapping through the rule store. Failures
// log and degrade: the next reconciliation repairs the cache from the
// platform's authoritative state.
func (a *Allocator) persistLocked() {
	if err := a.store.Save(a.activeRulesLocked()); err != nil {
		a.logger.Error().Err(err).Msg("Failed to persist rule mapping")
	}
}
