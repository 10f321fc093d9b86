package rules

import (
	"context"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
)

// Reconcile resynchronizes local state against the platform after an
// unannounced restart. It runs unconditionally at start-up and may be invoked
// again on demand when an inconsistency is detected. The procedure:
//
//  1. load the persisted mapping (a hint, never ground truth),
//  2. query the platform for currently registered rules (source of truth),
//  3. drop platform rules whose extension is gone, excluded, or unknown to
//     the persisted mapping under a different assignment,
//  4. allocate rules for installed, non-excluded extensions lacking one,
//  5. persist the corrected mapping.
//
// Running it twice with no intervening install/uninstall leaves the mapping
// unchanged.
func (a *Allocator) Reconcile(ctx context.Context) error {
	persisted, err := a.store.Load()
	if err != nil {
		// A lost hint is recoverable; the platform query below rebuilds it.
		a.logger.Warn().Err(err).Msg("Failed to load persisted rule mapping, continuing with platform state only")
	}
	persistedByRule := make(map[int]string, len(persisted))
	for _, rule := range persisted {
		persistedByRule[rule.RuleID] = rule.ExtensionID
	}

	platformRules, err := a.registrar.ListRules(ctx)
	if err != nil {
		// Without the source of truth there is nothing safe to correct.
		return common.WrapError(err, "platform rule query failed, reconciliation skipped")
	}

	installed := a.installed.Snapshot()

	a.mu.Lock()

	// Adopt the platform state, discarding rules that no longer belong: the
	// extension was uninstalled, is excluded by config, or the persisted
	// mapping assigns the id elsewhere.
	toRemove := make([]int, 0)
	a.byExtension = make(map[string]int)
	a.byRule = make(map[int]string)

	for ruleID, extensionID := range platformRules {
		_, isInstalled := installed[extensionID]
		excluded := a.cfg.IsExtensionExcluded(extensionID)
		persistedExt, hasPersisted := persistedByRule[ruleID]
		conflicting := hasPersisted && persistedExt != extensionID

		if !isInstalled || excluded || conflicting || ruleID < 1 || ruleID > a.poolSize() {
			toRemove = append(toRemove, ruleID)
			continue
		}

		// Duplicate rules for one extension keep only the first adopted id.
		if _, dup := a.byExtension[extensionID]; dup {
			toRemove = append(toRemove, ruleID)
			continue
		}

		a.byExtension[extensionID] = ruleID
		a.byRule[ruleID] = extensionID
	}

	a.mu.Unlock()

	if len(toRemove) > 0 {
		a.logger.Info().Ints("rule_ids", toRemove).Msg("Removing orphaned platform rules")
		if err := a.registrar.UnregisterRules(ctx, toRemove); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to remove orphaned rules, will retry next reconciliation")
		}
	}

	// Allocate for installed, non-excluded extensions lacking a rule. Pool
	// exhaustion here is reported, not fatal.
	for extensionID := range installed {
		if a.cfg.IsExtensionExcluded(extensionID) {
			continue
		}
		if _, has := a.RuleFor(extensionID); has {
			continue
		}
		if err := a.Allocate(ctx, extensionID); err != nil {
			a.logger.Warn().Err(err).Str("extension_id", extensionID).Msg("Reconciliation allocation failed")
		}
	}

	a.mu.Lock()
	a.persistLocked()
	count := len(a.byRule)
	a.mu.Unlock()

	a.logger.Info().Int("active_rules", count).Msg("Rule reconciliation complete")
	return nil
}
