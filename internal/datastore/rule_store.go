package datastore

import (
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/rs/zerolog"
)

// RuleStore persists the extension -> rule id mapping across process
// restarts. The persisted mapping is only a reconciliation hint: the rules the
// platform actually reports always win on conflict.
type RuleStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewRuleStore creates a RuleStore over the shared database.
func NewRuleStore(db *DB, baseLogger zerolog.Logger) *RuleStore {
	return &RuleStore{
		db:     db,
		logger: baseLogger.With().Str("component", "RuleStore").Logger(),
	}
}

// Load returns all persisted rule assignments.
func (s *RuleStore) Load() ([]models.AttributionRule, error) {
	rows, err := s.db.db.Query("SELECT rule_id, extension_id FROM rule_assignments ORDER BY rule_id ASC")
	if err != nil {
		return nil, common.WrapError(err, "failed to load rule assignments")
	}
	defer rows.Close()

	rules := make([]models.AttributionRule, 0)
	for rows.Next() {
		var rule models.AttributionRule
		if err := rows.Scan(&rule.RuleID, &rule.ExtensionID); err != nil {
			return nil, common.WrapError(err, "failed to scan rule assignment")
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Save replaces the persisted mapping with the given set atomically.
func (s *RuleStore) Save(rules []models.AttributionRule) error {
	tx, err := s.db.db.Begin()
	if err != nil {
		return common.WrapError(err, "failed to begin rule save transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM rule_assignments"); err != nil {
		return common.WrapError(err, "failed to clear rule assignments")
	}
	for _, rule := range rules {
		if _, err := tx.Exec("INSERT INTO rule_assignments (rule_id, extension_id) VALUES (?, ?)", rule.RuleID, rule.ExtensionID); err != nil {
			return common.WrapErrorf(err, "failed to insert rule assignment %d", rule.RuleID)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.WrapError(err, "failed to commit rule assignments")
	}
	s.logger.Debug().Int("count", len(rules)).Msg("Rule assignments persisted")
	return nil
}
