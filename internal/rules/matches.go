package rules

import (
	"context"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/attribution"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/platform"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/urlhandler"
	"github.com/google/uuid"
)

// NameResolver maps an extension id to its display name, if known.
type NameResolver interface {
	Get(extensionID string) (models.ExtensionInfo, bool)
}

// MatchChecker polls the platform's match diagnostics and converts them into
// provisional records. This is the only attribution channel for requests the
// direct observation window cannot see, such as requests issued from isolated
// extension contexts after a restart.
type MatchChecker struct {
	poller    platform.MatchPoller
	allocator *Allocator
	names     NameResolver
}

// NewMatchChecker creates a MatchChecker.
func NewMatchChecker(poller platform.MatchPoller, allocator *Allocator, names NameResolver) *MatchChecker {
	return &MatchChecker{poller: poller, allocator: allocator, names: names}
}

// CheckMatches drains match diagnostics accumulated since the last call and
// converts each into a provisional NetworkRequestRecord with
// DetectedByRuleMatch. Events whose rule id resolves to no known extension are
// skipped; everything else favors completeness over strict correctness.
func (mc *MatchChecker) CheckMatches(ctx context.Context) ([]models.NetworkRequestRecord, error) {
	events, err := mc.poller.DrainMatchedEvents(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]models.NetworkRequestRecord, 0, len(events))
	for _, event := range events {
		extensionID, ok := mc.allocator.ExtensionForRule(event.RuleID)
		if !ok {
			continue
		}

		name := attribution.UnknownExtensionName
		if info, known := mc.names.Get(extensionID); known {
			name = info.Name
		}

		method := event.Method
		if method == "" {
			method = "GET"
		}

		records = append(records, models.NetworkRequestRecord{
			ID:            uuid.NewString(),
			Timestamp:     event.Timestamp,
			URL:           event.URL,
			Method:        method,
			Domain:        urlhandler.ExtractDomain(event.URL),
			ResourceType:  event.ResourceType,
			InitiatorType: models.InitiatorExtension,
			ExtensionID:   extensionID,
			ExtensionName: name,
			TabID:         event.TabID,
			DetectedBy:    models.DetectedByRuleMatch,
		})
	}
	return records, nil
}
