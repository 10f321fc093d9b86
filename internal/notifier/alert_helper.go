package notifier

import (
	"context"
	"sync"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/cooldown"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/rs/zerolog"
)

// AlertHelper fans out extension request events to registered consumers and
// sends cooldown-gated alert notifications. Keys are (kind, extensionID), so
// one noisy extension never suppresses alerts for others.
type AlertHelper struct {
	notifier  *WebhookNotifier
	cooldowns *cooldown.Manager
	cfg       config.NotificationConfig
	logger    zerolog.Logger

	mu        sync.RWMutex
	consumers []func(models.ExtensionRequestEvent)
}

// NewAlertHelper creates an AlertHelper.
func NewAlertHelper(notifier *WebhookNotifier, cooldowns *cooldown.Manager, cfg config.NotificationConfig, baseLogger zerolog.Logger) *AlertHelper {
	return &AlertHelper{
		notifier:  notifier,
		cooldowns: cooldowns,
		cfg:       cfg,
		logger:    baseLogger.With().Str("component", "AlertHelper").Logger(),
	}
}

// Subscribe registers a consumer for extension request events.
func (ah *AlertHelper) Subscribe(consumer func(models.ExtensionRequestEvent)) {
	ah.mu.Lock()
	ah.consumers = append(ah.consumers, consumer)
	ah.mu.Unlock()
}

// EmitExtensionRequest publishes one event per attributed extension record.
func (ah *AlertHelper) EmitExtensionRequest(record models.NetworkRequestRecord) {
	if record.InitiatorType != models.InitiatorExtension {
		return
	}

	event := models.ExtensionRequestEvent{
		ExtensionID:   record.ExtensionID,
		ExtensionName: record.ExtensionName,
		URL:           record.URL,
		Method:        record.Method,
		ResourceType:  record.ResourceType,
		InitiatorType: record.InitiatorType,
	}

	ah.mu.RLock()
	consumers := ah.consumers
	ah.mu.RUnlock()
	for _, consumer := range consumers {
		consumer(event)
	}
}

// SendAlert sends the alert unless its key is on cooldown. The cooldown is
// set only after a successful send, so transient webhook failures do not eat
// the alert window.
func (ah *AlertHelper) SendAlert(ctx context.Context, alert models.AlertEvent) {
	key := cooldown.Key(alert.Kind, alert.ExtensionID)
	if alert.ExtensionID == "" {
		key = cooldown.Key(alert.Kind, alert.Domain)
	}

	if ah.cooldowns.IsOnCooldown(key) {
		ah.logger.Debug().Str("key", key).Msg("Alert suppressed by cooldown")
		return
	}

	if err := ah.notifier.SendAlert(ctx, ah.cfg.AlertWebhookURL, alert); err != nil {
		ah.logger.Warn().Err(err).Str("key", key).Msg("Alert delivery failed")
		return
	}

	ah.cooldowns.SetCooldown(key)
}
