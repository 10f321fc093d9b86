package config

import "time"

// NotificationConfig defines configuration for alert notifications.
type NotificationConfig struct {
	// AlertWebhookURL receives alert payloads. Empty disables sending.
	AlertWebhookURL string `json:"alert_webhook_url,omitempty" yaml:"alert_webhook_url,omitempty" validate:"omitempty,url"`

	CooldownSeconds int           `json:"cooldown_seconds,omitempty" yaml:"cooldown_seconds,omitempty" validate:"omitempty,min=1"`
	CooldownWindow  time.Duration `json:"-" yaml:"-"`

	WebhookTimeoutSeconds int `json:"webhook_timeout_seconds,omitempty" yaml:"webhook_timeout_seconds,omitempty" validate:"omitempty,min=1"`
	RetryAttempts         int `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty" validate:"omitempty,min=0"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		AlertWebhookURL:       "",
		CooldownSeconds:       DefaultAlertCooldownSeconds,
		CooldownWindow:        time.Duration(DefaultAlertCooldownSeconds) * time.Second,
		WebhookTimeoutSeconds: DefaultWebhookTimeoutSecs,
		RetryAttempts:         DefaultWebhookRetryAttempts,
	}
}

// ApplyDurations recomputes derived duration fields after loading from a file.
func (nc *NotificationConfig) ApplyDurations() {
	if nc.CooldownSeconds > 0 {
		nc.CooldownWindow = time.Duration(nc.CooldownSeconds) * time.Second
	}
}
