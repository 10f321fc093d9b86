package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/rs/zerolog"
)

const (
	defaultRetryAttempts = 2
	defaultRetryDelay    = 5 * time.Second
)

// WebhookNotifier posts alert payloads to a configured webhook URL.
type WebhookNotifier struct {
	logger        zerolog.Logger
	httpClient    *http.Client
	retryAttempts int
	retryDelay    time.Duration
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(baseLogger zerolog.Logger, httpClient *http.Client, retryAttempts int) *WebhookNotifier {
	moduleLogger := baseLogger.With().Str("component", "WebhookNotifier").Logger()

	if httpClient == nil {
		moduleLogger.Warn().Msg("HTTP client is nil, using default client with 20s timeout")
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if retryAttempts < 0 {
		retryAttempts = defaultRetryAttempts
	}

	return &WebhookNotifier{
		logger:        moduleLogger,
		httpClient:    httpClient,
		retryAttempts: retryAttempts,
		retryDelay:    defaultRetryDelay,
	}
}

// SendAlert posts the alert to the webhook URL. An empty URL disables sending
// and is not an error.
func (wn *WebhookNotifier) SendAlert(ctx context.Context, webhookURL string, alert models.AlertEvent) error {
	if webhookURL == "" {
		wn.logger.Debug().Msg("Webhook URL is empty, skipping alert notification")
		return nil
	}

	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return common.WrapError(err, "invalid alert webhook URL")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return common.WrapError(err, "failed to marshal alert payload")
	}

	var lastErr error
	for attempt := 0; attempt <= wn.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wn.retryDelay):
			}
		}

		lastErr = wn.post(ctx, webhookURL, payload)
		if lastErr == nil {
			wn.logger.Debug().Str("kind", alert.Kind).Msg("Alert notification sent")
			return nil
		}
		wn.logger.Warn().Err(lastErr).Int("attempt", attempt+1).Msg("Alert webhook post failed")
	}

	return common.WrapError(lastErr, "alert notification failed after retries")
}

func (wn *WebhookNotifier) post(ctx context.Context, webhookURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wn.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.NewError("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
