// services/notifier.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	notifyMaxAttempts = 3
	notifyBaseDelay   = 2 * time.Second
)

type webhookNotifier struct {
	url         string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// NewWebhookNotifier creates the completion notifier. With an empty URL it
// is a no-op, which keeps local development quiet.
func NewWebhookNotifier(url string, logger *zap.Logger) NotifierService {
	return &webhookNotifier{
		url:         url,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		maxAttempts: notifyMaxAttempts,
		baseDelay:   notifyBaseDelay,
		logger:      logger.Named("Notifier"),
	}
}

// NotifyCompletion posts the completion payload, retrying a bounded number
// of times with exponential backoff. The audit is already terminal when
// this runs, so a delivery failure is logged and returned but never
// re-opens the job.
func (n *webhookNotifier) NotifyCompletion(ctx context.Context, notification *CompletionNotification) error {
	if n.url == "" {
		return nil
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode completion payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < n.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := n.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = n.post(ctx, payload)
		if lastErr == nil {
			n.logger.Info("completion notification delivered",
				zap.String("audit_job_id", notification.AuditJobID.String()))
			return nil
		}
		n.logger.Warn("completion notification attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return fmt.Errorf("completion notification failed after %d attempts: %w", n.maxAttempts, lastErr)
}

func (n *webhookNotifier) post(ctx context.Context, payload []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := n.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", response.StatusCode)
	}
	return nil
}
