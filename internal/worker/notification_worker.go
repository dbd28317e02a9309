package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// WebhookWorker delivers queued events to a webhook, one at a time.
type WebhookWorker struct {
	url     string
	client  *http.Client
	queue   chan events.Event
	logger  *zap.Logger
	metrics *observability.Metrics
	wg      sync.WaitGroup
}

// NewWebhookWorker builds a worker with a bounded queue.
func NewWebhookWorker(url string, queueSize int, logger *zap.Logger, metrics *observability.Metrics) *WebhookWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &WebhookWorker{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		queue:   make(chan events.Event, queueSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Enqueue never blocks; it reports false when the queue is full.
func (w *WebhookWorker) Enqueue(event events.Event) bool {
	select {
	case w.queue <- event:
		return true
	default:
		w.metrics.Inc("notifications.dropped", 1)
		return false
	}
}

// Start consumes the queue until ctx is cancelled.
func (w *WebhookWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-w.queue:
				if err := w.deliver(ctx, event); err != nil {
					w.metrics.Inc("notifications.failed", 1)
					w.logger.Warn("webhook delivery failed",
						zap.String("event_id", event.ID),
						zap.String("event_type", string(event.Type)),
						zap.Error(err))
					continue
				}
				w.metrics.Inc("notifications.delivered", 1)
			}
		}
	}()
}

// Wait blocks until the consumer goroutine has exited.
func (w *WebhookWorker) Wait() {
	w.wg.Wait()
}

func (w *WebhookWorker) deliver(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.Type))

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// StartNotificationWorker registers notification handlers and starts the
// webhook consumer when one is given.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, webhook *WebhookWorker) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if webhook != nil {
		webhook.Start(ctx)
	}
}
