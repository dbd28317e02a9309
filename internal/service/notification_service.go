package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// NotificationSink accepts events for asynchronous delivery. Enqueue must
// not block; it reports false when the event was dropped.
type NotificationSink interface {
	Enqueue(event events.Event) bool
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	sink       NotificationSink
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. sink may be nil when no
// webhook is configured.
func NewNotificationService(dispatcher events.Dispatcher, sink NotificationSink, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger,
		cfg:        cfg,
	}
}

// emailEvents are the events that also warrant a mail to the people on the
// ticket. Status and priority changes only reach the webhook.
var emailEvents = map[events.EventType]bool{
	events.EventTicketCreated:      true,
	events.EventTicketAssigned:     true,
	events.EventTicketCommentAdded: true,
}

// RegisterHandlers subscribes to every ticket event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventTicketAssigned,
		events.EventTicketCommentAdded,
	} {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor", event.Actor.Name),
		zap.Any("payload", event.Payload))
	if emailEvents[event.Type] {
		n.logEmailNotification(ctx, event)
	}
	n.enqueueWebhook(event)
	return nil
}

// logEmailNotification records the mail that would go out for event. No mail
// is sent; the webhook is the delivery channel.
// TODO: replace with an SMTP sender once a mail relay is provisioned.
func (n *NotificationService) logEmailNotification(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("email notification",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) enqueueWebhook(event events.Event) {
	if n.sink == nil || strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	if !n.sink.Enqueue(event) {
		n.logger.Warn("notification queue full; event dropped",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)))
	}
}
