package service

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/config"
	"github.com/coolfix/service-desk/internal/events"
)

// NotificationService handles emitting notifications for domain events and builds the
// contact links offered to customers.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventFollowUpDue, n.handleFollowUpDue)
	n.dispatcher.Subscribe(events.EventEscalationRequested, n.handleEscalation)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleFollowUpDue(ctx context.Context, event events.Event) error {
	n.logger.Warn("FollowUpDue", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleEscalation(ctx context.Context, event events.Event) error {
	n.logger.Warn("EscalationRequested", zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

// SupportHours returns the advertised phone support window.
func (n *NotificationService) SupportHours() string {
	return n.cfg.EscalationHours
}

// PhoneURI returns a tel: link for the support line.
func (n *NotificationService) PhoneURI() string {
	return "tel:+" + n.international(n.cfg.SupportPhone)
}

// WhatsAppLink returns a wa.me deep link with text prefilled.
func (n *NotificationService) WhatsAppLink(text string) string {
	link := "https://wa.me/" + n.international(n.cfg.WhatsAppNumber)
	if strings.TrimSpace(text) == "" {
		return link
	}
	return link + "?text=" + url.QueryEscape(text)
}

// international prefixes the country code unless number already carries it.
func (n *NotificationService) international(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	cc := strings.TrimPrefix(strings.TrimSpace(n.cfg.CountryCode), "+")
	if cc == "" || (strings.HasPrefix(digits, cc) && len(digits) > 10) {
		return digits
	}
	return cc + digits
}
