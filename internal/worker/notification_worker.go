package worker

import (
	"github.com/coolfix/service-desk/internal/events"
	"github.com/coolfix/service-desk/internal/service"
)

// StartNotificationWorker registers notification handlers and, when configured, the Kafka
// forwarder on the dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher, publisher *events.KafkaPublisher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if publisher != nil {
		publisher.Attach(dispatcher)
	}
}
