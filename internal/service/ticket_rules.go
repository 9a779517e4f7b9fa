package service

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coolfix/service-desk/internal/domain"
)

// allowedTransitions lists legal status moves. Terminal states have no entry.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew: {
		domain.TicketStatusAcknowledged, domain.TicketStatusScheduled, domain.TicketStatusInProgress,
		domain.TicketStatusCompleted, domain.TicketStatusCancelled, domain.TicketStatusOnHold,
	},
	domain.TicketStatusAcknowledged: {
		domain.TicketStatusScheduled, domain.TicketStatusInProgress, domain.TicketStatusCompleted,
		domain.TicketStatusCancelled, domain.TicketStatusOnHold,
	},
	domain.TicketStatusScheduled: {
		domain.TicketStatusInProgress, domain.TicketStatusCompleted,
		domain.TicketStatusCancelled, domain.TicketStatusOnHold,
	},
	domain.TicketStatusInProgress: {
		domain.TicketStatusCompleted, domain.TicketStatusCancelled, domain.TicketStatusOnHold,
	},
	domain.TicketStatusOnHold: {
		domain.TicketStatusAcknowledged, domain.TicketStatusScheduled, domain.TicketStatusInProgress,
		domain.TicketStatusCancelled,
	},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to domain.TicketStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsEmergency reports whether the service type demands the emergency response window.
func IsEmergency(serviceType domain.ServiceType) bool {
	return serviceType == domain.ServiceTypeEmergency
}

// ComputePriority derives the ticket priority from urgency and service type.
func ComputePriority(urgency domain.Urgency, serviceType domain.ServiceType) domain.TicketPriority {
	if IsEmergency(serviceType) {
		return domain.TicketPriorityCritical
	}
	switch urgency {
	case domain.UrgencyCritical:
		return domain.TicketPriorityCritical
	case domain.UrgencyHigh:
		return domain.TicketPriorityHigh
	case domain.UrgencyLow:
		return domain.TicketPriorityLow
	}
	if serviceType == domain.ServiceTypeACRepair {
		return domain.TicketPriorityMedium
	}
	return domain.TicketPriorityLow
}

// ResponseTimeFor returns the promised response window.
func ResponseTimeFor(priority domain.TicketPriority, emergency bool) string {
	if emergency {
		return "within 2 hours"
	}
	switch priority {
	case domain.TicketPriorityCritical:
		return "within 4 hours"
	case domain.TicketPriorityHigh:
		return "within 24 hours"
	case domain.TicketPriorityMedium:
		return "within 48 hours"
	}
	return "3-5 business days"
}

// FollowUpDelay returns how long after creation a ticket is checked on.
func FollowUpDelay(priority domain.TicketPriority) time.Duration {
	switch priority {
	case domain.TicketPriorityCritical:
		return 30 * time.Minute
	case domain.TicketPriorityHigh:
		return 2 * time.Hour
	case domain.TicketPriorityMedium:
		return 24 * time.Hour
	}
	return 48 * time.Hour
}

// applyDerived recomputes priority, emergency flag and response window together.
func applyDerived(ticket *domain.ServiceTicket) {
	ticket.IsEmergency = IsEmergency(ticket.ServiceType)
	ticket.Priority = ComputePriority(ticket.Urgency, ticket.ServiceType)
	ticket.EstimatedResponseTime = ResponseTimeFor(ticket.Priority, ticket.IsEmergency)
}

// NewTicketNumber formats SR-YYMMDD-XXXXXX from the creation date and a random UUID.
func NewTicketNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return "SR-" + now.UTC().Format("060102") + "-" + suffix
}

func selectIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return sum % length
}
