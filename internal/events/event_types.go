package events

import (
	"time"

	"github.com/coolfix/service-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventCommunicationAdded  EventType = "communication_added"
	EventFollowUpDue         EventType = "follow_up_due"
	EventEscalationRequested EventType = "escalation_requested"
)

// ActorType says who caused an event.
type ActorType string

const (
	ActorCustomer  ActorType = "customer"
	ActorAssistant ActorType = "assistant"
	ActorSystem    ActorType = "system"
	ActorOperator  ActorType = "operator"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	TicketID     string      `json:"ticket_id"`
	TicketNumber string      `json:"ticket_number,omitempty"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerName  string                `json:"customer_name"`
	CustomerPhone string                `json:"customer_phone"`
	Location      string                `json:"location"`
	ServiceType   domain.ServiceType    `json:"service_type"`
	Priority      domain.TicketPriority `json:"priority"`
	IsEmergency   bool                  `json:"is_emergency"`
	ResponseTime  string                `json:"estimated_response_time"`
}

// TicketUpdatedPayload lists the fields an update changed.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID    string `json:"technician_id"`
	TechnicianName  string `json:"technician_name"`
	TechnicianPhone string `json:"technician_phone,omitempty"`
}

// CommunicationAddedPayload payload.
type CommunicationAddedPayload struct {
	EntryID   string                        `json:"entry_id"`
	Type      domain.CommunicationType      `json:"type"`
	Direction domain.CommunicationDirection `json:"direction"`
	Preview   string                        `json:"preview"`
}

// FollowUpDuePayload payload.
type FollowUpDuePayload struct {
	Status   domain.TicketStatus   `json:"status"`
	Priority domain.TicketPriority `json:"priority"`
}

// EscalationRequestedPayload is emitted when a conversation is handed to a person.
type EscalationRequestedPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}
