package domain

import "time"

// CommunicationType identifies the channel of a log entry.
type CommunicationType string

const (
	CommunicationCall     CommunicationType = "call"
	CommunicationWhatsApp CommunicationType = "whatsapp"
	CommunicationEmail    CommunicationType = "email"
	CommunicationSMS      CommunicationType = "sms"
	CommunicationChat     CommunicationType = "chat"
	CommunicationNote     CommunicationType = "note"
	CommunicationSystem   CommunicationType = "system"
)

// CommunicationDirection tells who initiated a log entry.
type CommunicationDirection string

const (
	DirectionInbound  CommunicationDirection = "inbound"
	DirectionOutbound CommunicationDirection = "outbound"
	DirectionInternal CommunicationDirection = "internal"
)

// CommunicationEntry is an immutable entry in a ticket's communication log.
type CommunicationEntry struct {
	ID        string
	TicketID  string
	Timestamp time.Time
	Type      CommunicationType
	Direction CommunicationDirection
	Content   string
	Author    string
	Status    string
}

const (
	AuthorSystem    = "system"
	AuthorCustomer  = "customer"
	AuthorAssistant = "assistant"
)
