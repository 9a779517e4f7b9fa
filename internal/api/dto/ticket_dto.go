package dto

import (
	"time"

	"github.com/coolfix/service-desk/internal/conversation"
	"github.com/coolfix/service-desk/internal/domain"
)

// TicketListQuery captures query filters for GET /tickets.
type TicketListQuery struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	ServiceTypes []domain.ServiceType
	Phone        string
	Name         string
	TicketNumber string
	TechnicianID string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Page         int
	PageSize     int
}

// TicketSummary response.
type TicketSummary struct {
	ID                    string                `json:"id"`
	TicketNumber          string                `json:"ticket_number"`
	CustomerName          string                `json:"customer_name"`
	CustomerPhone         string                `json:"customer_phone"`
	Location              string                `json:"location"`
	ServiceType           domain.ServiceType    `json:"service_type"`
	Status                domain.TicketStatus   `json:"status"`
	Priority              domain.TicketPriority `json:"priority"`
	Urgency               domain.Urgency        `json:"urgency"`
	IsEmergency           bool                  `json:"is_emergency"`
	EstimatedResponseTime string                `json:"estimated_response_time"`
	TechnicianName        string                `json:"technician_name,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID                    string                  `json:"id"`
	TicketNumber          string                  `json:"ticket_number"`
	Customer              domain.CustomerInfo     `json:"customer"`
	ServiceType           domain.ServiceType      `json:"service_type"`
	Appliance             domain.Appliance        `json:"appliance"`
	ProblemDescription    string                  `json:"problem_description"`
	Urgency               domain.Urgency          `json:"urgency"`
	Status                domain.TicketStatus     `json:"status"`
	Priority              domain.TicketPriority   `json:"priority"`
	AssignedTechnician    *domain.Technician      `json:"assigned_technician"`
	RelatedFailedCallRef  *string                 `json:"related_failed_call_ref"`
	IsEmergency           bool                    `json:"is_emergency"`
	RequiresPartOrdering  bool                    `json:"requires_part_ordering"`
	EstimatedResponseTime string                  `json:"estimated_response_time"`
	Tags                  []string                `json:"tags"`
	ScheduledAt           *time.Time              `json:"scheduled_at"`
	CompletedAt           *time.Time              `json:"completed_at"`
	CreatedAt             time.Time               `json:"created_at"`
	UpdatedAt             time.Time               `json:"updated_at"`
	Version               int64                   `json:"version"`
	CommunicationLog      []CommunicationResponse `json:"communication_log"`
}

// CommunicationResponse represents one log entry.
type CommunicationResponse struct {
	ID        string                        `json:"id"`
	Timestamp time.Time                     `json:"timestamp"`
	Type      domain.CommunicationType      `json:"type"`
	Direction domain.CommunicationDirection `json:"direction"`
	Content   string                        `json:"content"`
	Author    string                        `json:"author"`
	Status    string                        `json:"status,omitempty"`
}

// ChangeStatusRequest payload for PATCH /tickets/:id/status.
type ChangeStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment"`
	Author  string              `json:"author"`
}

// CreateCommunicationRequest payload.
type CreateCommunicationRequest struct {
	Type      domain.CommunicationType      `json:"type"`
	Direction domain.CommunicationDirection `json:"direction"`
	Content   string                        `json:"content"`
	Author    string                        `json:"author"`
	Status    string                        `json:"status"`
}

// SessionResponse is returned when a chat session starts.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Greeting  string    `json:"greeting"`
}

// ChatMessageRequest payload for POST /chat/messages.
type ChatMessageRequest struct {
	Message string `json:"message"`
}

// ChatMessageResponse is one assistant turn plus any tickets the turn touched.
type ChatMessageResponse struct {
	conversation.ChatReply
	Ticket  *TicketSummary  `json:"ticket,omitempty"`
	Tickets []TicketSummary `json:"tickets,omitempty"`
}

// AnalyzeRequest payload for POST /analyze.
type AnalyzeRequest struct {
	Message string `json:"message"`
}

// AnalyzeResponse is the stateless classification of one message.
type AnalyzeResponse struct {
	Analysis       domain.AnalysisResult   `json:"analysis"`
	FailedCall     domain.FailedCallSignal `json:"failed_call"`
	ShouldEscalate bool                    `json:"should_escalate"`
}
