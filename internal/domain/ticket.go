package domain

import "time"

// TicketStatus enumerates lifecycle states for service tickets.
type TicketStatus string

const (
	TicketStatusNew          TicketStatus = "new"
	TicketStatusAcknowledged TicketStatus = "acknowledged"
	TicketStatusScheduled    TicketStatus = "scheduled"
	TicketStatusInProgress   TicketStatus = "in_progress"
	TicketStatusCompleted    TicketStatus = "completed"
	TicketStatusCancelled    TicketStatus = "cancelled"
	TicketStatusOnHold       TicketStatus = "on_hold"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusAcknowledged, TicketStatusScheduled, TicketStatusInProgress,
		TicketStatusCompleted, TicketStatusCancelled, TicketStatusOnHold:
		return true
	}
	return false
}

// ActiveStatuses lists every non-terminal status.
func ActiveStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusNew,
		TicketStatusAcknowledged,
		TicketStatusScheduled,
		TicketStatusInProgress,
		TicketStatusOnHold,
	}
}

// TicketPriority is the derived scheduling weight of a ticket.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// ServiceType classifies the kind of visit requested.
type ServiceType string

const (
	ServiceTypeACRepair             ServiceType = "ac_repair"
	ServiceTypeRefrigeratorRepair   ServiceType = "refrigerator_repair"
	ServiceTypeWashingMachineRepair ServiceType = "washing_machine_repair"
	ServiceTypeApplianceRepair      ServiceType = "appliance_repair"
	ServiceTypeInstallation         ServiceType = "installation"
	ServiceTypeMaintenance          ServiceType = "maintenance"
	ServiceTypeEmergency            ServiceType = "emergency"
)

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceTypeACRepair, ServiceTypeRefrigeratorRepair, ServiceTypeWashingMachineRepair,
		ServiceTypeApplianceRepair, ServiceTypeInstallation, ServiceTypeMaintenance, ServiceTypeEmergency:
		return true
	}
	return false
}

// Appliance describes the unit to be serviced.
type Appliance struct {
	Type  string `json:"type"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
	Age   string `json:"age,omitempty"`
}

// Technician is the field engineer assigned to a ticket.
type Technician struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// ServiceTicket is the durable record of a customer service request.
type ServiceTicket struct {
	ID                    string
	TicketNumber          string
	Customer              CustomerInfo
	ServiceType           ServiceType
	Appliance             Appliance
	ProblemDescription    string
	Urgency               Urgency
	Status                TicketStatus
	Priority              TicketPriority
	AssignedTechnician    *Technician
	CommunicationLog      []CommunicationEntry
	RelatedFailedCallRef  *string
	IsEmergency           bool
	RequiresPartOrdering  bool
	EstimatedResponseTime string
	Tags                  []string
	ScheduledAt           *time.Time
	CompletedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Version               int64
}

// Clone returns a deep copy safe for mutation.
func (t *ServiceTicket) Clone() *ServiceTicket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.AssignedTechnician != nil {
		tech := *t.AssignedTechnician
		cp.AssignedTechnician = &tech
	}
	if t.RelatedFailedCallRef != nil {
		ref := *t.RelatedFailedCallRef
		cp.RelatedFailedCallRef = &ref
	}
	if t.ScheduledAt != nil {
		at := *t.ScheduledAt
		cp.ScheduledAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	cp.Tags = append([]string(nil), t.Tags...)
	cp.CommunicationLog = append([]CommunicationEntry(nil), t.CommunicationLog...)
	return &cp
}
