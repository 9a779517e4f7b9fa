package detector

import (
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/rules"
)

// TicketRequest is a validated ticket-creation request derived from a failed-call signal.
type TicketRequest struct {
	Customer           domain.CustomerInfo
	ProblemDescription string
	ServiceType        domain.ServiceType
	ApplianceType      string
	Urgency            domain.Urgency
	TriggerPhrase      string
}

// BuildTicketRequest validates the signal merged with conv. The first unusable field is
// reported as a *domain.ValidationError.
func BuildTicketRequest(signal domain.FailedCallSignal, conv *domain.ConversationContext) (TicketRequest, error) {
	customer := signal.CustomerData
	problem := signal.ProblemDescription
	if conv != nil {
		customer = mergeCustomer(customer, conv.Customer)
		if problem == "" {
			problem = conv.Problem()
		}
	}
	if customer.Location == "" {
		customer.Location = signal.Location
	}

	name := strings.TrimSpace(customer.Name)
	if len(name) < 2 {
		return TicketRequest{}, domain.NewValidationError("name", "customer name must be at least 2 characters")
	}
	phone, ok := ValidatePhone(customer.Phone)
	if !ok {
		return TicketRequest{}, domain.NewValidationError("phone", "phone must be a 10 digit mobile number starting with 6-9")
	}
	location := strings.TrimSpace(customer.Location)
	if len(location) < 3 {
		return TicketRequest{}, domain.NewValidationError("location", "location must be at least 3 characters")
	}
	problem = strings.TrimSpace(problem)
	if len(problem) < 5 {
		return TicketRequest{}, domain.NewValidationError("problem", "problem description must be at least 5 characters")
	}

	urgency := signal.UrgencyLevel
	if !urgency.Valid() {
		urgency = domain.UrgencyMedium
	}
	appliance, _ := rules.DetectAppliance(problem)

	return TicketRequest{
		Customer: domain.CustomerInfo{
			Name:     name,
			Phone:    phone,
			Location: location,
			Email:    strings.TrimSpace(customer.Email),
		},
		ProblemDescription: problem,
		ServiceType:        rules.ServiceTypeFor(problem),
		ApplianceType:      appliance,
		Urgency:            urgency,
		TriggerPhrase:      signal.TriggerPhrase,
	}, nil
}

func mergeCustomer(primary, fallback domain.CustomerInfo) domain.CustomerInfo {
	if primary.Name == "" {
		primary.Name = fallback.Name
	}
	if primary.Phone == "" {
		primary.Phone = fallback.Phone
	}
	if primary.Location == "" {
		primary.Location = fallback.Location
	}
	if primary.Email == "" {
		primary.Email = fallback.Email
	}
	return primary
}
