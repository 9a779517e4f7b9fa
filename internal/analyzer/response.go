package analyzer

import (
	"fmt"
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
)

// ShouldEscalate reports whether the conversation should be handed to a person.
func ShouldEscalate(result domain.AnalysisResult) bool {
	return result.Strategy == domain.StrategyEscalation ||
		result.Urgency == domain.UrgencyCritical ||
		result.Frustration >= 8
}

// GenerateResponse derives a reply for messages that no ticket operation handled.
// It reads conv but never mutates it.
func GenerateResponse(result domain.AnalysisResult, conv *domain.ConversationContext) string {
	name := ""
	if conv != nil && conv.Customer.Name != "" {
		name = " " + conv.Customer.Name
	}

	switch result.Strategy {
	case domain.StrategyEscalation:
		return fmt.Sprintf("I'm really sorry about this%s. I'm flagging your case for a senior support agent right away. "+
			"For the fastest help, please call us directly using the button below.", name)
	case domain.StrategyEmpathetic:
		if result.FailedCall.Likely {
			return fmt.Sprintf("I'm sorry you couldn't reach us%s. I can register your request right here so a technician calls you back. %s",
				name, askFor(conv))
		}
		return fmt.Sprintf("I understand how frustrating this is%s. Let's get it sorted. %s", name, askFor(conv))
	case domain.StrategyInformationGathering:
		return "I can help with that. " + askFor(conv)
	}

	switch result.PrimaryIntent {
	case domain.IntentGreeting:
		return "Hello! I can book a repair, check on an existing request, or help reschedule a visit. What do you need today?"
	case domain.IntentServiceRequest:
		return "I can arrange a technician visit. " + askFor(conv)
	case domain.IntentComplaint:
		return "I'm sorry for the trouble. Could you share your ticket number or registered phone number so I can look into it?"
	}
	return "I can help you book a repair, track a request, or change an appointment. What would you like to do?"
}

// askFor builds a prompt for the customer details still missing from conv.
func askFor(conv *domain.ConversationContext) string {
	var missing []string
	if conv == nil || conv.Customer.Name == "" {
		missing = append(missing, "your name")
	}
	if conv == nil || conv.Customer.Phone == "" {
		missing = append(missing, "phone number")
	}
	if conv == nil || conv.Customer.Location == "" {
		missing = append(missing, "location")
	}
	if conv == nil || len(strings.TrimSpace(conv.Problem())) < 5 {
		missing = append(missing, "what's wrong with the appliance")
	}
	if len(missing) == 0 {
		return "I have all your details."
	}
	return "Please share " + JoinList(missing) + "."
}

// JoinList renders items as "a", "a and b" or "a, b and c".
func JoinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
