package analyzer

import (
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/rules"
)

var actionIntents = map[domain.TaskAction]domain.Intent{
	domain.TaskActionCreate: domain.IntentServiceRequest,
	domain.TaskActionUpdate: domain.IntentTicketUpdate,
	domain.TaskActionStatus: domain.IntentTicketStatus,
	domain.TaskActionList:   domain.IntentTicketList,
	domain.TaskActionDelete: domain.IntentTicketCancel,
}

// Heuristic classifies message from keyword lists alone. It never fails and every
// field of the result is populated with a valid value.
func Heuristic(message string, conv *domain.ConversationContext) domain.AnalysisResult {
	lower := strings.ToLower(message)
	result := domain.AnalysisResult{
		SecondaryIntents: []domain.Intent{},
		Source:           domain.AnalysisSourceHeuristic,
	}

	if rule, ok := rules.MatchTrigger(lower); ok {
		switch rule.Category {
		case domain.TriggerAppointmentNoShow:
			result.FailedCall = domain.FailedCallAssessment{Likely: true, Confidence: 0.9, Reason: "matched " + rule.Phrase}
		case domain.TriggerFailedCall:
			result.FailedCall = domain.FailedCallAssessment{Likely: true, Confidence: 0.8, Reason: "matched " + rule.Phrase}
		default:
			result.FailedCall = domain.FailedCallAssessment{Confidence: 0.3, Reason: "matched " + rule.Phrase}
		}
	}

	if action, _, ok := rules.MatchTaskAction(lower); ok {
		result.TaskIntent = domain.TaskIntent{Detected: true, Action: action, Confidence: 0.7}
	}

	result.Urgency = rules.ClassifyUrgency(lower)
	result.Frustration = frustrationScore(message, result.FailedCall.Likely)

	var intents []domain.Intent
	if result.FailedCall.Likely {
		intents = append(intents, domain.IntentFailedCallReport)
	}
	if result.TaskIntent.Detected {
		intents = append(intents, actionIntents[result.TaskIntent.Action])
	}
	if result.Frustration >= 6 {
		intents = append(intents, domain.IntentComplaint)
	}
	if looksLikeServiceRequest(lower) {
		intents = append(intents, domain.IntentServiceRequest)
	}
	if rules.ContainsAny(" "+lower+" ", rules.GreetingPhrases) {
		intents = append(intents, domain.IntentGreeting)
	}
	intents = dedupeIntents(intents)
	if len(intents) == 0 {
		result.PrimaryIntent = domain.IntentGeneralInquiry
	} else {
		result.PrimaryIntent = intents[0]
		result.SecondaryIntents = append(result.SecondaryIntents, intents[1:]...)
	}

	result.Strategy = chooseStrategy(result, conv)
	return result
}

func looksLikeServiceRequest(lower string) bool {
	if _, ok := rules.MatchSymptom(lower); ok {
		return true
	}
	if _, ok := rules.DetectAppliance(lower); ok {
		return true
	}
	return rules.ContainsAny(lower, rules.GenericRequestWords)
}

func frustrationScore(message string, failedCall bool) int {
	score := 2 * rules.CountMatches(message, rules.FrustrationPhrases)
	if failedCall {
		score += 2
	}
	if strings.Count(message, "!") >= 2 {
		score++
	}
	if isShouting(message) {
		score += 2
	}
	if score > domain.MaxFrustration {
		score = domain.MaxFrustration
	}
	return score
}

func isShouting(message string) bool {
	letters, upper := 0, 0
	for _, r := range message {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
			upper++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	return letters >= 12 && upper*10 >= letters*7
}

func chooseStrategy(result domain.AnalysisResult, conv *domain.ConversationContext) domain.ResponseStrategy {
	switch {
	case result.Urgency == domain.UrgencyCritical || result.Frustration >= 7:
		return domain.StrategyEscalation
	case result.FailedCall.Likely || result.Frustration >= 4:
		return domain.StrategyEmpathetic
	case result.PrimaryIntent == domain.IntentServiceRequest && missingContact(conv):
		return domain.StrategyInformationGathering
	}
	return domain.StrategySolutionFocused
}

func missingContact(conv *domain.ConversationContext) bool {
	if conv == nil {
		return true
	}
	return conv.Customer.Name == "" || conv.Customer.Phone == "" || conv.Customer.Location == ""
}

func dedupeIntents(in []domain.Intent) []domain.Intent {
	seen := make(map[domain.Intent]bool, len(in))
	out := in[:0]
	for _, i := range in {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}
