package rules

import (
	"regexp"
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
)

// Urgency tiers are disjoint; ClassifyUrgency checks critical, then high, then low.
var (
	CriticalUrgencyPhrases = []string{
		"fire",
		"smoke",
		"gas leak",
		"electric shock",
		"short circuit",
		"explosion",
		"burst",
	}
	HighUrgencyPhrases = []string{
		"emergency",
		"urgent",
		"urgently",
		"immediately",
		"asap",
		"right now",
		"as soon as possible",
		"no cooling",
		"not cooling at all",
		"no power",
		"sparking",
		"sparks",
		"burning",
		"water everywhere",
		"flooding",
		"baby",
		"elderly",
		"medicine",
	}
	LowUrgencyPhrases = []string{
		"when possible",
		"whenever possible",
		"no rush",
		"no hurry",
		"not urgent",
		"routine",
		"regular service",
		"general service",
		"next week",
		"sometime",
		"at your convenience",
	}
)

// ClassifyUrgency maps text onto an urgency tier, defaulting to medium.
func ClassifyUrgency(text string) domain.Urgency {
	switch {
	case ContainsAny(text, CriticalUrgencyPhrases):
		return domain.UrgencyCritical
	case ContainsAny(text, HighUrgencyPhrases):
		return domain.UrgencyHigh
	case ContainsAny(text, LowUrgencyPhrases):
		return domain.UrgencyLow
	}
	return domain.UrgencyMedium
}

// FrustrationPhrases raise the frustration score in the heuristic analyzer.
var FrustrationPhrases = []string{
	"frustrated",
	"frustrating",
	"angry",
	"annoyed",
	"ridiculous",
	"unacceptable",
	"terrible",
	"worst",
	"pathetic",
	"useless",
	"disappointed",
	"fed up",
	"again and again",
	"still waiting",
	"how many times",
	"wasted",
	"never",
	"!!",
}

// GreetingPhrases mark a conversational opener. Match against the text padded with spaces.
var GreetingPhrases = []string{" hello", " hi ", " hey ", " good morning", " good afternoon", " good evening", " namaste"}

// Task intent phrases per action, checked delete, update, status, list, create.
var TaskIntentPhrases = map[domain.TaskAction][]string{
	domain.TaskActionDelete: {
		"cancel my", "cancel the", "cancel ticket", "cancel request", "cancel booking",
		"delete my", "delete the", "delete ticket", "don't need the service", "do not need the service",
		"remove my request",
	},
	domain.TaskActionUpdate: {
		"update my", "update the", "change my", "change the", "modify", "edit my",
		"reschedule", "change address", "change phone", "mark as", "make it urgent",
	},
	domain.TaskActionStatus: {
		"status", "where is my", "where's my", "track", "any update", "what happened to my",
		"progress of", "when will the technician", "when is the technician",
	},
	domain.TaskActionList: {
		"my tickets", "my requests", "all my", "list my", "show my", "previous requests",
		"ticket history", "past requests", "open tickets",
	},
	domain.TaskActionCreate: {
		"create a ticket", "create ticket", "raise a ticket", "raise a complaint", "register a complaint",
		"book a", "book service", "schedule a visit", "schedule a technician", "new request",
		"need a technician", "send a technician", "send someone",
	},
}

// TaskActionOrder fixes the evaluation order for TaskIntentPhrases.
var TaskActionOrder = []domain.TaskAction{
	domain.TaskActionDelete,
	domain.TaskActionUpdate,
	domain.TaskActionStatus,
	domain.TaskActionList,
	domain.TaskActionCreate,
}

// MatchTaskAction returns the first task action whose phrases occur in text.
func MatchTaskAction(text string) (domain.TaskAction, string, bool) {
	for _, action := range TaskActionOrder {
		if phrase, ok := FirstMatch(text, TaskIntentPhrases[action]); ok {
			return action, phrase, true
		}
	}
	return "", "", false
}

// StatusPhrases infer a target ticket status from free text.
var StatusPhrases = []struct {
	Phrases []string
	Status  domain.TicketStatus
}{
	{[]string{"cancel"}, domain.TicketStatusCancelled},
	{[]string{"completed", "fixed", "resolved", "done", "working now", "working fine now"}, domain.TicketStatusCompleted},
	{[]string{"on hold", "hold it", "pause", "postpone"}, domain.TicketStatusOnHold},
	{[]string{"in progress", "started work", "technician is here", "technician arrived"}, domain.TicketStatusInProgress},
	{[]string{"scheduled", "reschedule", "book the visit"}, domain.TicketStatusScheduled},
}

// InferStatus returns the status implied by text, if any.
func InferStatus(text string) (domain.TicketStatus, bool) {
	for _, entry := range StatusPhrases {
		if ContainsAny(text, entry.Phrases) {
			return entry.Status, true
		}
	}
	return "", false
}

// PartsKeywords suggest a part will need to be ordered.
var PartsKeywords = []string{
	"compressor",
	"thermostat",
	"coil",
	"motor",
	"capacitor",
	"pcb",
	"circuit board",
	"fan blade",
	"gas refill",
	"gas leak",
	"not cooling",
	"broken",
	"burst",
	"burnt",
	"replace",
	"replacement",
	"spare",
}

// RequiresParts reports whether the problem description hints at a part order.
func RequiresParts(problem string) bool {
	return ContainsAny(problem, PartsKeywords)
}

// GenericRequestWords describe a service without describing a fault.
var GenericRequestWords = []string{
	"repair",
	"service",
	"servicing",
	"parts",
	"spare",
	"maintenance",
	"installation",
	"install",
	"check up",
	"checkup",
	"check-up",
	"technician",
	"help",
}

var genericFillers = regexp.MustCompile(`\b(i|we|need|want|would|like|to|get|a|an|the|my|our|for|please|some|book|can|you|send|do|is|it|required|looking|one|someone)\b`)

// IsGenericRequest reports whether text only asks for service without naming a symptom.
func IsGenericRequest(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return true
	}
	if _, ok := MatchSymptom(lower); ok {
		return false
	}
	stripped := applianceRegexp.ReplaceAllString(lower, " ")
	stripped = genericFillers.ReplaceAllString(stripped, " ")
	for _, w := range GenericRequestWords {
		stripped = strings.ReplaceAll(stripped, w, " ")
	}
	stripped = strings.Trim(strings.Join(strings.Fields(stripped), " "), ".,!?;:-")
	return strings.TrimSpace(stripped) == ""
}
