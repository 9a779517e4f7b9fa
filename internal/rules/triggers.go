// Package rules holds the phrase tables shared by the failed-call detector and the
// message analyzer. All phrases are lowercase and matched as substrings.
package rules

import (
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
)

// TriggerRule maps one phrase to the scenario it indicates.
type TriggerRule struct {
	Phrase   string
	Category domain.TriggerCategory
	// Rank orders categories; lower ranks are evaluated first.
	Rank int
}

var appointmentNoShowPhrases = []string{
	"technician never showed",
	"technician never came",
	"technician didn't come",
	"technician did not come",
	"technician didn't show",
	"technician did not show",
	"technician was supposed to come",
	"no one showed up",
	"nobody showed up",
	"nobody came",
	"no one came",
	"missed the appointment",
	"missed appointment",
	"missed my appointment",
	"appointment was missed",
	"didn't show up",
	"did not show up",
	"never showed up",
	"never turned up",
	"was waiting all day",
	"waited all day",
	"no show",
	"no-show",
	"stood up",
}

var failedCallPhrases = []string{
	"tried calling",
	"tried to call",
	"tried to reach",
	"trying to reach",
	"trying to call",
	"been calling",
	"called multiple times",
	"called several times",
	"called many times",
	"called you",
	"calling you",
	"couldn't reach",
	"could not reach",
	"can't reach",
	"cannot reach",
	"unable to reach",
	"couldn't get through",
	"could not get through",
	"can't get through",
	"no one answered",
	"nobody answered",
	"no one picked",
	"nobody picked",
	"no answer",
	"not answering",
	"didn't answer",
	"did not answer",
	"not picking up",
	"didn't pick up",
	"did not pick up",
	"no response",
	"no reply",
	"voicemail",
	"voice mail",
	"call dropped",
	"call got cut",
	"call disconnected",
	"line was busy",
	"line busy",
	"phone was busy",
	"number is busy",
	"always busy",
	"missed call",
	"call back",
	"callback",
	"never called back",
	"no one called back",
	"nobody called back",
	"waiting for a call",
	"waiting for your call",
	"phone not reachable",
	"not reachable",
	"switched off",
}

// Legacy triggers keep older broad matching: contact-detail submissions and
// general service complaints are treated as a request to be called back.
var legacyPhrases = []string{
	"couldn't call",
	"could not call",
	"call failed",
	"failed call",
	"failed to call",
	"failed to connect",
	"not connecting",
	"call not connecting",
	"no one is responding",
	"nobody is responding",
	"please call me",
	"call me back",
	"contact me",
	"reach me",
	"my name is",
	"my number is",
	"my phone is",
	"phone no",
	"phone number is",
	"mobile number",
	"contact number",
	"problem is",
	"issue is",
	"not working",
	"not cooling",
	"stopped working",
	"broken",
	"repair",
	"complaint",
	"burst",
	"leaking",
}

var triggerTable = buildTriggerTable()

func buildTriggerTable() []TriggerRule {
	sets := []struct {
		category domain.TriggerCategory
		phrases  []string
	}{
		{domain.TriggerAppointmentNoShow, appointmentNoShowPhrases},
		{domain.TriggerFailedCall, failedCallPhrases},
		{domain.TriggerLegacy, legacyPhrases},
	}
	seen := make(map[string]struct{})
	var table []TriggerRule
	for rank, set := range sets {
		for _, phrase := range set.phrases {
			phrase = strings.ToLower(strings.TrimSpace(phrase))
			if phrase == "" {
				continue
			}
			if _, dup := seen[phrase]; dup {
				continue
			}
			seen[phrase] = struct{}{}
			table = append(table, TriggerRule{Phrase: phrase, Category: set.category, Rank: rank})
		}
	}
	return table
}

// Triggers returns a copy of the deduplicated rule table in evaluation order.
func Triggers() []TriggerRule {
	out := make([]TriggerRule, len(triggerTable))
	copy(out, triggerTable)
	return out
}

// MatchTrigger returns the first rule whose phrase occurs in message.
// Categories are tried in rank order; within a category table order wins.
func MatchTrigger(message string) (TriggerRule, bool) {
	lower := strings.ToLower(message)
	for _, rule := range triggerTable {
		if strings.Contains(lower, rule.Phrase) {
			return rule, true
		}
	}
	return TriggerRule{}, false
}

// MatchCategory reports whether any phrase of category occurs in message.
func MatchCategory(message string, category domain.TriggerCategory) bool {
	lower := strings.ToLower(message)
	for _, rule := range triggerTable {
		if rule.Category == category && strings.Contains(lower, rule.Phrase) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether text contains any of the phrases.
func ContainsAny(text string, phrases []string) bool {
	_, ok := FirstMatch(text, phrases)
	return ok
}

// FirstMatch returns the first phrase found in text, case-insensitively.
func FirstMatch(text string, phrases []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// CountMatches counts how many phrases occur in text.
func CountMatches(text string, phrases []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n
}
