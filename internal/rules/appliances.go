package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
)

type applianceRule struct {
	pattern *regexp.Regexp
	label   string
	service domain.ServiceType
}

var applianceRules = []applianceRule{
	{regexp.MustCompile(`\b(washing machine|washer)s?\b`), "Washing machine", domain.ServiceTypeWashingMachineRepair},
	{regexp.MustCompile(`\b(refrigerator|fridge|freezer)s?\b`), "Refrigerator", domain.ServiceTypeRefrigeratorRepair},
	{regexp.MustCompile(`\b(air[ -]?conditioner|a/c|ac)s?\b`), "AC", domain.ServiceTypeACRepair},
	{regexp.MustCompile(`\b(microwave|oven)s?\b`), "Microwave", domain.ServiceTypeApplianceRepair},
	{regexp.MustCompile(`\b(water heater|geyser)s?\b`), "Water heater", domain.ServiceTypeApplianceRepair},
	{regexp.MustCompile(`\b(dishwasher)s?\b`), "Dishwasher", domain.ServiceTypeApplianceRepair},
}

var applianceRegexp = regexp.MustCompile(`\b(washing machine|washer|refrigerator|fridge|freezer|air[ -]?conditioner|a/c|ac|microwave|oven|water heater|geyser|dishwasher)s?\b`)

// DetectAppliance returns a display label for the first appliance named in text.
func DetectAppliance(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, rule := range applianceRules {
		if rule.pattern.MatchString(lower) {
			return rule.label, true
		}
	}
	return "", false
}

// ServiceTypeFor infers the service type from text. Emergency wording wins over appliance.
func ServiceTypeFor(text string) domain.ServiceType {
	lower := strings.ToLower(text)
	if ContainsAny(lower, CriticalUrgencyPhrases) || strings.Contains(lower, "emergency") {
		return domain.ServiceTypeEmergency
	}
	switch {
	case strings.Contains(lower, "install"):
		return domain.ServiceTypeInstallation
	case ContainsAny(lower, []string{"maintenance", "servicing", "general service", "regular service"}):
		return domain.ServiceTypeMaintenance
	}
	for _, rule := range applianceRules {
		if rule.pattern.MatchString(lower) {
			return rule.service
		}
	}
	return domain.ServiceTypeApplianceRepair
}

// Symptom is one recognised fault with its description template.
type Symptom struct {
	Name     string
	Phrases  []string
	Template string
}

// Symptoms are evaluated in order; the first match describes the problem.
var Symptoms = []Symptom{
	{"gas_leak", []string{"gas leak", "gas leaking", "smell of gas"}, "%s gas leak"},
	{"sparking", []string{"sparking", "sparks", "burning smell", "burning", "smoke", "burnt"}, "%s sparking or burning smell"},
	{"not_cooling", []string{"not cooling", "no cooling", "isn't cooling", "not cold", "blowing warm", "warm air", "less cooling"}, "%s not cooling properly"},
	{"leaking", []string{"leaking", "leakage", "water dripping", "dripping", "leaks"}, "%s leaking water"},
	{"noise", []string{"unusual noise", "strange noise", "loud noise", "making noise", "noisy", "rattling", "vibrating", "making sound"}, "%s making unusual noise"},
	{"not_spinning", []string{"not spinning", "drum not rotating", "not draining"}, "%s not spinning or draining"},
	{"not_working", []string{"not working", "stopped working", "won't turn on", "not turning on", "not switching on", "not starting", "dead", "no power"}, "%s not working"},
}

// MatchSymptom returns the first symptom found in text.
func MatchSymptom(text string) (Symptom, bool) {
	lower := strings.ToLower(text)
	for _, s := range Symptoms {
		if ContainsAny(lower, s.Phrases) {
			return s, true
		}
	}
	return Symptom{}, false
}

// Describe renders the symptom for an appliance label; empty labels become "Appliance".
func (s Symptom) Describe(appliance string) string {
	if appliance == "" {
		appliance = "Appliance"
	}
	return fmt.Sprintf(s.Template, appliance)
}

// ServiceAreas are the locations the field team covers.
var ServiceAreas = []string{
	"thiruvananthapuram",
	"trivandrum",
	"thiruvalla",
	"pathanamthitta",
	"changanassery",
	"kottayam",
	"ernakulam",
	"kochi",
	"kollam",
	"alappuzha",
	"thrissur",
	"kozhikode",
}

// MatchServiceArea returns the first known service area named in text.
func MatchServiceArea(text string) (string, bool) {
	return FirstMatch(text, ServiceAreas)
}
