package detector

import (
	"regexp"
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/rules"
)

// Confidences assigned by the deterministic extractor.
const (
	confidenceName            = 0.8
	confidenceLabeledPhone    = 0.9
	confidenceBarePhone       = 0.7
	confidenceKnownLocation   = 0.9
	confidenceGenericLocation = 0.6
	confidenceProblem         = 0.8
)

var (
	namePattern         = regexp.MustCompile(`(?i)\b(?:my name is|this is|call me|i am|i'm|im)\s+([a-z][a-z.'-]*)`)
	labeledPhonePattern = regexp.MustCompile(`(?i)\b(?:phone|mobile|number|contact|no|ph)\.?\s*(?:number|no\.?)?\s*(?:is|:|-)?\s*(\+?\d[\d\s\-().]{8,16}\d)`)
	barePhonePattern    = regexp.MustCompile(`\+?\d[\d\s\-]{8,15}\d`)
	locationPattern     = regexp.MustCompile(`(?i)\b(?:location is|located at|located in|address is|i live in|in|at|from)\s+([a-z][a-z ]{1,40}?)(?:\s+(?:and|but|with|my|phone|problem|issue|since|for|near|about|regarding|because|to)\b|[.,!?;]|$)`)
	explicitProblem     = regexp.MustCompile(`(?i)\b(?:problem|issue|complaint|fault)\s*(?:is|:|-)\s*(.+?)(?:\s+and\s+(?:my|phone|name|location|i)\b|[.!?]|$)`)
)

var nameStopWords = map[string]bool{
	"calling": true, "trying": true, "not": true, "having": true, "facing": true, "from": true,
	"in": true, "at": true, "very": true, "so": true, "a": true, "an": true, "the": true,
	"waiting": true, "here": true, "frustrated": true, "still": true, "looking": true,
	"unable": true, "going": true, "getting": true, "sorry": true, "just": true, "writing": true,
	"interested": true, "available": true, "your": true, "customer": true, "really": true,
	"urgent": true, "regarding": true, "about": true, "my": true, "to": true, "reporting": true,
	"upset": true, "angry": true, "disappointed": true, "happy": true, "sure": true, "done": true,
	"back": true, "now": true, "later": true, "asap": true, "today": true, "tomorrow": true,
	"tonight": true, "soon": true, "again": true, "immediately": true, "urgently": true,
	"on": true, "after": true, "before": true, "when": true, "please": true,
}

var locationStopWords = map[string]bool{
	"the": true, "my": true, "home": true, "a": true, "an": true, "morning": true, "evening": true,
	"night": true, "time": true, "all": true, "this": true, "that": true, "least": true, "once": true,
	"last": true, "trouble": true, "touch": true, "order": true, "your": true, "outside": true,
	"work": true, "office": true, "person": true, "case": true, "fact": true, "general": true,
}

// FallbackExtract pulls customer fields from text with fixed patterns. It never fails.
func FallbackExtract(message string) domain.ExtractionResult {
	var result domain.ExtractionResult

	if name := extractName(message); name != "" {
		result.Name = name
		result.Confidence.Name = confidenceName
	}
	if phone, conf := extractPhone(message); phone != "" {
		result.Phone = phone
		result.Confidence.Phone = conf
	}
	if loc, conf := extractLocation(message); loc != "" {
		result.Location = loc
		result.Confidence.Location = conf
	}
	if problem := InferProblem(message); problem != "" {
		result.Problem = problem
		result.Confidence.Problem = confidenceProblem
	}
	return result
}

func extractName(message string) string {
	for _, m := range namePattern.FindAllStringSubmatch(message, -1) {
		candidate := strings.Trim(m[1], ".'-")
		if len(candidate) < 2 || nameStopWords[strings.ToLower(candidate)] {
			continue
		}
		return candidate
	}
	return ""
}

func extractPhone(message string) (string, float64) {
	for _, m := range labeledPhonePattern.FindAllStringSubmatch(message, -1) {
		if phone, ok := ValidatePhone(m[1]); ok {
			return phone, confidenceLabeledPhone
		}
	}
	for _, candidate := range barePhonePattern.FindAllString(message, -1) {
		if phone, ok := ValidatePhone(candidate); ok {
			return phone, confidenceBarePhone
		}
	}
	return "", 0
}

func extractLocation(message string) (string, float64) {
	if area, ok := rules.MatchServiceArea(message); ok {
		return area, confidenceKnownLocation
	}
	for _, m := range locationPattern.FindAllStringSubmatch(message, -1) {
		candidate := strings.TrimSpace(m[1])
		first := strings.ToLower(strings.Fields(candidate)[0])
		if len(candidate) < 3 || locationStopWords[first] || locationStopWords[strings.ToLower(candidate)] {
			continue
		}
		return candidate, confidenceGenericLocation
	}
	return "", 0
}

// InferProblem describes the fault named in message. Explicit "problem is ..." text and
// known symptoms produce a description; generic service requests produce "".
func InferProblem(message string) string {
	appliance, _ := rules.DetectAppliance(message)

	if m := explicitProblem.FindStringSubmatch(message); m != nil {
		text := strings.TrimSpace(m[1])
		if len(text) >= 3 && !rules.IsGenericRequest(text) {
			if appliance == "" {
				return text
			}
			return appliance + " problem: " + text
		}
	}
	if symptom, ok := rules.MatchSymptom(message); ok {
		return symptom.Describe(appliance)
	}
	return ""
}

// MissingFields lists the required fields still absent, in name, phone, location, problem order.
func MissingFields(customer domain.CustomerInfo, problem string) []string {
	missing := []string{}
	if strings.TrimSpace(customer.Name) == "" {
		missing = append(missing, string(domain.FieldName))
	}
	if strings.TrimSpace(customer.Phone) == "" {
		missing = append(missing, string(domain.FieldPhone))
	}
	if strings.TrimSpace(customer.Location) == "" {
		missing = append(missing, string(domain.FieldLocation))
	}
	if len(strings.TrimSpace(problem)) < 5 {
		missing = append(missing, string(domain.FieldProblem))
	}
	return missing
}
