package analyzer

import (
	"math"
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
)

type rawAnalysis struct {
	FailedCall *struct {
		Likely     *bool    `json:"likely"`
		Confidence *float64 `json:"confidence"`
		Reason     string   `json:"reason"`
	} `json:"failed_call"`
	TaskIntent *struct {
		Detected   *bool    `json:"detected"`
		Action     string   `json:"action"`
		Confidence *float64 `json:"confidence"`
	} `json:"task_intent"`
	PrimaryIntent    string   `json:"primary_intent"`
	SecondaryIntents []string `json:"secondary_intents"`
	Urgency          string   `json:"urgency"`
	Frustration      *float64 `json:"frustration"`
	Strategy         string   `json:"strategy"`
}

// normalize coerces every field into range, substituting safe defaults. It also reports
// how many fields were usable as given.
func (r rawAnalysis) normalize() (domain.AnalysisResult, int) {
	valid := 0
	out := domain.AnalysisResult{
		PrimaryIntent:    domain.IntentGeneralInquiry,
		SecondaryIntents: []domain.Intent{},
		Urgency:          domain.UrgencyMedium,
		Strategy:         domain.StrategySolutionFocused,
	}

	if r.FailedCall != nil && r.FailedCall.Likely != nil {
		valid++
		out.FailedCall.Likely = *r.FailedCall.Likely
		if r.FailedCall.Confidence != nil {
			out.FailedCall.Confidence = clampUnit(*r.FailedCall.Confidence)
		}
		out.FailedCall.Reason = strings.TrimSpace(r.FailedCall.Reason)
	}

	if r.TaskIntent != nil && r.TaskIntent.Detected != nil {
		valid++
		action, ok := domain.NormalizeTaskAction(strings.ToLower(strings.TrimSpace(r.TaskIntent.Action)))
		out.TaskIntent.Detected = *r.TaskIntent.Detected && ok
		if out.TaskIntent.Detected {
			out.TaskIntent.Action = action
			if r.TaskIntent.Confidence != nil {
				out.TaskIntent.Confidence = clampUnit(*r.TaskIntent.Confidence)
			}
		}
	}

	if intent := domain.Intent(normalizeToken(r.PrimaryIntent)); intent.Valid() {
		valid++
		out.PrimaryIntent = intent
	}
	seen := map[domain.Intent]bool{out.PrimaryIntent: true}
	for _, s := range r.SecondaryIntents {
		intent := domain.Intent(normalizeToken(s))
		if intent.Valid() && !seen[intent] {
			seen[intent] = true
			out.SecondaryIntents = append(out.SecondaryIntents, intent)
		}
	}

	if u := domain.Urgency(normalizeToken(r.Urgency)); u.Valid() {
		valid++
		out.Urgency = u
	}

	if r.Frustration != nil {
		valid++
		out.Frustration = clampFrustration(*r.Frustration)
	}

	if s := domain.ResponseStrategy(normalizeToken(r.Strategy)); s.Valid() {
		valid++
		out.Strategy = s
	}
	return out, valid
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFrustration(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > domain.MaxFrustration {
		return domain.MaxFrustration
	}
	return int(math.Round(v))
}
