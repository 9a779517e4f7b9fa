// Package detector decides whether a message reports a failed call or a missed
// appointment and, on a match, extracts the customer details needed for a ticket.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/ai"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/observability"
	"github.com/coolfix/service-desk/internal/rules"
)

// DefaultConfidenceThreshold gates adoption of extracted fields.
const DefaultConfidenceThreshold = 0.6

// Detector is the rule-first failed-call detector.
type Detector struct {
	generator ai.TextGenerator
	threshold float64
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Dependencies bundles detector collaborators.
type Dependencies struct {
	Generator           ai.TextGenerator
	ConfidenceThreshold float64
	Logger              *zap.Logger
	Metrics             *observability.Metrics
}

// New constructs a Detector. A nil generator disables AI extraction.
func New(deps Dependencies) *Detector {
	gen := deps.Generator
	if gen == nil {
		gen = ai.Disabled()
	}
	threshold := deps.ConfidenceThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		generator: gen,
		threshold: threshold,
		logger:    logger,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

// Detect classifies message. Extraction only runs on a trigger match; adopted fields are
// merged into conv, which may be nil for stateless use.
func (d *Detector) Detect(ctx context.Context, message string, conv *domain.ConversationContext) domain.FailedCallSignal {
	rule, ok := rules.MatchTrigger(message)
	if !ok {
		d.metrics.RecordDetection("")
		return domain.FailedCallSignal{}
	}
	d.metrics.RecordDetection(string(rule.Category))
	return d.assess(ctx, message, conv, rule.Phrase, rule.Category)
}

// Continue runs extraction on a follow-up message of a conversation whose earlier turn
// matched a trigger. The returned signal carries the earlier trigger.
func (d *Detector) Continue(ctx context.Context, message string, conv *domain.ConversationContext, phrase string, category domain.TriggerCategory) domain.FailedCallSignal {
	return d.assess(ctx, message, conv, phrase, category)
}

func (d *Detector) assess(ctx context.Context, message string, conv *domain.ConversationContext, phrase string, category domain.TriggerCategory) domain.FailedCallSignal {
	if conv == nil {
		conv = domain.NewConversationContext("", d.now())
	}

	extraction, err := d.extractWithAI(ctx, message, conv)
	if err != nil {
		d.logger.Debug("ai extraction unavailable, using pattern extraction", zap.Error(err))
		extraction = FallbackExtract(message)
	}
	conv.AdoptExtraction(extraction, d.threshold)

	problem := conv.Problem()
	if problem == "" {
		problem = InferProblem(message)
	}

	return domain.FailedCallSignal{
		Detected:           true,
		TriggerPhrase:      phrase,
		TriggerCategory:    category,
		CustomerData:       conv.Customer,
		MissingFields:      MissingFields(conv.Customer, problem),
		ProblemDescription: problem,
		Location:           conv.Customer.Location,
		UrgencyLevel:       ClassifyUrgency(message),
	}
}

// ClassifyUrgency maps a message onto the detector's high / medium / low scale.
func ClassifyUrgency(message string) domain.Urgency {
	u := rules.ClassifyUrgency(message)
	if u == domain.UrgencyCritical {
		return domain.UrgencyHigh
	}
	return u
}

const extractionPrompt = `Extract customer details from the message below for an appliance service company.
Return ONLY a JSON object with this exact shape:
{"name": string, "phone": string, "location": string, "problem": string,
 "confidence": {"name": number, "phone": number, "location": number, "problem": number}}
Rules:
- Use "" for anything not stated. Never guess.
- phone is a 10 digit Indian mobile number without country code.
- problem describes the fault (symptom and appliance). A generic request such as "repair" or "service" is not a problem; use "".
- confidence values are between 0 and 1.

Message: %s`

type aiExtraction struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Location   string  `json:"location"`
	Problem    string  `json:"problem"`
	Confidence *struct {
		Name     float64 `json:"name"`
		Phone    float64 `json:"phone"`
		Location float64 `json:"location"`
		Problem  float64 `json:"problem"`
	} `json:"confidence"`
}

func (d *Detector) extractWithAI(ctx context.Context, message string, conv *domain.ConversationContext) (domain.ExtractionResult, error) {
	known, err := json.Marshal(struct {
		Customer domain.CustomerInfo `json:"known_customer"`
		Problem  string              `json:"known_problem,omitempty"`
	}{conv.Customer, conv.Problem()})
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	reply, err := d.generator.Generate(ctx, fmt.Sprintf(extractionPrompt, message), string(known))
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	var raw aiExtraction
	if err := ai.DecodeReply(reply, &raw); err != nil {
		return domain.ExtractionResult{}, err
	}
	if raw.Confidence == nil {
		return domain.ExtractionResult{}, fmt.Errorf("ai extraction: missing confidence block")
	}

	result := domain.ExtractionResult{
		Name:     strings.TrimSpace(raw.Name),
		Location: strings.TrimSpace(raw.Location),
		Problem:  strings.TrimSpace(raw.Problem),
		Confidence: domain.FieldConfidence{
			Name:     raw.Confidence.Name,
			Phone:    raw.Confidence.Phone,
			Location: raw.Confidence.Location,
			Problem:  raw.Confidence.Problem,
		},
	}
	if phone, ok := ValidatePhone(raw.Phone); ok {
		result.Phone = phone
	} else {
		result.Confidence.Phone = 0
	}
	if result.Problem != "" && rules.IsGenericRequest(result.Problem) {
		result.Problem = ""
		result.Confidence.Problem = 0
	}
	result.Clamp()
	return result, nil
}
