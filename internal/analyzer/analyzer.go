// Package analyzer classifies customer messages: failed-call likelihood, ticket intent,
// urgency, frustration and the reply strategy. The AI path is preferred; the keyword
// heuristic is used whenever the AI reply is unavailable or unusable.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/ai"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/observability"
)

// historyTurns is how many prior messages are embedded in the prompt.
const historyTurns = 3

// Analyzer classifies messages.
type Analyzer struct {
	generator ai.TextGenerator
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// Dependencies bundles analyzer collaborators.
type Dependencies struct {
	Generator ai.TextGenerator
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// New constructs an Analyzer.
func New(deps Dependencies) *Analyzer {
	gen := deps.Generator
	if gen == nil {
		gen = ai.Disabled()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{generator: gen, logger: logger, metrics: deps.Metrics}
}

// Analyze always returns a complete result.
func (a *Analyzer) Analyze(ctx context.Context, message string, conv *domain.ConversationContext, history []domain.ChatMessage) domain.AnalysisResult {
	result, err := a.analyzeWithAI(ctx, message, conv, history)
	if err != nil {
		a.logger.Debug("ai analysis unavailable, using heuristics", zap.Error(err))
		result = Heuristic(message, conv)
	}
	a.metrics.RecordAnalysis(string(result.Source))
	return result
}

const analysisPrompt = `You classify messages sent to an appliance repair company's support chat.
Return ONLY a JSON object with this shape:
{
 "failed_call": {"likely": bool, "confidence": number 0-1, "reason": string},
 "task_intent": {"detected": bool, "action": "create"|"update"|"status"|"list"|"delete"|"", "confidence": number 0-1},
 "primary_intent": one of %s,
 "secondary_intents": [same values],
 "urgency": "low"|"medium"|"high"|"critical",
 "frustration": integer 0-10,
 "strategy": "empathetic"|"solution_focused"|"escalation"|"information_gathering"
}
"failed_call" means the customer could not reach support or a technician missed an appointment.

Recent conversation:
%s
Customer message: %s`

var intentChoices = []domain.Intent{
	domain.IntentFailedCallReport, domain.IntentServiceRequest, domain.IntentTicketStatus,
	domain.IntentTicketUpdate, domain.IntentTicketCancel, domain.IntentTicketList,
	domain.IntentComplaint, domain.IntentGreeting, domain.IntentGeneralInquiry,
}

func (a *Analyzer) analyzeWithAI(ctx context.Context, message string, conv *domain.ConversationContext, history []domain.ChatMessage) (domain.AnalysisResult, error) {
	prompt := fmt.Sprintf(analysisPrompt, quoteIntents(), formatHistory(history), message)
	reply, err := a.generator.Generate(ctx, prompt, contextBlob(conv))
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	var raw rawAnalysis
	if err := ai.DecodeReply(reply, &raw); err != nil {
		return domain.AnalysisResult{}, err
	}
	result, valid := raw.normalize()
	if valid == 0 {
		return domain.AnalysisResult{}, fmt.Errorf("ai analysis: no valid fields in reply")
	}
	result.Source = domain.AnalysisSourceAI
	return result, nil
}

func quoteIntents() string {
	parts := make([]string, len(intentChoices))
	for i, in := range intentChoices {
		parts[i] = `"` + string(in) + `"`
	}
	return strings.Join(parts, "|")
}

func formatHistory(history []domain.ChatMessage) string {
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	if len(history) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func contextBlob(conv *domain.ConversationContext) string {
	if conv == nil {
		return ""
	}
	data, err := json.Marshal(struct {
		Customer domain.CustomerInfo      `json:"customer"`
		Inquiry  map[string]string        `json:"inquiry_details,omitempty"`
		Stage    domain.ConversationStage `json:"stage"`
	}{conv.Customer, conv.InquiryDetails, conv.Stage})
	if err != nil {
		return ""
	}
	return "Known conversation context: " + string(data)
}
