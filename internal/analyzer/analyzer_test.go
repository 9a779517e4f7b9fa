package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coolfix/service-desk/internal/ai"
	"github.com/coolfix/service-desk/internal/domain"
)

func stubGenerator(reply string, err error) ai.TextGenerator {
	return ai.GeneratorFunc(func(context.Context, string, string) (string, error) {
		return reply, err
	})
}

func assertComplete(t *testing.T, r domain.AnalysisResult) {
	t.Helper()
	assert.True(t, r.PrimaryIntent.Valid(), "primary intent %q", r.PrimaryIntent)
	assert.True(t, r.Urgency.Valid(), "urgency %q", r.Urgency)
	assert.True(t, r.Strategy.Valid(), "strategy %q", r.Strategy)
	assert.GreaterOrEqual(t, r.Frustration, 0)
	assert.LessOrEqual(t, r.Frustration, domain.MaxFrustration)
	assert.GreaterOrEqual(t, r.FailedCall.Confidence, 0.0)
	assert.LessOrEqual(t, r.FailedCall.Confidence, 1.0)
	assert.NotNil(t, r.SecondaryIntents)
	for _, s := range r.SecondaryIntents {
		assert.True(t, s.Valid())
	}
}

func TestAnalyzeUsesAIReply(t *testing.T) {
	reply := "Analysis:\n" + `{"failed_call": {"likely": true, "confidence": 0.92, "reason": "tried calling"},
 "task_intent": {"detected": true, "action": "create", "confidence": 0.8},
 "primary_intent": "failed_call_report", "secondary_intents": ["service_request", "bogus"],
 "urgency": "HIGH", "frustration": 6.4, "strategy": "empathetic"}`
	a := New(Dependencies{Generator: stubGenerator(reply, nil)})

	r := a.Analyze(context.Background(), "I tried calling all day", nil, nil)

	assertComplete(t, r)
	assert.Equal(t, domain.AnalysisSourceAI, r.Source)
	assert.True(t, r.FailedCall.Likely)
	assert.InDelta(t, 0.92, r.FailedCall.Confidence, 1e-9)
	assert.Equal(t, domain.TaskActionCreate, r.TaskIntent.Action)
	assert.Equal(t, domain.UrgencyHigh, r.Urgency)
	assert.Equal(t, 6, r.Frustration)
	assert.Equal(t, []domain.Intent{domain.IntentServiceRequest}, r.SecondaryIntents)
}

func TestAnalyzeClampsAndCoerces(t *testing.T) {
	reply := `{"failed_call": {"likely": false, "confidence": 7}, "urgency": "apocalyptic",
 "frustration": 42, "strategy": "shout", "primary_intent": "nonsense"}`
	a := New(Dependencies{Generator: stubGenerator(reply, nil)})

	r := a.Analyze(context.Background(), "hello", nil, nil)

	assertComplete(t, r)
	assert.Equal(t, domain.AnalysisSourceAI, r.Source)
	assert.Equal(t, 1.0, r.FailedCall.Confidence)
	assert.Equal(t, domain.UrgencyMedium, r.Urgency)
	assert.Equal(t, domain.MaxFrustration, r.Frustration)
	assert.Equal(t, domain.StrategySolutionFocused, r.Strategy)
	assert.Equal(t, domain.IntentGeneralInquiry, r.PrimaryIntent)
}

func TestAnalyzeFallsBackToHeuristics(t *testing.T) {
	cases := map[string]ai.TextGenerator{
		"call error":    stubGenerator("", errors.New("timeout")),
		"disabled":      ai.Disabled(),
		"no json":       stubGenerator("I think the customer is upset.", nil),
		"wrong types":   stubGenerator(`{"frustration": "very"}`, nil),
		"nothing valid": stubGenerator(`{"urgency": "extreme", "strategy": "?"}`, nil),
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			a := New(Dependencies{Generator: gen})
			r := a.Analyze(context.Background(), "I tried calling three times and nobody answered!!", nil, nil)
			assertComplete(t, r)
			assert.Equal(t, domain.AnalysisSourceHeuristic, r.Source)
			assert.True(t, r.FailedCall.Likely)
			assert.Equal(t, domain.IntentFailedCallReport, r.PrimaryIntent)
		})
	}
}

func TestAnalyzePromptIncludesRecentHistory(t *testing.T) {
	var captured, blob string
	gen := ai.GeneratorFunc(func(_ context.Context, prompt, ctxBlob string) (string, error) {
		captured, blob = prompt, ctxBlob
		return `{"urgency": "low"}`, nil
	})
	now := time.Now()
	conv := domain.NewConversationContext("s1", now)
	conv.Customer.Name = "Meera"
	for i := 1; i <= 5; i++ {
		conv.AppendMessage(domain.ChatRoleCustomer, "turn-"+string(rune('0'+i)), now, 0)
	}

	New(Dependencies{Generator: gen}).Analyze(context.Background(), "latest", conv, conv.History)

	assert.NotContains(t, captured, "turn-2")
	assert.Contains(t, captured, "turn-3")
	assert.Contains(t, captured, "turn-5")
	assert.Contains(t, blob, "Meera")
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		intent   domain.Intent
		urgency  domain.Urgency
		strategy domain.ResponseStrategy
		action   domain.TaskAction
	}{
		{"no show", "The technician never showed up", domain.IntentFailedCallReport, domain.UrgencyMedium, domain.StrategyEmpathetic, ""},
		{"status", "what is the status of my request?", domain.IntentTicketStatus, domain.UrgencyMedium, domain.StrategySolutionFocused, domain.TaskActionStatus},
		{"cancel", "please cancel my booking", domain.IntentTicketCancel, domain.UrgencyMedium, domain.StrategySolutionFocused, domain.TaskActionDelete},
		{"symptom", "my fridge is leaking", domain.IntentServiceRequest, domain.UrgencyMedium, domain.StrategyInformationGathering, ""},
		{"critical", "there is smoke from the AC", domain.IntentServiceRequest, domain.UrgencyCritical, domain.StrategyEscalation, ""},
		{"greeting", "hello there", domain.IntentGreeting, domain.UrgencyMedium, domain.StrategySolutionFocused, ""},
		{"nothing", "ok", domain.IntentGeneralInquiry, domain.UrgencyMedium, domain.StrategySolutionFocused, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Heuristic(tc.message, nil)
			assertComplete(t, r)
			assert.Equal(t, tc.intent, r.PrimaryIntent)
			assert.Equal(t, tc.urgency, r.Urgency)
			assert.Equal(t, tc.strategy, r.Strategy)
			assert.Equal(t, tc.action, r.TaskIntent.Action)
		})
	}
}

func TestHeuristicFrustration(t *testing.T) {
	calm := Heuristic("my fridge is leaking", nil)
	angry := Heuristic("THIS IS RIDICULOUS, I AM FED UP, STILL WAITING!!", nil)
	assert.Less(t, calm.Frustration, angry.Frustration)
	assert.Equal(t, domain.StrategyEscalation, angry.Strategy)
	assert.True(t, ShouldEscalate(angry))
}

func TestGenerateResponse(t *testing.T) {
	conv := domain.NewConversationContext("s1", time.Now())
	conv.Customer = domain.CustomerInfo{Name: "Anu", Phone: "9847012345"}

	reply := GenerateResponse(domain.AnalysisResult{
		Strategy:   domain.StrategyEmpathetic,
		FailedCall: domain.FailedCallAssessment{Likely: true},
	}, conv)
	assert.Contains(t, reply, "Anu")
	assert.Contains(t, reply, "location")
	assert.NotContains(t, reply, "phone number")

	escalate := GenerateResponse(domain.AnalysisResult{Strategy: domain.StrategyEscalation}, nil)
	assert.True(t, strings.Contains(escalate, "call us"))
}

func TestJoinList(t *testing.T) {
	assert.Equal(t, "", JoinList(nil))
	assert.Equal(t, "a", JoinList([]string{"a"}))
	assert.Equal(t, "a and b", JoinList([]string{"a", "b"}))
	assert.Equal(t, "a, b and c", JoinList([]string{"a", "b", "c"}))
}
