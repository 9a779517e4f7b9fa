// Package conversation runs one chat turn: it loads the session context, classifies and
// mines the message, routes ticket work to the task agent and saves the context again.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/agent"
	"github.com/coolfix/service-desk/internal/analyzer"
	"github.com/coolfix/service-desk/internal/detector"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/events"
	"github.com/coolfix/service-desk/internal/session"
)

// Inquiry detail keys owned by the conversation layer.
const (
	ticketNumberKey    = "ticket_number"
	triggerPhraseKey   = "trigger_phrase"
	triggerCategoryKey = "trigger_category"
	collectingKey      = "collecting_details"
)

// ContactLinks builds the escalation affordances shown to customers.
type ContactLinks interface {
	PhoneURI() string
	WhatsAppLink(text string) string
}

// QuickReply is an optional button rendered under a reply.
type QuickReply struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Value  string `json:"value"`
}

// Quick reply actions.
const (
	QuickReplyCall     = "call"
	QuickReplyWhatsApp = "whatsapp"
	QuickReplyMessage  = "message"
)

// ChatReply is the structured result of one turn.
type ChatReply struct {
	SessionID    string                   `json:"session_id"`
	Message      string                   `json:"message"`
	Stage        domain.ConversationStage `json:"stage"`
	Analysis     domain.AnalysisResult    `json:"analysis"`
	Signal       *domain.FailedCallSignal `json:"failed_call,omitempty"`
	Operation    *agent.OperationResult   `json:"operation,omitempty"`
	TicketNumber string                   `json:"ticket_number,omitempty"`
	QuickReplies []QuickReply             `json:"quick_replies,omitempty"`
	Escalated    bool                     `json:"escalated"`
}

// Service orchestrates chat turns.
type Service struct {
	sessions     session.Store
	analyzer     *analyzer.Analyzer
	detector     *detector.Detector
	agent        *agent.Agent
	contacts     ContactLinks
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	historyLimit int
	now          func() time.Time
}

// Dependencies bundles collaborators for the service.
type Dependencies struct {
	Sessions     session.Store
	Analyzer     *analyzer.Analyzer
	Detector     *detector.Detector
	Agent        *agent.Agent
	Contacts     ContactLinks
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	HistoryLimit int
	Clock        func() time.Time
}

// NewService constructs the service.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	limit := deps.HistoryLimit
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	return &Service{
		sessions:     deps.Sessions,
		analyzer:     deps.Analyzer,
		detector:     deps.Detector,
		agent:        deps.Agent,
		contacts:     deps.Contacts,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		historyLimit: limit,
		now:          clock,
	}
}

// StartSession creates and stores an empty context.
func (s *Service) StartSession(ctx context.Context) (*domain.ConversationContext, error) {
	conv := domain.NewConversationContext(uuid.NewString(), s.now())
	if err := s.sessions.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return conv, nil
}

// EndSession discards the session context.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// HandleMessage runs one turn. Extraction happens before validation, and validation
// before any ticket store mutation.
func (s *Service) HandleMessage(ctx context.Context, sessionID, message string) (ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatReply{}, domain.NewValidationError("message", "message is required")
	}
	conv := s.load(ctx, sessionID)
	history := append([]domain.ChatMessage(nil), conv.History...)
	conv.AppendMessage(domain.ChatRoleCustomer, message, s.now(), s.historyLimit)

	analysis := s.analyzer.Analyze(ctx, message, conv, history)
	signal := s.detector.Detect(ctx, message, conv)
	if signal.Detected {
		conv.InquiryDetails[triggerPhraseKey] = signal.TriggerPhrase
		conv.InquiryDetails[triggerCategoryKey] = string(signal.TriggerCategory)
	} else if s.collectingDetails(conv, analysis) {
		signal = s.detector.Continue(ctx, message, conv, conv.InquiryDetails[triggerPhraseKey],
			domain.TriggerCategory(conv.InquiryDetails[triggerCategoryKey]))
	}

	reply := ChatReply{SessionID: conv.SessionID, Analysis: analysis}
	if signal.Detected {
		reply.Signal = &signal
	}

	switch {
	case analysis.TaskIntent.Detected && analysis.TaskIntent.Action != domain.TaskActionCreate:
		s.runOperation(ctx, &reply, s.intentFor(analysis.TaskIntent.Action, message, conv), message, conv)
	case signal.Detected || (analysis.TaskIntent.Detected && analysis.TaskIntent.Action == domain.TaskActionCreate):
		s.handleServiceRequest(ctx, &reply, signal, message, conv)
	default:
		s.respond(ctx, &reply, analysis, conv)
	}

	reply.Stage = conv.Stage
	reply.TicketNumber = conv.InquiryDetails[ticketNumberKey]
	conv.AppendMessage(domain.ChatRoleAssistant, reply.Message, s.now(), s.historyLimit)
	if err := s.sessions.Save(ctx, conv); err != nil {
		s.logger.Error("save session", zap.String("session_id", conv.SessionID), zap.Error(err))
	}
	return reply, nil
}

// load returns the stored context, starting a fresh one when it is missing or unreadable.
func (s *Service) load(ctx context.Context, sessionID string) *domain.ConversationContext {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	conv, err := s.sessions.Load(ctx, sessionID)
	if err == nil {
		if conv.InquiryDetails == nil {
			conv.InquiryDetails = map[string]string{}
		}
		return conv
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		s.logger.Warn("session load failed; starting fresh", zap.String("session_id", sessionID), zap.Error(err))
	}
	return domain.NewConversationContext(sessionID, s.now())
}

// collectingDetails reports whether the previous turn asked for missing ticket details and
// the current message is not a different ticket task.
func (s *Service) collectingDetails(conv *domain.ConversationContext, analysis domain.AnalysisResult) bool {
	if conv.Stage != domain.StageDetails || conv.InquiryDetails[collectingKey] == "" {
		return false
	}
	if conv.InquiryDetails[ticketNumberKey] != "" {
		return false
	}
	return !analysis.TaskIntent.Detected || analysis.TaskIntent.Action == domain.TaskActionCreate
}

func (s *Service) handleServiceRequest(ctx context.Context, reply *ChatReply, signal domain.FailedCallSignal, message string, conv *domain.ConversationContext) {
	if existing := conv.InquiryDetails[ticketNumberKey]; existing != "" {
		intent := agent.Intent{Action: domain.TaskActionStatus, Data: agent.IntentData{TicketNumber: existing}}
		s.runOperation(ctx, reply, intent, message, conv)
		reply.Message = fmt.Sprintf("Your request is already registered as %s.\n\n%s", existing, reply.Message)
		return
	}

	if !signal.Detected {
		signal = s.detector.Continue(ctx, message, conv, "", "")
	}
	if !signal.Complete() {
		conv.Stage = domain.StageDetails
		conv.InquiryDetails[collectingKey] = "true"
		reply.Message = s.askForDetails(signal, conv)
		if signal.TriggerCategory != domain.TriggerLegacy {
			reply.QuickReplies = s.contactReplies("Hi, I tried to reach support")
		}
		return
	}

	intent := agent.Intent{Action: domain.TaskActionCreate}
	request, err := detector.BuildTicketRequest(signal, conv)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			conv.Stage = domain.StageDetails
			conv.InquiryDetails[collectingKey] = "true"
			reply.Message = fmt.Sprintf("Thanks! Could you check %s? I need it to register your request.", fieldLabel(verr.Field))
			return
		}
		s.logger.Warn("build ticket request", zap.Error(err))
	} else {
		intent.Data = agent.IntentData{
			CustomerName:  request.Customer.Name,
			Phone:         request.Customer.Phone,
			Location:      request.Customer.Location,
			Email:         request.Customer.Email,
			Problem:       request.ProblemDescription,
			ServiceType:   request.ServiceType,
			Urgency:       request.Urgency,
			ApplianceType: request.ApplianceType,
		}
		if signal.TriggerCategory != "" {
			intent.Data.RelatedFailedCallRef = conv.SessionID
		}
	}
	s.runOperation(ctx, reply, intent, message, conv)
}

func (s *Service) runOperation(ctx context.Context, reply *ChatReply, intent agent.Intent, message string, conv *domain.ConversationContext) {
	result := s.agent.Handle(ctx, intent, message, conv)
	reply.Operation = &result
	reply.Message = result.Message

	switch result.Kind {
	case agent.KindCreated:
		conv.InquiryDetails[ticketNumberKey] = result.Ticket.TicketNumber
		delete(conv.InquiryDetails, collectingKey)
		conv.Stage = domain.StageResolution
		reply.QuickReplies = s.contactReplies("Hi, my ticket number is " + result.Ticket.TicketNumber)
	case agent.KindMissingInfo, agent.KindNeedsIdentifier, agent.KindNotFound, agent.KindAmbiguous:
		conv.Stage = domain.StageDetails
	case agent.KindStoreFailure, agent.KindUnsupported:
		conv.Stage = domain.StageEscalation
		reply.Escalated = true
		reply.QuickReplies = s.contactReplies("Hi, I need help with a service request")
		s.publishEscalation(ctx, conv.SessionID, string(result.Kind))
	case agent.KindEmptyList:
		conv.Stage = domain.StageInquiry
		reply.QuickReplies = []QuickReply{{Label: "Book a repair", Action: QuickReplyMessage, Value: "I want to book a repair"}}
	default:
		conv.Stage = domain.StageResolution
	}
}

func (s *Service) respond(ctx context.Context, reply *ChatReply, analysis domain.AnalysisResult, conv *domain.ConversationContext) {
	reply.Message = analyzer.GenerateResponse(analysis, conv)
	switch {
	case analyzer.ShouldEscalate(analysis):
		conv.Stage = domain.StageEscalation
		reply.Escalated = true
		reply.QuickReplies = s.contactReplies("Hi, I need urgent help")
		s.publishEscalation(ctx, conv.SessionID, string(analysis.Strategy))
	case analysis.PrimaryIntent == domain.IntentGreeting && conv.Stage == domain.StageGreeting:
		// still greeting
	case analysis.Strategy == domain.StrategyInformationGathering:
		conv.Stage = domain.StageDetails
	default:
		if conv.Stage == domain.StageGreeting {
			conv.Stage = domain.StageInquiry
		}
	}
}

func (s *Service) askForDetails(signal domain.FailedCallSignal, conv *domain.ConversationContext) string {
	labels := make([]string, 0, len(signal.MissingFields))
	for _, f := range signal.MissingFields {
		labels = append(labels, fieldLabel(f))
	}
	opener := "I can register your service request right here."
	switch signal.TriggerCategory {
	case domain.TriggerFailedCall:
		opener = "I'm sorry you couldn't get through to us. I can register your request right here so a technician calls you back."
	case domain.TriggerAppointmentNoShow:
		opener = "I'm sorry our technician didn't make it. Let me get this rescheduled for you right away."
	}
	name := ""
	if conv.Customer.Name != "" {
		name = ", " + conv.Customer.Name
	}
	return fmt.Sprintf("%s Could you share %s%s?", opener, analyzer.JoinList(labels), name)
}

func (s *Service) intentFor(action domain.TaskAction, message string, conv *domain.ConversationContext) agent.Intent {
	extracted := detector.FallbackExtract(message)
	data := agent.IntentData{
		TicketNumber: agent.ExtractTicketNumber(message),
		Phone:        extracted.Phone,
	}
	if data.TicketNumber == "" && action != domain.TaskActionList {
		data.TicketNumber = conv.InquiryDetails[ticketNumberKey]
	}
	if action == domain.TaskActionUpdate {
		data.Location = extracted.Location
	}
	return agent.Intent{Action: action, Data: data}
}

func (s *Service) contactReplies(text string) []QuickReply {
	if s.contacts == nil {
		return nil
	}
	return []QuickReply{
		{Label: "Call support", Action: QuickReplyCall, Value: s.contacts.PhoneURI()},
		{Label: "Chat on WhatsApp", Action: QuickReplyWhatsApp, Value: s.contacts.WhatsAppLink(text)},
	}
}

func (s *Service) publishEscalation(ctx context.Context, sessionID, reason string) {
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventEscalationRequested,
		Actor:     events.Actor{Type: events.ActorAssistant},
		Timestamp: s.now(),
		Payload:   events.EscalationRequestedPayload{SessionID: sessionID, Reason: reason},
	})
	if err != nil {
		s.logger.Warn("escalation handler failed", zap.Error(err))
	}
}

func fieldLabel(field string) string {
	switch field {
	case "name":
		return "your name"
	case "phone":
		return "a 10-digit phone number"
	case "location":
		return "your location"
	case "problem":
		return "what's wrong with the appliance"
	}
	return field
}
