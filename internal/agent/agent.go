package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/detector"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/observability"
	"github.com/coolfix/service-desk/internal/repository"
	"github.com/coolfix/service-desk/internal/rules"
	"github.com/coolfix/service-desk/internal/service"
)

// OutcomeKind is the closed set of results a ticket operation can produce.
type OutcomeKind string

const (
	KindCreated           OutcomeKind = "created"
	KindMissingInfo       OutcomeKind = "missing_info"
	KindUpdated           OutcomeKind = "updated"
	KindNoChanges         OutcomeKind = "no_changes"
	KindStatusDetail      OutcomeKind = "status_detail"
	KindStatusList        OutcomeKind = "status_list"
	KindListed            OutcomeKind = "listed"
	KindEmptyList         OutcomeKind = "empty_list"
	KindCancelled         OutcomeKind = "cancelled"
	KindNotFound          OutcomeKind = "not_found"
	KindNeedsIdentifier   OutcomeKind = "needs_identifier"
	KindAmbiguous         OutcomeKind = "ambiguous"
	KindInvalidTransition OutcomeKind = "invalid_transition"
	KindStoreFailure      OutcomeKind = "store_failure"
	KindUnsupported       OutcomeKind = "unsupported"
)

// NextAction tells the chat layer what to do after showing the message.
type NextAction string

const (
	NextCollectMissingInfo NextAction = "collect_missing_info"
	NextDisambiguate       NextAction = "disambiguate"
	NextProvideIdentifier  NextAction = "provide_identifier"
	NextOfferCreate        NextAction = "offer_create"
	NextEscalateToHuman    NextAction = "escalate_to_human"
	NextEscalateToPhone    NextAction = "escalate_to_phone"
	NextNone               NextAction = "none"
)

// Labels used in missing-info prompts.
const (
	LabelName    = "full name"
	LabelPhone   = "phone number"
	LabelProblem = "problem description"
)

// ListCap bounds list results.
const ListCap = 5

const searchLimit = 10

// IntentData carries fields the caller already extracted for the operation.
type IntentData struct {
	CustomerName         string
	Phone                string
	Location             string
	Email                string
	Problem              string
	ServiceType          domain.ServiceType
	Urgency              domain.Urgency
	ApplianceType        string
	TicketNumber         string
	TicketID             string
	Status               domain.TicketStatus
	RelatedFailedCallRef string
}

// Intent is a requested ticket operation.
type Intent struct {
	Action domain.TaskAction
	Data   IntentData
}

// OperationResult is the outcome of Handle. Ticket is set for single-ticket kinds and
// Tickets for list kinds.
type OperationResult struct {
	Kind        OutcomeKind            `json:"kind"`
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	Ticket      *domain.ServiceTicket  `json:"-"`
	Tickets     []domain.ServiceTicket `json:"-"`
	NextAction  NextAction             `json:"next_action"`
	MissingInfo []string               `json:"missing_info,omitempty"`
}

// TicketOperations is the ticket surface the agent drives.
type TicketOperations interface {
	CreateTicket(ctx context.Context, input service.TicketCreateInput) (*domain.ServiceTicket, error)
	GetTicket(ctx context.Context, id string) (*domain.ServiceTicket, error)
	QueryTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.ServiceTicket, error)
	UpdateTicket(ctx context.Context, id string, input service.TicketUpdateInput) (*domain.ServiceTicket, []string, error)
	ChangeStatus(ctx context.Context, id string, status domain.TicketStatus, comment, author string) (*domain.ServiceTicket, error)
	CancelTicket(ctx context.Context, id, reason, author string) (*domain.ServiceTicket, error)
}

// Agent executes ticket operations on behalf of a chat customer.
type Agent struct {
	tickets      TicketOperations
	logger       *zap.Logger
	metrics      *observability.Metrics
	supportPhone string
}

// Dependencies bundles collaborators for the agent.
type Dependencies struct {
	Tickets      TicketOperations
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	SupportPhone string
}

// New constructs an Agent.
func New(deps Dependencies) *Agent {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		tickets:      deps.Tickets,
		logger:       logger,
		metrics:      deps.Metrics,
		supportPhone: deps.SupportPhone,
	}
}

// Handle runs the operation named by intent. It never returns a raw store error; failures
// become a store_failure result that recommends calling support.
func (a *Agent) Handle(ctx context.Context, intent Intent, message string, conv *domain.ConversationContext) OperationResult {
	var result OperationResult
	switch intent.Action {
	case domain.TaskActionCreate:
		result = a.create(ctx, intent.Data, message, conv)
	case domain.TaskActionUpdate:
		result = a.update(ctx, intent.Data, message, conv)
	case domain.TaskActionStatus:
		result = a.status(ctx, intent.Data, conv)
	case domain.TaskActionList:
		result = a.list(ctx, intent.Data, conv)
	case domain.TaskActionDelete:
		result = a.cancel(ctx, intent.Data, message, conv)
	default:
		result = OperationResult{
			Kind:       KindUnsupported,
			Message:    "I'm not able to do that here. Let me connect you with a member of our support team.",
			NextAction: NextEscalateToHuman,
		}
	}
	a.metrics.RecordOperation(string(intent.Action), string(result.Kind))
	return result
}

var placeholderNames = map[string]bool{
	"customer": true, "unknown": true, "user": true, "guest": true, "n/a": true, "na": true, "name": true, "test": true,
}

var placeholderProblems = map[string]bool{
	"problem": true, "issue": true, "service": true, "service request": true, "repair": true,
	"n/a": true, "na": true, "unknown": true, "not specified": true,
}

func (a *Agent) create(ctx context.Context, data IntentData, message string, conv *domain.ConversationContext) OperationResult {
	customer := domain.CustomerInfo{
		Name:     firstNonEmpty(data.CustomerName, customerField(conv, domain.FieldName)),
		Phone:    firstNonEmpty(data.Phone, customerField(conv, domain.FieldPhone)),
		Location: firstNonEmpty(data.Location, customerField(conv, domain.FieldLocation)),
		Email:    firstNonEmpty(data.Email, customerField(conv, domain.FieldEmail)),
	}
	problem := strings.TrimSpace(data.Problem)
	if problem == "" && conv != nil {
		problem = conv.Problem()
	}
	if problem == "" {
		problem = detector.InferProblem(message)
	}

	var missing []string
	if name := strings.TrimSpace(customer.Name); len(name) < 2 || placeholderNames[strings.ToLower(name)] {
		missing = append(missing, LabelName)
	}
	phone, phoneOK := detector.ValidatePhone(customer.Phone)
	if !phoneOK {
		missing = append(missing, LabelPhone)
	}
	if !usableProblem(problem) {
		missing = append(missing, LabelProblem)
	}
	if len(missing) > 0 {
		return missingInfo(missing)
	}
	customer.Phone = phone

	urgency := data.Urgency
	if !urgency.Valid() {
		urgency = rules.ClassifyUrgency(problem + " " + message)
	}
	input := service.TicketCreateInput{
		Customer:           customer,
		ServiceType:        data.ServiceType,
		Appliance:          domain.Appliance{Type: data.ApplianceType},
		ProblemDescription: problem,
		Urgency:            urgency,
		Channel:            domain.CommunicationChat,
	}
	if ref := strings.TrimSpace(data.RelatedFailedCallRef); ref != "" {
		input.RelatedFailedCallRef = &ref
		input.Tags = []string{"failed_call"}
	}

	ticket, err := a.tickets.CreateTicket(ctx, input)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return missingInfo([]string{labelForField(verr.Field)})
		}
		return a.storeFailure("create", err)
	}
	msg := fmt.Sprintf("Your service request %s has been registered. Priority: %s. A technician will contact you %s.",
		ticket.TicketNumber, ticket.Priority, ticket.EstimatedResponseTime)
	if ticket.IsEmergency {
		msg += " This has been flagged as an emergency."
	}
	return OperationResult{
		Kind:       KindCreated,
		Success:    true,
		Message:    msg,
		Ticket:     ticket,
		NextAction: NextNone,
	}
}

func missingInfo(missing []string) OperationResult {
	return OperationResult{
		Kind:        KindMissingInfo,
		Message:     "To register your service request I still need your " + joinList(missing) + ".",
		NextAction:  NextCollectMissingInfo,
		MissingInfo: missing,
	}
}

func usableProblem(problem string) bool {
	p := strings.ToLower(strings.TrimSpace(problem))
	if len(p) < 5 || placeholderProblems[p] {
		return false
	}
	return !rules.IsGenericRequest(p)
}

func labelForField(field string) string {
	switch field {
	case "name":
		return LabelName
	case "phone":
		return LabelPhone
	case "problem":
		return LabelProblem
	}
	return field
}

func (a *Agent) storeFailure(op string, err error) OperationResult {
	a.logger.Error("ticket store failure", zap.String("operation", op), zap.Error(err))
	msg := "I'm sorry, I'm having trouble accessing our service records right now."
	if a.supportPhone != "" {
		msg += fmt.Sprintf(" Please call us at %s and our team will help you directly.", a.supportPhone)
	} else {
		msg += " Please call our support line and our team will help you directly."
	}
	return OperationResult{
		Kind:       KindStoreFailure,
		Message:    msg,
		NextAction: NextEscalateToPhone,
	}
}

func customerField(conv *domain.ConversationContext, field domain.CustomerField) string {
	if conv == nil {
		return ""
	}
	switch field {
	case domain.FieldName:
		return conv.Customer.Name
	case domain.FieldPhone:
		return conv.Customer.Phone
	case domain.FieldLocation:
		return conv.Customer.Location
	case domain.FieldEmail:
		return conv.Customer.Email
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
