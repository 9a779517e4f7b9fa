package domain

// TaskAction is a ticket operation requested by the customer.
type TaskAction string

const (
	TaskActionCreate TaskAction = "create"
	TaskActionUpdate TaskAction = "update"
	TaskActionStatus TaskAction = "status"
	TaskActionList   TaskAction = "list"
	TaskActionDelete TaskAction = "delete"
)

// NormalizeTaskAction maps synonyms onto the closed action set.
func NormalizeTaskAction(raw string) (TaskAction, bool) {
	switch raw {
	case "create", "new", "book":
		return TaskActionCreate, true
	case "update", "edit", "modify", "reschedule":
		return TaskActionUpdate, true
	case "status", "check", "track":
		return TaskActionStatus, true
	case "list", "show", "history":
		return TaskActionList, true
	case "delete", "cancel", "remove":
		return TaskActionDelete, true
	}
	return "", false
}

// Intent is a coarse classification of what a message is about.
type Intent string

const (
	IntentFailedCallReport Intent = "failed_call_report"
	IntentServiceRequest   Intent = "service_request"
	IntentTicketStatus     Intent = "ticket_status"
	IntentTicketUpdate     Intent = "ticket_update"
	IntentTicketCancel     Intent = "ticket_cancel"
	IntentTicketList       Intent = "ticket_list"
	IntentComplaint        Intent = "complaint"
	IntentGreeting         Intent = "greeting"
	IntentGeneralInquiry   Intent = "general_inquiry"
)

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	switch i {
	case IntentFailedCallReport, IntentServiceRequest, IntentTicketStatus, IntentTicketUpdate,
		IntentTicketCancel, IntentTicketList, IntentComplaint, IntentGreeting, IntentGeneralInquiry:
		return true
	}
	return false
}

// ResponseStrategy tells the chat layer how to pitch its reply.
type ResponseStrategy string

const (
	StrategyEmpathetic           ResponseStrategy = "empathetic"
	StrategySolutionFocused      ResponseStrategy = "solution_focused"
	StrategyEscalation           ResponseStrategy = "escalation"
	StrategyInformationGathering ResponseStrategy = "information_gathering"
)

// Valid reports whether s is a known strategy.
func (s ResponseStrategy) Valid() bool {
	switch s {
	case StrategyEmpathetic, StrategySolutionFocused, StrategyEscalation, StrategyInformationGathering:
		return true
	}
	return false
}

// AnalysisSource records which path produced an analysis.
type AnalysisSource string

const (
	AnalysisSourceAI        AnalysisSource = "ai"
	AnalysisSourceHeuristic AnalysisSource = "heuristic"
)

// MaxFrustration is the top of the frustration scale.
const MaxFrustration = 10

// FailedCallAssessment is the analyzer's view on whether contact failed.
type FailedCallAssessment struct {
	Likely     bool    `json:"likely"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// TaskIntent is the analyzer's view on ticket-management intent.
type TaskIntent struct {
	Detected   bool       `json:"detected"`
	Action     TaskAction `json:"action,omitempty"`
	Confidence float64    `json:"confidence"`
}

// AnalysisResult is the complete classification of one message.
type AnalysisResult struct {
	FailedCall       FailedCallAssessment `json:"failed_call"`
	TaskIntent       TaskIntent           `json:"task_intent"`
	PrimaryIntent    Intent               `json:"primary_intent"`
	SecondaryIntents []Intent             `json:"secondary_intents"`
	Urgency          Urgency              `json:"urgency"`
	Frustration      int                  `json:"frustration"`
	Strategy         ResponseStrategy     `json:"strategy"`
	Source           AnalysisSource       `json:"source"`
}
