package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolfix/service-desk/internal/config"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/repository"
	"github.com/coolfix/service-desk/internal/service"
)

type agentFixture struct {
	agent   *Agent
	tickets *service.TicketService
	repo    *repository.MemoryTicketRepository
	now     time.Time
}

func newAgentFixture(t *testing.T) *agentFixture {
	t.Helper()
	f := &agentFixture{
		repo: repository.NewMemoryTicketRepository(),
		now:  time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	f.tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo: f.repo,
		Roster:     config.DefaultRoster(),
		Clock:      func() time.Time { return f.now },
	})
	f.agent = New(Dependencies{Tickets: f.tickets, SupportPhone: "9544654402"})
	return f
}

func (f *agentFixture) seed(t *testing.T, name, phone, problem string) *domain.ServiceTicket {
	t.Helper()
	f.now = f.now.Add(time.Minute)
	ticket, err := f.tickets.CreateTicket(context.Background(), service.TicketCreateInput{
		Customer:           domain.CustomerInfo{Name: name, Phone: phone, Location: "Kochi"},
		ProblemDescription: problem,
	})
	require.NoError(t, err)
	return ticket
}

func completeIntent() Intent {
	return Intent{Action: domain.TaskActionCreate, Data: IntentData{
		CustomerName: "Gautham",
		Phone:        "+91 95446 54402",
		Location:     "Thiruvalla",
		Problem:      "AC not cooling properly",
	}}
}

func TestCreateWithCompleteData(t *testing.T) {
	f := newAgentFixture(t)
	res := f.agent.Handle(context.Background(), completeIntent(), "please book a repair", nil)

	assert.Equal(t, KindCreated, res.Kind)
	assert.True(t, res.Success)
	require.NotNil(t, res.Ticket)
	assert.NotEmpty(t, res.Ticket.TicketNumber)
	assert.Equal(t, domain.TicketStatusNew, res.Ticket.Status)
	assert.Equal(t, "9544654402", res.Ticket.Customer.Phone)
	assert.Contains(t, res.Message, res.Ticket.TicketNumber)
	assert.Equal(t, NextNone, res.NextAction)
}

func TestCreateMissingPhone(t *testing.T) {
	f := newAgentFixture(t)
	intent := completeIntent()
	intent.Data.Phone = ""
	res := f.agent.Handle(context.Background(), intent, "", nil)

	assert.Equal(t, KindMissingInfo, res.Kind)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"phone number"}, res.MissingInfo)
	assert.Equal(t, NextCollectMissingInfo, res.NextAction)

	all, err := f.repo.List(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateRejectsPlaceholders(t *testing.T) {
	f := newAgentFixture(t)
	res := f.agent.Handle(context.Background(), Intent{Action: domain.TaskActionCreate, Data: IntentData{
		CustomerName: "Customer",
		Phone:        "5123456789",
		Problem:      "I need AC repair",
	}}, "I need AC repair", nil)

	assert.Equal(t, KindMissingInfo, res.Kind)
	assert.Equal(t, []string{"full name", "phone number", "problem description"}, res.MissingInfo)
	assert.Contains(t, res.Message, "full name, phone number and problem description")
}

func TestCreateFallsBackToConversation(t *testing.T) {
	f := newAgentFixture(t)
	conv := domain.NewConversationContext("s1", f.now)
	conv.SetCustomerField(domain.FieldName, "Anu", false)
	conv.SetCustomerField(domain.FieldPhone, "9847012345", false)
	conv.SetCustomerField(domain.FieldProblem, "Refrigerator leaking water", false)

	res := f.agent.Handle(context.Background(), Intent{Action: domain.TaskActionCreate}, "create a ticket", conv)
	require.Equal(t, KindCreated, res.Kind)
	assert.Equal(t, "Anu", res.Ticket.Customer.Name)
	assert.Equal(t, "Refrigerator leaking water", res.Ticket.ProblemDescription)
}

func TestCreateStoreFailureEscalatesToPhone(t *testing.T) {
	f := newAgentFixture(t)
	f.repo.FailWith(errors.New("dial tcp: connection refused"))
	res := f.agent.Handle(context.Background(), completeIntent(), "", nil)

	assert.Equal(t, KindStoreFailure, res.Kind)
	assert.False(t, res.Success)
	assert.Equal(t, NextEscalateToPhone, res.NextAction)
	assert.Contains(t, res.Message, "9544654402")
	assert.NotContains(t, res.Message, "connection refused")
}

func TestStatusZeroOneMany(t *testing.T) {
	ctx := context.Background()
	f := newAgentFixture(t)

	res := f.agent.Handle(ctx, Intent{Action: domain.TaskActionStatus}, "where is my ticket", nil)
	assert.Equal(t, KindNeedsIdentifier, res.Kind)
	assert.Equal(t, NextProvideIdentifier, res.NextAction)

	res = f.agent.Handle(ctx, Intent{Action: domain.TaskActionStatus, Data: IntentData{Phone: "9847012345"}}, "", nil)
	assert.Equal(t, KindNotFound, res.Kind)
	assert.Equal(t, NextProvideIdentifier, res.NextAction)

	first := f.seed(t, "Anu", "9847012345", "Washing machine not spinning")
	res = f.agent.Handle(ctx, Intent{Action: domain.TaskActionStatus, Data: IntentData{Phone: "9847012345"}}, "", nil)
	require.Equal(t, KindStatusDetail, res.Kind)
	assert.True(t, res.Success)
	assert.Equal(t, first.ID, res.Ticket.ID)
	assert.Contains(t, res.Message, first.TicketNumber)
	assert.Contains(t, res.Message, "Washing machine not spinning")
	assert.Contains(t, res.Message, "Priority: low")
	assert.Contains(t, res.Message, "Status: new")

	f.seed(t, "Anu", "9847012345", "Microwave not heating")
	res = f.agent.Handle(ctx, Intent{Action: domain.TaskActionStatus, Data: IntentData{Phone: "9847012345"}}, "", nil)
	assert.Equal(t, KindStatusList, res.Kind)
	assert.Len(t, res.Tickets, 2)
	assert.Nil(t, res.Ticket)
}

func TestUpdateDisambiguatesAndNeverMutates(t *testing.T) {
	ctx := context.Background()
	f := newAgentFixture(t)
	a := f.seed(t, "Anu", "9847012345", "Washing machine not spinning")
	b := f.seed(t, "Anu", "9847012345", "Microwave not heating")

	res := f.agent.Handle(ctx, Intent{Action: domain.TaskActionUpdate, Data: IntentData{Phone: "9847012345"}}, "make it urgent", nil)
	assert.Equal(t, KindAmbiguous, res.Kind)
	assert.Equal(t, NextDisambiguate, res.NextAction)
	assert.Len(t, res.Tickets, 2)

	for _, id := range []string{a.ID, b.ID} {
		stored, err := f.repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.UrgencyMedium, stored.Urgency)
		assert.Equal(t, int64(1), stored.Version)
	}

	res = f.agent.Handle(ctx, Intent{Action: domain.TaskActionDelete, Data: IntentData{Phone: "9847012345"}}, "cancel my request", nil)
	assert.Equal(t, KindAmbiguous, res.Kind)
	stored, err := f.repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, stored.Status)
}

func TestUpdateSingleMatchAppliesInferredChanges(t *testing.T) {
	ctx := context.Background()
	f := newAgentFixture(t)
	ticket := f.seed(t, "Anu", "9847012345", "Washing machine not spinning")

	res := f.agent.Handle(ctx, Intent{Action: domain.TaskActionUpdate, Data: IntentData{TicketNumber: ticket.TicketNumber}},
		"this is urgent, please put it on hold until Monday", nil)
	require.Equal(t, KindUpdated, res.Kind)
	assert.Equal(t, domain.UrgencyHigh, res.Ticket.Urgency)
	assert.Equal(t, domain.TicketPriorityHigh, res.Ticket.Priority)
	assert.Equal(t, domain.TicketStatusOnHold, res.Ticket.Status)

	log, err := f.repo.ListCommunications(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, log, 3)
}

func TestUpdateRejectedStatusLeavesTicketUntouched(t *testing.T) {
	ctx := context.Background()
	f := newAgentFixture(t)
	ticket := f.seed(t, "Anu", "9847012345", "Washing machine not spinning")
	started, err := f.tickets.ChangeStatus(ctx, ticket.ID, domain.TicketStatusInProgress, "technician on site", "operator")
	require.NoError(t, err)

	res := f.agent.Handle(ctx, Intent{Action: domain.TaskActionUpdate, Data: IntentData{TicketNumber: ticket.TicketNumber}},
		"please reschedule, this is urgent", nil)
	require.Equal(t, KindInvalidTransition, res.Kind)
	assert.False(t, res.Success)

	stored, err := f.repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, started.Version, stored.Version)
	assert.Equal(t, started.Urgency, stored.Urgency)
	assert.Equal(t, started.Priority, stored.Priority)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
}

func TestUpdateNoChanges(t *testing.T) {
	f := newAgentFixture(t)
	ticket := f.seed(t, "Anu", "9847012345", "Washing machine not spinning")
	res := f.agent.Handle(context.Background(), Intent{Action: domain.TaskActionUpdate, Data: IntentData{TicketNumber: ticket.TicketNumber}},
		"update my ticket", nil)
	assert.Equal(t, KindNoChanges, res.Kind)
}

func TestCancelIsSoftAndTerminalIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newAgentFixture(t)
	ticket := f.seed(t, "Anu", "9847012345", "Washing machine not spinning")

	res := f.agent.Handle(ctx, Intent{Action: domain.TaskActionDelete, Data: IntentData{Phone: "9847012345"}}, "cancel my request", nil)
	require.Equal(t, KindCancelled, res.Kind)
	stored, err := f.repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, stored.Status)
	assert.Contains(t, stored.CommunicationLog[len(stored.CommunicationLog)-1].Content, "Cancelled by customer via chat")

	res = f.agent.Handle(ctx, Intent{Action: domain.TaskActionDelete, Data: IntentData{TicketNumber: ticket.TicketNumber}}, "cancel", nil)
	assert.Equal(t, KindInvalidTransition, res.Kind)
	assert.False(t, res.Success)

	res = f.agent.Handle(ctx, Intent{Action: domain.TaskActionDelete, Data: IntentData{Phone: "9847012345"}}, "cancel", nil)
	assert.Equal(t, KindNotFound, res.Kind)
}

func TestListCapsAndOffersCreate(t *testing.T) {
	ctx := context.Background()
	f := newAgentFixture(t)
	res := f.agent.Handle(ctx, Intent{Action: domain.TaskActionList, Data: IntentData{Phone: "9847012345"}}, "show my tickets", nil)
	assert.Equal(t, KindEmptyList, res.Kind)
	assert.True(t, res.Success)
	assert.Equal(t, NextOfferCreate, res.NextAction)

	for i := 0; i < 7; i++ {
		f.seed(t, "Anu", "9847012345", "Washing machine not spinning")
	}
	res = f.agent.Handle(ctx, Intent{Action: domain.TaskActionList, Data: IntentData{Phone: "9847012345"}}, "show my tickets", nil)
	assert.Equal(t, KindListed, res.Kind)
	assert.Len(t, res.Tickets, ListCap)
}

func TestLookupStoreFailure(t *testing.T) {
	f := newAgentFixture(t)
	f.repo.FailWith(errors.New("timeout"))
	for _, action := range []domain.TaskAction{domain.TaskActionStatus, domain.TaskActionUpdate, domain.TaskActionList, domain.TaskActionDelete} {
		res := f.agent.Handle(context.Background(), Intent{Action: action, Data: IntentData{Phone: "9847012345"}}, "", nil)
		assert.Equal(t, KindStoreFailure, res.Kind, string(action))
		assert.Equal(t, NextEscalateToPhone, res.NextAction)
	}
}

func TestUnknownActionEscalatesToHuman(t *testing.T) {
	f := newAgentFixture(t)
	res := f.agent.Handle(context.Background(), Intent{Action: "refund"}, "", nil)
	assert.Equal(t, KindUnsupported, res.Kind)
	assert.Equal(t, NextEscalateToHuman, res.NextAction)
}

func TestExtractTicketNumber(t *testing.T) {
	assert.Equal(t, "SR-240801-A1B2C3", ExtractTicketNumber("status of sr-240801-a1b2c3 please"))
	assert.Empty(t, ExtractTicketNumber("no ticket here"))
}
