package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolfix/service-desk/internal/agent"
	"github.com/coolfix/service-desk/internal/ai"
	"github.com/coolfix/service-desk/internal/analyzer"
	"github.com/coolfix/service-desk/internal/config"
	"github.com/coolfix/service-desk/internal/detector"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/events"
	"github.com/coolfix/service-desk/internal/repository"
	"github.com/coolfix/service-desk/internal/service"
	"github.com/coolfix/service-desk/internal/session"
)

type fakeContacts struct{}

func (fakeContacts) PhoneURI() string { return "tel:+919544654402" }

func (fakeContacts) WhatsAppLink(text string) string { return "https://wa.me/919544654402?text=" + text }

type fixture struct {
	svc         *Service
	tickets     *service.TicketService
	repo        *repository.MemoryTicketRepository
	sessions    *session.MemoryStore
	escalations []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	f := &fixture{
		repo:     repository.NewMemoryTicketRepository(),
		sessions: session.NewMemoryStore(time.Hour),
	}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventEscalationRequested, func(_ context.Context, e events.Event) error {
		f.escalations = append(f.escalations, e)
		return nil
	})
	f.tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo: f.repo,
		Roster:     config.DefaultRoster(),
		Dispatcher: dispatcher,
		Clock:      clock,
	})
	f.svc = NewService(Dependencies{
		Sessions:   f.sessions,
		Analyzer:   analyzer.New(analyzer.Dependencies{Generator: ai.Disabled()}),
		Detector:   detector.New(detector.Dependencies{Generator: ai.Disabled()}),
		Agent:      agent.New(agent.Dependencies{Tickets: f.tickets, SupportPhone: "9544654402"}),
		Contacts:   fakeContacts{},
		Dispatcher: dispatcher,
		Clock:      clock,
	})
	return f
}

func TestFailedCallMessageCreatesTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.svc.HandleMessage(ctx, "s1",
		"my name is gautham and phone no is 9544654402 and location is thiruvalla and problem is Ac burst")
	require.NoError(t, err)

	require.NotNil(t, reply.Signal)
	require.NotNil(t, reply.Operation)
	assert.Equal(t, agent.KindCreated, reply.Operation.Kind)
	assert.Equal(t, domain.StageResolution, reply.Stage)
	assert.NotEmpty(t, reply.TicketNumber)
	assert.Contains(t, reply.Message, reply.TicketNumber)
	require.Len(t, reply.QuickReplies, 2)
	assert.Equal(t, QuickReplyCall, reply.QuickReplies[0].Action)
	assert.Equal(t, "tel:+919544654402", reply.QuickReplies[0].Value)
	assert.Contains(t, reply.QuickReplies[1].Value, reply.TicketNumber)

	ticket := reply.Operation.Ticket
	assert.Equal(t, "gautham", ticket.Customer.Name)
	assert.Equal(t, "9544654402", ticket.Customer.Phone)
	require.NotNil(t, ticket.RelatedFailedCallRef)
	assert.Equal(t, "s1", *ticket.RelatedFailedCallRef)

	conv, err := f.sessions.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, conv.History, 2)
	assert.Equal(t, domain.ChatRoleAssistant, conv.History[1].Role)
}

func TestRepeatedRequestDoesNotCreateSecondTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := "my name is gautham and phone no is 9544654402 and location is thiruvalla and problem is Ac burst"

	first, err := f.svc.HandleMessage(ctx, "s1", msg)
	require.NoError(t, err)
	second, err := f.svc.HandleMessage(ctx, "s1", msg)
	require.NoError(t, err)

	assert.Equal(t, first.TicketNumber, second.TicketNumber)
	assert.Contains(t, second.Message, "already registered as "+first.TicketNumber)
	all, err := f.tickets.QueryTickets(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGenericRequestCollectsDetailsOverTurns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.svc.HandleMessage(ctx, "s2", "I need AC repair")
	require.NoError(t, err)
	assert.Equal(t, domain.StageDetails, reply.Stage)
	assert.Nil(t, reply.Operation)
	assert.Contains(t, reply.Message, "your name")
	assert.Contains(t, reply.Message, "what's wrong with the appliance")
	assert.Empty(t, reply.TicketNumber)

	reply, err = f.svc.HandleMessage(ctx, "s2", "I am Meera, 9847012345, I live in Kochi and the AC is not cooling")
	require.NoError(t, err)
	require.NotNil(t, reply.Operation)
	assert.Equal(t, agent.KindCreated, reply.Operation.Kind)
	assert.Equal(t, "Meera", reply.Operation.Ticket.Customer.Name)
	assert.Equal(t, domain.ServiceTypeACRepair, reply.Operation.Ticket.ServiceType)
	assert.NotEmpty(t, reply.TicketNumber)
}

func TestStatusQueryRoutesToAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.tickets.CreateTicket(ctx, service.TicketCreateInput{
		Customer:           domain.CustomerInfo{Name: "Anil", Phone: "9847012345", Location: "Kochi"},
		ProblemDescription: "Fridge not cooling",
	})
	require.NoError(t, err)

	reply, err := f.svc.HandleMessage(ctx, "s3", "what is the status of "+ticket.TicketNumber+"?")
	require.NoError(t, err)

	require.NotNil(t, reply.Operation)
	assert.Equal(t, agent.KindStatusDetail, reply.Operation.Kind)
	assert.Contains(t, reply.Message, ticket.TicketNumber)
	assert.Equal(t, domain.StageResolution, reply.Stage)
	assert.False(t, reply.Escalated)
}

func TestStoreFailureEscalates(t *testing.T) {
	f := newFixture(t)
	f.repo.FailWith(errors.New("connection refused"))

	reply, err := f.svc.HandleMessage(context.Background(), "s4", "what is the status of SR-240801-ABC123")
	require.NoError(t, err)

	require.NotNil(t, reply.Operation)
	assert.Equal(t, agent.KindStoreFailure, reply.Operation.Kind)
	assert.True(t, reply.Escalated)
	assert.Equal(t, domain.StageEscalation, reply.Stage)
	assert.Len(t, reply.QuickReplies, 2)
	require.Len(t, f.escalations, 1)
	payload, ok := f.escalations[0].Payload.(events.EscalationRequestedPayload)
	require.True(t, ok)
	assert.Equal(t, "s4", payload.SessionID)
}

func TestGreetingStaysInGreetingStage(t *testing.T) {
	f := newFixture(t)
	reply, err := f.svc.HandleMessage(context.Background(), "s5", "hello there")
	require.NoError(t, err)

	assert.Nil(t, reply.Operation)
	assert.Nil(t, reply.Signal)
	assert.Equal(t, domain.StageGreeting, reply.Stage)
	assert.NotEmpty(t, reply.Message)
}

func TestEmptyMessageIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.HandleMessage(context.Background(), "s6", "   ")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "message", verr.Field)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.StartSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, conv.SessionID)
	_, err = f.sessions.Load(ctx, conv.SessionID)
	require.NoError(t, err)

	require.NoError(t, f.svc.EndSession(ctx, conv.SessionID))
	_, err = f.sessions.Load(ctx, conv.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
