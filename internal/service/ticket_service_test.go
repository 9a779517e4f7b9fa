package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolfix/service-desk/internal/config"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/events"
	"github.com/coolfix/service-desk/internal/jobs"
	"github.com/coolfix/service-desk/internal/repository"
)

type ticketFixture struct {
	svc    *TicketService
	repo   *repository.MemoryTicketRepository
	queue  *jobs.MemoryQueue
	now    time.Time
	mu     sync.Mutex
	events []events.Event
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	f := &ticketFixture{
		repo:  repository.NewMemoryTicketRepository(),
		queue: jobs.NewMemoryQueue(),
		now:   time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC),
	}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.SubscribeAll(func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
		return nil
	})
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:      f.repo,
		Queue:           f.queue,
		Roster:          config.DefaultRoster(),
		Dispatcher:      dispatcher,
		AssignmentDelay: 5 * time.Second,
		Clock:           func() time.Time { return f.now },
	})
	return f
}

func (f *ticketFixture) eventTypes() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func (f *ticketFixture) create(t *testing.T, urgency domain.Urgency, serviceType domain.ServiceType) *domain.ServiceTicket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), TicketCreateInput{
		Customer:           domain.CustomerInfo{Name: "Gautham", Phone: "9544654402", Location: "Thiruvalla"},
		ServiceType:        serviceType,
		ProblemDescription: "AC not cooling properly",
		Urgency:            urgency,
	})
	require.NoError(t, err)
	return ticket
}

func TestComputePriorityTable(t *testing.T) {
	cases := []struct {
		urgency     domain.Urgency
		serviceType domain.ServiceType
		priority    domain.TicketPriority
		response    string
	}{
		{domain.UrgencyLow, domain.ServiceTypeEmergency, domain.TicketPriorityCritical, "within 2 hours"},
		{domain.UrgencyCritical, domain.ServiceTypeACRepair, domain.TicketPriorityCritical, "within 4 hours"},
		{domain.UrgencyHigh, domain.ServiceTypeMaintenance, domain.TicketPriorityHigh, "within 24 hours"},
		{domain.UrgencyMedium, domain.ServiceTypeACRepair, domain.TicketPriorityMedium, "within 48 hours"},
		{domain.UrgencyMedium, domain.ServiceTypeRefrigeratorRepair, domain.TicketPriorityLow, "3-5 business days"},
		{domain.UrgencyLow, domain.ServiceTypeACRepair, domain.TicketPriorityLow, "3-5 business days"},
	}
	for _, tc := range cases {
		t.Run(string(tc.urgency)+"/"+string(tc.serviceType), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				priority := ComputePriority(tc.urgency, tc.serviceType)
				assert.Equal(t, tc.priority, priority)
				assert.Equal(t, tc.response, ResponseTimeFor(priority, IsEmergency(tc.serviceType)))
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(domain.TicketStatusNew, domain.TicketStatusAcknowledged))
	assert.True(t, CanTransition(domain.TicketStatusNew, domain.TicketStatusInProgress))
	assert.True(t, CanTransition(domain.TicketStatusScheduled, domain.TicketStatusOnHold))
	assert.True(t, CanTransition(domain.TicketStatusOnHold, domain.TicketStatusScheduled))
	assert.True(t, CanTransition(domain.TicketStatusOnHold, domain.TicketStatusCancelled))
	assert.False(t, CanTransition(domain.TicketStatusOnHold, domain.TicketStatusCompleted))
	assert.False(t, CanTransition(domain.TicketStatusInProgress, domain.TicketStatusAcknowledged))
	for _, terminal := range []domain.TicketStatus{domain.TicketStatusCompleted, domain.TicketStatusCancelled} {
		for _, next := range domain.ActiveStatuses() {
			assert.False(t, CanTransition(terminal, next), "%s -> %s", terminal, next)
		}
	}
}

func TestFollowUpDelay(t *testing.T) {
	assert.Equal(t, 30*time.Minute, FollowUpDelay(domain.TicketPriorityCritical))
	assert.Equal(t, 2*time.Hour, FollowUpDelay(domain.TicketPriorityHigh))
	assert.Equal(t, 24*time.Hour, FollowUpDelay(domain.TicketPriorityMedium))
	assert.Equal(t, 48*time.Hour, FollowUpDelay(domain.TicketPriorityLow))
}

func TestNewTicketNumberFormat(t *testing.T) {
	now := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	a := NewTicketNumber(now)
	b := NewTicketNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^SR-240715-[0-9A-F]{6}$`), a)
	assert.NotEqual(t, a, b)
}

func TestCreateTicketDerivesFieldsAndSchedulesJobs(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, domain.UrgencyMedium, domain.ServiceTypeACRepair)

	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.NotEmpty(t, ticket.TicketNumber)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, "within 48 hours", ticket.EstimatedResponseTime)
	assert.False(t, ticket.IsEmergency)
	assert.True(t, ticket.RequiresPartOrdering)
	assert.Equal(t, "AC", ticket.Appliance.Type)
	require.Len(t, ticket.CommunicationLog, 1)
	assert.Equal(t, int64(1), ticket.Version)

	assert.Equal(t, 2, f.queue.Pending())
	claimed, err := f.queue.Claim(context.Background(), f.now.Add(5*time.Second), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, jobs.TypeAssignTechnician, claimed[0].Type)

	claimed, err = f.queue.Claim(context.Background(), f.now.Add(24*time.Hour), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, jobs.TypeFollowUp, claimed[0].Type)

	assert.Contains(t, f.eventTypes(), events.EventTicketCreated)
}

func TestCreateTicketInfersServiceType(t *testing.T) {
	f := newTicketFixture(t)
	ticket, err := f.svc.CreateTicket(context.Background(), TicketCreateInput{
		Customer:           domain.CustomerInfo{Name: "Gautham", Phone: "9544654402"},
		ProblemDescription: "AC problem: Ac burst",
		Urgency:            domain.UrgencyHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceTypeEmergency, ticket.ServiceType)
	assert.True(t, ticket.IsEmergency)
	assert.Equal(t, domain.TicketPriorityCritical, ticket.Priority)
	assert.Equal(t, "within 2 hours", ticket.EstimatedResponseTime)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.CreateTicket(context.Background(), TicketCreateInput{
		Customer:           domain.CustomerInfo{Name: "Gautham"},
		ProblemDescription: "fridge leaking water",
	})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "phone", verr.Field)
	assert.Zero(t, f.queue.Pending())
}

func TestCreateTicketNormalizesMobileNumber(t *testing.T) {
	ctx := context.Background()
	f := newTicketFixture(t)

	ticket, err := f.svc.CreateTicket(ctx, TicketCreateInput{
		Customer:           domain.CustomerInfo{Name: "Gautham", Phone: "+91 95446-54402"},
		ProblemDescription: "fridge leaking water",
	})
	require.NoError(t, err)
	assert.Equal(t, "9544654402", ticket.Customer.Phone)

	for _, phone := range []string{"5123456789", "12345", "call me"} {
		_, err := f.svc.CreateTicket(ctx, TicketCreateInput{
			Customer:           domain.CustomerInfo{Name: "Gautham", Phone: phone},
			ProblemDescription: "fridge leaking water",
		})
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr), phone)
		assert.Equal(t, "phone", verr.Field)
	}

	bad := "5123456789"
	_, _, err = f.svc.UpdateTicket(ctx, ticket.ID, TicketUpdateInput{CustomerPhone: &bad})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "phone", verr.Field)

	good := "+91 98470 12345"
	updated, changed, err := f.svc.UpdateTicket(ctx, ticket.ID, TicketUpdateInput{CustomerPhone: &good})
	require.NoError(t, err)
	assert.Equal(t, "9847012345", updated.Customer.Phone)
	assert.Contains(t, changed, "customer_phone")
}

func TestUpdateTicketRecomputesPriority(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, domain.UrgencyMedium, domain.ServiceTypeACRepair)

	high := domain.UrgencyHigh
	updated, changed, err := f.svc.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{Urgency: &high})
	require.NoError(t, err)
	assert.Equal(t, []string{"urgency"}, changed)
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	assert.Equal(t, "within 24 hours", updated.EstimatedResponseTime)

	location := "Kottayam"
	updated, changed, err = f.svc.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{CustomerLocation: &location})
	require.NoError(t, err)
	assert.Equal(t, []string{"location"}, changed)
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)

	_, changed, err = f.svc.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{CustomerLocation: &location})
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestChangeStatusEnforcesStateMachine(t *testing.T) {
	ctx := context.Background()
	f := newTicketFixture(t)
	ticket := f.create(t, domain.UrgencyMedium, domain.ServiceTypeACRepair)

	updated, err := f.svc.ChangeStatus(ctx, ticket.ID, domain.TicketStatusScheduled, "visit booked", "operator")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusScheduled, updated.Status)

	_, err = f.svc.ChangeStatus(ctx, ticket.ID, domain.TicketStatusNew, "", "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	updated, err = f.svc.ChangeStatus(ctx, ticket.ID, domain.TicketStatusCompleted, "", "")
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)

	_, err = f.svc.ChangeStatus(ctx, ticket.ID, domain.TicketStatusInProgress, "", "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.ChangeStatus(ctx, ticket.ID, domain.TicketStatus("closed"), "", "")
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	log, err := f.repo.ListCommunications(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, log, 3)
	assert.Contains(t, log[1].Content, "from new to scheduled: visit booked")
}

func TestCancelTicketIsSoft(t *testing.T) {
	ctx := context.Background()
	f := newTicketFixture(t)
	ticket := f.create(t, domain.UrgencyLow, domain.ServiceTypeMaintenance)

	cancelled, err := f.svc.CancelTicket(ctx, ticket.ID, "", domain.AuthorCustomer)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, cancelled.Status)

	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, stored.Status)
	last := stored.CommunicationLog[len(stored.CommunicationLog)-1]
	assert.Contains(t, last.Content, "cancelled on customer request")
}

func TestAutoAssignAcknowledgesNewTicket(t *testing.T) {
	ctx := context.Background()
	f := newTicketFixture(t)
	ticket := f.create(t, domain.UrgencyMedium, domain.ServiceTypeACRepair)

	assigned, ok, err := f.svc.AutoAssign(ctx, ticket.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusAcknowledged, assigned.Status)
	require.NotNil(t, assigned.AssignedTechnician)

	covering := config.DefaultRoster().ForLocation("Thiruvalla")
	ids := make([]string, 0, len(covering))
	for _, tech := range covering {
		ids = append(ids, tech.ID)
	}
	assert.Contains(t, ids, assigned.AssignedTechnician.ID)
	assert.Contains(t, f.eventTypes(), events.EventTicketAssigned)

	again, ok, err := f.svc.AutoAssign(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, assigned.AssignedTechnician.ID, again.AssignedTechnician.ID)
}

func TestFollowUpSkipsTerminalTickets(t *testing.T) {
	ctx := context.Background()
	f := newTicketFixture(t)
	open := f.create(t, domain.UrgencyHigh, domain.ServiceTypeACRepair)
	done := f.create(t, domain.UrgencyHigh, domain.ServiceTypeACRepair)
	_, err := f.svc.ChangeStatus(ctx, done.ID, domain.TicketStatusCompleted, "", "")
	require.NoError(t, err)

	flagged, err := f.svc.FollowUp(ctx, open.ID)
	require.NoError(t, err)
	assert.True(t, flagged)
	log, err := f.repo.ListCommunications(ctx, open.ID)
	require.NoError(t, err)
	assert.True(t, strings.Contains(log[len(log)-1].Content, "needs attention"))

	before, err := f.repo.ListCommunications(ctx, done.ID)
	require.NoError(t, err)
	flagged, err = f.svc.FollowUp(ctx, done.ID)
	require.NoError(t, err)
	assert.False(t, flagged)
	after, err := f.repo.ListCommunications(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
}

func TestHandleJobDropsMissingTicket(t *testing.T) {
	f := newTicketFixture(t)
	err := f.svc.HandleJob(context.Background(), jobs.NewJob(jobs.TypeFollowUp, "gone", f.now))
	assert.NoError(t, err)
}

func TestHandleJobSurfacesStoreFailure(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, domain.UrgencyMedium, domain.ServiceTypeACRepair)
	f.repo.FailWith(errors.New("connection reset"))
	err := f.svc.HandleJob(context.Background(), jobs.NewJob(jobs.TypeAssignTechnician, ticket.ID, f.now))
	assert.Error(t, err)
}

// conflictingRepo fails the first n updates with a version conflict.
type conflictingRepo struct {
	*repository.MemoryTicketRepository
	conflicts int
}

func (r *conflictingRepo) Update(ctx context.Context, ticket *domain.ServiceTicket) error {
	if r.conflicts > 0 {
		r.conflicts--
		return domain.ErrVersionConflict
	}
	return r.MemoryTicketRepository.Update(ctx, ticket)
}

func TestMutateRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := &conflictingRepo{MemoryTicketRepository: repository.NewMemoryTicketRepository()}
	svc := NewTicketService(TicketDependencies{TicketRepo: repo, Roster: config.DefaultRoster()})
	ticket, err := svc.CreateTicket(ctx, TicketCreateInput{
		Customer:           domain.CustomerInfo{Name: "Anu", Phone: "9847012345"},
		ProblemDescription: "washing machine not spinning",
	})
	require.NoError(t, err)

	repo.conflicts = 2
	updated, err := svc.ChangeStatus(ctx, ticket.ID, domain.TicketStatusAcknowledged, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAcknowledged, updated.Status)

	repo.conflicts = maxCASAttempts
	_, err = svc.ChangeStatus(ctx, ticket.ID, domain.TicketStatusScheduled, "", "")
	require.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestAddCommunicationAppendsOnly(t *testing.T) {
	ctx := context.Background()
	f := newTicketFixture(t)
	ticket := f.create(t, domain.UrgencyMedium, domain.ServiceTypeACRepair)

	_, err := f.svc.AddCommunication(ctx, ticket.ID, CommunicationInput{Content: "  "})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	f.now = f.now.Add(time.Minute)
	entry, err := f.svc.AddCommunication(ctx, ticket.ID, CommunicationInput{
		Type: domain.CommunicationWhatsApp, Direction: domain.DirectionOutbound, Content: "Technician on the way", Author: "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, f.now, entry.Timestamp)

	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, stored.CommunicationLog, 2)
	assert.Equal(t, "Service request created: AC not cooling properly", stored.CommunicationLog[0].Content)
	assert.Equal(t, "Technician on the way", stored.CommunicationLog[1].Content)

	_, err = f.svc.AddCommunication(ctx, "missing", CommunicationInput{Content: "hello"})
	require.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestNotificationLinks(t *testing.T) {
	n := NewNotificationService(nil, nil, config.NotificationConfig{
		SupportPhone:   "95446 54402",
		WhatsAppNumber: "+91 9544654402",
		CountryCode:    "91",
	})
	assert.Equal(t, "tel:+919544654402", n.PhoneURI())
	assert.Equal(t, "https://wa.me/919544654402", n.WhatsAppLink(""))
	assert.Equal(t, "https://wa.me/919544654402?text=Ticket+SR-1", n.WhatsAppLink("Ticket SR-1"))
}
