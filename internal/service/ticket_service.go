package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/config"
	"github.com/coolfix/service-desk/internal/detector"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/events"
	"github.com/coolfix/service-desk/internal/jobs"
	"github.com/coolfix/service-desk/internal/observability"
	"github.com/coolfix/service-desk/internal/repository"
	"github.com/coolfix/service-desk/internal/rules"
)

const maxCASAttempts = 5

// errUnchanged aborts a mutation without writing.
var errUnchanged = errors.New("unchanged")

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets         repository.TicketRepository
	queue           jobs.Queue
	roster          config.Roster
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	metrics         *observability.Metrics
	assignmentDelay time.Duration
	now             func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	Queue           jobs.Queue
	Roster          config.Roster
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	AssignmentDelay time.Duration
	Clock           func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Customer             domain.CustomerInfo
	ServiceType          domain.ServiceType
	Appliance            domain.Appliance
	ProblemDescription   string
	Urgency              domain.Urgency
	RelatedFailedCallRef *string
	Tags                 []string
	Channel              domain.CommunicationType
}

// TicketUpdateInput carries optional field changes. Nil means untouched.
type TicketUpdateInput struct {
	CustomerName       *string
	CustomerPhone      *string
	CustomerLocation   *string
	CustomerEmail      *string
	ServiceType        *domain.ServiceType
	Urgency            *domain.Urgency
	ProblemDescription *string
	ApplianceType      *string
	ScheduledAt        *time.Time
	Note               string
	Author             string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	queue := deps.Queue
	if queue == nil {
		queue = jobs.NewMemoryQueue()
	}
	return &TicketService{
		tickets:         deps.TicketRepo,
		queue:           queue,
		roster:          deps.Roster,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		metrics:         deps.Metrics,
		assignmentDelay: deps.AssignmentDelay,
		now:             clock,
	}
}

// CreateTicket validates input, derives priority and response window, stores the ticket and
// schedules auto-assignment and follow-up.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.ServiceTicket, error) {
	name := strings.TrimSpace(input.Customer.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "customer name is required")
	}
	if strings.TrimSpace(input.Customer.Phone) == "" {
		return nil, domain.NewValidationError("phone", "phone number is required")
	}
	phone, ok := detector.ValidatePhone(input.Customer.Phone)
	if !ok {
		return nil, domain.NewValidationError("phone", "phone number must be a 10-digit mobile number")
	}
	problem := strings.TrimSpace(input.ProblemDescription)
	if problem == "" {
		return nil, domain.NewValidationError("problem", "problem description is required")
	}
	serviceType := input.ServiceType
	if !serviceType.Valid() {
		serviceType = rules.ServiceTypeFor(problem)
	}
	urgency := input.Urgency
	if !urgency.Valid() {
		urgency = domain.UrgencyMedium
	}
	appliance := input.Appliance
	if appliance.Type == "" {
		appliance.Type, _ = rules.DetectAppliance(problem)
	}
	channel := input.Channel
	if channel == "" {
		channel = domain.CommunicationChat
	}

	now := s.now()
	ticket := &domain.ServiceTicket{
		ID:           uuid.NewString(),
		TicketNumber: NewTicketNumber(now),
		Customer: domain.CustomerInfo{
			Name:     name,
			Phone:    phone,
			Location: strings.TrimSpace(input.Customer.Location),
			Email:    strings.TrimSpace(input.Customer.Email),
		},
		ServiceType:          serviceType,
		Appliance:            appliance,
		ProblemDescription:   problem,
		Urgency:              urgency,
		Status:               domain.TicketStatusNew,
		RelatedFailedCallRef: input.RelatedFailedCallRef,
		RequiresPartOrdering: rules.RequiresParts(problem),
		Tags:                 append([]string(nil), input.Tags...),
		CreatedAt:            now,
	}
	applyDerived(ticket)

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	s.metrics.RecordTicketCreated(string(ticket.Priority))

	entry, err := s.appendEntry(ctx, ticket.ID, channel, domain.DirectionInbound, domain.AuthorCustomer,
		fmt.Sprintf("Service request created: %s", problem))
	if err != nil {
		s.logger.Error("append creation entry", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else {
		ticket.CommunicationLog = append(ticket.CommunicationLog, *entry)
	}

	s.schedule(ctx, jobs.NewJob(jobs.TypeAssignTechnician, ticket.ID, now.Add(s.assignmentDelay)))
	s.schedule(ctx, jobs.NewJob(jobs.TypeFollowUp, ticket.ID, now.Add(FollowUpDelay(ticket.Priority))))

	s.publish(ctx, events.EventTicketCreated, ticket, events.Actor{Type: events.ActorCustomer}, events.TicketCreatedPayload{
		CustomerName:  ticket.Customer.Name,
		CustomerPhone: ticket.Customer.Phone,
		Location:      ticket.Customer.Location,
		ServiceType:   ticket.ServiceType,
		Priority:      ticket.Priority,
		IsEmergency:   ticket.IsEmergency,
		ResponseTime:  ticket.EstimatedResponseTime,
	})
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("priority", string(ticket.Priority)))
	return ticket, nil
}

// GetTicket fetches a ticket by ID.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.ServiceTicket, error) {
	return s.tickets.GetByID(ctx, id)
}

// GetTicketByNumber fetches a ticket by its SR number.
func (s *TicketService) GetTicketByNumber(ctx context.Context, number string) (*domain.ServiceTicket, error) {
	return s.tickets.GetByNumber(ctx, number)
}

// QueryTickets lists tickets matching filter, newest first.
func (s *TicketService) QueryTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.ServiceTicket, error) {
	return s.tickets.List(ctx, filter)
}

// UpdateTicket applies field changes. Changing urgency or service type recomputes priority,
// emergency flag and response window together. It returns the names of changed fields.
func (s *TicketService) UpdateTicket(ctx context.Context, id string, input TicketUpdateInput) (*domain.ServiceTicket, []string, error) {
	if input.CustomerPhone != nil && strings.TrimSpace(*input.CustomerPhone) != "" {
		phone, ok := detector.ValidatePhone(*input.CustomerPhone)
		if !ok {
			return nil, nil, domain.NewValidationError("phone", "phone number must be a 10-digit mobile number")
		}
		input.CustomerPhone = &phone
	}
	var changed []string
	ticket, err := s.mutate(ctx, id, func(t *domain.ServiceTicket) error {
		changed = changed[:0]
		if t.Status.IsTerminal() {
			return fmt.Errorf("%w: ticket is %s", domain.ErrInvalidTransition, t.Status)
		}
		setString(&t.Customer.Name, input.CustomerName, "customer_name", &changed)
		setString(&t.Customer.Phone, input.CustomerPhone, "customer_phone", &changed)
		setString(&t.Customer.Location, input.CustomerLocation, "location", &changed)
		setString(&t.Customer.Email, input.CustomerEmail, "email", &changed)
		setString(&t.Appliance.Type, input.ApplianceType, "appliance_type", &changed)
		if input.ProblemDescription != nil {
			before := t.ProblemDescription
			setString(&t.ProblemDescription, input.ProblemDescription, "problem_description", &changed)
			if t.ProblemDescription != before {
				t.RequiresPartOrdering = rules.RequiresParts(t.ProblemDescription)
			}
		}
		recompute := false
		if input.Urgency != nil && input.Urgency.Valid() && *input.Urgency != t.Urgency {
			t.Urgency = *input.Urgency
			changed = append(changed, "urgency")
			recompute = true
		}
		if input.ServiceType != nil && input.ServiceType.Valid() && *input.ServiceType != t.ServiceType {
			t.ServiceType = *input.ServiceType
			changed = append(changed, "service_type")
			recompute = true
		}
		if input.ScheduledAt != nil && (t.ScheduledAt == nil || !t.ScheduledAt.Equal(*input.ScheduledAt)) {
			at := input.ScheduledAt.UTC()
			t.ScheduledAt = &at
			changed = append(changed, "scheduled_at")
		}
		if recompute {
			applyDerived(t)
		}
		if len(changed) == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(changed) == 0 {
		return ticket, nil, nil
	}

	author := input.Author
	if author == "" {
		author = domain.AuthorSystem
	}
	note := fmt.Sprintf("Ticket updated: %s", strings.Join(changed, ", "))
	if strings.TrimSpace(input.Note) != "" {
		note += ". " + strings.TrimSpace(input.Note)
	}
	if entry, err := s.appendEntry(ctx, ticket.ID, domain.CommunicationNote, domain.DirectionInternal, author, note); err != nil {
		s.logger.Error("append update entry", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else {
		ticket.CommunicationLog = append(ticket.CommunicationLog, *entry)
	}
	s.publish(ctx, events.EventTicketUpdated, ticket, events.Actor{Type: actorFor(author)}, events.TicketUpdatedPayload{Fields: changed})
	return ticket, changed, nil
}

// ChangeStatus moves a ticket through the lifecycle. Moving to the current status is a no-op.
func (s *TicketService) ChangeStatus(ctx context.Context, id string, status domain.TicketStatus, comment, author string) (*domain.ServiceTicket, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	var old domain.TicketStatus
	ticket, err := s.mutate(ctx, id, func(t *domain.ServiceTicket) error {
		old = t.Status
		if t.Status == status {
			return errUnchanged
		}
		if !CanTransition(t.Status, status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.Status, status)
		}
		t.Status = status
		if status == domain.TicketStatusCompleted {
			at := s.now()
			t.CompletedAt = &at
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if old == status {
		return ticket, nil
	}

	if author == "" {
		author = domain.AuthorSystem
	}
	content := fmt.Sprintf("Status changed from %s to %s", old, status)
	if c := strings.TrimSpace(comment); c != "" {
		content += ": " + c
	}
	if entry, err := s.appendEntry(ctx, ticket.ID, domain.CommunicationSystem, domain.DirectionInternal, author, content); err != nil {
		s.logger.Error("append status entry", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else {
		ticket.CommunicationLog = append(ticket.CommunicationLog, *entry)
	}
	s.publish(ctx, events.EventTicketStatusChanged, ticket, events.Actor{Type: actorFor(author)}, events.TicketStatusChangedPayload{
		OldStatus: old,
		NewStatus: status,
		Comment:   comment,
	})
	return ticket, nil
}

// CancelTicket is a soft delete: the ticket moves to cancelled and the reason is logged.
func (s *TicketService) CancelTicket(ctx context.Context, id, reason, author string) (*domain.ServiceTicket, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled on customer request"
	}
	return s.ChangeStatus(ctx, id, domain.TicketStatusCancelled, reason, author)
}

// CommunicationInput describes a new log entry.
type CommunicationInput struct {
	Type      domain.CommunicationType
	Direction domain.CommunicationDirection
	Content   string
	Author    string
	Status    string
}

// AddCommunication appends an entry to the ticket log.
func (s *TicketService) AddCommunication(ctx context.Context, ticketID string, input CommunicationInput) (*domain.CommunicationEntry, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domain.NewValidationError("content", "content is required")
	}
	if input.Type == "" {
		input.Type = domain.CommunicationNote
	}
	if input.Direction == "" {
		input.Direction = domain.DirectionInternal
	}
	if input.Author == "" {
		input.Author = domain.AuthorSystem
	}
	entry := &domain.CommunicationEntry{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Timestamp: s.now(),
		Type:      input.Type,
		Direction: input.Direction,
		Content:   content,
		Author:    input.Author,
		Status:    input.Status,
	}
	if err := s.tickets.AppendCommunication(ctx, entry); err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventCommunicationAdded, &domain.ServiceTicket{ID: ticketID}, events.Actor{Type: actorFor(input.Author)},
		events.CommunicationAddedPayload{
			EntryID:   entry.ID,
			Type:      entry.Type,
			Direction: entry.Direction,
			Preview:   preview(content),
		})
	return entry, nil
}

// AutoAssign picks a technician covering the ticket location and acknowledges the ticket.
// It reports false when the ticket already left new.
func (s *TicketService) AutoAssign(ctx context.Context, ticketID string) (*domain.ServiceTicket, bool, error) {
	var tech *domain.Technician
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.ServiceTicket) error {
		tech = nil
		if t.Status != domain.TicketStatusNew {
			return errUnchanged
		}
		candidates := s.roster.ForLocation(t.Customer.Location)
		if len(candidates) == 0 {
			return errUnchanged
		}
		picked := candidates[selectIndex(t.ID, len(candidates))]
		tech = &domain.Technician{ID: picked.ID, Name: picked.Name, Phone: picked.Phone}
		t.AssignedTechnician = tech
		t.Status = domain.TicketStatusAcknowledged
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if tech == nil {
		s.logger.Debug("auto-assignment skipped", zap.String("ticket_id", ticketID), zap.String("status", string(ticket.Status)))
		return ticket, false, nil
	}

	if entry, err := s.appendEntry(ctx, ticket.ID, domain.CommunicationSystem, domain.DirectionInternal, domain.AuthorSystem,
		fmt.Sprintf("Technician %s assigned; ticket acknowledged", tech.Name)); err != nil {
		s.logger.Error("append assignment entry", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else {
		ticket.CommunicationLog = append(ticket.CommunicationLog, *entry)
	}
	actor := events.Actor{Type: events.ActorSystem}
	s.publish(ctx, events.EventTicketAssigned, ticket, actor, events.TicketAssignedPayload{
		TechnicianID:    tech.ID,
		TechnicianName:  tech.Name,
		TechnicianPhone: tech.Phone,
	})
	s.publish(ctx, events.EventTicketStatusChanged, ticket, actor, events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusNew,
		NewStatus: domain.TicketStatusAcknowledged,
		Comment:   "auto-assigned",
	})
	return ticket, true, nil
}

// FollowUp flags a ticket that is still open. Terminal tickets are left untouched.
func (s *TicketService) FollowUp(ctx context.Context, ticketID string) (bool, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if ticket.Status.IsTerminal() {
		return false, nil
	}
	content := fmt.Sprintf("Follow-up: ticket still %s at %s priority, needs attention", ticket.Status, ticket.Priority)
	if _, err := s.appendEntry(ctx, ticket.ID, domain.CommunicationSystem, domain.DirectionInternal, domain.AuthorSystem, content); err != nil {
		return false, err
	}
	s.publish(ctx, events.EventFollowUpDue, ticket, events.Actor{Type: events.ActorSystem}, events.FollowUpDuePayload{
		Status:   ticket.Status,
		Priority: ticket.Priority,
	})
	return true, nil
}

// HandleJob runs a claimed job. Jobs for tickets that no longer exist are dropped.
func (s *TicketService) HandleJob(ctx context.Context, job jobs.Job) error {
	var err error
	switch job.Type {
	case jobs.TypeAssignTechnician:
		_, _, err = s.AutoAssign(ctx, job.TicketID)
	case jobs.TypeFollowUp:
		_, err = s.FollowUp(ctx, job.TicketID)
	default:
		s.logger.Warn("unknown job type dropped", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return nil
	}
	if errors.Is(err, domain.ErrTicketNotFound) {
		s.logger.Warn("job ticket missing; dropping", zap.String("job_id", job.ID), zap.String("ticket_id", job.TicketID))
		return nil
	}
	return err
}

// mutate loads, changes and stores a ticket with compare-and-swap, retrying on conflict.
func (s *TicketService) mutate(ctx context.Context, id string, fn func(*domain.ServiceTicket) error) (*domain.ServiceTicket, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(ticket); err != nil {
			if errors.Is(err, errUnchanged) {
				return ticket, nil
			}
			return nil, err
		}
		err = s.tickets.Update(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		s.logger.Debug("ticket version conflict; retrying", zap.String("ticket_id", id), zap.Int("attempt", attempt+1))
	}
	return nil, domain.ErrVersionConflict
}

func (s *TicketService) appendEntry(ctx context.Context, ticketID string, typ domain.CommunicationType, dir domain.CommunicationDirection, author, content string) (*domain.CommunicationEntry, error) {
	entry := &domain.CommunicationEntry{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Timestamp: s.now(),
		Type:      typ,
		Direction: dir,
		Content:   content,
		Author:    author,
	}
	if err := s.tickets.AppendCommunication(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *TicketService) schedule(ctx context.Context, job jobs.Job) {
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("enqueue job",
			zap.String("ticket_id", job.TicketID),
			zap.String("type", string(job.Type)),
			zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, typ events.EventType, ticket *domain.ServiceTicket, actor events.Actor, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:           uuid.NewString(),
		Type:         typ,
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Actor:        actor,
		Timestamp:    s.now(),
		Payload:      payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(typ)), zap.Error(err))
	}
}

func setString(dst *string, src *string, field string, changed *[]string) {
	if src == nil {
		return
	}
	v := strings.TrimSpace(*src)
	if v == "" || v == *dst {
		return
	}
	*dst = v
	*changed = append(*changed, field)
}

func actorFor(author string) events.ActorType {
	switch author {
	case domain.AuthorCustomer:
		return events.ActorCustomer
	case domain.AuthorAssistant:
		return events.ActorAssistant
	case domain.AuthorSystem, "":
		return events.ActorSystem
	}
	return events.ActorOperator
}

func preview(content string) string {
	const max = 80
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "..."
}
