package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/coolfix/service-desk/internal/detector"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/repository"
	"github.com/coolfix/service-desk/internal/rules"
	"github.com/coolfix/service-desk/internal/service"
)

var ticketNumberPattern = regexp.MustCompile(`(?i)\bSR-\d{6}-[0-9A-F]{6}\b`)

// ExtractTicketNumber returns the first SR ticket number mentioned in text, upper-cased.
func ExtractTicketNumber(text string) string {
	return strings.ToUpper(ticketNumberPattern.FindString(text))
}

// lookup is the outcome of resolving which tickets an operation refers to.
type lookup struct {
	tickets      []domain.ServiceTicket
	noIdentifier bool
	err          error
}

// find resolves tickets by ID, ticket number, phone or name, in that order. When
// activeOnly is set, phone and name searches skip closed tickets.
func (a *Agent) find(ctx context.Context, data IntentData, conv *domain.ConversationContext, activeOnly bool, limit int) lookup {
	if id := strings.TrimSpace(data.TicketID); id != "" {
		ticket, err := a.tickets.GetTicket(ctx, id)
		if errors.Is(err, domain.ErrTicketNotFound) {
			return lookup{}
		}
		if err != nil {
			return lookup{err: err}
		}
		return lookup{tickets: []domain.ServiceTicket{*ticket}}
	}

	filter := repository.TicketFilter{Limit: limit}
	switch {
	case strings.TrimSpace(data.TicketNumber) != "":
		number := strings.ToUpper(strings.TrimSpace(data.TicketNumber))
		filter.TicketNumber = &number
	default:
		phone := firstNonEmpty(data.Phone, customerField(conv, domain.FieldPhone))
		name := firstNonEmpty(data.CustomerName, customerField(conv, domain.FieldName))
		if normalized, ok := detector.ValidatePhone(phone); ok {
			filter.CustomerPhone = &normalized
		} else if len(name) >= 2 && !placeholderNames[strings.ToLower(name)] {
			filter.CustomerName = &name
		} else {
			return lookup{noIdentifier: true}
		}
		if activeOnly {
			filter.Statuses = domain.ActiveStatuses()
		}
	}

	tickets, err := a.tickets.QueryTickets(ctx, filter)
	if err != nil {
		return lookup{err: err}
	}
	return lookup{tickets: tickets}
}

func needsIdentifier() OperationResult {
	return OperationResult{
		Kind:       KindNeedsIdentifier,
		Message:    "Could you share your ticket number (it looks like SR-240101-ABC123) or the phone number you registered with?",
		NextAction: NextProvideIdentifier,
	}
}

func notFound() OperationResult {
	return OperationResult{
		Kind:       KindNotFound,
		Message:    "I couldn't find a matching service request. Could you double-check the ticket number or share the phone number you used when booking?",
		NextAction: NextProvideIdentifier,
	}
}

func ambiguous(tickets []domain.ServiceTicket) OperationResult {
	return OperationResult{
		Kind:       KindAmbiguous,
		Message:    fmt.Sprintf("I found %d open requests. Which one do you mean?\n%s", len(tickets), FormatList(tickets)),
		Tickets:    tickets,
		NextAction: NextDisambiguate,
	}
}

// resolveOne applies the zero / one / many policy shared by update and cancel.
func (a *Agent) resolveOne(ctx context.Context, op string, data IntentData, conv *domain.ConversationContext) (*domain.ServiceTicket, *OperationResult) {
	found := a.find(ctx, data, conv, true, searchLimit)
	switch {
	case found.err != nil:
		res := a.storeFailure(op, found.err)
		return nil, &res
	case found.noIdentifier:
		res := needsIdentifier()
		return nil, &res
	case len(found.tickets) == 0:
		res := notFound()
		return nil, &res
	case len(found.tickets) > 1:
		res := ambiguous(found.tickets)
		return nil, &res
	}
	ticket := found.tickets[0]
	return &ticket, nil
}

func (a *Agent) update(ctx context.Context, data IntentData, message string, conv *domain.ConversationContext) OperationResult {
	ticket, early := a.resolveOne(ctx, "update", data, conv)
	if early != nil {
		return *early
	}

	input := service.TicketUpdateInput{
		Note:   "Customer request: " + strings.TrimSpace(message),
		Author: domain.AuthorCustomer,
	}
	if data.TicketNumber != "" || data.TicketID != "" {
		input.CustomerName = optional(data.CustomerName)
		input.CustomerPhone = optionalPhone(data.Phone)
	}
	input.CustomerLocation = optional(data.Location)
	input.CustomerEmail = optional(data.Email)
	input.ProblemDescription = optional(data.Problem)
	input.ApplianceType = optional(data.ApplianceType)
	if data.ServiceType.Valid() {
		st := data.ServiceType
		input.ServiceType = &st
	}
	// Free text only raises or lowers urgency when it names a tier; medium is the default.
	if data.Urgency.Valid() {
		urgency := data.Urgency
		input.Urgency = &urgency
	} else if urgency := rules.ClassifyUrgency(message); urgency != domain.UrgencyMedium {
		input.Urgency = &urgency
	}
	status := data.Status
	if !status.Valid() {
		status, _ = rules.InferStatus(message)
	}
	// A rejected status move must leave the other fields untouched too.
	if status.Valid() && status != ticket.Status && !service.CanTransition(ticket.Status, status) {
		return invalidTransition(ticket, status)
	}

	updated, changed, err := a.tickets.UpdateTicket(ctx, ticket.ID, input)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return invalidTransition(ticket, status)
		}
		return a.storeFailure("update", err)
	}
	if status.Valid() && status != updated.Status {
		updated, err = a.tickets.ChangeStatus(ctx, ticket.ID, status, "Customer request: "+strings.TrimSpace(message), domain.AuthorCustomer)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return invalidTransition(ticket, status)
			}
			return a.storeFailure("update", err)
		}
		changed = append(changed, "status")
	}

	if len(changed) == 0 {
		return OperationResult{
			Kind:       KindNoChanges,
			Success:    true,
			Message:    fmt.Sprintf("I found ticket %s but didn't see anything to change. What would you like to update?", ticket.TicketNumber),
			Ticket:     updated,
			NextAction: NextCollectMissingInfo,
		}
	}
	return OperationResult{
		Kind:       KindUpdated,
		Success:    true,
		Message:    fmt.Sprintf("Ticket %s has been updated (%s). Current status: %s, priority: %s.", updated.TicketNumber, strings.Join(changed, ", "), humanStatus(updated.Status), updated.Priority),
		Ticket:     updated,
		NextAction: NextNone,
	}
}

func invalidTransition(ticket *domain.ServiceTicket, target domain.TicketStatus) OperationResult {
	msg := fmt.Sprintf("Ticket %s is %s and can't be changed now.", ticket.TicketNumber, humanStatus(ticket.Status))
	if target.Valid() && !ticket.Status.IsTerminal() {
		msg = fmt.Sprintf("Ticket %s is %s and can't move to %s.", ticket.TicketNumber, humanStatus(ticket.Status), humanStatus(target))
	}
	return OperationResult{
		Kind:       KindInvalidTransition,
		Message:    msg,
		Ticket:     ticket,
		NextAction: NextNone,
	}
}

func (a *Agent) status(ctx context.Context, data IntentData, conv *domain.ConversationContext) OperationResult {
	found := a.find(ctx, data, conv, false, searchLimit)
	switch {
	case found.err != nil:
		return a.storeFailure("status", found.err)
	case found.noIdentifier:
		return needsIdentifier()
	case len(found.tickets) == 0:
		return notFound()
	case len(found.tickets) == 1:
		ticket := found.tickets[0]
		return OperationResult{
			Kind:       KindStatusDetail,
			Success:    true,
			Message:    FormatStatus(&ticket),
			Ticket:     &ticket,
			NextAction: NextNone,
		}
	}
	return OperationResult{
		Kind:       KindStatusList,
		Success:    true,
		Message:    fmt.Sprintf("You have %d service requests:\n%s\nShare a ticket number for full details.", len(found.tickets), FormatList(found.tickets)),
		Tickets:    found.tickets,
		NextAction: NextNone,
	}
}

func (a *Agent) list(ctx context.Context, data IntentData, conv *domain.ConversationContext) OperationResult {
	data.TicketID = ""
	data.TicketNumber = ""
	found := a.find(ctx, data, conv, false, ListCap)
	switch {
	case found.err != nil:
		return a.storeFailure("list", found.err)
	case found.noIdentifier:
		return needsIdentifier()
	case len(found.tickets) == 0:
		return OperationResult{
			Kind:       KindEmptyList,
			Success:    true,
			Message:    "I couldn't find any service requests for you. Would you like me to create a new one?",
			NextAction: NextOfferCreate,
		}
	}
	tickets := found.tickets
	if len(tickets) > ListCap {
		tickets = tickets[:ListCap]
	}
	return OperationResult{
		Kind:       KindListed,
		Success:    true,
		Message:    fmt.Sprintf("Here are your most recent service requests:\n%s", FormatList(tickets)),
		Tickets:    tickets,
		NextAction: NextNone,
	}
}

func (a *Agent) cancel(ctx context.Context, data IntentData, message string, conv *domain.ConversationContext) OperationResult {
	ticket, early := a.resolveOne(ctx, "cancel", data, conv)
	if early != nil {
		return *early
	}
	if ticket.Status.IsTerminal() {
		return invalidTransition(ticket, domain.TicketStatusCancelled)
	}
	reason := "Cancelled by customer via chat"
	if m := strings.TrimSpace(message); m != "" {
		reason += ": " + m
	}
	cancelled, err := a.tickets.CancelTicket(ctx, ticket.ID, reason, domain.AuthorCustomer)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return invalidTransition(ticket, domain.TicketStatusCancelled)
		}
		return a.storeFailure("cancel", err)
	}
	return OperationResult{
		Kind:       KindCancelled,
		Success:    true,
		Message:    fmt.Sprintf("Ticket %s has been cancelled. If you need help again, just message us.", cancelled.TicketNumber),
		Ticket:     cancelled,
		NextAction: NextNone,
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func optionalPhone(v string) *string {
	if phone, ok := detector.ValidatePhone(v); ok {
		return &phone
	}
	return nil
}
