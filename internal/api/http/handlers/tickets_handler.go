package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coolfix/service-desk/internal/api/dto"
	"github.com/coolfix/service-desk/internal/domain"
	"github.com/coolfix/service-desk/internal/repository"
	"github.com/coolfix/service-desk/internal/service"
	apperrors "github.com/coolfix/service-desk/pkg/util/errorutil"
)

// TicketsHandler exposes service tickets to support operators.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query := parseTicketQuery(c)
	tickets, err := h.service.QueryTickets(c.UserContext(), ticketFilter(query))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items, "page": query.Page, "page_size": query.PageSize})
}

// GetTicket GET /tickets/:id. The id may be a ticket ID or an SR ticket number.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id := c.Params("id")
	var (
		ticket *domain.ServiceTicket
		err    error
	)
	if strings.HasPrefix(strings.ToUpper(id), "SR-") {
		ticket, err = h.service.GetTicketByNumber(c.UserContext(), id)
	} else {
		ticket, err = h.service.GetTicket(c.UserContext(), id)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ChangeStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", map[string]any{"field": "status"})
	}
	author := req.Author
	if author == "" {
		author = "operator"
	}
	ticket, err := h.service.ChangeStatus(c.UserContext(), c.Params("id"), req.Status, req.Comment, author)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddCommunication POST /tickets/:id/communications.
func (h *TicketsHandler) AddCommunication(c *fiber.Ctx) error {
	var req dto.CreateCommunicationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("content required", map[string]any{"field": "content"})
	}
	entry, err := h.service.AddCommunication(c.UserContext(), c.Params("id"), service.CommunicationInput{
		Type:      req.Type,
		Direction: req.Direction,
		Content:   req.Content,
		Author:    req.Author,
		Status:    req.Status,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": communicationResponse(entry)})
}

func parseTicketQuery(c *fiber.Ctx) dto.TicketListQuery {
	query := dto.TicketListQuery{
		Phone:        c.Query("phone"),
		Name:         c.Query("name"),
		TicketNumber: c.Query("ticket_number"),
		TechnicianID: c.Query("technician_id"),
		CreatedFrom:  parseTime(c.Query("created_from")),
		CreatedTo:    parseTime(c.Query("created_to")),
		Page:         parseInt(c.Query("page"), 1),
		PageSize:     parseInt(c.Query("page_size"), repository.DefaultListLimit),
	}
	for _, part := range splitCSV(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitCSV(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(part))
	}
	for _, part := range splitCSV(c.Query("service_type")) {
		query.ServiceTypes = append(query.ServiceTypes, domain.ServiceType(part))
	}
	return query
}

func ticketFilter(query dto.TicketListQuery) repository.TicketFilter {
	filter := repository.TicketFilter{
		Statuses:     query.Statuses,
		Priorities:   query.Priorities,
		ServiceTypes: query.ServiceTypes,
		CreatedFrom:  query.CreatedFrom,
		CreatedTo:    query.CreatedTo,
		Offset:       (query.Page - 1) * query.PageSize,
		Limit:        query.PageSize,
	}
	if query.Phone != "" {
		filter.CustomerPhone = &query.Phone
	}
	if query.Name != "" {
		filter.CustomerName = &query.Name
	}
	if query.TicketNumber != "" {
		number := strings.ToUpper(query.TicketNumber)
		filter.TicketNumber = &number
	}
	if query.TechnicianID != "" {
		filter.TechnicianID = &query.TechnicianID
	}
	return filter
}

func splitCSV(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.ServiceTicket) dto.TicketSummary {
	summary := dto.TicketSummary{
		ID:                    ticket.ID,
		TicketNumber:          ticket.TicketNumber,
		CustomerName:          ticket.Customer.Name,
		CustomerPhone:         ticket.Customer.Phone,
		Location:              ticket.Customer.Location,
		ServiceType:           ticket.ServiceType,
		Status:                ticket.Status,
		Priority:              ticket.Priority,
		Urgency:               ticket.Urgency,
		IsEmergency:           ticket.IsEmergency,
		EstimatedResponseTime: ticket.EstimatedResponseTime,
		CreatedAt:             ticket.CreatedAt,
		UpdatedAt:             ticket.UpdatedAt,
	}
	if ticket.AssignedTechnician != nil {
		summary.TechnicianName = ticket.AssignedTechnician.Name
	}
	return summary
}

func ticketDetail(ticket *domain.ServiceTicket) dto.TicketDetailResponse {
	log := make([]dto.CommunicationResponse, 0, len(ticket.CommunicationLog))
	for i := range ticket.CommunicationLog {
		log = append(log, communicationResponse(&ticket.CommunicationLog[i]))
	}
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	return dto.TicketDetailResponse{
		ID:                    ticket.ID,
		TicketNumber:          ticket.TicketNumber,
		Customer:              ticket.Customer,
		ServiceType:           ticket.ServiceType,
		Appliance:             ticket.Appliance,
		ProblemDescription:    ticket.ProblemDescription,
		Urgency:               ticket.Urgency,
		Status:                ticket.Status,
		Priority:              ticket.Priority,
		AssignedTechnician:    ticket.AssignedTechnician,
		RelatedFailedCallRef:  ticket.RelatedFailedCallRef,
		IsEmergency:           ticket.IsEmergency,
		RequiresPartOrdering:  ticket.RequiresPartOrdering,
		EstimatedResponseTime: ticket.EstimatedResponseTime,
		Tags:                  tags,
		ScheduledAt:           ticket.ScheduledAt,
		CompletedAt:           ticket.CompletedAt,
		CreatedAt:             ticket.CreatedAt,
		UpdatedAt:             ticket.UpdatedAt,
		Version:               ticket.Version,
		CommunicationLog:      log,
	}
}

func communicationResponse(entry *domain.CommunicationEntry) dto.CommunicationResponse {
	return dto.CommunicationResponse{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Type:      entry.Type,
		Direction: entry.Direction,
		Content:   entry.Content,
		Author:    entry.Author,
		Status:    entry.Status,
	}
}
