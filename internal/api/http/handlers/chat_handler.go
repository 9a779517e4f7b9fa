package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/coolfix/service-desk/internal/api/dto"
	"github.com/coolfix/service-desk/internal/conversation"
	"github.com/coolfix/service-desk/internal/session"
	apperrors "github.com/coolfix/service-desk/pkg/util/errorutil"
)

const greeting = "Hi! I'm the service assistant. I can book a repair, check on an existing request, or help reschedule a visit."

// ChatHandler serves the customer chat endpoints.
type ChatHandler struct {
	conversations *conversation.Service
	tokens        *session.TokenManager
}

// NewChatHandler constructs handler.
func NewChatHandler(conversations *conversation.Service, tokens *session.TokenManager) *ChatHandler {
	return &ChatHandler{conversations: conversations, tokens: tokens}
}

// StartSession POST /chat/sessions.
func (h *ChatHandler) StartSession(c *fiber.Ctx) error {
	conv, err := h.conversations.StartSession(c.UserContext())
	if err != nil {
		return err
	}
	token, expiresAt, err := h.tokens.Issue(conv.SessionID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.SessionResponse{
		SessionID: conv.SessionID,
		Token:     token,
		ExpiresAt: expiresAt,
		Greeting:  greeting,
	}})
}

// EndSession DELETE /chat/sessions.
func (h *ChatHandler) EndSession(c *fiber.Ctx) error {
	sessionID, ok := session.IDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	if err := h.conversations.EndSession(c.UserContext(), sessionID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// SendMessage POST /chat/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	sessionID, ok := session.IDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	var req dto.ChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.NewValidationError("message required", map[string]any{"field": "message"})
	}

	reply, err := h.conversations.HandleMessage(c.UserContext(), sessionID, req.Message)
	if err != nil {
		return err
	}
	resp := dto.ChatMessageResponse{ChatReply: reply}
	if op := reply.Operation; op != nil {
		if op.Ticket != nil {
			summary := ticketSummary(op.Ticket)
			resp.Ticket = &summary
		}
		for i := range op.Tickets {
			resp.Tickets = append(resp.Tickets, ticketSummary(&op.Tickets[i]))
		}
	}
	return c.JSON(fiber.Map{"data": resp})
}
