package session

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/coolfix/service-desk/pkg/util/errorutil"
)

const sessionKey = "chat_session_id"

// Middleware validates bearer session tokens and stores the session ID on the request.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle rejects requests without a valid session token.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	sessionID, err := m.tokens.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid session token")
	}

	c.Locals(sessionKey, sessionID)
	return c.Next()
}

// IDFromContext returns the session ID set by Handle.
func IDFromContext(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(sessionKey).(string)
	return id, ok && id != ""
}
