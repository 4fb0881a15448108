package handler

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gueripep/brainflash-server/internal/auth/domain"
	autherror "github.com/gueripep/brainflash-server/internal/errors"
)

// localsUserKey is where RequireAuth stashes the verified identity. Handlers
// read it via currentUser and never resolve tokens themselves.
const localsUserKey = "currentUser"

func currentUser(c *fiber.Ctx) *domain.User {
	user, _ := c.Locals(localsUserKey).(*domain.User)
	return user
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}

// RequireAuth verifies the bearer access token, loads its subject and rejects
// unknown or deactivated accounts before the handler runs.
func (h *AuthHandler) RequireAuth(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return respondError(c, autherror.ErrTokenInvalid)
	}

	user, err := h.userService.AuthenticateToken(c.Context(), token)
	if err != nil {
		return respondError(c, err)
	}

	c.Locals(localsUserKey, user)

	return c.Next()
}

// APIKeyOrBearer protects legacy non-user-scoped endpoints. A bearer token,
// when present, takes precedence; the X-API-Key header is only consulted
// when no bearer token is supplied.
func (h *AuthHandler) APIKeyOrBearer(c *fiber.Ctx) error {
	if bearerToken(c) != "" {
		return h.RequireAuth(c)
	}

	key := c.Get("X-API-Key")
	if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
		return respondError(c, autherror.ErrInvalidAPIKey)
	}

	return c.Next()
}
