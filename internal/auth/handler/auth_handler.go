package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/gueripep/brainflash-server/internal/auth/dto"
	"github.com/gueripep/brainflash-server/internal/auth/service"
	autherror "github.com/gueripep/brainflash-server/internal/errors"
)

type AuthHandler struct {
	userService *service.UserService
	apiKey      string
}

func NewAuthHandler(userService *service.UserService, apiKey string) *AuthHandler {
	return &AuthHandler{userService: userService, apiKey: apiKey}
}

// respondError maps the service error taxonomy onto HTTP statuses. Credential
// and token failures collapse into a generic denial; nothing internal leaks.
func respondError(c *fiber.Ctx, err error) error {
	if ve, ok := autherror.AsValidation(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"field":  ve.Field,
			"detail": ve.Message,
		})
	}

	switch {
	case errors.Is(err, autherror.ErrEmailAlreadyInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email already in use"})
	case errors.Is(err, autherror.ErrForbidden),
		errors.Is(err, autherror.ErrUserDeactivated):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, autherror.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, autherror.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "temporarily unavailable"})
	case errors.Is(err, autherror.ErrInvalidCredentials),
		errors.Is(err, autherror.ErrTokenInvalid),
		errors.Is(err, autherror.ErrTokenExpired),
		errors.Is(err, autherror.ErrRefreshTokenNotFound),
		errors.Is(err, autherror.ErrRefreshTokenRevoked),
		errors.Is(err, autherror.ErrRefreshTokenExpired),
		errors.Is(err, autherror.ErrInvalidAPIKey):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input dto.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid input",
		})
	}

	user, err := h.userService.Register(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.NewUserOutput(user))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid input",
		})
	}

	tokenPair, err := h.userService.Login(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(tokenPair)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input dto.RefreshInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	tokens, err := h.userService.Refresh(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var input dto.LogoutInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.userService.Logout(c.Context(), input); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"detail": "logged out"})
}

// ForgotPassword always answers accepted; it never reveals whether the
// address has an account.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var input dto.ForgotPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	_ = h.userService.RequestPasswordReset(c.Context(), input.Email)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"detail": "accepted"})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var input dto.ResetPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.userService.ConfirmPasswordReset(c.Context(), input); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"detail": "password updated"})
}

func (h *AuthHandler) RequestVerify(c *fiber.Ctx) error {
	actor := currentUser(c)

	if err := h.userService.RequestEmailVerification(c.Context(), actor); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"detail": "accepted"})
}

func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var input dto.VerifyInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	user, err := h.userService.ConfirmEmailVerification(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.NewUserOutput(user))
}

// ServiceHealth is the legacy non-user-scoped endpoint kept for old clients
// that authenticate with the static API key.
func (h *AuthHandler) ServiceHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}
