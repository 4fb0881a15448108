package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gueripep/brainflash-server/internal/auth/dto"
)

// targetID parses the :id route parameter. Malformed IDs are NotFound, not
// validation errors: the caller learns nothing about what IDs exist.
func targetID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(dto.NewUserOutput(currentUser(c)))
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	var input dto.UpdateUserInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	actor := currentUser(c)

	user, err := h.userService.UpdateUser(c.Context(), actor, actor.ID, input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.NewUserOutput(user))
}

func (h *AuthHandler) GetUser(c *fiber.Ctx) error {
	id, ok := targetID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	user, err := h.userService.GetUser(c.Context(), currentUser(c), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.NewUserOutput(user))
}

func (h *AuthHandler) UpdateUser(c *fiber.Ctx) error {
	id, ok := targetID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	var input dto.UpdateUserInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	user, err := h.userService.UpdateUser(c.Context(), currentUser(c), id, input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.NewUserOutput(user))
}

func (h *AuthHandler) DeleteUser(c *fiber.Ctx) error {
	id, ok := targetID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	if err := h.userService.DeleteUser(c.Context(), currentUser(c), id); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"detail": "deleted"})
}
