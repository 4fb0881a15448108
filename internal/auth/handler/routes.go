package handler

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *AuthHandler) {
	auth := app.Group("/api/v1/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
	auth.Post("/forgot-password", h.ForgotPassword)
	auth.Post("/reset-password", h.ResetPassword)
	auth.Post("/request-verify", h.RequireAuth, h.RequestVerify)
	auth.Post("/verify", h.Verify)

	users := app.Group("/api/v1/users", h.RequireAuth)
	users.Get("/me", h.GetMe)
	users.Patch("/me", h.UpdateMe)
	users.Get("/:id", h.GetUser)
	users.Patch("/:id", h.UpdateUser)
	users.Delete("/:id", h.DeleteUser)

	// Legacy endpoints for pre-JWT clients holding the static API key.
	service := app.Group("/api/v1/service", h.APIKeyOrBearer)
	service.Get("/health", h.ServiceHealth)
}
