package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/auth"
)

// RegisterAuthRoutes wires the admin session endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler) {
	group := r.Group("/auth")
	group.Post("/login", h.Login)
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", h.Logout)
}
