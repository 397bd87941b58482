package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/auth"
)

// RegisterVerificationRoutes wires the phone verification endpoints.
func RegisterVerificationRoutes(r fiber.Router, h *auth.Handler) {
	group := r.Group("/verification")
	group.Post("/request", h.RequestCode)
	group.Post("/confirm", h.ConfirmCode)
}
