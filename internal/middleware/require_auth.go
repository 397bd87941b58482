package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/auth"
)

// Locals keys populated by RequireAuth.
const (
	LocalsUserID = "user_id"
	LocalsRole   = "role"
)

// RequireAuth validates the bearer access token and, when requireAdmin is
// set, gates on the admin role. Failures share one generic message.
func RequireAuth(svc *auth.Service, requireAdmin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := svc.VerifyAccessToken(token, requireAdmin)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(LocalsUserID, claims.Subject)
		c.Locals(LocalsRole, string(claims.Role))
		return c.Next()
	}
}
