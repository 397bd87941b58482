package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/ratelimit"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/verification"
)

// Handler exposes the auth and verification endpoints.
type Handler struct {
	svc *Service
}

// NewHandler builds a Handler over the orchestrator.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Phone  string `json:"phone"`
	Secret string `json:"password"`
}

type userSummary struct {
	UserID    string `json:"user_id"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	LastLogin string `json:"last_login,omitempty"`
}

type loginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         userSummary `json:"user"`
}

// Login validates admin credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pair, ident, err := h.svc.AuthenticateAdmin(c.UserContext(), req.Phone, req.Secret, c.IP())
	if err != nil {
		return mapError(c, err)
	}
	summary := userSummary{UserID: ident.ID, Phone: ident.Phone, Role: string(ident.Role)}
	if !ident.LastLoginAt.IsZero() {
		summary.LastLogin = ident.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         summary,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a full token pair from a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pair, err := h.svc.RefreshSession(c.UserContext(), req.RefreshToken)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(pair)
}

// Logout acknowledges a client-side token discard. Tokens stay valid until
// natural expiry; short access lifetimes are the mitigating control.
func (h *Handler) Logout(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

type requestCodeRequest struct {
	Phone string `json:"phone"`
}

// RequestCode issues a verification code and dispatches it by SMS.
func (h *Handler) RequestCode(c *fiber.Ctx) error {
	var req requestCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	dispatched, err := h.svc.RequestVerificationCode(c.UserContext(), req.Phone)
	if errors.Is(err, ErrUserNotFound) {
		return fiber.NewError(http.StatusNotFound, "phone number is not registered")
	}
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"dispatched": dispatched})
}

type confirmCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// ConfirmCode checks a submitted verification code.
func (h *Handler) ConfirmCode(c *fiber.Ctx) error {
	var req confirmCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	err := h.svc.ConfirmVerificationCode(c.UserContext(), req.Phone, req.Code)
	if errors.Is(err, ErrUserNotFound) {
		return fiber.NewError(http.StatusNotFound, "phone number is not registered")
	}
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"verified": true})
}

// mapError translates the typed error taxonomy onto HTTP responses. Rate
// limits carry a retry-after hint; authentication failures stay generic.
func mapError(c *fiber.Ctx, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return fiber.NewError(http.StatusBadRequest, verr.Error())
	}
	var locked *ratelimit.LockedError
	if errors.As(err, &locked) {
		retryAfter := int64(locked.RetryAfter.Seconds())
		c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
		return c.Status(http.StatusTooManyRequests).JSON(fiber.Map{
			"error":               "too many attempts",
			"retry_after_seconds": retryAfter,
		})
	}
	switch {
	case errors.Is(err, verification.ErrMalformedCode):
		return fiber.NewError(http.StatusBadRequest, "code must be exactly 6 digits")
	case errors.Is(err, verification.ErrMismatch):
		return fiber.NewError(http.StatusBadRequest, "verification code is incorrect")
	case errors.Is(err, verification.ErrExpired):
		return fiber.NewError(http.StatusBadRequest, "verification code has expired")
	case errors.Is(err, verification.ErrNoPendingCode):
		return fiber.NewError(http.StatusBadRequest, "no verification code is pending")
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrWrongIssuer),
		errors.Is(err, ErrWrongAudience),
		errors.Is(err, ErrWrongTokenType),
		errors.Is(err, ErrInsufficientRole),
		errors.Is(err, ErrUserNotFound):
		return fiber.NewError(http.StatusUnauthorized, "authentication failed")
	case errors.Is(err, ErrDependency):
		return fiber.NewError(http.StatusServiceUnavailable, ErrDependency.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
