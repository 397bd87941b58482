package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/identity"
)

func newTestApp(t *testing.T) (*fiber.App, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	h := NewHandler(env.svc)

	app := fiber.New()
	app.Post("/auth/login", h.Login)
	app.Post("/auth/refresh", h.Refresh)
	app.Post("/auth/logout", h.Logout)
	app.Post("/verification/request", h.RequestCode)
	app.Post("/verification/confirm", h.ConfirmCode)
	return app, env
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]any, http.Header) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded, resp.Header
}

func TestLoginEndpoint(t *testing.T) {
	app, env := newTestApp(t)
	admin := env.register(t, "+40712345678", "CorrectPass1", identity.RoleAdmin, true)

	status, body, _ := postJSON(t, app, "/auth/login",
		`{"phone":"+40712345678","password":"CorrectPass1"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("expected token pair in response, got %v", body)
	}
	user, _ := body["user"].(map[string]any)
	if user["user_id"] != admin.ID || user["role"] != "admin" {
		t.Fatalf("unexpected user summary %v", user)
	}
}

func TestLoginEndpointRejectsBadCredentials(t *testing.T) {
	app, env := newTestApp(t)
	env.register(t, "+40712345678", "CorrectPass1", identity.RoleAdmin, true)

	status, _, _ := postJSON(t, app, "/auth/login",
		`{"phone":"+40712345678","password":"WrongPass99"}`)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}

	// Unknown phone gets the identical response.
	status2, _, _ := postJSON(t, app, "/auth/login",
		`{"phone":"+40799999999","password":"WrongPass99"}`)
	if status2 != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown phone, got %d", status2)
	}
}

func TestLoginEndpointLockoutCarriesRetryAfter(t *testing.T) {
	app, env := newTestApp(t)
	env.register(t, "+40712345678", "CorrectPass1", identity.RoleAdmin, true)

	for i := 0; i < 5; i++ {
		postJSON(t, app, "/auth/login", `{"phone":"+40712345678","password":"wrong"}`)
	}
	status, body, headers := postJSON(t, app, "/auth/login",
		`{"phone":"+40712345678","password":"CorrectPass1"}`)
	if status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if secs, _ := body["retry_after_seconds"].(float64); int(secs) != 1800 {
		t.Fatalf("expected retry_after_seconds 1800, got %v", body["retry_after_seconds"])
	}
	if got := headers.Get("Retry-After"); got != "1800" {
		t.Fatalf("expected Retry-After header 1800, got %q", got)
	}
}

func TestVerificationEndpoints(t *testing.T) {
	app, env := newTestApp(t)
	ident := env.register(t, "+40722000000", "CorrectPass1", identity.RoleCustomer, false)
	ctx := context.Background()

	status, body, _ := postJSON(t, app, "/verification/request", `{"phone":"+40722000000"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if dispatched, _ := body["dispatched"].(bool); !dispatched {
		t.Fatalf("expected dispatched=true, got %v", body)
	}

	stored, _ := env.store.FindByPhone(ctx, ident.Phone)
	status, body, _ = postJSON(t, app, "/verification/confirm",
		`{"phone":"+40722000000","code":"`+stored.PendingCode+`"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if verified, _ := body["verified"].(bool); !verified {
		t.Fatalf("expected verified=true, got %v", body)
	}

	// Reusing the consumed code is a 400, not a 401: it helps the user.
	status, _, _ = postJSON(t, app, "/verification/confirm",
		`{"phone":"+40722000000","code":"`+stored.PendingCode+`"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 on reuse, got %d", status)
	}
}

func TestVerificationRequestUnknownPhone(t *testing.T) {
	app, _ := newTestApp(t)
	status, _, _ := postJSON(t, app, "/verification/request", `{"phone":"+40799999999"}`)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestRefreshEndpointRejectsAccessToken(t *testing.T) {
	app, env := newTestApp(t)
	admin := env.register(t, "+40712345678", "CorrectPass1", identity.RoleAdmin, true)

	pair, _, err := env.svc.AuthenticateAdmin(context.Background(), admin.Phone, "CorrectPass1", "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	status, _, _ := postJSON(t, app, "/auth/refresh", `{"refresh_token":"`+pair.AccessToken+`"}`)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for access token on refresh, got %d", status)
	}

	status, body, _ := postJSON(t, app, "/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	status, body, _ := postJSON(t, app, "/auth/logout", `{}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "logged_out" {
		t.Fatalf("expected logged_out, got %v", body)
	}
}
