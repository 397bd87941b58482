package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/auth"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/clock"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/config"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/identity"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/middleware"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/notification"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/ratelimit"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/verification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	Clock  clock.Clock
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store identity.Store
	if d.DB != nil {
		store = identity.NewPostgresStore(d.DB)
	} else {
		store = identity.NewMemoryStore()
	}

	hasher := auth.NewHasher(d.Cfg.BcryptCost, d.Cfg.MinSecretLength)
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(d.Cfg.JWTSecret),
		Issuer:     d.Cfg.TokenIssuer,
		Audience:   d.Cfg.TokenAudience,
		AccessTTL:  d.Cfg.AccessTokenTTL,
		RefreshTTL: d.Cfg.RefreshTokenTTL,
	}, store, d.Clock)
	codes := verification.NewManager(store, d.Cfg.CodeLength, d.Cfg.CodeTTL, d.Clock)

	// Three limiters, three key spaces: one budget cannot exhaust another.
	limits := auth.Limits{
		Login:       newLimiter(d.Cache, d.Cfg.LoginLimit),
		CodeIssue:   newLimiter(d.Cache, d.Cfg.CodeIssueLimit),
		CodeConfirm: newLimiter(d.Cache, d.Cfg.CodeConfirmLimit),
	}

	var gateway notification.Gateway
	if d.Cfg.SMSGatewayURL != "" {
		gateway = notification.NewHTTPGateway(d.Cfg.SMSGatewayURL, d.Logger)
	} else {
		gateway = notification.NewLoggerGateway(d.Logger)
	}

	authSvc := auth.NewService(store, hasher, tokens, codes, limits, gateway, d.Clock, d.Logger)
	authHandler := auth.NewHandler(authSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, authHandler)
	RegisterVerificationRoutes(api, authHandler)

	// The admin panel glue mounts its own handlers behind this gate.
	adminGate := middleware.RequireAuth(authSvc, true)
	admin := api.Group("/admin", adminGate)
	admin.Get("/session", func(c *fiber.Ctx) error {
		uid, _ := c.Locals(middleware.LocalsUserID).(string)
		role, _ := c.Locals(middleware.LocalsRole).(string)
		return c.JSON(fiber.Map{"user_id": uid, "role": role})
	})

	return nil
}

// newLimiter picks the Redis-backed limiter when a shared cache is
// configured, otherwise the in-process table.
func newLimiter(cache *redis.Client, p config.LimitPolicy) ratelimit.Limiter {
	policy := ratelimit.Policy{MaxFailures: p.MaxFailures, Window: p.Window, Lockout: p.Lockout}
	if cache != nil {
		return ratelimit.NewRedis(cache, policy)
	}
	return ratelimit.NewMemory(policy)
}
