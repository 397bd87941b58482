package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "PeFocDeLemne"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second

	defaultTokenIssuer     = "pe-foc-de-lemne"
	defaultTokenAudience   = "pe-foc-de-lemne-admin"
	defaultAccessTokenTTL  = 8 * time.Hour
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	defaultBcryptCost      = 12
	defaultMinSecretLength = 8

	defaultCodeLength = 6
	defaultCodeTTL    = 600 * time.Second

	defaultLoginMaxFailures = 5
	defaultLoginWindow      = time.Hour
	defaultLoginLockout     = 30 * time.Minute

	defaultCodeIssueMaxFailures   = 5
	defaultCodeIssueWindow        = time.Hour
	defaultCodeIssueLockout       = time.Hour
	defaultCodeConfirmMaxFailures = 5
	defaultCodeConfirmWindow      = time.Hour
	defaultCodeConfirmLockout     = 30 * time.Minute
)

// LimitPolicy holds the tunables for one rate-limit key space.
type LimitPolicy struct {
	MaxFailures int
	Window      time.Duration
	Lockout     time.Duration
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	Env      string
	Port     string
	LogLevel string

	DatabaseURL   string
	RedisURL      string
	SMSGatewayURL string

	JWTSecret       string
	TokenIssuer     string
	TokenAudience   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	BcryptCost      int
	MinSecretLength int

	CodeLength int
	CodeTTL    time.Duration

	LoginLimit       LimitPolicy
	CodeIssueLimit   LimitPolicy
	CodeConfirmLimit LimitPolicy

	ShutdownPeriod time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:  getEnv("APP_NAME", defaultAppName),
		Env:      getEnv("APP_ENV", defaultAppEnv),
		Port:     getEnv("PORT", defaultPort),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		SMSGatewayURL: os.Getenv("SMS_GATEWAY_URL"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenIssuer:   getEnv("TOKEN_ISSUER", defaultTokenIssuer),
		TokenAudience: getEnv("TOKEN_AUDIENCE", defaultTokenAudience),
	}

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", defaultAccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", defaultBcryptCost); err != nil {
		return Config{}, err
	}
	if cfg.MinSecretLength, err = getInt("MIN_SECRET_LENGTH", defaultMinSecretLength); err != nil {
		return Config{}, err
	}
	if cfg.CodeLength, err = getInt("CODE_LENGTH", defaultCodeLength); err != nil {
		return Config{}, err
	}
	if cfg.CodeTTL, err = getDuration("CODE_TTL", defaultCodeTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}

	if cfg.LoginLimit, err = loadLimit("LOGIN", LimitPolicy{defaultLoginMaxFailures, defaultLoginWindow, defaultLoginLockout}); err != nil {
		return Config{}, err
	}
	if cfg.CodeIssueLimit, err = loadLimit("CODE_ISSUE", LimitPolicy{defaultCodeIssueMaxFailures, defaultCodeIssueWindow, defaultCodeIssueLockout}); err != nil {
		return Config{}, err
	}
	if cfg.CodeConfirmLimit, err = loadLimit("CODE_CONFIRM", LimitPolicy{defaultCodeConfirmMaxFailures, defaultCodeConfirmWindow, defaultCodeConfirmLockout}); err != nil {
		return Config{}, err
	}

	// A missing signing key is fatal at startup, never discovered mid-request.
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	if cfg.DatabaseURL == "" && !isDev(cfg.Env) {
		return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.Env)
	}

	return cfg, nil
}

func loadLimit(prefix string, def LimitPolicy) (LimitPolicy, error) {
	p := def
	var err error
	if p.MaxFailures, err = getInt(prefix+"_MAX_FAILURES", def.MaxFailures); err != nil {
		return LimitPolicy{}, err
	}
	if p.Window, err = getDuration(prefix+"_WINDOW", def.Window); err != nil {
		return LimitPolicy{}, err
	}
	if p.Lockout, err = getDuration(prefix+"_LOCKOUT", def.Lockout); err != nil {
		return LimitPolicy{}, err
	}
	return p, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the configured environment is a development one.
func (c Config) IsDev() bool {
	return isDev(c.Env)
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
