package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/clock"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/identity"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/notification"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/ratelimit"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/verification"
)

// Limits groups the three independent rate limiters: login attempts, code
// issuance, and code confirmation each have their own key space and budget.
type Limits struct {
	Login       ratelimit.Limiter
	CodeIssue   ratelimit.Limiter
	CodeConfirm ratelimit.Limiter
}

// Service orchestrates admin login and phone verification. The limiter is
// always consulted before any credential or code comparison, so locked keys
// never trigger the expensive checks.
type Service struct {
	store   identity.Store
	hasher  *Hasher
	tokens  *TokenService
	codes   *verification.Manager
	limits  Limits
	gateway notification.Gateway
	clock   clock.Clock
	logger  *slog.Logger
}

// NewService wires the orchestrator from its component parts.
func NewService(store identity.Store, hasher *Hasher, tokens *TokenService, codes *verification.Manager,
	limits Limits, gateway notification.Gateway, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		codes:   codes,
		limits:  limits,
		gateway: gateway,
		clock:   clk,
		logger:  logger,
	}
}

// AuthenticateAdmin validates admin credentials and issues a token pair.
// Unknown phone, wrong role, unverified account, and wrong secret all
// surface as ErrInvalidCredentials; the distinction is logged only.
func (s *Service) AuthenticateAdmin(ctx context.Context, phone, secret, sourceAddr string) (TokenPair, identity.Identity, error) {
	if !identity.ValidPhone(phone) {
		return TokenPair{}, identity.Identity{}, &ValidationError{Field: "phone", Reason: "must be E.164 format"}
	}

	now := s.clock.Now()
	key := loginKey(phone, sourceAddr)
	if err := s.limits.Login.Allow(ctx, key, now); err != nil {
		return TokenPair{}, identity.Identity{}, err
	}

	ident, err := s.store.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		s.failLogin(ctx, key, "unknown phone", phone)
		return TokenPair{}, identity.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("identity lookup failed", "phone", phone, "error", err)
		return TokenPair{}, identity.Identity{}, ErrDependency
	}
	if ident.Role != identity.RoleAdmin {
		s.failLogin(ctx, key, "role is not admin", phone)
		return TokenPair{}, identity.Identity{}, ErrInvalidCredentials
	}
	if !ident.Verified {
		s.failLogin(ctx, key, "identity not verified", phone)
		return TokenPair{}, identity.Identity{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(secret, ident.SecretHash)
	if err != nil {
		// Corrupt stored hash is an operator problem, not a caller one.
		s.logger.Error("credential hash unreadable", "identity", ident.ID, "error", err)
		return TokenPair{}, identity.Identity{}, err
	}
	if !ok {
		s.failLogin(ctx, key, "secret mismatch", phone)
		return TokenPair{}, identity.Identity{}, ErrInvalidCredentials
	}

	if err := s.limits.Login.RecordSuccess(ctx, key); err != nil {
		s.logger.Warn("rate limit reset failed", "key", key, "error", err)
	}
	if err := s.store.UpdateLastLogin(ctx, ident.ID, now); err != nil {
		s.logger.Warn("last login update failed", "identity", ident.ID, "error", err)
	}
	ident.LastLoginAt = now

	pair, err := s.tokens.IssuePair(ident)
	if err != nil {
		return TokenPair{}, identity.Identity{}, err
	}
	return pair, ident, nil
}

// RequestVerificationCode issues a one-time code and dispatches it via the
// message gateway. The code is persisted before dispatch is attempted; a
// dispatch failure leaves it valid for its TTL and is reported as
// ErrDependency with dispatched=false.
func (s *Service) RequestVerificationCode(ctx context.Context, phone string) (bool, error) {
	if !identity.ValidPhone(phone) {
		return false, &ValidationError{Field: "phone", Reason: "must be E.164 format"}
	}

	now := s.clock.Now()
	key := "code-issue:" + phone
	if err := s.limits.CodeIssue.Allow(ctx, key, now); err != nil {
		return false, err
	}

	ident, err := s.store.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		return false, ErrUserNotFound
	}
	if err != nil {
		s.logger.Error("identity lookup failed", "phone", phone, "error", err)
		return false, ErrDependency
	}

	// Issuance budget counts requests, not failures.
	if err := s.limits.CodeIssue.RecordFailure(ctx, key, now); err != nil {
		s.logger.Warn("issuance rate limit record failed", "key", key, "error", err)
	}

	code, expiresAt, err := s.codes.Issue(ctx, ident)
	if err != nil {
		s.logger.Error("code issue failed", "identity", ident.ID, "error", err)
		return false, ErrDependency
	}

	// Dispatch happens outside any critical section; the stored code stands
	// on its own even if the message never leaves.
	if _, err := s.gateway.Send(ctx, phone, verificationMessage(code)); err != nil {
		s.logger.Error("sms dispatch failed", "phone", phone, "expires_at", expiresAt, "error", err)
		return false, ErrDependency
	}
	return true, nil
}

// ConfirmVerificationCode checks a submitted code and marks the identity
// verified on success. Mismatched, expired, and absent codes count against
// the confirmation limiter.
func (s *Service) ConfirmVerificationCode(ctx context.Context, phone, code string) error {
	if !identity.ValidPhone(phone) {
		return &ValidationError{Field: "phone", Reason: "must be E.164 format"}
	}

	now := s.clock.Now()
	key := "code-confirm:" + phone
	if err := s.limits.CodeConfirm.Allow(ctx, key, now); err != nil {
		return err
	}

	ident, err := s.store.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		s.logger.Error("identity lookup failed", "phone", phone, "error", err)
		return ErrDependency
	}

	err = s.codes.Confirm(ctx, ident, code)
	switch {
	case err == nil:
		if err := s.limits.CodeConfirm.RecordSuccess(ctx, key); err != nil {
			s.logger.Warn("rate limit reset failed", "key", key, "error", err)
		}
		return nil
	case errors.Is(err, verification.ErrMismatch),
		errors.Is(err, verification.ErrExpired),
		errors.Is(err, verification.ErrNoPendingCode):
		if recErr := s.limits.CodeConfirm.RecordFailure(ctx, key, now); recErr != nil {
			s.logger.Warn("confirmation rate limit record failed", "key", key, "error", recErr)
		}
		return err
	default:
		return err
	}
}

// RefreshSession rotates a token pair from a valid refresh token.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (TokenPair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// VerifyAccessToken checks an access token and optionally gates on the
// admin role.
func (s *Service) VerifyAccessToken(token string, requireAdmin bool) (Claims, error) {
	claims, err := s.tokens.Verify(token, TokenTypeAccess)
	if err != nil {
		return Claims{}, err
	}
	if requireAdmin {
		if err := RequireAdmin(claims); err != nil {
			s.logger.Warn("access token role insufficient", "subject", claims.Subject, "role", claims.Role)
			return Claims{}, err
		}
	}
	return claims, nil
}

func (s *Service) failLogin(ctx context.Context, key, reason, phone string) {
	s.logger.Info("login rejected", "phone", phone, "reason", reason)
	if err := s.limits.Login.RecordFailure(ctx, key, s.clock.Now()); err != nil {
		s.logger.Warn("rate limit record failed", "key", key, "error", err)
	}
}

func loginKey(phone, sourceAddr string) string {
	if sourceAddr == "" {
		return "login:" + phone
	}
	return "login:" + phone + "|" + sourceAddr
}

func verificationMessage(code string) string {
	return "Codul tau de verificare este " + code + ". Expira in 10 minute."
}
