package auth

import (
	"context"
	"errors"
	"time"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/clock"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/identity"
)

// TokenType distinguishes the two halves of a session pair. Access and
// refresh tokens are never interchangeable.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the decoded, verified payload of a session token.
type Claims struct {
	Subject   string
	Role      identity.Role
	Type      TokenType
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair bundles a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenConfig holds the signing parameters for a TokenService.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService issues, verifies, and rotates signed session tokens. It holds
// no mutable state; all operations are pure functions of their inputs, the
// signing key, and the clock.
type TokenService struct {
	cfg   TokenConfig
	store identity.Store
	clock clock.Clock
}

// NewTokenService builds a TokenService. The store is consulted only on
// refresh, to re-resolve the identity before rotating.
func NewTokenService(cfg TokenConfig, store identity.Store, clk clock.Clock) *TokenService {
	return &TokenService{cfg: cfg, store: store, clock: clk}
}

// IssuePair signs a fresh access and refresh token for ident.
func (s *TokenService) IssuePair(ident identity.Identity) (TokenPair, error) {
	now := s.clock.Now()
	access, accessExp, err := s.sign(ident, TokenTypeAccess, now, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.sign(ident, TokenTypeRefresh, now, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(accessExp.Sub(now).Seconds()),
	}, nil
}

func (s *TokenService) sign(ident identity.Identity, typ TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := map[string]any{
		"sub":  ident.ID,
		"role": string(ident.Role),
		"typ":  string(typ),
		"iss":  s.cfg.Issuer,
		"aud":  s.cfg.Audience,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	signed, err := signHS256(claims, s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, expiry, issuer, audience, and token type, in that
// order, and returns the decoded claims.
func (s *TokenService) Verify(token string, expected TokenType) (Claims, error) {
	raw, err := parseAndVerifyHS256(token, s.cfg.Secret)
	if err != nil {
		return Claims{}, err
	}

	sub, _ := raw["sub"].(string)
	roleStr, _ := raw["role"].(string)
	typStr, _ := raw["typ"].(string)
	iss, _ := raw["iss"].(string)
	aud, _ := raw["aud"].(string)
	iatFloat, _ := raw["iat"].(float64)
	expFloat, ok := raw["exp"].(float64)
	if sub == "" || !ok {
		return Claims{}, ErrMalformedToken
	}
	role, err := identity.ParseRole(roleStr)
	if err != nil {
		return Claims{}, ErrMalformedToken
	}

	claims := Claims{
		Subject:   sub,
		Role:      role,
		Type:      TokenType(typStr),
		Issuer:    iss,
		Audience:  aud,
		IssuedAt:  time.Unix(int64(iatFloat), 0).UTC(),
		ExpiresAt: time.Unix(int64(expFloat), 0).UTC(),
	}

	if !s.clock.Now().Before(claims.ExpiresAt) {
		return Claims{}, ErrTokenExpired
	}
	if claims.Issuer != s.cfg.Issuer {
		return Claims{}, ErrWrongIssuer
	}
	if claims.Audience != s.cfg.Audience {
		return Claims{}, ErrWrongAudience
	}
	if claims.Type != expected {
		return Claims{}, ErrWrongTokenType
	}
	return claims, nil
}

// RequireAdmin gates claims on the admin role.
func RequireAdmin(claims Claims) error {
	if claims.Role != identity.RoleAdmin {
		return ErrInsufficientRole
	}
	return nil
}

// Refresh verifies a refresh token, re-resolves the identity, and rotates
// the full pair. The previous refresh token is not revoked server-side;
// both tokens simply age out at their natural expiry.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	ident, err := s.store.FindByID(ctx, claims.Subject)
	if errors.Is(err, identity.ErrNotFound) {
		return TokenPair{}, ErrUserNotFound
	}
	if err != nil {
		return TokenPair{}, err
	}
	if ident.Role != identity.RoleAdmin {
		return TokenPair{}, ErrUserNotFound
	}
	return s.IssuePair(ident)
}
