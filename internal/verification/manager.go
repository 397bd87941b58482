// Package verification manages short-lived one-time codes tied to a phone
// identity. Codes are stored on the identity record and consumed with
// compare-and-swap semantics so each code is usable exactly once.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/clock"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/identity"
)

var (
	// ErrNoPendingCode indicates no verification is outstanding, including
	// the case where a concurrent confirmation already consumed the code.
	ErrNoPendingCode = errors.New("no pending verification code")
	// ErrExpired indicates the stored code's TTL has passed.
	ErrExpired = errors.New("verification code expired")
	// ErrMismatch indicates the submitted code differs from the stored one.
	ErrMismatch = errors.New("verification code mismatch")
	// ErrMalformedCode indicates the submitted value is not a code at all.
	ErrMalformedCode = errors.New("malformed verification code")
)

// Manager generates, issues, and confirms verification codes.
type Manager struct {
	store  identity.Store
	length int
	ttl    time.Duration
	clock  clock.Clock
}

// NewManager builds a Manager producing codes of the given digit length with
// the given TTL.
func NewManager(store identity.Store, length int, ttl time.Duration, clk clock.Clock) *Manager {
	if length <= 0 {
		length = 6
	}
	if ttl <= 0 {
		ttl = 600 * time.Second
	}
	return &Manager{store: store, length: length, ttl: ttl, clock: clk}
}

// Generate draws a fixed-length numeric code from crypto/rand. The draw is
// uniform over the full digit space, so codes carry no identity or time
// information.
func (m *Manager) Generate() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(m.length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", m.length, n), nil
}

// Issue generates a code, stores it with its expiry on the identity record
// in one step, and returns the code for dispatch.
func (m *Manager) Issue(ctx context.Context, ident identity.Identity) (string, time.Time, error) {
	code, err := m.Generate()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := m.clock.Now().Add(m.ttl)
	if err := m.store.SetPendingCode(ctx, ident.ID, code, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return code, expiresAt, nil
}

// Confirm validates submitted against the identity's pending code and, on
// success, consumes it and marks the identity verified. The store's
// conditional update guarantees a second confirmation of the same code sees
// ErrNoPendingCode.
func (m *Manager) Confirm(ctx context.Context, ident identity.Identity, submitted string) error {
	if !m.wellFormed(submitted) {
		return ErrMalformedCode
	}
	if !ident.HasPendingCode() {
		return ErrNoPendingCode
	}
	if !m.clock.Now().Before(ident.PendingCodeExpiresAt) {
		return ErrExpired
	}
	if submitted != ident.PendingCode {
		return ErrMismatch
	}
	err := m.store.ConsumePendingCode(ctx, ident.ID, submitted)
	if errors.Is(err, identity.ErrNoPendingCode) {
		return ErrNoPendingCode
	}
	return err
}

func (m *Manager) wellFormed(code string) bool {
	if len(code) != m.length {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
