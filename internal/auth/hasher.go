package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hasher derives and checks bcrypt credential hashes. The cost is a
// configuration constant; raising it slows offline guessing.
type Hasher struct {
	cost      int
	minLength int
}

// NewHasher builds a Hasher with the given bcrypt cost and minimum secret
// length policy. Out-of-range costs fall back to the bcrypt default.
func NewHasher(cost, minLength int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if minLength <= 0 {
		minLength = 8
	}
	return &Hasher{cost: cost, minLength: minLength}
}

// Hash derives a salted one-way hash of secret. Secrets shorter than the
// configured minimum are rejected before any hashing work.
func (h *Hasher) Hash(secret string) ([]byte, error) {
	if len(secret) < h.minLength {
		return nil, &ValidationError{Field: "secret", Reason: "too short"}
	}
	return bcrypt.GenerateFromPassword([]byte(secret), h.cost)
}

// Verify reports whether secret matches hash. A mismatch is (false, nil);
// the only error case is a stored hash bcrypt cannot parse.
func (h *Hasher) Verify(secret string, hash []byte) (bool, error) {
	err := bcrypt.CompareHashAndPassword(hash, []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, ErrCorruptHash
}
