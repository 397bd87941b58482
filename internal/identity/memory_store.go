package identity

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.RWMutex
	byPhone map[string]Identity
	phoneOf map[string]string
}

// NewMemoryStore builds an in-memory identity store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{byPhone: make(map[string]Identity), phoneOf: make(map[string]string)}
}

func (s *memoryStore) Create(_ context.Context, ident Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPhone[ident.Phone]; exists {
		return ErrExists
	}
	s.byPhone[ident.Phone] = ident
	s.phoneOf[ident.ID] = ident.Phone
	return nil
}

func (s *memoryStore) FindByPhone(_ context.Context, phone string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.byPhone[phone]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return ident, nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.get(id)
	if !ok {
		return Identity{}, ErrNotFound
	}
	return ident, nil
}

func (s *memoryStore) UpdateSecretHash(_ context.Context, id string, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	ident.SecretHash = hash
	s.byPhone[ident.Phone] = ident
	return nil
}

func (s *memoryStore) SetPendingCode(_ context.Context, id, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	ident.PendingCode = code
	ident.PendingCodeExpiresAt = expiresAt
	s.byPhone[ident.Phone] = ident
	return nil
}

func (s *memoryStore) ConsumePendingCode(_ context.Context, id, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	if ident.PendingCode == "" || ident.PendingCode != code {
		return ErrNoPendingCode
	}
	ident.PendingCode = ""
	ident.PendingCodeExpiresAt = time.Time{}
	ident.Verified = true
	s.byPhone[ident.Phone] = ident
	return nil
}

func (s *memoryStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	ident.LastLoginAt = at
	s.byPhone[ident.Phone] = ident
	return nil
}

// get must be called with the mutex held.
func (s *memoryStore) get(id string) (Identity, bool) {
	phone, ok := s.phoneOf[id]
	if !ok {
		return Identity{}, false
	}
	ident, ok := s.byPhone[phone]
	return ident, ok
}
