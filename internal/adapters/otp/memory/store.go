package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"pet-registry/internal/ports/otp"
)

type entry struct {
	code      string
	expiresAt time.Time
}

// Store guarda los OTP en memoria. Sirve para dev y tests; en
// producción con más de una instancia hay que usar el store de redis.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *Store) Issue(ctx context.Context, key, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		code:      code,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *Store) Verify(ctx context.Context, key, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return otp.ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(code)) != 1 {
		return otp.ErrMismatch
	}
	// un OTP correcto solo sirve una vez
	delete(s.entries, key)
	return nil
}
