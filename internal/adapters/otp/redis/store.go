package redis

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"pet-registry/internal/ports/otp"
)

// Store guarda los OTP en redis con TTL nativo. Es el store para
// despliegues con más de una instancia del API.
type Store struct {
	client *goredis.Client
	prefix string
}

func NewStore(client *goredis.Client) *Store {
	return &Store{
		client: client,
		prefix: "otp:",
	}
}

func (s *Store) Issue(ctx context.Context, key, code string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, code, ttl).Err()
}

func (s *Store) Verify(ctx context.Context, key, code string) error {
	stored, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return otp.ErrExpired
		}
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return otp.ErrMismatch
	}
	// un OTP correcto solo sirve una vez
	return s.client.Del(ctx, s.prefix+key).Err()
}
