package otp

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMismatch = errors.New("otp mismatch")
	ErrExpired  = errors.New("otp expired or not issued")
)

// Store guarda códigos de un solo uso para el handover de adopciones.
// Verify consume el código: un OTP correcto solo sirve una vez.
type Store interface {
	Issue(ctx context.Context, key, code string, ttl time.Duration) error
	Verify(ctx context.Context, key, code string) error
}
