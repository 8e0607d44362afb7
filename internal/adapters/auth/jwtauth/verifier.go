package jwtauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pet-registry/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("jwt verifier not configured")
	ErrUnauthorized  = errors.New("invalid or expired token")
)

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier valida tokens HS256 emitidos por el servicio de identidad.
// El UserID viaja en el claim estándar `sub`.
type Verifier struct {
	signingKey []byte
	issuer     string
}

func New(signingKey, issuer string) *Verifier {
	return &Verifier{
		signingKey: []byte(strings.TrimSpace(signingKey)),
		issuer:     strings.TrimSpace(issuer),
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || len(v.signingKey) == 0 {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return auth.Claims{}, ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return auth.Claims{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || claims.Subject == "" {
		return auth.Claims{}, ErrUnauthorized
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return auth.Claims{}, ErrUnauthorized
	}

	role := auth.Role(claims.Role)
	if role != auth.RoleManager {
		role = auth.RoleUser
	}
	return auth.Claims{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   role,
	}, nil
}

// Sign emite un token de prueba con los claims dados. Solo lo usan los
// tests y el tooling de dev; el servicio de identidad real es quien
// firma en producción.
func (v *Verifier) Sign(userID, email string, role auth.Role, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	return token.SignedString(v.signingKey)
}
