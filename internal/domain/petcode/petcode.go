// Package petcode define el identificador estable cross-source de una
// mascota física: 3 letras mayúsculas + 5 dígitos (ej: ABC12345).
// Una vez asignado nunca cambia ni se repite.
package petcode

import (
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
)

var (
	ErrInvalidFormat = errors.New("invalid pet code format")
)

var pattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{5}$`)

// IsValid reporta si s cumple el formato exacto (sin normalizar).
func IsValid(s string) bool {
	return pattern.MatchString(s)
}

// Normalize hace trim + upper y valida. Es lo que usan los handlers
// antes de tocar el registry.
func Normalize(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !IsValid(s) {
		return "", ErrInvalidFormat
	}
	return s, nil
}

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const digits = "0123456789"

// Generate crea un código nuevo con crypto/rand.
// La unicidad real la garantiza el store (constraint por pet_code);
// acá solo garantizamos formato y entropía.
func Generate() (string, error) {
	var b strings.Builder
	for i := 0; i < 3; i++ {
		c, err := pick(letters)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	for i := 0; i < 5; i++ {
		c, err := pick(digits)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
