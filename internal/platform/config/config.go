package config

import (
	"os"
	"strings"
)

// Config agrupa todo lo que main necesita para armar el servicio.
// Con los defaults (sin env) el API levanta en modo dev: storage en
// memoria, auth por headers de debug y pasarela de pagos local.
type Config struct {
	Addr string

	// DBDSN vacío => repos en memoria.
	DBDSN string

	// RedisURL vacío => OTP store en memoria.
	RedisURL string

	// JWTSigningKey vacío => modo dev (X-Debug-User-ID).
	JWTSigningKey string
	JWTIssuer     string

	// Pasarela de pagos. Sin KeyID/KeySecret se usa la pasarela local
	// firmando con PaymentSecret.
	PaymentKeyID     string
	PaymentKeySecret string
	PaymentBaseURL   string
	PaymentSecret    string

	// URLs de los subsistemas de origen. Los vacíos no se consultan.
	ManualSourceURL   string
	ShopSourceURL     string
	AdoptionSourceURL string
	RescueSourceURL   string
	SourceAPIKey      string
}

// FromEnv arma el Config desde env vars para que main quede corto.
func FromEnv() Config {
	cfg := Config{
		Addr:              getenv("ADDR", ":8080"),
		DBDSN:             os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSigningKey:     os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:         getenv("JWT_ISSUER", "pet-registry"),
		PaymentKeyID:      os.Getenv("PAYMENT_KEY_ID"),
		PaymentKeySecret:  os.Getenv("PAYMENT_KEY_SECRET"),
		PaymentBaseURL:    os.Getenv("PAYMENT_BASE_URL"),
		PaymentSecret:     getenv("PAYMENT_LOCAL_SECRET", "dev-payment-secret"),
		ManualSourceURL:   os.Getenv("MANUAL_SOURCE_URL"),
		ShopSourceURL:     os.Getenv("SHOP_SOURCE_URL"),
		AdoptionSourceURL: os.Getenv("ADOPTION_SOURCE_URL"),
		RescueSourceURL:   os.Getenv("RESCUE_SOURCE_URL"),
		SourceAPIKey:      os.Getenv("SOURCE_API_KEY"),
	}
	return cfg
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
