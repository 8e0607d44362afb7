package main

import (
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"pet-registry/internal/adapters/auth/jwtauth"
	otpredis "pet-registry/internal/adapters/otp/redis"
	"pet-registry/internal/adapters/payments/razorpay"
	"pet-registry/internal/adapters/sources/rest"
	"pet-registry/internal/platform/config"
	"pet-registry/internal/platform/logger"
	"pet-registry/internal/ports/auth"
	"pet-registry/internal/ports/otp"
	"pet-registry/internal/ports/payments"
	"pet-registry/internal/ports/sources"
	"pet-registry/internal/router"
)

// @title Pet Registry API
// @version 0.1
// @description Registro canónico de mascotas: identidad cross-origen,
// @description reservas de compra, solicitudes de adopción y traspasos.
// @BasePath /
func main() {
	// .env es opcional; en prod las vars vienen del entorno.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.NewFromEnv()

	var verifier auth.AuthVerifier
	if cfg.JWTSigningKey != "" {
		verifier = jwtauth.New(cfg.JWTSigningKey, cfg.JWTIssuer)
	} else {
		log.Warn("no JWT_SIGNING_KEY, running in dev auth mode", nil)
	}

	var gateway payments.Gateway
	if cfg.PaymentKeyID != "" && cfg.PaymentKeySecret != "" {
		g, err := razorpay.New(razorpay.Config{
			KeyID:     cfg.PaymentKeyID,
			KeySecret: cfg.PaymentKeySecret,
			BaseURL:   cfg.PaymentBaseURL,
		})
		if err != nil {
			log.Error("payment gateway config invalid", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		gateway = g
	}

	var otpStore otp.Store
	if cfg.RedisURL != "" {
		redisOpts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("invalid REDIS_URL", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		otpStore = otpredis.NewStore(goredis.NewClient(redisOpts))
	}

	readers := buildSourceReaders(cfg, log)

	r := router.NewRouter(router.Options{
		AuthVerifier:  verifier,
		Sources:       readers,
		Gateway:       gateway,
		OTP:           otpStore,
		PaymentSecret: cfg.PaymentSecret,
		Log:           log,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": cfg.Addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func buildSourceReaders(cfg config.Config, log logger.Logger) []sources.Reader {
	specs := []struct {
		source  sources.Type
		baseURL string
	}{
		{sources.TypeManual, cfg.ManualSourceURL},
		{sources.TypePurchased, cfg.ShopSourceURL},
		{sources.TypeAdopted, cfg.AdoptionSourceURL},
		{sources.TypeRescued, cfg.RescueSourceURL},
	}

	readers := make([]sources.Reader, 0, len(specs))
	for _, s := range specs {
		if s.baseURL == "" {
			continue
		}
		reader, err := rest.NewReader(rest.Config{
			Source:  s.source,
			BaseURL: s.baseURL,
			APIKey:  cfg.SourceAPIKey,
		})
		if err != nil {
			log.Warn("skipping source with invalid base url", map[string]any{
				"source": string(s.source),
				"error":  err.Error(),
			})
			continue
		}
		readers = append(readers, reader)
	}
	return readers
}
