package router

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "pet-registry/docs"
	"pet-registry/internal/adapters/notify/lognotify"
	otpmem "pet-registry/internal/adapters/otp/memory"
	paylocal "pet-registry/internal/adapters/payments/local"
	mem "pet-registry/internal/adapters/storage/memory"
	pg "pet-registry/internal/adapters/storage/postgres"
	"pet-registry/internal/domain/adoptions"
	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/registry"
	"pet-registry/internal/domain/reservations"
	"pet-registry/internal/domain/transfer"
	"pet-registry/internal/middleware"
	"pet-registry/internal/platform/logger"
	"pet-registry/internal/platform/metrics"
	"pet-registry/internal/ports/auth"
	"pet-registry/internal/ports/otp"
	"pet-registry/internal/ports/payments"
	"pet-registry/internal/ports/sources"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Orígenes de registros de mascotas (tienda, adopciones, rescates).
	Sources []sources.Reader

	// Opcional: overrides para tests / despliegues. Con nil se usan la
	// pasarela local y el OTP store en memoria.
	Gateway payments.Gateway
	OTP     otp.Store

	// PaymentSecret firma las órdenes de la pasarela local.
	PaymentSecret string

	Log logger.Logger
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Cada router arma su propio registry de métricas.
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var (
		registryRepo registry.Repository
		historyRepo  history.Repository
		resRepo      reservations.Repository
		adoRepo      adoptions.Repository
		transferRepo transfer.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("postgres open failed, falling back to memory", map[string]any{"error": err.Error()})
			}
		}
	}

	if db != nil {
		registryRepo = pg.NewRegistryRepo(db)
		historyRepo = pg.NewHistoryRepo(db)
		resRepo = pg.NewReservationsRepo(db)
		adoRepo = pg.NewAdoptionsRepo(db)
		transferRepo = pg.NewTransferRepo(db)
	} else {
		registryRepo = mem.NewRegistryRepo()
		historyRepo = mem.NewHistoryRepo()
		resRepo = mem.NewReservationsRepo()
		adoRepo = mem.NewAdoptionsRepo()
		tr, err := mem.NewTransferRepo(registryRepo, historyRepo)
		if err != nil {
			panic(err) // solo posible por error de wiring, no en runtime
		}
		transferRepo = tr
	}

	gateway := opts.Gateway
	if gateway == nil {
		gateway = paylocal.New(opts.PaymentSecret)
	}
	otpStore := opts.OTP
	if otpStore == nil {
		otpStore = otpmem.NewStore()
	}
	notifier := lognotify.New(log)

	// Services por módulo
	historySvc := history.NewService(historyRepo)
	transferSvc := transfer.NewService(transferRepo)

	resolver := registry.NewResolver(opts.Sources, registryRepo, historySvc)
	resolver.SetQuarantineHook(m.IncRecordsQuarantined)
	registrySvc := registry.NewService(resolver, registryRepo)

	resSvc := reservations.NewService(reservations.Deps{
		Repo:     resRepo,
		Registry: registryRepo,
		Transfer: transferSvc,
		History:  historySvc,
		Gateway:  gateway,
		Notifier: notifier,
		Metrics:  m,
	})
	adoSvc := adoptions.NewService(adoptions.Deps{
		Repo:     adoRepo,
		Registry: registryRepo,
		Transfer: transferSvc,
		History:  historySvc,
		Gateway:  gateway,
		OTP:      otpStore,
		Notifier: notifier,
		Metrics:  m,
	})

	// Rutas por módulo
	registry.RegisterRoutes(r, registrySvc)
	history.RegisterRoutes(r, historySvc)
	reservations.RegisterRoutes(r, resSvc)
	adoptions.RegisterRoutes(r, adoSvc)

	return r
}
