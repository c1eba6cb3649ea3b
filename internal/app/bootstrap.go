package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"snw-store/internal/analytics"
	"snw-store/internal/auth"
	"snw-store/internal/config"
	"snw-store/internal/contact"
	"snw-store/internal/db"
	"snw-store/internal/httpx"
	"snw-store/internal/maintenance"
	"snw-store/internal/media"
	"snw-store/internal/observability"
	"snw-store/internal/product"
	"snw-store/internal/ratelimit"
	"snw-store/internal/testimonial"
)

const (
	analyticsRPS   = 5
	analyticsBurst = 20
	startupTimeout = 10 * time.Second
)

type Options struct {
	LoadDotEnv bool
	// StartSweepers runs the in-memory housekeeping loops. Serverless
	// deployments leave it off and rely on the cleanup endpoint instead.
	StartSweepers bool
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Logger  *observability.Logger
	Close   func() error
}

// stateStores are the limiter and lockout backends. The sweepers are nil when
// Redis holds the state.
type stateStores struct {
	limiter         ratelimit.Limiter
	attempts        auth.AttemptTracker
	limiterSweeper  *ratelimit.MemoryStore
	attemptsSweeper *auth.MemoryAttemptTracker
	redis           *redis.Client
}

func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(config.Options{LoadDotEnv: options.LoadDotEnv})
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.RunMigrations {
		if err := db.RunMigrations(database, logger); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	stores, err := newStateStores(ctx, cfg, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	closeAll := func() error {
		observability.FlushSentry()
		if stores.redis != nil {
			_ = stores.redis.Close()
		}
		return database.Close()
	}

	accounts := auth.NewRepository(database)
	authService := auth.NewService(auth.Dependencies{
		Accounts: accounts,
		Tokens:   auth.NewTokenService(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret),
		Limiter:  stores.limiter,
		Attempts: stores.attempts,
		Security: auth.NewSecurityLog(logger),
		Origins:  auth.NewOriginPolicy(cfg.IsProduction(), cfg.Origins()),
	})
	guard := auth.NewGuard(authService)

	if err := authService.BootstrapAdmin(ctx, cfg.Admin.Email, cfg.Admin.Name, cfg.Admin.Password); err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	var objects media.ObjectStore
	if cfg.StorageEnabled() {
		s3Store, err := media.NewS3Store(cfg.Storage)
		if err != nil {
			_ = closeAll()
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		objects = s3Store
	} else {
		logger.Warn("object_storage_disabled", map[string]any{"reason": "S3_BUCKET not set"})
	}

	sqlxDB := sqlx.NewDb(database, "pgx")

	authHandler := auth.NewHandler(authService, guard, cfg.IsProduction())
	productHandler := product.NewHandler(product.NewRepository(database), guard)
	testimonialHandler := testimonial.NewHandler(testimonial.NewRepository(sqlxDB), guard)
	contactHandler := contact.NewHandler(contact.NewService(contact.NewRepository(sqlxDB), stores.limiter), guard)
	analyticsHandler := analytics.NewHandler(analytics.NewService(analytics.NewRepository(sqlxDB)), guard, analyticsRPS, analyticsBurst)
	uploadHandler := media.NewUploadHandler(objects, guard)
	cleanupHandler := maintenance.NewCleanupHandler(accounts, stores.limiterSweep(), stores.attemptsSweep(), logger, cfg.CronSecret)

	stopSweepers := func() {}
	if options.StartSweepers {
		sweepCtx, stop := context.WithCancel(context.Background())
		stopSweepers = stop
		if stores.limiterSweeper != nil {
			go stores.limiterSweeper.Run(sweepCtx, ratelimit.DefaultSweepInterval)
		}
		if stores.attemptsSweeper != nil {
			go stores.attemptsSweeper.Run(sweepCtx, ratelimit.DefaultSweepInterval)
		}
		go analyticsHandler.Throttle().Run(sweepCtx, ratelimit.DefaultSweepInterval)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler { return observability.RequestLoggingMiddleware(logger, next) })
	r.Use(func(next http.Handler) http.Handler { return observability.RecoverMiddleware(logger, next) })
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)

	r.Get("/health", healthHandler(database))
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Mount("/api/auth", authHandler.Routes())
	r.Mount("/api/products", productHandler.ProductRoutes())
	r.Mount("/api/categories", productHandler.CategoryRoutes())
	r.Mount("/api/testimonials", testimonialHandler.PublicRoutes())
	r.Mount("/api/contact", contactHandler.PublicRoutes())
	r.Mount("/api/analytics", analyticsHandler.PublicRoutes())

	r.Mount("/api/admin/testimonials", testimonialHandler.AdminRoutes())
	r.Mount("/api/admin/messages", contactHandler.AdminRoutes())
	r.Mount("/api/admin/analytics", analyticsHandler.AdminRoutes())
	r.Mount("/api/admin/upload", uploadHandler.Routes())

	r.Mount("/internal/maintenance", cleanupHandler.Routes())

	logger.Info("runtime_ready", map[string]any{
		"environment":     cfg.Environment,
		"redis":           stores.redis != nil,
		"object_storage":  objects != nil,
		"metrics_enabled": cfg.MetricsEnabled,
	})

	return &Runtime{
		Handler: r,
		Config:  cfg,
		Logger:  logger,
		Close: func() error {
			stopSweepers()
			return closeAll()
		},
	}, nil
}

func newStateStores(ctx context.Context, cfg *config.Config, logger *observability.Logger) (stateStores, error) {
	if cfg.RedisURL == "" {
		if cfg.IsProduction() {
			logger.Warn("rate_limit_state_in_memory", map[string]any{"reason": "REDIS_URL not set"})
		}
		limiter := ratelimit.NewMemoryStore()
		attempts := auth.NewMemoryAttemptTracker()
		return stateStores{limiter: limiter, attempts: attempts, limiterSweeper: limiter, attemptsSweeper: attempts}, nil
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return stateStores{}, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(redisOptions)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return stateStores{}, fmt.Errorf("ping redis: %w", err)
	}

	return stateStores{
		limiter:  ratelimit.NewRedisStore(client, ""),
		attempts: auth.NewRedisAttemptTracker(client, ""),
		redis:    client,
	}, nil
}

// limiterSweep and attemptsSweep return untyped nils for the Redis backends so
// the cleanup handler skips them.
func (s stateStores) limiterSweep() maintenance.Sweeper {
	if s.limiterSweeper == nil {
		return nil
	}
	return s.limiterSweeper
}

func (s stateStores) attemptsSweep() maintenance.Sweeper {
	if s.attemptsSweeper == nil {
		return nil
	}
	return s.attemptsSweeper
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
