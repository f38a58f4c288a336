package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ptfpinho23/HeadlessVendingMachine/db/migrations"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/app/migrate"
	httpx "github.com/ptfpinho23/HeadlessVendingMachine/internal/http"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository/memory"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository/postgres"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/auth"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/product"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/purchase"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/user"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/session"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/ws"
	"github.com/ptfpinho23/HeadlessVendingMachine/pkg/config"
	"github.com/ptfpinho23/HeadlessVendingMachine/pkg/logger"
)

type stores struct {
	users     repository.UserRepository
	products  repository.ProductRepository
	purchases repository.PurchaseRepository
}

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("vending-api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := map[string]httpx.HealthCheck{}
	var repos stores
	switch strings.ToLower(cfg.StorageDriver) {
	case "memory":
		log.Warn("using in-memory storage; data is lost on restart")
		store := memory.New()
		repos = stores{users: store, products: store, purchases: store}
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		runner, err := migrate.New(pool, migrations.FS, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		defer runner.Close()
		if err := runner.Ping(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		repo := postgres.New(pool)
		repos = stores{users: repo, products: repo, purchases: repo}
		health["database"] = pool.Ping
	}

	var sessions session.Store
	limiter := httpx.RateLimiter(nil)
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		redisSessions, err := session.NewRedisStore(addr, cfg.RedisPass, cfg.RedisDB, log)
		if err != nil {
			log.Error("redis session store unavailable", "error", err)
			os.Exit(1)
		}
		sessions = redisSessions
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RedisPass, cfg.RedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	} else {
		log.Warn("REDIS_ADDR not set; sessions are kept in process memory")
		sessions = session.NewMemoryStore()
	}
	defer sessions.Close()
	health["session_cache"] = sessions.Ping

	hub := ws.NewHub(log)
	defer hub.Close()

	authSvc := auth.New(repos.users, sessions, log, cfg)
	userSvc := user.New(repos.users, authSvc, log)
	productSvc := product.New(repos.products, hub, log)
	purchaseSvc := purchase.New(repos.products, repos.users, repos.purchases, hub, log)

	router := httpx.NewRouter(log, authSvc, userSvc, productSvc, purchaseSvc, hub, limiter, httpx.Options{
		LoginRateLimit:  cfg.LoginRateLimit,
		SignupRateLimit: cfg.SignupRateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
		TrustedProxies:  cfg.TrustedProxies,
		Health:          health,
	})
	defer router.Close()

	handler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	})(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "storage", cfg.StorageDriver)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
