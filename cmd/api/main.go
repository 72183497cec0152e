package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/geocoder89/coursehub/internal/accounts"
	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/cache"
	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/db"
	httpx "github.com/geocoder89/coursehub/internal/http"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/repo/postgres"
	"github.com/geocoder89/coursehub/internal/security"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:   "coursehub-api",
		Env:           cfg.Env,
		Endpoint:      cfg.OTLPEndpoint,
		SamplePercent: cfg.TraceSamplePercent,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	hasher := security.NewPasswordHasher(cfg.BcryptCost)

	created, err := db.EnsureAdminUser(ctx, pool, cfg, hasher)
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	health := map[string]handlers.Pinger{"db": pool}

	// catalog cache: redis when configured, in-process otherwise
	var store cache.Store = cache.NewMemory(cfg.CatalogCacheTTL)
	if cfg.RedisAddr != "" {
		rc := cache.DialRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "coursehub:",
		})
		defer rc.Close()

		store = rc
		health["redis"] = rc
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	refreshRepo := postgres.NewRefreshTokensRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	tokens := auth.NewManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLDays)*24*time.Hour,
	)

	svc := accounts.NewService(accounts.Deps{
		Users:        usersRepo,
		Sessions:     refreshRepo,
		Jobs:         jobsRepo,
		Hasher:       hasher,
		Tokens:       tokens,
		Log:          log,
		Prom:         prom,
		StoreTimeout: cfg.StoreTimeout,
	})

	router := httpx.NewRouter(httpx.Deps{
		Log:       log,
		Cfg:       cfg,
		Accounts:  svc,
		Tokens:    tokens,
		Catalog:   postgres.NewCatalogRepo(pool, prom),
		Companies: postgres.NewCompaniesRepo(pool, prom),
		Jobs:      jobsRepo,
		Cache:     store,
		Prom:      prom,
		Gatherer:  reg,
		Health:    health,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}
