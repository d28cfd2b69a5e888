package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/accounthub/internal/auth"
	"github.com/geocoder89/accounthub/internal/cache"
	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/db"
	httpx "github.com/geocoder89/accounthub/internal/http"
	"github.com/geocoder89/accounthub/internal/http/handlers"
	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/geocoder89/accounthub/internal/observability"
	"github.com/geocoder89/accounthub/internal/ratelimit"
	"github.com/geocoder89/accounthub/internal/redisclient"
	"github.com/geocoder89/accounthub/internal/repo/postgres"
	"github.com/geocoder89/accounthub/internal/security"
	"github.com/geocoder89/accounthub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	_ "embed"
)

//go:embed openapi.yaml
var openAPISpec []byte

func main() {
	// Load the config set up
	cfg, err := config.Load()

	// a broken config (above all a missing signing secret) must stop the
	// boot, not limp along
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	// tracing is optional, enabled by pointing OTLP_ENDPOINT somewhere
	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(context.Background(), "accounthub-api", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	// database

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	bootCtx, cancelBoot := config.WithTimeout(15 * time.Second)

	if err := db.EnsureSchema(bootCtx, pool); err != nil {
		cancelBoot()
		log.Error("schema bootstrap failed", "err", err)
		os.Exit(1)
	}

	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)

	if err := db.EnsureAdminUser(bootCtx, pool, cfg, hasher); err != nil {
		cancelBoot()
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	cancelBoot()

	// redis backs the credential-endpoint rate limiter

	redisCli := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	defer redisCli.Close()

	// metrics

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	// core wiring

	jwtManager, err := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())

	if err != nil {
		log.Error("jwt manager init failed", "err", err)
		os.Exit(1)
	}

	usersRepo := postgres.NewUsersRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	authSvc := service.NewAuthService(usersRepo, hasher, jwtManager, cfg.RefreshTTL())

	profiles := cache.NewProfiles(30 * time.Second)

	authHandler := handlers.NewAuthHandler(authSvc, jobsRepo, profiles, prom, log)
	authMW := middlewares.NewAuthMiddleware(jwtManager)

	limiter := middlewares.NewRateLimiter(
		ratelimit.New(redisCli.Raw(), cfg.AuthRateLimit, cfg.AuthRateWindow),
		log,
	)

	ping := func(fn func(context.Context) error) func() error {
		return func() error {
			ctx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()

			return fn(ctx)
		}
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:       cfg,
		Log:       log,
		Auth:      authHandler,
		AuthMW:    authMW,
		Limiter:   limiter,
		Prom:      prom,
		Registry:  registry,
		DBPing:    ping(pool.Ping),
		RedisPing: ping(redisCli.Ping),
		OpenAPI:   openAPISpec,
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

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
