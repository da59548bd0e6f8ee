package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Mutairu-Lawal/pro-manage/internal/app/migrate"
	httpx "github.com/Mutairu-Lawal/pro-manage/internal/http"
	"github.com/Mutairu-Lawal/pro-manage/internal/obs"
	"github.com/Mutairu-Lawal/pro-manage/internal/repository/jsondoc"
	"github.com/Mutairu-Lawal/pro-manage/internal/service/auth"
	"github.com/Mutairu-Lawal/pro-manage/internal/service/session"
	"github.com/Mutairu-Lawal/pro-manage/internal/service/team"
	"github.com/Mutairu-Lawal/pro-manage/internal/store"
	"github.com/Mutairu-Lawal/pro-manage/pkg/config"
	"github.com/Mutairu-Lawal/pro-manage/pkg/logger"
)

var version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	if cfg.ApplySecretFallback() {
		log.Warn("JWT_SECRET_TOKEN not set, using development secret")
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracerConfig{
		ServiceName: cfg.OTelServiceName,
		Version:     version,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		log.Error("failed to initialise tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	backend, cleanup, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store backend", "error", err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	defer cleanup()

	docs, err := store.Open(ctx, backend,
		store.WithLogger(log),
		store.WithRegisterer(prometheus.DefaultRegisterer),
	)
	if err != nil {
		log.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	sessions, err := session.New(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		log.Error("failed to configure sessions", "error", err)
		os.Exit(1)
	}

	repo := jsondoc.New(docs)
	authSvc := auth.New(repo, sessions, log, cfg.BcryptCost)
	teamSvc := team.New(repo, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(ctx, addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, teamSvc, session.NewGate(sessions), limiter, httpx.Options{
		RegisterLimit:     cfg.RateLimitRegister,
		LoginLimit:        cfg.RateLimitLogin,
		LoginAccountLimit: cfg.RateLimitLoginAccount,
		Registerer:        prometheus.DefaultRegisterer,
		Gatherer:          prometheus.DefaultGatherer,
		Health:            docs.Ping,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreBackend, "version", version)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

// openBackend builds the configured store backend. The returned cleanup
// releases resources the backend does not own itself.
func openBackend(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (store.Backend, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		runner, err := migrate.New(cfg.DatabaseURL, cfg.MigrationsDir, log)
		if err != nil {
			return nil, nil, err
		}
		if err := runner.Ping(ctx); err != nil {
			runner.Close()
			return nil, nil, err
		}
		if err := runner.Ensure(ctx); err != nil {
			runner.Close()
			return nil, nil, err
		}
		runner.Close()

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresBackend(pool, cfg.StoreDocument), pool.Close, nil
	default:
		backend, err := store.NewFileBackend(cfg.StorePath, cfg.StoreLock)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {}, nil
	}
}
