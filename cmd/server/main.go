package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/doi-comments-api/internal/api"
	"github.com/doi-comments-api/internal/config"
	"github.com/doi-comments-api/internal/database"
	"github.com/doi-comments-api/internal/ratelimit"
	"github.com/doi-comments-api/internal/repository"
	"github.com/doi-comments-api/internal/service"
	"github.com/doi-comments-api/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info", "json")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().
		Str("store", cfg.Store.Driver).
		Str("rate_limit", cfg.RateLimit.Backend).
		Msg("Starting DOI comments server...")

	// Initialize comment store
	repos, checks, err := openStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open comment store")
	}
	defer repos.Close()

	// Initialize admission control
	limiter, limiterChecks, err := openLimiter(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}
	defer limiter.Close()
	checks = append(checks, limiterChecks...)

	// Initialize services
	services := service.NewServices(repos, limiter, service.OptionsFromConfig(cfg))

	// Initialize router
	router := api.NewRouter(services, cfg, log, checks...)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server exited gracefully")
}

// openStore connects the configured comment store and runs its migrations
func openStore(cfg *config.Config, log zerolog.Logger) (*repository.Repositories, []api.HealthChecker, error) {
	var (
		db  *database.DB
		err error
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		return repository.NewMemory(&cfg.Store), nil, nil
	case config.StoreDriverPostgres:
		db, err = database.New(&cfg.Database, log)
	case config.StoreDriverSQLite:
		db, err = database.NewSQLite(&cfg.SQLite, log)
	default:
		return nil, nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, nil, err
	}

	repos, err := repository.New(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repos, []api.HealthChecker{db}, nil
}

// openLimiter builds the configured fixed-window limiter
func openLimiter(cfg *config.Config) (ratelimit.Limiter, []api.HealthChecker, error) {
	rl := cfg.RateLimit
	switch rl.Backend {
	case config.RateLimitBackendMemory:
		limiter := ratelimit.NewFixedWindow(rl.Requests, rl.Window,
			ratelimit.WithIdleTTL(rl.IdleTTL),
			ratelimit.WithCleanupEvery(rl.CleanupEvery),
		)
		limiter.StartJanitor(context.Background())
		return limiter, nil, nil
	case config.RateLimitBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), rl.Timeout*4)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		limiter := ratelimit.NewRedisFixedWindow(rdb, rl.Requests, rl.Window,
			ratelimit.WithRedisPrefix(cfg.Redis.Prefix),
		)
		return limiter, []api.HealthChecker{limiter}, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate limit backend: %s", rl.Backend)
	}
}
