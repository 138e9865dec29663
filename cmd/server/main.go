// server is the resource leveling server binary. It exposes the analysis,
// suggestion, and balancing API over HTTP and runs the periodic maintenance
// jobs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"taskboard-leveler/internal/api"
	"taskboard-leveler/internal/config"
	"taskboard-leveler/internal/events"
	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/internal/logging"
	"taskboard-leveler/internal/ratelimit"
	"taskboard-leveler/internal/scheduler"
	"taskboard-leveler/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	bus := events.NewBus(logger)
	service := leveling.NewService(
		storage.NewProfileRepository(db),
		storage.NewSuggestionRepository(db),
		storage.NewHistoryRepository(db),
		storage.NewTaskDirectory(db),
		bus,
		cfg.Engine.ServiceConfig(),
		logger,
	)

	limiter, err := buildLimiter(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}
	if limiter != nil {
		defer limiter.Close()
	}

	sched := scheduler.New(service, cfg.Scheduler, logger)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	router := api.NewRouter(cfg, service, limiter, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err.Error())
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}
}

// buildLimiter picks the rate limit backend from configuration: nil when
// disabled, Redis when an address is configured, in-memory otherwise.
func buildLimiter(cfg *config.Config, logger logging.Logger) (ratelimit.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}

	limit := ratelimit.Limit{
		Requests: cfg.RateLimit.RequestsPerMinute,
		Burst:    cfg.RateLimit.Burst,
		Window:   time.Minute,
	}
	if cfg.RateLimit.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisOptions{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		}, limit)
		if err != nil {
			return nil, err
		}
		logger.Info("rate limiting enabled", "backend", "redis")
		return limiter, nil
	}
	logger.Info("rate limiting enabled", "backend", "memory")
	return ratelimit.NewSlidingWindow(limit), nil
}
