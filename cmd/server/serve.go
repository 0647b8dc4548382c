package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"idees/internal/cache"
	"idees/internal/db"
	"idees/internal/handlers"
	"idees/internal/logger"
	"idees/internal/metrics"
	"idees/internal/ratelimit"
	"idees/internal/router"
	"idees/internal/services"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd.Context())
		},
	}
}

func serveRun(parent context.Context) error {
	cfg, log := app.cfg, app.log
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(cfg, log)
	if err != nil {
		return err
	}
	if cfg.SeedFile != "" {
		if _, err := db.SeedTags(conn, cfg.SeedFile, log); err != nil {
			return err
		}
	}

	policies, err := ratelimit.Policies(cfg.RateLimits)
	if err != nil {
		return err
	}
	pages, err := cache.New(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("page cache: %w", err)
	}

	deps := router.Deps{
		Config:   cfg,
		Log:      log,
		DB:       conn,
		Policies: policies,
		Metrics:  metrics.New(),
		Pages:    pages,
		Links:    services.NewLinks(cfg.BlogDomain),
		Checks:   map[string]handlers.Pinger{},
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limiter := ratelimit.NewRedis(rdb)
		if err := limiter.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		deps.Limiter = limiter
		deps.Checks["redis"] = limiter
		log.Info("rate limiter using redis", logger.String("addr", cfg.RedisAddr))
	} else {
		limiter := ratelimit.NewMemory()
		limiter.Start()
		defer limiter.Stop()
		deps.Limiter = limiter
		log.Info("rate limiter using process memory")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.New(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			logger.String("addr", cfg.ListenAddr),
			logger.String("env", cfg.Env),
			logger.Bool("trust_proxy", cfg.TrustProxy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn("close redis", logger.Err(err))
		}
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("stopped cleanly")
	return nil
}
