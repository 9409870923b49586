package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"clinicbook/internal/cache"
	"clinicbook/internal/config"
	"clinicbook/internal/database"
	"clinicbook/internal/logging"
	"clinicbook/internal/repository"
	"clinicbook/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.IsProdLike(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db, repository.Models()...); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := cache.Connect(ctx, cfg.RedisURL, logger)
	if rdb != nil {
		defer rdb.Close()
		logger.Info("availability cache enabled", zap.Duration("ttl", cfg.CacheTTL))
	}

	app, err := server.New(cfg, db, rdb, logger)
	if err != nil {
		logger.Fatal("wiring failed", zap.Error(err))
	}
	background := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(background)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("env", cfg.AppEnv),
			zap.String("availability_fallback", cfg.AvailabilityMode),
			zap.String("default_status", string(cfg.DefaultStatus)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	<-background
}
