package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hooka/internal/api/v1/router"
	"hooka/internal/config"
	"hooka/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load configuration
	envErr := godotenv.Load()
	logger := logger.New()
	if envErr != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Resolve sm:// references through Secret Manager
	if cfg.HasSecretRefs() {
		acc, closeAcc, err := config.NewSecretAccessor(ctx)
		if err != nil {
			logger.Fatal().Msgf("Failed to create secret accessor: %v", err)
		}
		err = cfg.ResolveSecrets(ctx, acc)
		_ = closeAcc()
		if err != nil {
			logger.Fatal().Msgf("Failed to resolve secrets: %v", err)
		}
	}

	// 3. Build router and its dependencies
	app, err := router.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}

	// 4. Create HTTP server. Generation calls take up to the AI timeout,
	// so writes get headroom beyond it.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.AITimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 5. Graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := app.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Releasing resources failed")
	}
	logger.Info().Msg("Server shut down gracefully")
}
