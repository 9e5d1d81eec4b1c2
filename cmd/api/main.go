package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-compliance/internal/artifact"
	"food-compliance/internal/config"
	"food-compliance/internal/database"
	"food-compliance/internal/handler"
	"food-compliance/internal/inference"
	"food-compliance/internal/repository"
	"food-compliance/internal/router"
	"food-compliance/internal/service"
	"food-compliance/internal/tokenizer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting food compliance API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the model artifact; the server does not start without one
	src, name := artifact.NewSource(ctx, cfg.S3, cfg.Model.Dir, logger)
	art, err := artifact.Load(ctx, src, name, logger)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	if err := artifact.ConfigureTokenizer(art, cfg.Model.MaxLength, tokenizer.Padding(cfg.Model.Padding)); err != nil {
		return fmt.Errorf("failed to configure tokenizer: %w", err)
	}

	classifier, err := inference.New(art, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}

	// Initialize the optional prediction audit log
	var predictionRepo repository.PredictionRepository
	if cfg.Database.Enabled {
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer pool.Close()

		predictionRepo = repository.NewPredictionRepository(pool, logger)
	} else {
		logger.Info().Msg("prediction auditing disabled")
	}

	// Initialize services
	predictionService := service.NewPredictionService(classifier, predictionRepo, service.Options{
		Timeout:  cfg.Model.Timeout(),
		MaxBatch: cfg.Model.MaxBatch,
	}, logger)

	// Initialize HTTP handlers
	predictionHandler := handler.NewPredictionHandler(predictionService, logger)

	// Initialize router
	mux := router.New(predictionHandler, cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Model.Timeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Str("model_id", classifier.ModelID().String()).
			Int("max_length", art.Tokenizer.Config().MaxLength).
			Bool("auth_enabled", cfg.Auth.AuthEnabled()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
