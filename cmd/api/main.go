// Postfinance Payments Service
//
// This is the main entry point for the payment protocol service.
// It wires up all dependencies and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/swisspay/postfinance-payments/config"
	"github.com/swisspay/postfinance-payments/internal/adapters/postfinance"
	"github.com/swisspay/postfinance-payments/internal/api"
	"github.com/swisspay/postfinance-payments/internal/core/service"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Server.GinMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting postfinance payments service",
		zap.String("port", cfg.Server.Port),
		zap.String("pspid", cfg.Gateway.PSPID),
		zap.Bool("sandbox", cfg.Gateway.Sandbox))

	if err := validateConfig(cfg, logger); err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	// Wire up dependencies (manual dependency injection)
	client := postfinance.NewClient(cfg.Gateway, logger)
	paymentService := service.NewPaymentService(client, cfg.Gateway, logger)
	handler := api.NewHandler(paymentService, cfg.Gateway, logger)
	router := api.SetupRouter(handler, cfg.Server.GinMode)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

func newLogger(ginMode string) (*zap.Logger, error) {
	if ginMode == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// validateConfig checks that required configuration values are set.
func validateConfig(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Gateway.PSPID == "" {
		return fmt.Errorf("PF_PSPID is required")
	}
	if cfg.Gateway.APIUser == "" || cfg.Gateway.APIPassword == "" {
		return fmt.Errorf("PF_API_USER and PF_API_PASSWORD are required")
	}
	if cfg.Gateway.SHASecret == "" {
		logger.Warn("PF_SHA_SECRET not set, payloads will be signed with an empty secret")
	}
	return nil
}
