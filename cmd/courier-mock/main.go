package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/courier/internal/config"
	"github.com/hashicorp-forge/courier/pkg/mockservice"
	"github.com/hashicorp-forge/courier/pkg/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.hcl", "Path to configuration file")
	listenAddr := flag.String("listen", "", "Listen address overriding the config file")
	flag.Parse()

	// Create logger
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "courier-mock",
		Level: hclog.Info,
	})

	logger.Info("starting courier-mock", "config", *configPath)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8119"
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("mock service failed", "error", err)
		cancel()
		os.Exit(1)
	}

	logger.Info("courier-mock stopped gracefully")
}

// run serves the mock service until the context is canceled.
func run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	if cfg.Description == "" {
		return fmt.Errorf("description attribute is required")
	}

	fs := afero.NewOsFs()
	desc, err := service.Load(fs, cfg.Description)
	if err != nil {
		return fmt.Errorf("failed to load service description: %w", err)
	}

	mockCfg := mockservice.Config{
		Description: desc,
		Logger:      logger,
	}
	if cfg.Fixtures != "" {
		fixtures, err := mockservice.LoadFixtures(fs, cfg.Fixtures)
		if err != nil {
			return fmt.Errorf("failed to load fixtures: %w", err)
		}
		mockCfg.Fixtures = fixtures
	}

	srv, err := mockservice.New(mockCfg)
	if err != nil {
		return fmt.Errorf("failed to create mock service: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock service listening",
			"addr", cfg.Listen, "service", desc.ServiceID, "protocol", desc.Protocol)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	return nil
}
