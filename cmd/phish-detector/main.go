package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/adapters/httpapi"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/di"
	"github.com/mikey/phish-detector/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	service *core.AnalysisService,
	server *httpapi.Server,
	emailFilter ports.EmailFilter,
	cache core.ResultCache,
) error {
	defer logger.Sync()

	logger.Info("Starting phish-detector", zap.String("model_version", service.ModelVersion()))

	if err := server.Start(); err != nil {
		logger.Error("Failed to start HTTP API", zap.Error(err))
		return err
	}

	if emailFilter != nil {
		if err := emailFilter.Start(); err != nil {
			logger.Error("Failed to start SMTP filter", zap.Error(err))
			_ = server.Stop()
			return err
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if emailFilter != nil {
		if err := emailFilter.Stop(); err != nil {
			logger.Error("Failed to stop SMTP filter", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop HTTP API", zap.Error(err))
	}

	// Stop the cache if needed
	if stopper, ok := cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
