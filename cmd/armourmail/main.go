package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/armourmail/armourmail/internal/core"
	"github.com/armourmail/armourmail/internal/di"
	"github.com/armourmail/armourmail/internal/quarantine"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	sweeper *quarantine.Sweeper,
	clean chan *core.CanonicalEmail,
	classifier core.Classifier,
	store core.Store,
) error {
	defer logger.Sync()

	// Start the expiry sweeper
	sweeper.Start()
	logger.Info("Quarantine sweeper started")

	// Drain clean deliveries; the downstream delivery agent consumes
	// this channel in production deployments.
	go func() {
		for email := range clean {
			logger.Info("Email released for delivery",
				zap.String("email_id", email.ID.String()),
				zap.String("sender", email.Sender))
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the sweeper
	sweeper.Stop()

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
