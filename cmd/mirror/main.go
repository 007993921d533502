package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/internal/freebies"
	"github.com/reggosong/freebies-go/internal/mirror"
	"github.com/reggosong/freebies-go/internal/session"
	"github.com/reggosong/freebies-go/pkg/config"
	"github.com/reggosong/freebies-go/pkg/logging"
	"github.com/reggosong/freebies-go/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Freebies map mirror")

	if !cfg.Mirror.Enabled {
		logger.Fatal("mirror_database_url is required for the mirror daemon")
	}

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// The mirror reads the public feed; no token needed
	tokens := session.NewTokenStore(cfg.Auth.Token)
	client, err := freebies.New(&cfg.API, tokens)
	if err != nil {
		logger.Fatal("Failed to create backend client", zap.Error(err))
	}

	store, err := mirror.NewStore(&cfg.Mirror, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to open mirror database", zap.Error(err))
	}
	defer store.Close()

	sync := mirror.NewSync(&cfg.Mirror, store, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel on interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Shutting down mirror...")
		cancel()
	}()

	if err := sync.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Mirror sync failed", zap.Error(err))
	}

	logger.Info("Mirror exited")
}
