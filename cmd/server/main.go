package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/internal/api"
	"github.com/reggosong/freebies-go/internal/cache"
	"github.com/reggosong/freebies-go/internal/feed"
	"github.com/reggosong/freebies-go/internal/freebies"
	"github.com/reggosong/freebies-go/internal/mirror"
	"github.com/reggosong/freebies-go/internal/notify"
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
	logger.Info("Starting Freebies gateway")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Remote backend client with the process-wide token store
	tokens := session.NewTokenStore(cfg.Auth.Token)
	client, err := freebies.New(&cfg.API, tokens)
	if err != nil {
		logger.Fatal("Failed to create backend client", zap.Error(err))
	}

	// Resolve the viewer and follow graph; an empty token means
	// anonymous browsing with empty annotations.
	sess := buildSession(client, tokens, logger)

	// Feed aggregator
	aggregator := feed.NewAggregator(client, &cfg.Feed)

	// Unread-count poller, started while the gateway is up
	poller := notify.NewPoller(&cfg.Notify, client.UnreadCount)
	if sess.Viewer() != nil {
		poller.Start()
		defer poller.Stop()
	}

	// Optional Redis response cache
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Optional map-view mirror store (read side)
	var store *mirror.Store
	if cfg.Mirror.Enabled {
		store, err = mirror.NewStore(&cfg.Mirror, cfg.Logging.Level)
		if err != nil {
			logger.Fatal("Failed to open mirror database", zap.Error(err))
		}
		defer store.Close()
	}

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	router := api.NewRouter(aggregator, client, sess, poller, redisCache, store, cfg.Feed.CacheTTL)
	router.SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildSession resolves the token's owner and their follow graph. Any
// failure falls back to an anonymous session rather than refusing to
// start.
func buildSession(client *freebies.Client, tokens *session.TokenStore, logger *zap.Logger) *session.Session {
	if tokens.Token() == "" {
		logger.Info("No auth token configured, browsing anonymously")
		return session.New(nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	viewer, err := client.Me(ctx)
	if err != nil {
		logger.Warn("Failed to resolve viewer, browsing anonymously", zap.Error(err))
		return session.New(nil)
	}

	sess := session.New(viewer)
	if err := sess.RefreshFollows(ctx, client); err != nil {
		logger.Warn("Failed to load follow graph", zap.Error(err))
	}

	logger.Info("Session established",
		zap.Int64("viewer_id", viewer.ID),
		zap.String("username", viewer.Username),
		zap.Int("following", len(sess.Follows())))
	return sess
}
