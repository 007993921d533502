package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/internal/cache"
	"github.com/reggosong/freebies-go/internal/feed"
	"github.com/reggosong/freebies-go/internal/freebies"
	"github.com/reggosong/freebies-go/internal/mirror"
	"github.com/reggosong/freebies-go/internal/notify"
	"github.com/reggosong/freebies-go/internal/session"
	"github.com/reggosong/freebies-go/pkg/logging"
)

// Router sets up the gateway's REST routes
type Router struct {
	agg      *feed.Aggregator
	client   *freebies.Client
	sess     *session.Session
	poller   *notify.Poller
	cache    *cache.Cache
	store    *mirror.Store
	cacheTTL time.Duration
	logger   *zap.Logger

	// Feed cache keys written since the last mutation. Mutations
	// change what /feed would answer, so the entries are deleted
	// rather than left to expire.
	mu       sync.Mutex
	feedKeys map[string]struct{}
}

// NewRouter creates a new API router. cache and store may be nil when
// the Redis cache or the map mirror is disabled.
func NewRouter(agg *feed.Aggregator, client *freebies.Client, sess *session.Session, poller *notify.Poller, redisCache *cache.Cache, store *mirror.Store, cacheTTL time.Duration) *Router {
	return &Router{
		agg:      agg,
		client:   client,
		sess:     sess,
		poller:   poller,
		cache:    redisCache,
		store:    store,
		cacheTTL: cacheTTL,
		logger:   logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// Aggregated feed
	engine.GET("/feed", r.getFeed)
	engine.GET("/feed/search", r.searchFeed)

	// Per-post interactions
	engine.POST("/posts/:id/like", r.toggleLike)
	engine.POST("/posts/:id/got-it", r.toggleGotIt)
	engine.POST("/posts/:id/report-gone", r.reportGone)
	engine.POST("/posts/:id/hide", r.hidePost)
	engine.DELETE("/posts/:id/hide", r.unhidePost)
	engine.POST("/posts/:id/comment", r.commentPost)
	engine.DELETE("/posts/:id", r.deletePost)

	// Profiles and the follow graph
	engine.GET("/users/:id/posts", r.userPosts)
	engine.GET("/users/:id/followers", r.userFollowers)
	engine.GET("/users/:id/following", r.userFollowing)
	engine.POST("/users/:id/follow", r.toggleFollow)
	engine.POST("/session/refresh-follows", r.refreshFollows)

	// Notifications
	engine.GET("/notifications", r.listNotifications)
	engine.GET("/notifications/unread-count", r.unreadCount)
	engine.PUT("/notifications/read-all", r.markAllRead)

	// Map view (mirror-backed)
	engine.GET("/map/posts", r.mapPosts)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "freebies-gateway",
	})
}

// rememberFeedKey records a cache key served for /feed so a later
// mutation can invalidate it
func (r *Router) rememberFeedKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feedKeys == nil {
		r.feedKeys = make(map[string]struct{})
	}
	r.feedKeys[key] = struct{}{}
}

// invalidateFeedCache deletes every feed entry written since the last
// mutation. Without this a cached feed could contradict the snapshot a
// mutation just returned for up to the TTL.
func (r *Router) invalidateFeedCache(ctx context.Context) {
	r.mu.Lock()
	keys := r.feedKeys
	r.feedKeys = nil
	r.mu.Unlock()

	for key := range keys {
		if err := r.cache.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			r.logger.Warn("Feed cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// respondError maps domain errors onto HTTP statuses
func (r *Router) respondError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		c.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
	case errors.Is(err, freebies.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired, please log in again"})
	case errors.Is(err, freebies.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "you don't have permission to perform this action"})
	case errors.Is(err, freebies.ErrNotFound), errors.Is(err, feed.ErrUnknownPost):
		c.JSON(http.StatusNotFound, gin.H{"error": "the requested resource was not found"})
	case errors.Is(err, feed.ErrLoadFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load posts"})
	default:
		r.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream request failed"})
	}
}
