package api

import (
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/internal/cache"
	"github.com/reggosong/freebies-go/internal/feed"
	"github.com/reggosong/freebies-go/internal/models"
)

// parseFilter builds the aggregator filter from query parameters.
// Latitude and longitude must come together; radius only matters when
// a center is present.
func parseFilter(c *gin.Context) (models.FilterState, error) {
	var filter models.FilterState

	if raw := c.Query("category"); raw != "" {
		category := models.Category(raw)
		if !category.Valid() {
			return filter, NewError(http.StatusBadRequest, "unknown category: "+raw)
		}
		filter.Category = category
	}

	filter.FollowedOnly = c.Query("followed_only") == "true"

	latRaw, lonRaw := c.Query("latitude"), c.Query("longitude")
	if latRaw != "" || lonRaw != "" {
		lat, latErr := strconv.ParseFloat(latRaw, 64)
		lon, lonErr := strconv.ParseFloat(lonRaw, 64)
		if latErr != nil || lonErr != nil {
			return filter, NewError(http.StatusBadRequest, "latitude and longitude must both be valid numbers")
		}
		filter.Center = &models.Coordinates{Latitude: lat, Longitude: lon}

		filter.RadiusKm = 10
		if radiusRaw := c.Query("radius"); radiusRaw != "" {
			radius, err := strconv.ParseFloat(radiusRaw, 64)
			if err != nil || radius <= 0 {
				return filter, NewError(http.StatusBadRequest, "radius must be a positive number")
			}
			filter.RadiusKm = radius
		}
	}

	return filter, nil
}

func feedCacheKey(filter models.FilterState, viewerID int64) string {
	lat, lon, radius := "", "", ""
	if filter.Center != nil {
		lat = strconv.FormatFloat(filter.Center.Latitude, 'f', 5, 64)
		lon = strconv.FormatFloat(filter.Center.Longitude, 'f', 5, 64)
		radius = strconv.FormatFloat(filter.RadiusKm, 'f', 1, 64)
	}
	return "feed:" + cache.HashKey(
		string(filter.Category),
		strconv.FormatBool(filter.FollowedOnly),
		lat, lon, radius,
		strconv.FormatInt(viewerID, 10),
	)
}

// getFeed serves the aggregated, annotated feed
func (r *Router) getFeed(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	var viewerID int64
	if viewer := r.sess.Viewer(); viewer != nil {
		viewerID = viewer.ID
	}

	key := feedCacheKey(filter, viewerID)
	var cached snapshotDTO
	if err := r.cache.GetJSON(c.Request.Context(), key, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	snap, err := r.agg.Load(c.Request.Context(), filter, r.sess)
	if errors.Is(err, feed.ErrStaleLoad) {
		// A newer load already committed; answer from it
		c.JSON(http.StatusOK, snapshotToDTO(r.agg.Current()))
		return
	}
	if err != nil {
		r.respondError(c, err)
		return
	}

	dto := snapshotToDTO(snap)
	if err := r.cache.SetJSON(c.Request.Context(), key, dto, r.cacheTTL); err != nil {
		if !errors.Is(err, cache.ErrCacheDisabled) {
			r.logger.Warn("Feed cache write failed", zap.Error(err))
		}
	} else {
		r.rememberFeedKey(key)
	}

	c.JSON(http.StatusOK, dto)
}

// searchFeed serves server-side post search. The interactive debounce
// lives client-side; over HTTP each call is already a settled query.
func (r *Router) searchFeed(c *gin.Context) {
	q := c.Query("q")
	if utf8.RuneCountInString(q) < 2 {
		r.respondError(c, NewError(http.StatusBadRequest, "query must be at least 2 characters"))
		return
	}

	limit := 10
	if limitRaw := c.Query("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 || parsed > 100 {
			r.respondError(c, NewError(http.StatusBadRequest, "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	posts, err := r.client.SearchPosts(c.Request.Context(), q, limit)
	if err != nil {
		r.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"query": q, "posts": postsToDTO(posts)})
}
