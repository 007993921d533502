package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// mapPosts serves mirrored posts inside a bounding box for the map
// view. Answers 503 when no mirror database is configured.
func (r *Router) mapPosts(c *gin.Context) {
	if r.store == nil {
		r.respondError(c, NewError(http.StatusServiceUnavailable, "map mirror is not configured"))
		return
	}

	bounds := [4]float64{}
	for i, name := range []string{"min_lat", "max_lat", "min_lon", "max_lon"} {
		value, err := strconv.ParseFloat(c.Query(name), 64)
		if err != nil {
			r.respondError(c, NewError(http.StatusBadRequest, name+" must be a valid number"))
			return
		}
		bounds[i] = value
	}

	limit := 0
	if limitRaw := c.Query("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			r.respondError(c, NewError(http.StatusBadRequest, "limit must be between 1 and 1000"))
			return
		}
		limit = parsed
	}

	records, err := r.store.InBounds(c.Request.Context(), bounds[0], bounds[1], bounds[2], bounds[3], limit)
	if err != nil {
		r.respondError(c, err)
		return
	}

	posts := make([]mapPostDTO, 0, len(records))
	for _, record := range records {
		posts = append(posts, mapPostToDTO(record))
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
