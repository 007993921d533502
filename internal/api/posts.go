package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func parsePostID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewError(http.StatusBadRequest, "invalid post id")
	}
	return id, nil
}

// toggleLike toggles the viewer's like and returns the updated snapshot
func (r *Router) toggleLike(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	snap, err := r.agg.ToggleLike(c.Request.Context(), postID)
	if err != nil {
		r.respondError(c, err)
		return
	}
	r.invalidateFeedCache(c.Request.Context())
	c.JSON(http.StatusOK, snapshotToDTO(snap))
}

// toggleGotIt toggles the viewer's got-it reaction
func (r *Router) toggleGotIt(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	snap, err := r.agg.ToggleGotIt(c.Request.Context(), postID)
	if err != nil {
		r.respondError(c, err)
		return
	}
	r.invalidateFeedCache(c.Request.Context())
	c.JSON(http.StatusOK, snapshotToDTO(snap))
}

// reportGone marks the post's item as no longer available
func (r *Router) reportGone(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	snap, err := r.agg.ReportGone(c.Request.Context(), postID)
	if err != nil {
		r.respondError(c, err)
		return
	}
	r.invalidateFeedCache(c.Request.Context())
	c.JSON(http.StatusOK, snapshotToDTO(snap))
}

// hidePost hides a post from the viewer's feed
func (r *Router) hidePost(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	snap, err := r.agg.Hide(c.Request.Context(), postID)
	if err != nil {
		r.respondError(c, err)
		return
	}
	r.invalidateFeedCache(c.Request.Context())
	c.JSON(http.StatusOK, snapshotToDTO(snap))
}

// unhidePost removes a hide and reloads the feed so the post comes
// back in service order. The same filter parameters as /feed apply.
func (r *Router) unhidePost(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	snap, err := r.agg.Unhide(c.Request.Context(), postID, filter, r.sess)
	if err != nil {
		r.respondError(c, err)
		return
	}
	r.invalidateFeedCache(c.Request.Context())
	c.JSON(http.StatusOK, snapshotToDTO(snap))
}

// deletePost deletes the viewer's own post and drops it locally
func (r *Router) deletePost(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	if err := r.client.DeletePost(c.Request.Context(), postID); err != nil {
		r.respondError(c, err)
		return
	}

	r.invalidateFeedCache(c.Request.Context())
	c.JSON(http.StatusOK, snapshotToDTO(r.agg.Remove(postID)))
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

// commentPost adds a comment via the remote backend
func (r *Router) commentPost(c *gin.Context) {
	postID, err := parsePostID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		r.respondError(c, NewError(http.StatusBadRequest, "content is required"))
		return
	}

	comment, err := r.client.Comment(c.Request.Context(), postID, req.Content)
	if err != nil {
		r.respondError(c, err)
		return
	}
	r.invalidateFeedCache(c.Request.Context())

	c.JSON(http.StatusCreated, gin.H{
		"id":      comment.ID,
		"post_id": comment.PostID,
		"content": comment.Content,
		"author":  userToDTO(comment.Author),
	})
}
