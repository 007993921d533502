package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func parseUserID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

// userPosts serves the posts authored by a user
func (r *Router) userPosts(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	posts, err := r.client.UserPosts(c.Request.Context(), userID)
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": postsToDTO(posts)})
}

// userFollowers serves a user's followers
func (r *Router) userFollowers(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	users, err := r.client.Followers(c.Request.Context(), userID)
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": usersToDTO(users)})
}

// userFollowing serves the users a user follows
func (r *Router) userFollowing(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	users, err := r.client.Following(c.Request.Context(), userID)
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": usersToDTO(users)})
}

// toggleFollow toggles the viewer's follow on a user and refreshes
// the follow-graph snapshot. The backend treats follow as a toggle;
// the response says which direction it went.
func (r *Router) toggleFollow(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		r.respondError(c, err)
		return
	}

	status, err := r.client.ToggleFollow(c.Request.Context(), userID)
	if err != nil {
		r.respondError(c, err)
		return
	}

	if err := r.sess.RefreshFollows(c.Request.Context(), r.client); err != nil {
		// The toggle itself succeeded; the snapshot catches up later
		r.logger.Warn("Follow graph refresh failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// refreshFollows reloads the follow-graph snapshot on demand
func (r *Router) refreshFollows(c *gin.Context) {
	if err := r.sess.RefreshFollows(c.Request.Context(), r.client); err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": len(r.sess.Follows())})
}

// unreadCount serves the poller's latest unread notification count
func (r *Router) unreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unread_count": r.poller.Count()})
}

// listNotifications serves the viewer's inbox
func (r *Router) listNotifications(c *gin.Context) {
	notifications, err := r.client.Notifications(c.Request.Context())
	if err != nil {
		r.respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, gin.H{
			"id":         n.ID,
			"type":       n.Type,
			"message":    n.Message,
			"actor":      userToDTO(n.Actor),
			"post_id":    n.PostID,
			"is_read":    n.IsRead,
			"created_at": n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// markAllRead marks the whole inbox read
func (r *Router) markAllRead(c *gin.Context) {
	if err := r.client.MarkAllRead(c.Request.Context()); err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
