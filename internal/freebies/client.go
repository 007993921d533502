package freebies

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/internal/models"
	"github.com/reggosong/freebies-go/internal/session"
	"github.com/reggosong/freebies-go/pkg/config"
	"github.com/reggosong/freebies-go/pkg/logging"
	"github.com/reggosong/freebies-go/pkg/telemetry"
)

// Client is a typed REST client for the remote Freebies backend
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *session.TokenStore
	logger  *zap.Logger
}

// New creates a new backend client
func New(cfg *config.APIConfig, tokens *session.TokenStore) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "freebies-client"))

	client := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		logger:  logger,
	}

	logger.Info("Freebies client initialized", zap.String("url", cfg.BaseURL))

	return client, nil
}

// do performs a request and decodes the response into out (if non-nil).
// The bearer token is read from the process-wide store before every
// call; a 401 response invalidates it.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "*/*")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.remoteError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// remoteError maps a non-2xx response to a typed error
func (c *Client) remoteError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		// Session expired; the user is logged out on the next
		// protected call.
		c.tokens.Invalidate()
		c.logger.Warn("Token rejected, cleared local credential")
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	}

	var detail wireDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil {
		msg := detail.Detail
		if msg == "" {
			msg = detail.Message
		}
		return &RemoteError{Status: resp.StatusCode, Detail: msg}
	}
	return &RemoteError{Status: resp.StatusCode}
}

// ListPosts fetches the feed, filtered server-side by category and,
// when a center is present, by geo radius.
func (c *Client) ListPosts(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.list_posts")
	defer span.End()

	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", string(filter.Category))
	}
	if filter.Center != nil {
		query.Set("latitude", strconv.FormatFloat(filter.Center.Latitude, 'f', -1, 64))
		query.Set("longitude", strconv.FormatFloat(filter.Center.Longitude, 'f', -1, 64))
		query.Set("radius", strconv.FormatFloat(filter.RadiusKm, 'f', -1, 64))
	}

	var wire []wirePost
	if err := c.do(ctx, http.MethodGet, "/posts/", query, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return postsToModel(wire), nil
}

// GetPost fetches a single post with its current aggregate counts
func (c *Client) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.get_post", telemetry.WithPostID(postID))
	defer span.End()

	var wire wirePost
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%d", postID), nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", postID, err)
	}
	post := wire.toModel()
	return &post, nil
}

// SearchPosts searches posts by title or description
func (c *Client) SearchPosts(ctx context.Context, q string, limit int) ([]models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.search_posts", telemetry.WithQuery(q))
	defer span.End()

	query := url.Values{}
	query.Set("q", strings.TrimSpace(q))
	query.Set("limit", strconv.Itoa(limit))

	var wire []wirePost
	if err := c.do(ctx, http.MethodGet, "/posts/search", query, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	return postsToModel(wire), nil
}

// ToggleLike toggles the viewer's like on a post
func (c *Client) ToggleLike(ctx context.Context, postID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "freebies.toggle_like", telemetry.WithPostID(postID))
	defer span.End()

	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/like", postID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to toggle like on post %d: %w", postID, err)
	}
	return nil
}

// ToggleGotIt toggles the viewer's got-it reaction on a post
func (c *Client) ToggleGotIt(ctx context.Context, postID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "freebies.toggle_got_it", telemetry.WithPostID(postID))
	defer span.End()

	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/got-it", postID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to toggle got-it on post %d: %w", postID, err)
	}
	return nil
}

// Comment adds a comment to a post
func (c *Client) Comment(ctx context.Context, postID int64, content string) (*models.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.comment", telemetry.WithPostID(postID))
	defer span.End()

	body := map[string]string{"content": content}
	var wire wireComment
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/comment", postID), nil, body, &wire); err != nil {
		return nil, fmt.Errorf("failed to comment on post %d: %w", postID, err)
	}
	comment := wire.toModel()
	return &comment, nil
}

// DeletePost deletes a post owned by the viewer
func (c *Client) DeletePost(ctx context.Context, postID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "freebies.delete_post", telemetry.WithPostID(postID))
	defer span.End()

	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", postID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete post %d: %w", postID, err)
	}
	return nil
}

// ReportGone reports that a post's item is no longer available. The
// flag is global to the post and never reverts.
func (c *Client) ReportGone(ctx context.Context, postID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "freebies.report_gone", telemetry.WithPostID(postID))
	defer span.End()

	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/report-gone", postID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to report post %d gone: %w", postID, err)
	}
	return nil
}

// HidePost hides a post from the viewer's feed. Hiding is per-viewer,
// not a global post property.
func (c *Client) HidePost(ctx context.Context, postID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "freebies.hide_post", telemetry.WithPostID(postID))
	defer span.End()

	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/hide", postID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to hide post %d: %w", postID, err)
	}
	return nil
}

// UnhidePost removes the viewer's hide on a post
func (c *Client) UnhidePost(ctx context.Context, postID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "freebies.unhide_post", telemetry.WithPostID(postID))
	defer span.End()

	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d/hide", postID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to unhide post %d: %w", postID, err)
	}
	return nil
}

// HiddenStatus reports whether the viewer has hidden the post
func (c *Client) HiddenStatus(ctx context.Context, postID int64) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.hidden_status", telemetry.WithPostID(postID))
	defer span.End()

	var wire wireHiddenStatus
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%d/hidden-status", postID), nil, nil, &wire); err != nil {
		return false, fmt.Errorf("failed to get hidden status of post %d: %w", postID, err)
	}
	return wire.IsHidden, nil
}

// PostLikes fetches the users who liked a post
func (c *Client) PostLikes(ctx context.Context, postID int64) ([]models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.post_likes", telemetry.WithPostID(postID))
	defer span.End()

	var wire []wireUser
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%d/likes", postID), nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get likes of post %d: %w", postID, err)
	}
	return usersToModel(wire), nil
}

// PostGotIt fetches the users who claimed a post
func (c *Client) PostGotIt(ctx context.Context, postID int64) ([]models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.post_got_it", telemetry.WithPostID(postID))
	defer span.End()

	var wire []wireUser
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%d/got-it", postID), nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get got-it list of post %d: %w", postID, err)
	}
	return usersToModel(wire), nil
}

// Me fetches the profile of the token's owner
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.me")
	defer span.End()

	var wire wireUser
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	user := wire.toModel()
	return &user, nil
}

// UserPosts fetches the posts authored by a user
func (c *Client) UserPosts(ctx context.Context, userID int64) ([]models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.user_posts", telemetry.WithUserID(userID))
	defer span.End()

	var wire []wirePost
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/posts", userID), nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get posts of user %d: %w", userID, err)
	}
	return postsToModel(wire), nil
}

// Followers fetches the followers of a user
func (c *Client) Followers(ctx context.Context, userID int64) ([]models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.followers", telemetry.WithUserID(userID))
	defer span.End()

	var wire []wireUser
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/followers", userID), nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get followers of user %d: %w", userID, err)
	}
	return usersToModel(wire), nil
}

// Following fetches the users a user follows
func (c *Client) Following(ctx context.Context, userID int64) ([]models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.following", telemetry.WithUserID(userID))
	defer span.End()

	var wire []wireUser
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/following", userID), nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get following of user %d: %w", userID, err)
	}
	return usersToModel(wire), nil
}

// ToggleFollow toggles the viewer's follow on a user. The backend has
// a single toggle endpoint for both directions; the returned status is
// "followed" or "unfollowed" depending on the state after the call.
func (c *Client) ToggleFollow(ctx context.Context, userID int64) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.toggle_follow", telemetry.WithUserID(userID))
	defer span.End()

	var wire wireFollowStatus
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/follow", userID), nil, nil, &wire); err != nil {
		return "", fmt.Errorf("failed to toggle follow on user %d: %w", userID, err)
	}
	return wire.Status, nil
}

// Notifications fetches the viewer's inbox
func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.notifications")
	defer span.End()

	var wire []wireNotification
	if err := c.do(ctx, http.MethodGet, "/users/notifications/", nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	notifications := make([]models.Notification, 0, len(wire))
	for _, w := range wire {
		notifications = append(notifications, w.toModel())
	}
	return notifications, nil
}

// UnreadCount fetches the viewer's unread notification count. The
// backend answers with a bare integer.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "freebies.unread_count")
	defer span.End()

	var count int
	if err := c.do(ctx, http.MethodGet, "/users/notifications/unread-count", nil, nil, &count); err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return count, nil
}

// MarkAllRead marks every notification in the inbox as read
func (c *Client) MarkAllRead(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "freebies.mark_all_read")
	defer span.End()

	if err := c.do(ctx, http.MethodPut, "/users/notifications/read-all", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// IsAuthError reports whether err is a credential problem rather than
// a transient failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
