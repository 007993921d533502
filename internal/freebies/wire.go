package freebies

import (
	"time"

	"github.com/reggosong/freebies-go/internal/models"
)

// Wire schemas for the backend's JSON payloads. Decoding happens at
// this boundary only; everything past it is a typed entity.

type wireUser struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	DisplayName       string `json:"display_name"`
	Bio               string `json:"bio"`
	ProfilePictureURL string `json:"profile_picture_url"`
	CreatedAt         string `json:"created_at"`
}

type wirePost struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	PhotoURL      string   `json:"photo_url"`
	Address       string   `json:"address"`
	City          string   `json:"city"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	OwnerID       int64    `json:"owner_id"`
	Owner         wireUser `json:"owner"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	LikesCount    int      `json:"likes_count"`
	CommentsCount int      `json:"comments_count"`
	GotItCount    int      `json:"got_it_count"`
	IsGone        bool     `json:"is_gone"`
}

type wireComment struct {
	ID        int64    `json:"id"`
	PostID    int64    `json:"post_id"`
	AuthorID  int64    `json:"author_id"`
	Author    wireUser `json:"author"`
	Content   string   `json:"content"`
	CreatedAt string   `json:"created_at"`
}

type wireNotification struct {
	ID        int64    `json:"id"`
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	ActorID   int64    `json:"actor_id"`
	Actor     wireUser `json:"actor"`
	PostID    int64    `json:"post_id"`
	IsRead    bool     `json:"is_read"`
	CreatedAt string   `json:"created_at"`
}

type wireHiddenStatus struct {
	IsHidden bool `json:"is_hidden"`
}

type wireFollowStatus struct {
	Status string `json:"status"`
}

type wireDetail struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// parseTime parses the backend's timestamps. Malformed or empty
// values decode to the zero time rather than failing the payload.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (w wireUser) toModel() models.User {
	return models.User{
		ID:                w.ID,
		Username:          w.Username,
		Email:             w.Email,
		DisplayName:       w.DisplayName,
		Bio:               w.Bio,
		ProfilePictureURL: w.ProfilePictureURL,
		CreatedAt:         parseTime(w.CreatedAt),
	}
}

func (w wirePost) toModel() models.Post {
	return models.Post{
		ID:            w.ID,
		Title:         w.Title,
		Description:   w.Description,
		Category:      models.Category(w.Category),
		PhotoURL:      w.PhotoURL,
		Address:       w.Address,
		City:          w.City,
		Latitude:      w.Latitude,
		Longitude:     w.Longitude,
		OwnerID:       w.OwnerID,
		Owner:         w.Owner.toModel(),
		CreatedAt:     parseTime(w.CreatedAt),
		UpdatedAt:     parseTime(w.UpdatedAt),
		LikesCount:    w.LikesCount,
		CommentsCount: w.CommentsCount,
		GotItCount:    w.GotItCount,
		IsGone:        w.IsGone,
	}
}

func (w wireComment) toModel() models.Comment {
	return models.Comment{
		ID:        w.ID,
		PostID:    w.PostID,
		AuthorID:  w.AuthorID,
		Author:    w.Author.toModel(),
		Content:   w.Content,
		CreatedAt: parseTime(w.CreatedAt),
	}
}

func (w wireNotification) toModel() models.Notification {
	return models.Notification{
		ID:        w.ID,
		Type:      w.Type,
		Message:   w.Message,
		ActorID:   w.ActorID,
		Actor:     w.Actor.toModel(),
		PostID:    w.PostID,
		IsRead:    w.IsRead,
		CreatedAt: parseTime(w.CreatedAt),
	}
}

func postsToModel(wire []wirePost) []models.Post {
	posts := make([]models.Post, 0, len(wire))
	for _, w := range wire {
		posts = append(posts, w.toModel())
	}
	return posts
}

func usersToModel(wire []wireUser) []models.User {
	users := make([]models.User, 0, len(wire))
	for _, w := range wire {
		users = append(users, w.toModel())
	}
	return users
}
