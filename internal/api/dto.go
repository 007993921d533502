package api

import (
	"time"

	"github.com/reggosong/freebies-go/internal/feed"
	"github.com/reggosong/freebies-go/internal/mirror"
	"github.com/reggosong/freebies-go/internal/models"
)

type userDTO struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	DisplayName       string `json:"display_name,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

type postDTO struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	PhotoURL      string  `json:"photo_url,omitempty"`
	Address       string  `json:"address,omitempty"`
	City          string  `json:"city,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	OwnerID       int64   `json:"owner_id"`
	Owner         userDTO `json:"owner"`
	CreatedAt     string  `json:"created_at"`
	LikesCount    int     `json:"likes_count"`
	CommentsCount int     `json:"comments_count"`
	GotItCount    int     `json:"got_it_count"`
	IsGone        bool    `json:"is_gone"`
}

type annotationDTO struct {
	Liked  bool `json:"liked"`
	GotIt  bool `json:"got_it"`
	Hidden bool `json:"hidden"`
}

type snapshotDTO struct {
	Posts       []postDTO               `json:"posts"`
	Annotations map[int64]annotationDTO `json:"annotations"`
}

func userToDTO(u models.User) userDTO {
	return userDTO{
		ID:                u.ID,
		Username:          u.Username,
		DisplayName:       u.DisplayName,
		ProfilePictureURL: u.ProfilePictureURL,
	}
}

func postToDTO(p models.Post) postDTO {
	created := ""
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt.Format(time.RFC3339)
	}
	return postDTO{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		Category:      string(p.Category),
		PhotoURL:      p.PhotoURL,
		Address:       p.Address,
		City:          p.City,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		OwnerID:       p.OwnerID,
		Owner:         userToDTO(p.Owner),
		CreatedAt:     created,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		GotItCount:    p.GotItCount,
		IsGone:        p.IsGone,
	}
}

func usersToDTO(users []models.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userToDTO(u))
	}
	return out
}

func postsToDTO(posts []models.Post) []postDTO {
	out := make([]postDTO, 0, len(posts))
	for _, p := range posts {
		out = append(out, postToDTO(p))
	}
	return out
}

func snapshotToDTO(snap *feed.Snapshot) snapshotDTO {
	annotations := make(map[int64]annotationDTO, len(snap.Annotations))
	for id, ann := range snap.Annotations {
		annotations[id] = annotationDTO{Liked: ann.Liked, GotIt: ann.GotIt, Hidden: ann.Hidden}
	}
	return snapshotDTO{
		Posts:       postsToDTO(snap.Posts),
		Annotations: annotations,
	}
}

type mapPostDTO struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Category      string  `json:"category"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	City          string  `json:"city,omitempty"`
	OwnerUsername string  `json:"owner_username,omitempty"`
	LikesCount    int     `json:"likes_count"`
	GotItCount    int     `json:"got_it_count"`
	IsGone        bool    `json:"is_gone"`
}

func mapPostToDTO(r mirror.PostRecord) mapPostDTO {
	return mapPostDTO{
		ID:            r.RemoteID,
		Title:         r.Title,
		Category:      r.Category,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		City:          r.City,
		OwnerUsername: r.OwnerUsername,
		LikesCount:    r.LikesCount,
		GotItCount:    r.GotItCount,
		IsGone:        r.IsGone,
	}
}
