package models

import "time"

// Notification types reported by the backend
const (
	NotifyTypeLike    = "like"
	NotifyTypeComment = "comment"
	NotifyTypeGotIt   = "got_it"
	NotifyTypeFollow  = "follow"
)

// Notification represents an inbox entry for the viewer
type Notification struct {
	ID        int64
	Type      string
	Message   string
	ActorID   int64
	Actor     User
	PostID    int64
	IsRead    bool
	CreatedAt time.Time
}
