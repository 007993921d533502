package models

import (
	"time"
)

// Category is a post category
type Category string

// Post categories
const (
	CategoryLeftovers  Category = "leftovers"
	CategoryNew        Category = "new"
	CategoryRestaurant Category = "restaurant"
	CategoryHomeMade   Category = "home_made"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryLeftovers, CategoryNew, CategoryRestaurant, CategoryHomeMade:
		return true
	}
	return false
}

// Post represents a shared item offered on the feed
type Post struct {
	ID          int64
	Title       string
	Description string
	Category    Category
	PhotoURL    string
	Address     string
	City        string
	Latitude    float64
	Longitude   float64
	OwnerID     int64
	Owner       User
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Aggregate counts maintained server-side; refreshed on interaction
	LikesCount    int
	CommentsCount int
	GotItCount    int

	// IsGone is owner-reported: the item is no longer available.
	// Set once, never reverts.
	IsGone bool
}

// Comment represents a comment on a post
type Comment struct {
	ID        int64
	PostID    int64
	AuthorID  int64
	Author    User
	Content   string
	CreatedAt time.Time
}
