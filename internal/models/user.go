package models

import "time"

// User represents a Freebies account
type User struct {
	ID                int64
	Username          string
	Email             string
	DisplayName       string
	Bio               string
	ProfilePictureURL string
	CreatedAt         time.Time
}
