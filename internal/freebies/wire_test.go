package freebies

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{"rfc3339", "2023-05-01T12:00:00Z", false},
		{"rfc3339 nano", "2023-05-01T12:00:00.123456Z", false},
		{"no timezone", "2023-05-01T12:00:00", false},
		{"empty", "", true},
		{"garbage", "yesterday", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTime(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTime(%q) = %v, want zero=%v", tt.input, got, tt.zero)
			}
		})
	}
}

func TestParseTimeNoTimezoneValue(t *testing.T) {
	got := parseTime("2023-05-01T12:30:45")
	want := time.Date(2023, 5, 1, 12, 30, 45, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseTime() = %v, want %v", got, want)
	}
}

func TestWirePostToModel(t *testing.T) {
	w := wirePost{
		ID:         42,
		Title:      "Sofa",
		Category:   "home_made",
		OwnerID:    9,
		Owner:      wireUser{ID: 9, Username: "reggo"},
		LikesCount: 3,
		IsGone:     true,
		CreatedAt:  "2023-05-01T12:00:00",
	}

	post := w.toModel()
	if post.ID != 42 || post.Title != "Sofa" {
		t.Errorf("post = %+v, want id 42 title Sofa", post)
	}
	if !post.Category.Valid() {
		t.Errorf("category %q did not survive conversion", post.Category)
	}
	if post.Owner.Username != "reggo" {
		t.Errorf("owner = %+v, want username reggo", post.Owner)
	}
	if !post.IsGone {
		t.Errorf("is_gone flag lost")
	}
}
