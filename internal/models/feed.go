package models

// ViewerAnnotation is per-viewer social state for a single post.
// It is derived from the like-list, got-it-list and hidden-status
// queries and is never persisted locally. An annotation is only
// meaningful while its post is in the working set; the two are
// pruned together.
type ViewerAnnotation struct {
	Liked  bool
	GotIt  bool
	Hidden bool
}

// FilterState holds the feed filter parameters.
// A nil Center means no geo constraint is sent; the server performs
// the radius filtering when a center is present.
type FilterState struct {
	Category     Category
	FollowedOnly bool
	Center       *Coordinates
	RadiusKm     float64
}

// Coordinates is a WGS84 point
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// FollowGraph is the set of user ids the viewer follows
type FollowGraph map[int64]struct{}

// NewFollowGraph builds a follow graph from user summaries
func NewFollowGraph(following []User) FollowGraph {
	g := make(FollowGraph, len(following))
	for _, u := range following {
		g[u.ID] = struct{}{}
	}
	return g
}

// Contains reports whether the viewer follows the given user
func (g FollowGraph) Contains(userID int64) bool {
	_, ok := g[userID]
	return ok
}
