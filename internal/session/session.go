package session

import (
	"context"
	"sync"

	"github.com/reggosong/freebies-go/internal/models"
)

// TokenStore holds the process-wide bearer token. It is read before
// every outgoing call and deleted when the backend answers 401, which
// effectively logs the user out on the next protected call.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates a token store. An empty token means anonymous
// browsing.
func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

// Token returns the current bearer token, or "" if none
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the stored token
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Invalidate deletes the stored token
func (s *TokenStore) Invalidate() {
	s.Set("")
}

// SocialService is the follow-graph lookup the session depends on
type SocialService interface {
	Following(ctx context.Context, userID int64) ([]models.User, error)
}

// Session carries the viewer identity and a follow-graph snapshot.
// It is passed explicitly into aggregator calls instead of living in
// ambient global state. A nil viewer is an anonymous session.
type Session struct {
	mu      sync.RWMutex
	viewer  *models.User
	follows models.FollowGraph
}

// New creates a session for the given viewer. Pass nil for anonymous
// browsing.
func New(viewer *models.User) *Session {
	return &Session{
		viewer:  viewer,
		follows: models.FollowGraph{},
	}
}

// Viewer returns the logged-in user, or nil for anonymous sessions
func (s *Session) Viewer() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewer
}

// Follows returns the current follow-graph snapshot
func (s *Session) Follows() models.FollowGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.follows
}

// SetFollows replaces the follow-graph snapshot
func (s *Session) SetFollows(g models.FollowGraph) {
	s.mu.Lock()
	s.follows = g
	s.mu.Unlock()
}

// RefreshFollows reloads the follow graph from the remote social
// service. Anonymous sessions keep an empty graph.
func (s *Session) RefreshFollows(ctx context.Context, svc SocialService) error {
	viewer := s.Viewer()
	if viewer == nil {
		return nil
	}

	following, err := svc.Following(ctx, viewer.ID)
	if err != nil {
		return err
	}

	s.SetFollows(models.NewFollowGraph(following))
	return nil
}
