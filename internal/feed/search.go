package feed

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/internal/models"
	"github.com/reggosong/freebies-go/pkg/config"
	"github.com/reggosong/freebies-go/pkg/logging"
)

// minQueryLen is the shortest query that enters search mode
const minQueryLen = 2

// SearchResult is delivered to the searcher's callback. A zero Query
// means search mode was left and the filtered feed view applies again.
type SearchResult struct {
	Query string
	Posts []models.Post
}

// Active reports whether the result keeps search mode on
func (r SearchResult) Active() bool {
	return r.Query != ""
}

// Searcher debounces interactive search input. A query is dispatched
// only after the configured quiescence window passes with no further
// keystrokes, and at most one outstanding request's result is applied:
// a result for a query superseded by a newer one is discarded, never
// delivered (last-write-wins by issuance order, not arrival order).
type Searcher struct {
	svc      PostService
	debounce time.Duration
	limit    int
	deliver  func(SearchResult)
	logger   *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewSearcher creates a searcher. deliver is invoked from a timer
// goroutine whenever a result is applied or search mode is left.
func NewSearcher(svc PostService, cfg *config.FeedConfig, deliver func(SearchResult)) *Searcher {
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = 10
	}

	return &Searcher{
		svc:      svc,
		debounce: cfg.SearchDebounce,
		limit:    limit,
		deliver:  deliver,
		logger:   logging.GetLogger().With(zap.String("component", "feed-search")),
	}
}

// SetQuery records a keystroke. Any keystroke within the debounce
// window cancels and restarts the timer, so only the final query after
// a full quiet window is dispatched. Queries shorter than two
// characters clear search mode immediately and invalidate any
// outstanding request.
func (s *Searcher) SetQuery(ctx context.Context, q string) {
	q = strings.TrimSpace(q)

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if utf8.RuneCountInString(q) < minQueryLen {
		s.seq++
		s.mu.Unlock()
		s.deliver(SearchResult{})
		return
	}

	s.timer = time.AfterFunc(s.debounce, func() {
		s.dispatch(ctx, q)
	})
	s.mu.Unlock()
}

// Close cancels any pending dispatch and invalidates outstanding
// results. Safe to call more than once.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
}

func (s *Searcher) dispatch(ctx context.Context, q string) {
	s.mu.Lock()
	s.seq++
	issued := s.seq
	s.mu.Unlock()

	posts, err := s.svc.SearchPosts(ctx, q, s.limit)
	if err != nil {
		// Search mode stays on with an empty result list
		s.logger.Warn("Search failed", zap.String("query", q), zap.Error(err))
		posts = nil
	}

	s.mu.Lock()
	stale := issued != s.seq
	s.mu.Unlock()
	if stale {
		return
	}

	s.deliver(SearchResult{Query: q, Posts: posts})
}
