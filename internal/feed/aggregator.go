package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reggosong/freebies-go/internal/models"
	"github.com/reggosong/freebies-go/internal/session"
	"github.com/reggosong/freebies-go/pkg/config"
	"github.com/reggosong/freebies-go/pkg/logging"
	"github.com/reggosong/freebies-go/pkg/telemetry"
)

var (
	// ErrLoadFailed means the initial post-list request failed and the
	// load failed wholesale. Annotation sub-query failures never cause
	// this; they degrade to false defaults.
	ErrLoadFailed = errors.New("failed to load posts")

	// ErrStaleLoad means a newer load was initiated while this one was
	// in flight. The result was discarded and visible state is
	// untouched.
	ErrStaleLoad = errors.New("stale load discarded")

	// ErrUnknownPost means the post is not in the working set
	ErrUnknownPost = errors.New("post not in working set")
)

// PostService is the slice of the remote backend the aggregator
// consumes.
type PostService interface {
	ListPosts(ctx context.Context, filter models.FilterState) ([]models.Post, error)
	GetPost(ctx context.Context, postID int64) (*models.Post, error)
	SearchPosts(ctx context.Context, q string, limit int) ([]models.Post, error)
	ToggleLike(ctx context.Context, postID int64) error
	ToggleGotIt(ctx context.Context, postID int64) error
	ReportGone(ctx context.Context, postID int64) error
	HidePost(ctx context.Context, postID int64) error
	UnhidePost(ctx context.Context, postID int64) error
	HiddenStatus(ctx context.Context, postID int64) (bool, error)
	PostLikes(ctx context.Context, postID int64) ([]models.User, error)
	PostGotIt(ctx context.Context, postID int64) ([]models.User, error)
}

// Snapshot is the displayable working set: posts in service order plus
// per-post viewer annotations. Annotations exist only for posts in
// Posts; the two are pruned together.
type Snapshot struct {
	Posts       []models.Post
	Annotations map[int64]models.ViewerAnnotation
}

// Aggregator produces the list of posts to render for a filter state
// and viewer, and applies local mutations without a full resync.
// Mutations are last-writer-wins from a single logical caller; the
// internal mutex only protects the committed snapshot against loads
// resolving on other goroutines.
type Aggregator struct {
	svc     PostService
	workers int
	logger  *zap.Logger

	loadSeq atomic.Uint64

	mu           sync.Mutex
	committedSeq uint64
	snap         Snapshot
}

// NewAggregator creates a feed aggregator
func NewAggregator(svc PostService, cfg *config.FeedConfig) *Aggregator {
	workers := cfg.AnnotationWorkers
	if workers <= 0 {
		workers = 8
	}

	return &Aggregator{
		svc:     svc,
		workers: workers,
		logger:  logging.GetLogger().With(zap.String("component", "feed-aggregator")),
		snap:    Snapshot{Annotations: map[int64]models.ViewerAnnotation{}},
	}
}

// Current returns a copy of the committed snapshot
func (a *Aggregator) Current() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Load fetches the feed for the given filter and session, annotates it
// from the viewer's perspective, and commits the result. Concurrent
// loads do not interleave: only the most recently initiated load may
// commit; a slower, earlier-started load that resolves later returns
// ErrStaleLoad and leaves visible state untouched.
func (a *Aggregator) Load(ctx context.Context, filter models.FilterState, sess *session.Session) (*Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.load")
	defer span.End()

	seq := a.loadSeq.Add(1)

	posts, err := a.svc.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	var viewer *models.User
	var follows models.FollowGraph
	if sess != nil {
		viewer = sess.Viewer()
		follows = sess.Follows()
	}

	// Followed-only intersects with the follow graph; an empty graph
	// yields an empty feed, not "show everyone".
	if filter.FollowedOnly {
		kept := posts[:0]
		for _, post := range posts {
			if follows.Contains(post.Owner.ID) {
				kept = append(kept, post)
			}
		}
		posts = kept
	}

	annotations := a.annotate(ctx, viewer, posts)

	// Posts the viewer has hidden never reach the returned list, and
	// their annotations go with them.
	visible := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if annotations[post.ID].Hidden {
			delete(annotations, post.ID)
			continue
		}
		visible = append(visible, post)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if seq != a.loadSeq.Load() || seq <= a.committedSeq {
		a.logger.Debug("Discarding stale load", zap.Uint64("seq", seq))
		return nil, ErrStaleLoad
	}

	a.committedSeq = seq
	a.snap = Snapshot{Posts: visible, Annotations: annotations}
	return a.snapshotLocked(), nil
}

// annotate computes viewer annotations for every post. The three
// membership queries per post run concurrently and independently; a
// failed sub-query degrades that flag to false instead of failing the
// load. Anonymous viewers get an empty annotation map.
func (a *Aggregator) annotate(ctx context.Context, viewer *models.User, posts []models.Post) map[int64]models.ViewerAnnotation {
	annotations := make(map[int64]models.ViewerAnnotation, len(posts))
	if viewer == nil || len(posts) == 0 {
		return annotations
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(a.workers)

	for _, post := range posts {
		postID := post.ID
		g.Go(func() error {
			ann := a.annotateOne(ctx, viewer.ID, postID)
			mu.Lock()
			annotations[postID] = ann
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return annotations
}

func (a *Aggregator) annotateOne(ctx context.Context, viewerID, postID int64) models.ViewerAnnotation {
	var liked, gotIt, hidden bool

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		users, err := a.svc.PostLikes(ctx, postID)
		if err != nil {
			a.logger.Debug("Like lookup failed", zap.Int64("post_id", postID), zap.Error(err))
			return
		}
		liked = containsUser(users, viewerID)
	}()

	go func() {
		defer wg.Done()
		users, err := a.svc.PostGotIt(ctx, postID)
		if err != nil {
			a.logger.Debug("Got-it lookup failed", zap.Int64("post_id", postID), zap.Error(err))
			return
		}
		gotIt = containsUser(users, viewerID)
	}()

	go func() {
		defer wg.Done()
		isHidden, err := a.svc.HiddenStatus(ctx, postID)
		if err != nil {
			// Treated as not hidden, not fatal
			a.logger.Debug("Hidden-status lookup failed", zap.Int64("post_id", postID), zap.Error(err))
			return
		}
		hidden = isHidden
	}()

	wg.Wait()

	return models.ViewerAnnotation{Liked: liked, GotIt: gotIt, Hidden: hidden}
}

// ToggleLike toggles the viewer's like on a post in the working set.
// The remote toggle runs first; on remote failure nothing changes
// locally. On success the post's counts are refreshed from the
// backend and the local flag flips; the next full Load reconciles any
// remaining drift.
func (a *Aggregator) ToggleLike(ctx context.Context, postID int64) (*Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.toggle_like", telemetry.WithPostID(postID))
	defer span.End()

	return a.toggleReaction(ctx, postID, a.svc.ToggleLike, func(ann *models.ViewerAnnotation) {
		ann.Liked = !ann.Liked
	})
}

// ToggleGotIt toggles the viewer's got-it reaction, with the same
// contract as ToggleLike.
func (a *Aggregator) ToggleGotIt(ctx context.Context, postID int64) (*Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.toggle_got_it", telemetry.WithPostID(postID))
	defer span.End()

	return a.toggleReaction(ctx, postID, a.svc.ToggleGotIt, func(ann *models.ViewerAnnotation) {
		ann.GotIt = !ann.GotIt
	})
}

func (a *Aggregator) toggleReaction(ctx context.Context, postID int64, toggle func(context.Context, int64) error, flip func(*models.ViewerAnnotation)) (*Snapshot, error) {
	if !a.contains(postID) {
		return nil, ErrUnknownPost
	}

	if err := toggle(ctx, postID); err != nil {
		return nil, err
	}

	// Authoritative count refresh. The toggle already succeeded, so a
	// failed refetch only leaves counts stale until the next Load.
	updated, err := a.svc.GetPost(ctx, postID)
	if err != nil {
		a.logger.Warn("Count refresh failed after toggle", zap.Int64("post_id", postID), zap.Error(err))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.snap.Posts {
		if a.snap.Posts[i].ID != postID {
			continue
		}
		if updated != nil {
			a.snap.Posts[i] = *updated
		}
		ann := a.snap.Annotations[postID]
		flip(&ann)
		a.snap.Annotations[postID] = ann
		break
	}

	return a.snapshotLocked(), nil
}

// ReportGone marks a post's item as no longer available. The remote
// report runs first; on success the post is refetched so the gone flag
// and counts come from the backend, with a local flag fallback if the
// refetch fails. The post stays in the working set; rendering gone
// posts differently is the caller's concern.
func (a *Aggregator) ReportGone(ctx context.Context, postID int64) (*Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.report_gone", telemetry.WithPostID(postID))
	defer span.End()

	if !a.contains(postID) {
		return nil, ErrUnknownPost
	}

	if err := a.svc.ReportGone(ctx, postID); err != nil {
		return nil, err
	}

	updated, err := a.svc.GetPost(ctx, postID)
	if err != nil {
		a.logger.Warn("Post refresh failed after gone report", zap.Int64("post_id", postID), zap.Error(err))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.snap.Posts {
		if a.snap.Posts[i].ID != postID {
			continue
		}
		if updated != nil {
			a.snap.Posts[i] = *updated
		} else {
			a.snap.Posts[i].IsGone = true
		}
		break
	}

	return a.snapshotLocked(), nil
}

// Hide hides a post from the viewer's feed. On success the post
// leaves the working set together with its annotation; on failure the
// list is unchanged and the error surfaces.
func (a *Aggregator) Hide(ctx context.Context, postID int64) (*Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.hide", telemetry.WithPostID(postID))
	defer span.End()

	if !a.contains(postID) {
		return nil, ErrUnknownPost
	}

	if err := a.svc.HidePost(ctx, postID); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropLocked(postID)
	return a.snapshotLocked(), nil
}

// Unhide removes the viewer's hide, then triggers a full Load to pick
// the post back up in service order. Local re-insertion would require
// reproducing the service's ordering rule, which the client does not
// know.
func (a *Aggregator) Unhide(ctx context.Context, postID int64, filter models.FilterState, sess *session.Session) (*Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.unhide", telemetry.WithPostID(postID))
	defer span.End()

	if err := a.svc.UnhidePost(ctx, postID); err != nil {
		return nil, err
	}

	return a.Load(ctx, filter, sess)
}

// Remove drops a post deleted by its owner from the working set. The
// delete call itself is the caller's concern. Idempotent if the post
// is absent.
func (a *Aggregator) Remove(postID int64) *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropLocked(postID)
	return a.snapshotLocked()
}

func (a *Aggregator) contains(postID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, post := range a.snap.Posts {
		if post.ID == postID {
			return true
		}
	}
	return false
}

func (a *Aggregator) dropLocked(postID int64) {
	kept := a.snap.Posts[:0]
	for _, post := range a.snap.Posts {
		if post.ID != postID {
			kept = append(kept, post)
		}
	}
	a.snap.Posts = kept
	delete(a.snap.Annotations, postID)
}

func (a *Aggregator) snapshotLocked() *Snapshot {
	posts := make([]models.Post, len(a.snap.Posts))
	copy(posts, a.snap.Posts)

	annotations := make(map[int64]models.ViewerAnnotation, len(a.snap.Annotations))
	for id, ann := range a.snap.Annotations {
		annotations[id] = ann
	}

	return &Snapshot{Posts: posts, Annotations: annotations}
}

func containsUser(users []models.User, userID int64) bool {
	for _, u := range users {
		if u.ID == userID {
			return true
		}
	}
	return false
}
