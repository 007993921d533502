package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/reggosong/freebies-go/internal/models"
	"github.com/reggosong/freebies-go/internal/session"
	"github.com/reggosong/freebies-go/pkg/config"
)

type fakePostService struct {
	mu    sync.Mutex
	calls map[string]int

	listPostsFn    func(ctx context.Context, filter models.FilterState) ([]models.Post, error)
	getPostFn      func(ctx context.Context, postID int64) (*models.Post, error)
	searchPostsFn  func(ctx context.Context, q string, limit int) ([]models.Post, error)
	toggleLikeFn   func(ctx context.Context, postID int64) error
	toggleGotItFn  func(ctx context.Context, postID int64) error
	reportGoneFn   func(ctx context.Context, postID int64) error
	hidePostFn     func(ctx context.Context, postID int64) error
	unhidePostFn   func(ctx context.Context, postID int64) error
	hiddenStatusFn func(ctx context.Context, postID int64) (bool, error)
	postLikesFn    func(ctx context.Context, postID int64) ([]models.User, error)
	postGotItFn    func(ctx context.Context, postID int64) ([]models.User, error)
}

func (f *fakePostService) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakePostService) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePostService) ListPosts(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
	f.record("ListPosts")
	if f.listPostsFn != nil {
		return f.listPostsFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakePostService) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	f.record("GetPost")
	if f.getPostFn != nil {
		return f.getPostFn(ctx, postID)
	}
	return nil, errors.New("no post")
}

func (f *fakePostService) SearchPosts(ctx context.Context, q string, limit int) ([]models.Post, error) {
	f.record("SearchPosts")
	if f.searchPostsFn != nil {
		return f.searchPostsFn(ctx, q, limit)
	}
	return nil, nil
}

func (f *fakePostService) ToggleLike(ctx context.Context, postID int64) error {
	f.record("ToggleLike")
	if f.toggleLikeFn != nil {
		return f.toggleLikeFn(ctx, postID)
	}
	return nil
}

func (f *fakePostService) ToggleGotIt(ctx context.Context, postID int64) error {
	f.record("ToggleGotIt")
	if f.toggleGotItFn != nil {
		return f.toggleGotItFn(ctx, postID)
	}
	return nil
}

func (f *fakePostService) ReportGone(ctx context.Context, postID int64) error {
	f.record("ReportGone")
	if f.reportGoneFn != nil {
		return f.reportGoneFn(ctx, postID)
	}
	return nil
}

func (f *fakePostService) HidePost(ctx context.Context, postID int64) error {
	f.record("HidePost")
	if f.hidePostFn != nil {
		return f.hidePostFn(ctx, postID)
	}
	return nil
}

func (f *fakePostService) UnhidePost(ctx context.Context, postID int64) error {
	f.record("UnhidePost")
	if f.unhidePostFn != nil {
		return f.unhidePostFn(ctx, postID)
	}
	return nil
}

func (f *fakePostService) HiddenStatus(ctx context.Context, postID int64) (bool, error) {
	f.record("HiddenStatus")
	if f.hiddenStatusFn != nil {
		return f.hiddenStatusFn(ctx, postID)
	}
	return false, nil
}

func (f *fakePostService) PostLikes(ctx context.Context, postID int64) ([]models.User, error) {
	f.record("PostLikes")
	if f.postLikesFn != nil {
		return f.postLikesFn(ctx, postID)
	}
	return nil, nil
}

func (f *fakePostService) PostGotIt(ctx context.Context, postID int64) ([]models.User, error) {
	f.record("PostGotIt")
	if f.postGotItFn != nil {
		return f.postGotItFn(ctx, postID)
	}
	return nil, nil
}

func testFeedConfig() *config.FeedConfig {
	return &config.FeedConfig{
		SearchDebounce:    40 * time.Millisecond,
		SearchLimit:       10,
		AnnotationWorkers: 4,
	}
}

func makePost(id, ownerID int64) models.Post {
	return models.Post{
		ID:       id,
		Title:    fmt.Sprintf("post-%d", id),
		Category: models.CategoryLeftovers,
		OwnerID:  ownerID,
		Owner:    models.User{ID: ownerID, Username: fmt.Sprintf("user-%d", ownerID)},
	}
}

func postIDs(posts []models.Post) []int64 {
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadFollowedOnlyEmptyGraph(t *testing.T) {
	svc := &fakePostService{
		listPostsFn: func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
			return []models.Post{makePost(1, 10), makePost(2, 11)}, nil
		},
	}
	agg := NewAggregator(svc, testFeedConfig())
	sess := session.New(&models.User{ID: 7})

	snap, err := agg.Load(context.Background(), models.FilterState{FollowedOnly: true}, sess)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Posts) != 0 {
		t.Errorf("Load() with empty follow graph returned %d posts, want 0", len(snap.Posts))
	}
}

func TestLoadFollowedOnlyIntersectsGraph(t *testing.T) {
	svc := &fakePostService{
		listPostsFn: func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
			return []models.Post{makePost(1, 10), makePost(2, 11), makePost(3, 10)}, nil
		},
	}
	agg := NewAggregator(svc, testFeedConfig())
	sess := session.New(&models.User{ID: 7})
	sess.SetFollows(models.FollowGraph{10: {}})

	snap, err := agg.Load(context.Background(), models.FilterState{FollowedOnly: true}, sess)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !sameIDs(postIDs(snap.Posts), []int64{1, 3}) {
		t.Errorf("Load() posts = %v, want [1 3]", postIDs(snap.Posts))
	}
}

func TestLoadAnnotatesAndExcludesHidden(t *testing.T) {
	// Post service returns [1,2,3]; the viewer likes post 2 and has
	// hidden post 3.
	viewer := models.User{ID: 7}
	svc := &fakePostService{
		listPostsFn: func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
			return []models.Post{makePost(1, 10), makePost(2, 11), makePost(3, 12)}, nil
		},
		postLikesFn: func(ctx context.Context, postID int64) ([]models.User, error) {
			if postID == 2 {
				return []models.User{viewer}, nil
			}
			return nil, nil
		},
		hiddenStatusFn: func(ctx context.Context, postID int64) (bool, error) {
			return postID == 3, nil
		},
	}
	agg := NewAggregator(svc, testFeedConfig())
	sess := session.New(&viewer)

	snap, err := agg.Load(context.Background(), models.FilterState{Category: models.CategoryLeftovers}, sess)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !sameIDs(postIDs(snap.Posts), []int64{1, 2}) {
		t.Fatalf("Load() posts = %v, want [1 2]", postIDs(snap.Posts))
	}
	if !snap.Annotations[2].Liked {
		t.Errorf("annotations[2].Liked = false, want true")
	}
	if snap.Annotations[1].Liked {
		t.Errorf("annotations[1].Liked = true, want false")
	}
	if _, ok := snap.Annotations[3]; ok {
		t.Errorf("annotation for hidden post 3 was retained, want pruned")
	}
}

func TestLoadAnonymousViewerEmptyAnnotations(t *testing.T) {
	svc := &fakePostService{
		listPostsFn: func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
			return []models.Post{makePost(1, 10)}, nil
		},
	}
	agg := NewAggregator(svc, testFeedConfig())

	snap, err := agg.Load(context.Background(), models.FilterState{}, session.New(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Posts) != 1 {
		t.Fatalf("Load() returned %d posts, want 1", len(snap.Posts))
	}
	if len(snap.Annotations) != 0 {
		t.Errorf("anonymous Load() produced %d annotations, want 0", len(snap.Annotations))
	}
	if svc.count("PostLikes") != 0 {
		t.Errorf("anonymous Load() queried like membership %d times, want 0", svc.count("PostLikes"))
	}
}

func TestLoadListFailure(t *testing.T) {
	svc := &fakePostService{
		listPostsFn: func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
			return nil, errors.New("connection refused")
		},
	}
	agg := NewAggregator(svc, testFeedConfig())

	_, err := agg.Load(context.Background(), models.FilterState{}, session.New(&models.User{ID: 7}))
	if !errors.Is(err, ErrLoadFailed) {
		t.Errorf("Load() error = %v, want ErrLoadFailed", err)
	}
}

func TestLoadAnnotationFailureDegrades(t *testing.T) {
	svc := &fakePostService{
		listPostsFn: func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
			return []models.Post{makePost(1, 10)}, nil
		},
		postLikesFn: func(ctx context.Context, postID int64) ([]models.User, error) {
			return nil, errors.New("boom")
		},
		hiddenStatusFn: func(ctx context.Context, postID int64) (bool, error) {
			return false, errors.New("boom")
		},
	}
	agg := NewAggregator(svc, testFeedConfig())

	snap, err := agg.Load(context.Background(), models.FilterState{}, session.New(&models.User{ID: 7}))
	if err != nil {
		t.Fatalf("Load() error = %v, want degraded success", err)
	}
	if len(snap.Posts) != 1 {
		t.Fatalf("Load() returned %d posts, want 1", len(snap.Posts))
	}
	ann := snap.Annotations[1]
	if ann.Liked || ann.GotIt || ann.Hidden {
		t.Errorf("degraded annotation = %+v, want all false", ann)
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	// Load A starts first but resolves after load B; only B may
	// commit.
	started := make(chan struct{})
	block := make(chan struct{})
	first := true
	var mu sync.Mutex

	svc := &fakePostService{}
	svc.listPostsFn = func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			close(started)
			<-block
			return []models.Post{makePost(1, 10)}, nil
		}
		return []models.Post{makePost(2, 11)}, nil
	}

	agg := NewAggregator(svc, testFeedConfig())
	sess := session.New(nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := agg.Load(context.Background(), models.FilterState{}, sess)
		errCh <- err
	}()
	<-started

	snapB, err := agg.Load(context.Background(), models.FilterState{}, sess)
	if err != nil {
		t.Fatalf("load B error = %v", err)
	}
	if !sameIDs(postIDs(snapB.Posts), []int64{2}) {
		t.Fatalf("load B posts = %v, want [2]", postIDs(snapB.Posts))
	}

	close(block)
	if err := <-errCh; !errors.Is(err, ErrStaleLoad) {
		t.Errorf("load A error = %v, want ErrStaleLoad", err)
	}

	if !sameIDs(postIDs(agg.Current().Posts), []int64{2}) {
		t.Errorf("visible posts = %v, want B's result [2]", postIDs(agg.Current().Posts))
	}
}

func loadOnePost(t *testing.T, svc *fakePostService, viewer *models.User) *Aggregator {
	t.Helper()
	if svc.listPostsFn == nil {
		svc.listPostsFn = func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
			post := makePost(1, 10)
			post.LikesCount = 3
			return []models.Post{post}, nil
		}
	}
	agg := NewAggregator(svc, testFeedConfig())
	if _, err := agg.Load(context.Background(), models.FilterState{}, session.New(viewer)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return agg
}

func TestToggleLikeRemoteFailureLeavesStateUntouched(t *testing.T) {
	svc := &fakePostService{
		toggleLikeFn: func(ctx context.Context, postID int64) error {
			return errors.New("remote down")
		},
	}
	agg := loadOnePost(t, svc, &models.User{ID: 7})
	before := agg.Current()

	if _, err := agg.ToggleLike(context.Background(), 1); err == nil {
		t.Fatal("ToggleLike() error = nil, want remote failure")
	}

	after := agg.Current()
	if after.Annotations[1].Liked != before.Annotations[1].Liked {
		t.Errorf("liked flag changed after failed toggle")
	}
	if after.Posts[0].LikesCount != before.Posts[0].LikesCount {
		t.Errorf("likes count changed after failed toggle: %d -> %d",
			before.Posts[0].LikesCount, after.Posts[0].LikesCount)
	}
	if svc.count("GetPost") != 0 {
		t.Errorf("count refresh ran after failed toggle")
	}
}

func TestToggleLikeFlipsAndRefreshesCounts(t *testing.T) {
	svc := &fakePostService{
		getPostFn: func(ctx context.Context, postID int64) (*models.Post, error) {
			post := makePost(1, 10)
			post.LikesCount = 4
			return &post, nil
		},
	}
	agg := loadOnePost(t, svc, &models.User{ID: 7})

	snap, err := agg.ToggleLike(context.Background(), 1)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if !snap.Annotations[1].Liked {
		t.Errorf("liked flag not flipped")
	}
	if snap.Posts[0].LikesCount != 4 {
		t.Errorf("likes count = %d, want refreshed 4", snap.Posts[0].LikesCount)
	}

	// Toggling again flips back
	snap, err = agg.ToggleLike(context.Background(), 1)
	if err != nil {
		t.Fatalf("second ToggleLike() error = %v", err)
	}
	if snap.Annotations[1].Liked {
		t.Errorf("liked flag not flipped back")
	}
}

func TestToggleGotItUnknownPost(t *testing.T) {
	agg := loadOnePost(t, &fakePostService{}, &models.User{ID: 7})

	if _, err := agg.ToggleGotIt(context.Background(), 99); !errors.Is(err, ErrUnknownPost) {
		t.Errorf("ToggleGotIt(99) error = %v, want ErrUnknownPost", err)
	}
}

func TestReportGoneRefreshesPost(t *testing.T) {
	svc := &fakePostService{
		getPostFn: func(ctx context.Context, postID int64) (*models.Post, error) {
			post := makePost(1, 10)
			post.IsGone = true
			post.GotItCount = 2
			return &post, nil
		},
	}
	agg := loadOnePost(t, svc, &models.User{ID: 7})

	snap, err := agg.ReportGone(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReportGone() error = %v", err)
	}
	if svc.count("ReportGone") != 1 {
		t.Errorf("ReportGone called %d times, want 1", svc.count("ReportGone"))
	}
	if len(snap.Posts) != 1 {
		t.Fatalf("ReportGone() dropped the post, want it kept")
	}
	if !snap.Posts[0].IsGone {
		t.Errorf("gone flag not set")
	}
	if snap.Posts[0].GotItCount != 2 {
		t.Errorf("counts not refreshed: got %d, want 2", snap.Posts[0].GotItCount)
	}
}

func TestReportGoneRefetchFailureStillFlags(t *testing.T) {
	agg := loadOnePost(t, &fakePostService{}, &models.User{ID: 7})

	snap, err := agg.ReportGone(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReportGone() error = %v", err)
	}
	if !snap.Posts[0].IsGone {
		t.Errorf("gone flag not set when refetch fails")
	}
}

func TestReportGoneRemoteFailureLeavesStateUntouched(t *testing.T) {
	svc := &fakePostService{
		reportGoneFn: func(ctx context.Context, postID int64) error {
			return errors.New("remote down")
		},
	}
	agg := loadOnePost(t, svc, &models.User{ID: 7})

	if _, err := agg.ReportGone(context.Background(), 1); err == nil {
		t.Fatal("ReportGone() error = nil, want remote failure")
	}
	if agg.Current().Posts[0].IsGone {
		t.Errorf("gone flag set after failed report")
	}
}

func TestHideRemovesPostAndAnnotation(t *testing.T) {
	agg := loadOnePost(t, &fakePostService{}, &models.User{ID: 7})

	snap, err := agg.Hide(context.Background(), 1)
	if err != nil {
		t.Fatalf("Hide() error = %v", err)
	}
	if len(snap.Posts) != 0 {
		t.Errorf("Hide() left %d posts, want 0", len(snap.Posts))
	}
	if _, ok := snap.Annotations[1]; ok {
		t.Errorf("Hide() retained annotation for removed post")
	}
}

func TestHideRemoteFailureLeavesListUnchanged(t *testing.T) {
	svc := &fakePostService{
		hidePostFn: func(ctx context.Context, postID int64) error {
			return errors.New("remote down")
		},
	}
	agg := loadOnePost(t, svc, &models.User{ID: 7})

	if _, err := agg.Hide(context.Background(), 1); err == nil {
		t.Fatal("Hide() error = nil, want remote failure")
	}
	if len(agg.Current().Posts) != 1 {
		t.Errorf("post list changed after failed hide")
	}
}

func TestUnhideTriggersFullReload(t *testing.T) {
	agg := loadOnePost(t, &fakePostService{}, &models.User{ID: 7})
	svc := agg.svc.(*fakePostService)
	listCallsBefore := svc.count("ListPosts")

	if _, err := agg.Unhide(context.Background(), 1, models.FilterState{}, session.New(nil)); err != nil {
		t.Fatalf("Unhide() error = %v", err)
	}
	if svc.count("UnhidePost") != 1 {
		t.Errorf("UnhidePost called %d times, want 1", svc.count("UnhidePost"))
	}
	if svc.count("ListPosts") != listCallsBefore+1 {
		t.Errorf("Unhide() did not trigger a full reload")
	}
}

func TestRemoveIdempotent(t *testing.T) {
	svc := &fakePostService{
		listPostsFn: func(ctx context.Context, filter models.FilterState) ([]models.Post, error) {
			return []models.Post{makePost(1, 10), makePost(2, 11)}, nil
		},
	}
	agg := NewAggregator(svc, testFeedConfig())
	if _, err := agg.Load(context.Background(), models.FilterState{}, session.New(nil)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	once := agg.Remove(2)
	twice := agg.Remove(2)

	if !sameIDs(postIDs(once.Posts), []int64{1}) {
		t.Errorf("Remove() posts = %v, want [1]", postIDs(once.Posts))
	}
	if !sameIDs(postIDs(once.Posts), postIDs(twice.Posts)) {
		t.Errorf("second Remove() changed the list: %v vs %v", postIDs(once.Posts), postIDs(twice.Posts))
	}
}
