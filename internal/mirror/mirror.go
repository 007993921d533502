package mirror

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/internal/models"
	"github.com/reggosong/freebies-go/pkg/config"
	"github.com/reggosong/freebies-go/pkg/logging"
	"github.com/reggosong/freebies-go/pkg/telemetry"
)

// PostLister is the slice of the remote backend the mirror consumes
type PostLister interface {
	ListPosts(ctx context.Context, filter models.FilterState) ([]models.Post, error)
}

// Sync periodically snapshots the remote post list into the mirror
// store so the map view can query locally.
type Sync struct {
	cfg    *config.MirrorConfig
	store  *Store
	remote PostLister
	logger *zap.Logger
}

// NewSync creates a sync manager
func NewSync(cfg *config.MirrorConfig, store *Store, remote PostLister) *Sync {
	return &Sync{
		cfg:    cfg,
		store:  store,
		remote: remote,
		logger: logging.GetLogger().With(zap.String("component", "mirror")),
	}
}

// Run performs an immediate pass, then one per interval, until the
// context is cancelled. A failed pass is logged and retried on the
// next tick.
func (s *Sync) Run(ctx context.Context) error {
	s.logger.Info("Starting mirror sync", zap.Duration("interval", s.cfg.SyncInterval))

	if err := s.pass(ctx); err != nil {
		s.logger.Error("Mirror pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.pass(ctx); err != nil {
				s.logger.Error("Mirror pass failed", zap.Error(err))
			}
		}
	}
}

// pass mirrors the full unfiltered feed once
func (s *Sync) pass(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "mirror.pass")
	defer span.End()

	posts, err := s.remote.ListPosts(ctx, models.FilterState{})
	if err != nil {
		return err
	}

	syncedAt := time.Now().UTC()
	records := make([]PostRecord, 0, len(posts))
	for _, post := range posts {
		records = append(records, RecordFromPost(post, syncedAt))
	}

	if err := s.store.Upsert(ctx, records); err != nil {
		return err
	}
	if err := s.store.MarkGoneBefore(ctx, syncedAt); err != nil {
		return err
	}

	s.logger.Info("Mirror pass complete", zap.Int("posts", len(records)))
	return nil
}
