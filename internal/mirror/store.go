package mirror

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/reggosong/freebies-go/internal/models"
	"github.com/reggosong/freebies-go/pkg/config"
	"github.com/reggosong/freebies-go/pkg/logging"
)

// PostRecord is the mirrored copy of a remote post, kept for local
// bounding-box queries on the map view.
type PostRecord struct {
	RemoteID      int64     `gorm:"primaryKey;column:remote_id"`
	Title         string    `gorm:"type:varchar(255);not null;column:title"`
	Description   string    `gorm:"type:text;column:description"`
	Category      string    `gorm:"type:varchar(32);column:category"`
	PhotoURL      string    `gorm:"type:text;column:photo_url"`
	Address       string    `gorm:"type:text;column:address"`
	City          string    `gorm:"type:varchar(255);column:city"`
	Latitude      float64   `gorm:"not null;column:latitude"`
	Longitude     float64   `gorm:"not null;column:longitude"`
	OwnerID       int64     `gorm:"not null;column:owner_id"`
	OwnerUsername string    `gorm:"type:varchar(255);column:owner_username"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	LikesCount    int       `gorm:"not null;default:0;column:likes_count"`
	CommentsCount int       `gorm:"not null;default:0;column:comments_count"`
	GotItCount    int       `gorm:"not null;default:0;column:got_it_count"`
	IsGone        bool      `gorm:"not null;default:false;column:is_gone"`

	// GoneFromFeed marks posts that dropped out of the remote list.
	// They are kept, not deleted, so the map can still show history.
	GoneFromFeed bool      `gorm:"not null;default:false;column:gone_from_feed"`
	SyncedAt     time.Time `gorm:"not null;column:synced_at"`
}

// TableName specifies the table name for PostRecord
func (PostRecord) TableName() string {
	return "mirror_posts"
}

// zapWriter adapts zap.Logger to the gorm logger.Writer interface
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}

// Store is the mirror's Postgres persistence layer
type Store struct {
	db *gorm.DB
}

// NewStore connects to the mirror database and migrates the schema
func NewStore(cfg *config.MirrorConfig, logLevel string) (*Store, error) {
	var gormLogLevel logger.LogLevel
	switch logLevel {
	case "DEBUG", "debug":
		gormLogLevel = logger.Info
	case "ERROR", "error":
		gormLogLevel = logger.Silent
	default:
		gormLogLevel = logger.Warn
	}

	writer := &zapWriter{logger: logging.GetLogger()}
	gormLogger := logger.New(writer, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormLogLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mirror database: %w", err)
	}

	if err := db.AutoMigrate(&PostRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mirror schema: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordFromPost maps a remote post to its mirror record
func RecordFromPost(post models.Post, syncedAt time.Time) PostRecord {
	return PostRecord{
		RemoteID:      post.ID,
		Title:         post.Title,
		Description:   post.Description,
		Category:      string(post.Category),
		PhotoURL:      post.PhotoURL,
		Address:       post.Address,
		City:          post.City,
		Latitude:      post.Latitude,
		Longitude:     post.Longitude,
		OwnerID:       post.Owner.ID,
		OwnerUsername: post.Owner.Username,
		CreatedAt:     post.CreatedAt,
		LikesCount:    post.LikesCount,
		CommentsCount: post.CommentsCount,
		GotItCount:    post.GotItCount,
		IsGone:        post.IsGone,
		SyncedAt:      syncedAt,
	}
}

// Upsert writes the records, replacing existing rows by remote id.
// Running the same batch twice leaves the table unchanged.
func (s *Store) Upsert(ctx context.Context, records []PostRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		UpdateAll: true,
	}).Create(&records).Error
}

// MarkGoneBefore flags rows not touched by the given sync pass as
// gone from the remote feed.
func (s *Store) MarkGoneBefore(ctx context.Context, syncedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&PostRecord{}).
		Where("synced_at < ? AND gone_from_feed = false", syncedAt).
		Update("gone_from_feed", true).Error
}

// InBounds returns mirrored posts inside a bounding box, newest first
func (s *Store) InBounds(ctx context.Context, minLat, maxLat, minLon, maxLon float64, limit int) ([]PostRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	var records []PostRecord
	err := s.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLon, maxLon).
		Where("gone_from_feed = false").
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
