package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

// SnapshotKV stores snapshot documents in the snapshots table.
type SnapshotKV struct {
	DB *gorm.DB
}

var _ snapshot.KV = (*SnapshotKV)(nil)

// NewSnapshotKV wraps db.
func NewSnapshotKV(db *gorm.DB) *SnapshotKV { return &SnapshotKV{DB: db} }

// Load returns the raw document stored under key, or snapshot.ErrNotFound.
func (s *SnapshotKV) Load(ctx context.Context, key string) ([]byte, error) {
	var row domain.Snapshot
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, snapshot.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(row.Value), nil
}

// Save upserts the document under key.
func (s *SnapshotKV) Save(ctx context.Context, key string, value []byte) error {
	row := domain.Snapshot{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// Stats returns the number of stored documents and the time of the most
// recent write, or nil when the table is empty.
func (s *SnapshotKV) Stats(ctx context.Context) (count int64, lastWrite *time.Time, err error) {
	q := s.DB.WithContext(ctx).Model(&domain.Snapshot{})
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Newest write; ordering keeps the column typed as a time under SQLite.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
