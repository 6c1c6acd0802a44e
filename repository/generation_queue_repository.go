package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/asset-forge/models"
	"gorm.io/gorm"
)

// QueueEntryRepositoryImpl implements QueueEntryRepository interface
type QueueEntryRepositoryImpl struct {
	*BaseRepository[models.QueueEntry, models.QueueEntryFilter]
}

// NewQueueEntryRepository creates a new generation queue repository
func NewQueueEntryRepository(db *gorm.DB) QueueEntryRepository {
	return &QueueEntryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.QueueEntry, models.QueueEntryFilter](db),
	}
}

// ByAssetID retrieves the queue entry of an asset
func (r *QueueEntryRepositoryImpl) ByAssetID(ctx context.Context, assetID uint) (*models.QueueEntry, error) {
	db := r.getDB(ctx)

	var entry models.QueueEntry
	err := db.Where("asset_id = ?", assetID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find queue entry by asset ID %d: %w", assetID, err)
	}

	return &entry, nil
}

// Update persists every field of the entry
func (r *QueueEntryRepositoryImpl) Update(ctx context.Context, entry *models.QueueEntry) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Save(entry).Error; err != nil {
			return fmt.Errorf("failed to update queue entry %d: %w", entry.ID, err)
		}
		return nil
	})
}

func (r *QueueEntryRepositoryImpl) ByFilter(ctx context.Context, filter models.QueueEntryFilter, orderBy string, limit, offset int) ([]*models.QueueEntry, error) {
	db := r.getDB(ctx)

	var entries []*models.QueueEntry
	query := paginate(r.applyFilter(db, filter), orderBy, limit, offset)

	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to find queue entries: %w", err)
	}

	return entries, nil
}

func (r *QueueEntryRepositoryImpl) Count(ctx context.Context, filter models.QueueEntryFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.QueueEntry{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}

	return count, nil
}

func (r *QueueEntryRepositoryImpl) Exists(ctx context.Context, filter models.QueueEntryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *QueueEntryRepositoryImpl) applyFilter(db *gorm.DB, filter models.QueueEntryFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.AssetID != nil {
		db = db.Where("asset_id = ?", *filter.AssetID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}

	return db
}
