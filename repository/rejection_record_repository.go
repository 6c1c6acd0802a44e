package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/asset-forge/models"
	"gorm.io/gorm"
)

// RejectionRecordRepositoryImpl implements RejectionRecordRepository interface
type RejectionRecordRepositoryImpl struct {
	*BaseRepository[models.RejectionRecord, models.RejectionRecordFilter]
}

// NewRejectionRecordRepository creates a new rejection record repository
func NewRejectionRecordRepository(db *gorm.DB) RejectionRecordRepository {
	return &RejectionRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RejectionRecord, models.RejectionRecordFilter](db),
	}
}

// ListByAsset returns the rejection history of an asset, oldest first
func (r *RejectionRecordRepositoryImpl) ListByAsset(ctx context.Context, assetID uint) ([]*models.RejectionRecord, error) {
	return r.ByFilter(ctx, models.RejectionRecordFilter{AssetID: &assetID}, "created_at ASC, id ASC", 0, 0)
}

func (r *RejectionRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.RejectionRecordFilter, orderBy string, limit, offset int) ([]*models.RejectionRecord, error) {
	db := r.getDB(ctx)

	var records []*models.RejectionRecord
	query := paginate(r.applyFilter(db, filter), orderBy, limit, offset)

	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to find rejection records: %w", err)
	}

	return records, nil
}

func (r *RejectionRecordRepositoryImpl) Count(ctx context.Context, filter models.RejectionRecordFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.RejectionRecord{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rejection records: %w", err)
	}

	return count, nil
}

func (r *RejectionRecordRepositoryImpl) Exists(ctx context.Context, filter models.RejectionRecordFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RejectionRecordRepositoryImpl) applyFilter(db *gorm.DB, filter models.RejectionRecordFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.AssetID != nil {
		db = db.Where("asset_id = ?", *filter.AssetID)
	}
	if filter.RejectedBy != nil {
		db = db.Where("rejected_by = ?", *filter.RejectedBy)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
