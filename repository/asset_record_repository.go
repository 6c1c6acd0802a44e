package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssetRecordRepositoryImpl implements the AssetRecordRepository interface
type AssetRecordRepositoryImpl struct {
	*BaseRepository[models.AssetRecord, models.AssetRecordFilter]
}

// NewAssetRecordRepository creates a new asset record repository
func NewAssetRecordRepository(db *gorm.DB) AssetRecordRepository {
	return &AssetRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AssetRecord, models.AssetRecordFilter](db),
	}
}

// ByUUID retrieves an asset record by UUID
func (r *AssetRecordRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.AssetRecord, error) {
	records, err := r.ByFilter(ctx, models.AssetRecordFilter{UUID: &id}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// ByIdentity retrieves the record for the unique (category, assetKey, variant) triple
func (r *AssetRecordRepositoryImpl) ByIdentity(ctx context.Context, category, assetKey string, variant int) (*models.AssetRecord, error) {
	db := r.getDB(ctx)

	var record models.AssetRecord
	err := db.Where("category = ? AND asset_key = ? AND variant = ?", category, assetKey, variant).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find asset record by identity: %w", err)
	}

	return &record, nil
}

// Update writes every column guarded by the optimistic version; on success record.Version is advanced
func (r *AssetRecordRepositoryImpl) Update(ctx context.Context, record *models.AssetRecord) error {
	expected := record.Version
	now := utils.UTCNow()

	err := r.write(ctx, func(db *gorm.DB) error {
		record.Version = expected + 1
		record.UpdatedAt = now

		res := db.Model(&models.AssetRecord{}).
			Where("id = ? AND version = ?", record.ID, expected).
			Select("*").
			Omit("id", "uuid", "created_at").
			Updates(record)
		if res.Error != nil {
			return fmt.Errorf("failed to update asset record %d: %w", record.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleRecord
		}
		return nil
	})
	if err != nil {
		record.Version = expected
		return err
	}

	return nil
}

// ByFilter retrieves asset records matching the filter
func (r *AssetRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.AssetRecordFilter, orderBy string, limit, offset int) ([]*models.AssetRecord, error) {
	db := r.getDB(ctx)

	var records []*models.AssetRecord
	query := paginate(r.applyFilter(db, filter), orderBy, limit, offset)

	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to find asset records: %w", err)
	}

	return records, nil
}

// Count returns the number of asset records matching the filter
func (r *AssetRecordRepositoryImpl) Count(ctx context.Context, filter models.AssetRecordFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.AssetRecord{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count asset records: %w", err)
	}

	return count, nil
}

// Exists checks if any asset record matches the filter
func (r *AssetRecordRepositoryImpl) Exists(ctx context.Context, filter models.AssetRecordFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AssetRecordRepositoryImpl) applyFilter(db *gorm.DB, filter models.AssetRecordFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Category != nil {
		db = db.Where("category = ?", *filter.Category)
	}
	if filter.AssetKey != nil {
		db = db.Where("asset_key = ?", *filter.AssetKey)
	}
	if filter.Variant != nil {
		db = db.Where("variant = ?", *filter.Variant)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	if filter.ParentAssetID != nil {
		db = db.Where("parent_asset_id = ?", *filter.ParentAssetID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
